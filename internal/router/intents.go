package router

import (
	"fmt"
	"jobstreak/internal/models"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

type Action string

const (
	ActionSyncStats          Action = "syncStats"
	ActionUserLoggedIn       Action = "userLoggedIn"
	ActionUserLoggedOut      Action = "userLoggedOut"
	ActionGetStats           Action = "getStats"
	ActionUpdateStats        Action = "updateStats"
	ActionRefreshStats       Action = "refreshStats"
	ActionStatsUpdated       Action = "statsUpdated"
	ActionUpdateButtonStates Action = "updateButtonStates"
	ActionTrackApplication   Action = "trackApplication"
	ActionRemoveApplication  Action = "removeApplication"
	ActionGetFriends         Action = "getFriends"
)

// Intent is one inbound request. The set of implementations is closed.
type Intent interface {
	Action() Action
	intent()
}

type SyncStats struct{}

type UserLoggedIn struct {
	User *models.User `json:"user" validate:"required"`
}

type UserLoggedOut struct{}

type GetStats struct {
	UserID string `json:"userId" validate:"required"`
}

type UpdateStats struct {
	UserID string                `json:"userId" validate:"required"`
	Stats  *models.StatsSnapshot `json:"stats" validate:"required"`
}

type RefreshStats struct{}

type StatsUpdated struct{}

type UpdateButtonStates struct{}

type TrackApplication struct {
	URL     string `json:"url" validate:"required|url"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

type RemoveApplication struct {
	URL string `json:"url" validate:"required"`
}

type GetFriends struct {
	UserID string `json:"userId" validate:"required"`
}

func (SyncStats) Action() Action          { return ActionSyncStats }
func (UserLoggedIn) Action() Action       { return ActionUserLoggedIn }
func (UserLoggedOut) Action() Action      { return ActionUserLoggedOut }
func (GetStats) Action() Action           { return ActionGetStats }
func (UpdateStats) Action() Action        { return ActionUpdateStats }
func (RefreshStats) Action() Action       { return ActionRefreshStats }
func (StatsUpdated) Action() Action       { return ActionStatsUpdated }
func (UpdateButtonStates) Action() Action { return ActionUpdateButtonStates }
func (TrackApplication) Action() Action   { return ActionTrackApplication }
func (RemoveApplication) Action() Action  { return ActionRemoveApplication }
func (GetFriends) Action() Action         { return ActionGetFriends }

func (SyncStats) intent()          {}
func (UserLoggedIn) intent()       {}
func (UserLoggedOut) intent()      {}
func (GetStats) intent()           {}
func (UpdateStats) intent()        {}
func (RefreshStats) intent()       {}
func (StatsUpdated) intent()       {}
func (UpdateButtonStates) intent() {}
func (TrackApplication) intent()   {}
func (RemoveApplication) intent()  {}
func (GetFriends) intent()         {}

type envelope struct {
	Action Action `json:"action"`
}

// DecodeIntent parses an {"action": ...} envelope into its intent and validates the
// payload. Errors wrap models.ErrInvalidPayload.
func DecodeIntent(raw []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}

	var target Intent
	switch env.Action {
	case ActionSyncStats:
		return SyncStats{}, nil
	case ActionUserLoggedOut:
		return UserLoggedOut{}, nil
	case ActionRefreshStats:
		return RefreshStats{}, nil
	case ActionStatsUpdated:
		return StatsUpdated{}, nil
	case ActionUpdateButtonStates:
		return UpdateButtonStates{}, nil
	case ActionUserLoggedIn:
		target = &UserLoggedIn{}
	case ActionGetStats:
		target = &GetStats{}
	case ActionUpdateStats:
		target = &UpdateStats{}
	case ActionTrackApplication:
		target = &TrackApplication{}
	case ActionRemoveApplication:
		target = &RemoveApplication{}
	case ActionGetFriends:
		target = &GetFriends{}
	case "":
		return nil, fmt.Errorf("%w: missing action", models.ErrInvalidPayload)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrInvalidPayload, env.Action)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPayload, err)
	}
	v := validate.Struct(target)
	if !v.Validate() {
		return nil, fmt.Errorf("%w: %s: %s", models.ErrInvalidPayload, env.Action, v.Errors.One())
	}
	return deref(target), nil
}

func deref(i Intent) Intent {
	switch v := i.(type) {
	case *UserLoggedIn:
		return *v
	case *GetStats:
		return *v
	case *UpdateStats:
		return *v
	case *TrackApplication:
		return *v
	case *RemoveApplication:
		return *v
	case *GetFriends:
		return *v
	}
	return i
}
