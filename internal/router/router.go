// Package router is the single entry point for intents coming from UI surfaces. Every
// intent gets exactly one Response; remote sync runs in the background and never
// turns a committed local change into a failure.
package router

import (
	"context"
	"errors"
	"fmt"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/remote"
	"jobstreak/internal/remotesync"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/streak"
	"sync"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	recentJobs = 5
	dailyDays  = 7
)

type Response struct {
	Success bool                  `json:"success"`
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	Stats   *models.StatsSnapshot `json:"stats,omitempty"`
	Recent  []models.JobRecord    `json:"recent,omitempty"`
	Daily   []streak.DayCount     `json:"daily,omitempty"`
	Friends []models.FriendStreak `json:"friends,omitempty"`
}

func ok(msg string) Response {
	return Response{Success: true, Status: StatusSuccess, Message: msg}
}

func fail(err error) Response {
	return Response{Success: false, Status: StatusError, Message: err.Error()}
}

type RouterInterface interface {
	Handle(ctx context.Context, in Intent) Response
	HandleRaw(ctx context.Context, raw []byte) Response
	// Wait blocks until pushes and broadcasts started by Handle have finished.
	Wait()
}

type Router struct {
	store       services.StatsStoreInterface
	sync        remotesync.RemoteSyncInterface
	state       *remote.State
	broadcaster broadcast.BroadcasterInterface
	friends     remote.FriendsSource
	cache       providers.CacheProviderInterface
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface

	mu         sync.Mutex
	background sync.WaitGroup
}

func NewRouter(
	store services.StatsStoreInterface,
	sync remotesync.RemoteSyncInterface,
	state *remote.State,
	broadcaster broadcast.BroadcasterInterface,
	friends remote.FriendsSource,
	cache providers.CacheProviderInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *Router {
	return &Router{
		store:       store,
		sync:        sync,
		state:       state,
		broadcaster: broadcaster,
		friends:     friends,
		cache:       cache,
		logger:      logger,
		metrics:     metrics,
	}
}

func (r *Router) HandleRaw(ctx context.Context, raw []byte) Response {
	in, err := DecodeIntent(raw)
	if err != nil {
		r.logger.Warnf(providers.TypeMessage, "Rejected message: %s", err)
		r.metrics.IncIntent("invalid", false)
		return fail(err)
	}
	return r.Handle(ctx, in)
}

func (r *Router) Handle(ctx context.Context, in Intent) Response {
	resp := r.dispatch(ctx, in)
	action := string(in.Action())
	r.metrics.IncIntent(action, resp.Success)
	if !resp.Success {
		r.logger.Warnf(providers.GetLogTypeByAction(action), "%s failed: %s", action, resp.Message)
	} else {
		r.logger.Debugf(providers.GetLogTypeByAction(action), "%s handled", action)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, in Intent) Response {
	switch v := in.(type) {
	case SyncStats:
		return r.syncStats(ctx)
	case UserLoggedIn:
		return r.userLoggedIn(ctx, v)
	case UserLoggedOut:
		return r.userLoggedOut(ctx)
	case GetStats:
		return r.getStats(ctx, v)
	case UpdateStats:
		return r.updateStats(ctx, v)
	case RefreshStats:
		return r.relay(ctx, broadcast.RefreshStats)
	case StatsUpdated:
		return r.relay(ctx, broadcast.StatsUpdated)
	case UpdateButtonStates:
		return r.relay(ctx, broadcast.UpdateButtonStates)
	case TrackApplication:
		return r.track(ctx, v)
	case RemoveApplication:
		return r.remove(ctx, v)
	case GetFriends:
		return r.getFriends(ctx, v)
	default:
		return fail(fmt.Errorf("%w: unsupported intent %T", models.ErrInvalidPayload, in))
	}
}

// pushAsync hands a committed snapshot to remote sync without blocking the caller.
func (r *Router) pushAsync(ctx context.Context, userID string, stats *models.StatsSnapshot) {
	ctx = context.WithoutCancel(ctx)
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		outcome := r.sync.Push(ctx, userID, stats)
		r.logger.Debugf(providers.TypeSync, "push of %s finished: %s", userID, outcome)
	}()
}

// notifyAsync broadcasts without holding up the response; a stuck observer only
// delays its own delivery.
func (r *Router) notifyAsync(ctx context.Context, kind broadcast.EventKind, stats *models.StatsSnapshot) {
	e := broadcast.NewEvent(kind, stats)
	ctx = context.WithoutCancel(ctx)
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		r.broadcaster.NotifyAll(ctx, e)
	}()
}

func (r *Router) Wait() {
	r.background.Wait()
}

func (r *Router) currentUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := r.store.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if userID != "" && u.UID != userID {
		return nil, models.ErrUserMismatch
	}
	return u, nil
}

// mutate applies fn on top of the day rollover and commits the result. Mutations of
// one process are serialized; other processes are fenced by the storage lock.
func (r *Router) mutate(ctx context.Context, fn services.MutateFunc) (*models.StatsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := r.store.Today()
	snap, err := r.store.Update(ctx, func(cur *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		rolled, _ := streak.ApplyRollover(cur, today)
		return fn(rolled)
	})
	if err != nil {
		return nil, err
	}
	r.cache.Del(providers.StatsViewKey(snap.UserID))
	return snap, nil
}

// rollover brings the stored stats to today, writing only when the day changed.
func (r *Router) rollover(ctx context.Context) (*models.StatsSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := r.store.Today()
	rolled := false
	snap, err := r.store.Update(ctx, func(cur *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		next, changed := streak.ApplyRollover(cur, today)
		if !changed {
			return nil, storage.ErrSkipWrite
		}
		rolled = true
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if rolled {
		r.cache.Del(providers.StatsViewKey(snap.UserID))
	}
	return snap, nil
}

func (r *Router) syncStats(ctx context.Context) Response {
	u, err := r.currentUser(ctx, "")
	if err != nil {
		return fail(err)
	}
	stats, err := r.store.Load(ctx)
	if err != nil {
		return fail(err)
	}
	r.pushAsync(ctx, u.UID, stats)
	return ok("sync started")
}

func (r *Router) userLoggedIn(ctx context.Context, in UserLoggedIn) Response {
	if err := r.store.SetUser(ctx, in.User); err != nil {
		return fail(err)
	}
	stats, err := r.store.Load(ctx)
	if err != nil {
		return fail(err)
	}
	r.cache.Del(providers.StatsViewKey(in.User.UID))
	r.notifyAsync(ctx, broadcast.RefreshStats, stats)
	r.pushAsync(ctx, in.User.UID, stats)
	return ok("signed in as " + in.User.UID)
}

func (r *Router) userLoggedOut(ctx context.Context) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, err := r.store.CurrentUser(ctx); err == nil {
		r.cache.Del(providers.StatsViewKey(u.UID))
	}
	if err := r.store.Clear(ctx); err != nil {
		return fail(err)
	}
	r.state.Reset()
	r.notifyAsync(ctx, broadcast.RefreshStats, nil)
	return ok("signed out")
}

func (r *Router) getStats(ctx context.Context, in GetStats) Response {
	if _, err := r.currentUser(ctx, in.UserID); err != nil {
		return fail(err)
	}
	stats, err := r.rollover(ctx)
	if err != nil {
		return fail(err)
	}
	resp := ok("")
	resp.Stats = stats
	resp.Recent = streak.Recent(stats.AppliedJobs, recentJobs)
	resp.Daily = streak.DailyCounts(stats.AppliedJobs, r.store.Today(), dailyDays)
	return resp
}

func (r *Router) updateStats(ctx context.Context, in UpdateStats) Response {
	if _, err := r.currentUser(ctx, in.UserID); err != nil {
		return fail(err)
	}
	if in.Stats.UserID != "" && in.Stats.UserID != in.UserID {
		return fail(models.ErrUserMismatch)
	}
	incoming := in.Stats.Clone()
	incoming.UserID = in.UserID
	incoming.Sanitize()
	if err := incoming.Validate(); err != nil {
		return fail(err)
	}

	r.mu.Lock()
	stats, err := r.store.Update(ctx, func(cur *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		return remotesync.Merge(incoming, cur), nil
	})
	r.mu.Unlock()
	if err != nil {
		return fail(err)
	}
	r.cache.Del(providers.StatsViewKey(in.UserID))

	r.notifyAsync(ctx, broadcast.RefreshStats, stats)
	r.pushAsync(ctx, in.UserID, stats)
	resp := ok("stats updated")
	resp.Stats = stats
	return resp
}

// relay fans a UI-originated notification out to every observer.
func (r *Router) relay(ctx context.Context, kind broadcast.EventKind) Response {
	var stats *models.StatsSnapshot
	if s, err := r.store.Load(ctx); err == nil {
		stats = s
	} else if !errors.Is(err, models.ErrNoUser) {
		return fail(err)
	}
	r.notifyAsync(ctx, kind, stats)
	return ok("")
}

var (
	errAlreadyTracked = errors.New("application already tracked")
	errNothingToUndo  = errors.New("nothing to undo")
)

func (r *Router) track(ctx context.Context, in TrackApplication) Response {
	if _, err := r.currentUser(ctx, ""); err != nil {
		return fail(err)
	}
	job := models.JobRecord{URL: in.URL, Title: in.Title, Company: in.Company}
	var result streak.TrackResult
	stats, err := r.mutate(ctx, func(s *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		next, res := streak.Track(s, job, r.store.Today())
		result = res
		if res == streak.AlreadyTracked {
			return nil, storage.ErrSkipWrite
		}
		return next, nil
	})
	if err != nil {
		return fail(err)
	}
	if result == streak.AlreadyTracked {
		resp := fail(errAlreadyTracked)
		resp.Stats = stats
		return resp
	}

	r.notifyAsync(ctx, broadcast.RefreshStats, stats)
	r.pushAsync(ctx, stats.UserID, stats)
	resp := ok("application tracked")
	resp.Stats = stats
	return resp
}

func (r *Router) remove(ctx context.Context, in RemoveApplication) Response {
	if _, err := r.currentUser(ctx, ""); err != nil {
		return fail(err)
	}
	var result streak.UntrackResult
	stats, err := r.mutate(ctx, func(s *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		next, res := streak.Untrack(s, in.URL)
		result = res
		if res == streak.NothingToRemove {
			return nil, storage.ErrSkipWrite
		}
		return next, nil
	})
	if err != nil {
		return fail(err)
	}
	if result == streak.NothingToRemove {
		resp := fail(errNothingToUndo)
		resp.Stats = stats
		return resp
	}

	r.notifyAsync(ctx, broadcast.RefreshStats, stats)
	r.pushAsync(ctx, stats.UserID, stats)
	resp := ok("application removed")
	resp.Stats = stats
	return resp
}

func (r *Router) getFriends(ctx context.Context, in GetFriends) Response {
	if _, err := r.currentUser(ctx, in.UserID); err != nil {
		return fail(err)
	}
	if r.friends == nil {
		return fail(errors.New("friends are not available for this remote"))
	}
	friends, err := r.friends.Friends(ctx, in.UserID)
	if err != nil {
		return fail(fmt.Errorf("loading friends: %w", err))
	}
	resp := ok("")
	resp.Friends = friends
	if resp.Friends == nil {
		resp.Friends = []models.FriendStreak{}
	}
	return resp
}
