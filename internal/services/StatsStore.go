package services

import (
	"context"
	"errors"
	"fmt"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/storage"
	"jobstreak/internal/structures"
	"time"

	json "github.com/goccy/go-json"
)

// MutateFunc receives the current snapshot (already defaulted for the signed-in user)
// and returns the snapshot to persist. Returning storage.ErrSkipWrite keeps the stored
// value as it is.
type MutateFunc func(current *models.StatsSnapshot) (*models.StatsSnapshot, error)

type StatsStoreInterface interface {
	Load(ctx context.Context) (*models.StatsSnapshot, error)
	Save(ctx context.Context, s *models.StatsSnapshot) error
	Update(ctx context.Context, fn MutateFunc) (*models.StatsSnapshot, error)
	CurrentUser(ctx context.Context) (*models.User, error)
	SetUser(ctx context.Context, u *models.User) error
	Clear(ctx context.Context) error
	Today() models.Day
}

type StatsStore struct {
	storage storage.LocalStorage
	metrics providers.MetricsProviderInterface
	loc     *time.Location
	now     func() time.Time
}

func NewStatsStore(st storage.LocalStorage, conf *structures.Config, metrics providers.MetricsProviderInterface) StatsStoreInterface {
	loc := time.UTC
	if conf.Sync.Timezone != "" {
		if l, err := time.LoadLocation(conf.Sync.Timezone); err == nil {
			loc = l
		}
	}
	return &StatsStore{storage: st, metrics: metrics, loc: loc, now: time.Now}
}

func (ss *StatsStore) Today() models.Day {
	return models.DayOf(ss.now(), ss.loc)
}

func (ss *StatsStore) CurrentUser(ctx context.Context) (*models.User, error) {
	raw, ok, err := ss.storage.Get(ctx, storage.KeyUser)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.ErrNoUser
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil || u.UID == "" {
		return nil, models.ErrNoUser
	}
	return &u, nil
}

func (ss *StatsStore) SetUser(ctx context.Context, u *models.User) error {
	if u == nil || u.UID == "" {
		return fmt.Errorf("%w: user without uid", models.ErrInvalidPayload)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return ss.timed("set_user", func() error {
		return ss.storage.Set(ctx, storage.KeyUser, data)
	})
}

// Load returns the stored snapshot of the signed-in user, or a fresh default when
// nothing is stored or the stored stats belong to someone else.
func (ss *StatsStore) Load(ctx context.Context) (*models.StatsSnapshot, error) {
	u, err := ss.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	var snap *models.StatsSnapshot
	err = ss.timed("load", func() error {
		raw, ok, err := ss.storage.Get(ctx, storage.KeyStats)
		if err != nil {
			return err
		}
		snap = ss.decode(raw, ok, u.UID)
		return nil
	})
	return snap, err
}

func (ss *StatsStore) Save(ctx context.Context, s *models.StatsSnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return ss.timed("save", func() error {
		return ss.storage.Set(ctx, storage.KeyStats, data)
	})
}

// Update runs fn under the storage lock so a writer in another process is never
// overwritten with a stale read.
func (ss *StatsStore) Update(ctx context.Context, fn MutateFunc) (*models.StatsSnapshot, error) {
	u, err := ss.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	var result *models.StatsSnapshot
	err = ss.timed("update", func() error {
		return ss.storage.Update(ctx, storage.KeyStats, func(raw []byte, ok bool) ([]byte, error) {
			current := ss.decode(raw, ok, u.UID)
			next, err := fn(current)
			if errors.Is(err, storage.ErrSkipWrite) {
				result = current
				return nil, storage.ErrSkipWrite
			}
			if err != nil {
				return nil, err
			}
			next.Sanitize()
			if err := next.Validate(); err != nil {
				return nil, err
			}
			result = next
			return json.Marshal(next)
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear removes everything tied to the signed-in identity.
func (ss *StatsStore) Clear(ctx context.Context) error {
	return ss.timed("clear", func() error {
		return ss.storage.Remove(ctx, storage.KeyUser, storage.KeyStats, storage.KeyPendingSync)
	})
}

func (ss *StatsStore) decode(raw []byte, ok bool, uid string) *models.StatsSnapshot {
	if !ok {
		return models.NewDefaultSnapshot(uid, ss.Today())
	}
	var s models.StatsSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return ss.decodeLoose(raw, uid)
	}
	if s.UserID == "" {
		s.UserID = uid
	}
	if s.UserID != uid {
		return models.NewDefaultSnapshot(uid, ss.Today())
	}
	if s.LastUpdated.IsZero() {
		s.LastUpdated = ss.Today()
	}
	s.Sanitize()
	return &s
}

// decodeLoose salvages stats written by older builds, e.g. a non-array appliedJobs
// or counters stored as strings.
func (ss *StatsStore) decodeLoose(raw []byte, uid string) *models.StatsSnapshot {
	doc, _, err := models.DecodeRemoteDocument(raw)
	if err != nil {
		return models.NewDefaultSnapshot(uid, ss.Today())
	}
	s := doc.Snapshot()
	if s.UserID == "" {
		s.UserID = uid
	}
	if s.UserID != uid {
		return models.NewDefaultSnapshot(uid, ss.Today())
	}
	if s.LastUpdated.IsZero() {
		s.LastUpdated = ss.Today()
	}
	return s
}

func (ss *StatsStore) timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	ss.metrics.ObserveStorageDuration(op, time.Since(start))
	return err
}
