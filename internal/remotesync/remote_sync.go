// Package remotesync pushes local stats to the remote targets, merges what is already
// there and falls back to the durable sync queue whenever the remote is unavailable.
package remotesync

import (
	"context"
	"errors"
	"fmt"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/remote"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/structures"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"golang.org/x/sync/errgroup"
)

type Outcome int

const (
	// Succeeded means at least one target accepted the write.
	Succeeded Outcome = iota
	// Queued means the push failed and was stored for retry.
	Queued
	// Coalesced means a push for the same user was running and will carry this snapshot.
	Coalesced
	// Skipped means there was nothing to push.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Queued:
		return "queued"
	case Coalesced:
		return "coalesced"
	default:
		return "skipped"
	}
}

type RemoteSyncInterface interface {
	Push(ctx context.Context, userID string, stats *models.StatsSnapshot) Outcome
	RetryPending(ctx context.Context) Outcome
}

type RemoteSync struct {
	targets     []remote.Target
	state       *remote.State
	store       services.StatsStoreInterface
	queue       services.SyncQueueInterface
	broadcaster broadcast.BroadcasterInterface
	cache       providers.CacheProviderInterface
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface

	pushTimeout   time.Duration
	pendingMaxAge time.Duration
	now           func() time.Time

	initMu sync.Mutex
	ready  map[remote.Target]bool

	mu sync.Mutex
	// inflight holds one entry per user with a running push; the value is the
	// snapshot to push next, nil when nothing is waiting.
	inflight map[string]*models.StatsSnapshot
}

func NewRemoteSync(
	conf *structures.Config,
	targets []remote.Target,
	state *remote.State,
	store services.StatsStoreInterface,
	queue services.SyncQueueInterface,
	broadcaster broadcast.BroadcasterInterface,
	cache providers.CacheProviderInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *RemoteSync {
	pushTimeout := conf.Sync.PushTimeout
	if pushTimeout <= 0 {
		pushTimeout = 15 * time.Second
	}
	maxAge := conf.Sync.PendingMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &RemoteSync{
		targets:       targets,
		state:         state,
		store:         store,
		queue:         queue,
		broadcaster:   broadcaster,
		cache:         cache,
		logger:        logger,
		metrics:       metrics,
		pushTimeout:   pushTimeout,
		pendingMaxAge: maxAge,
		now:           time.Now,
		ready:         make(map[remote.Target]bool),
		inflight:      make(map[string]*models.StatsSnapshot),
	}
}

// Push never fails from the caller's point of view: anything that goes wrong ends
// up in the sync queue.
func (r *RemoteSync) Push(ctx context.Context, userID string, stats *models.StatsSnapshot) Outcome {
	if userID == "" || stats == nil {
		return r.record(Skipped, 0)
	}

	r.mu.Lock()
	if _, running := r.inflight[userID]; running {
		r.inflight[userID] = stats.Clone()
		r.mu.Unlock()
		r.logger.Debugf(providers.TypeSync, "push for %s already running, coalescing", userID)
		return r.record(Coalesced, 0)
	}
	r.inflight[userID] = nil
	r.mu.Unlock()

	var outcome Outcome
	next := stats
	for next != nil {
		start := time.Now()
		outcome = r.pushOnce(ctx, userID, next)
		r.record(outcome, time.Since(start))

		r.mu.Lock()
		next = r.inflight[userID]
		if next == nil {
			delete(r.inflight, userID)
		} else {
			r.inflight[userID] = nil
		}
		r.mu.Unlock()
	}
	return outcome
}

func (r *RemoteSync) record(o Outcome, d time.Duration) Outcome {
	r.metrics.IncPushOutcome(o.String())
	if d > 0 {
		r.metrics.ObservePushDuration(d)
	}
	return o
}

func (r *RemoteSync) pushOnce(parent context.Context, userID string, stats *models.StatsSnapshot) Outcome {
	ctx, cancel := context.WithTimeout(parent, r.pushTimeout)
	defer cancel()

	ready := r.ensureInit(ctx)
	if len(ready) == 0 {
		r.logger.Warnf(providers.TypeSync, "remote unavailable for %s, queued for retry", userID)
		return r.fail(parent, userID, stats)
	}

	raw, found, err := r.read(ctx, ready, userID)
	if err != nil {
		r.logger.Warnf(providers.TypeSync, "reading remote stats for %s failed: %v", userID, err)
		return r.fail(parent, userID, stats)
	}

	var (
		merged *models.StatsSnapshot
		write  func(context.Context, remote.Target) error
	)
	switch {
	case !found:
		merged = stats.Clone()
		doc := newDocumentFor(merged, r.currentUser(ctx, userID))
		write = func(ctx context.Context, t remote.Target) error { return t.Set(ctx, userID, doc) }
	default:
		existing, migrated, decodeErr := models.DecodeRemoteDocument(raw)
		if decodeErr != nil {
			r.logger.Warnf(providers.TypeSync, "remote document of %s is unreadable, rewriting: %v", userID, decodeErr)
			merged = stats.Clone()
			doc := newDocumentFor(merged, r.currentUser(ctx, userID))
			write = func(ctx context.Context, t remote.Target) error { return t.Set(ctx, userID, doc) }
			break
		}
		remoteSnap := existing.Snapshot()
		if remoteSnap.UserID == "" {
			remoteSnap.UserID = userID
		}
		merged = Merge(stats, remoteSnap)
		doc := documentFor(merged)
		if migrated {
			r.logger.Infof(providers.TypeSync, "migrating legacy remote document of %s", userID)
			doc["createdAt"] = existing.CreatedAt
			if existing.CreatedAt.IsZero() {
				doc["createdAt"] = remote.ServerTimestamp
			}
			doc["displayName"] = existing.DisplayName
			doc["email"] = existing.Email
			doc["photoURL"] = existing.PhotoURL
			write = func(ctx context.Context, t remote.Target) error { return t.Set(ctx, userID, doc) }
		} else {
			write = func(ctx context.Context, t remote.Target) error { return t.Merge(ctx, userID, doc) }
		}
	}

	if err := r.writeAll(ctx, ready, write); err != nil {
		r.logger.Warnf(providers.TypeSync, "writing remote stats for %s failed: %v", userID, err)
		return r.fail(parent, userID, stats)
	}

	r.succeed(parent, userID, merged)
	return Succeeded
}

// ensureInit initializes every target not yet ready and returns the ready ones.
func (r *RemoteSync) ensureInit(ctx context.Context) []remote.Target {
	r.initMu.Lock()
	defer r.initMu.Unlock()

	if !r.state.Initialized() {
		clear(r.ready)
	}
	var ready []remote.Target
	for _, t := range r.targets {
		if !r.ready[t] {
			if err := t.Init(ctx); err != nil {
				r.logger.Warnf(providers.TypeSync, "initializing remote target %s failed: %v", t.Name(), err)
				continue
			}
			r.ready[t] = true
		}
		ready = append(ready, t)
	}
	if len(ready) > 0 {
		r.state.MarkInitialized()
	}
	return ready
}

// read returns the document from the first target that answers.
func (r *RemoteSync) read(ctx context.Context, targets []remote.Target, userID string) ([]byte, bool, error) {
	var errs []error
	for _, t := range targets {
		raw, found, err := t.Get(ctx, userID)
		if err == nil {
			return raw, found, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
	}
	return nil, false, errors.Join(errs...)
}

// writeAll succeeds when at least one target accepted the write.
func (r *RemoteSync) writeAll(ctx context.Context, targets []remote.Target, write func(context.Context, remote.Target) error) error {
	var g errgroup.Group
	errs := make([]error, len(targets))
	for i, t := range targets {
		g.Go(func() error {
			if err := write(ctx, t); err != nil {
				errs[i] = fmt.Errorf("%s: %w", t.Name(), err)
				r.logger.Debugf(providers.TypeSync, "target %s rejected write: %v", t.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err == nil {
			return nil
		}
	}
	return errors.Join(errs...)
}

// fail queues stats for a later retry. A user who signed out while the push was
// running gets no pending record; the second check covers a logout that lands
// between the first check and the write.
func (r *RemoteSync) fail(ctx context.Context, userID string, stats *models.StatsSnapshot) Outcome {
	ctx = context.WithoutCancel(ctx)
	if r.currentUser(ctx, userID) == nil {
		r.logger.Infof(providers.TypeSync, "push for %s failed after sign-out, not queued", userID)
		return Skipped
	}
	if err := r.queue.Enqueue(ctx, userID, stats); err != nil {
		r.logger.Errorf(providers.TypeSync, "could not queue pending sync for %s: %v", userID, err)
	}
	if r.currentUser(ctx, userID) == nil {
		if err := r.queue.Discard(ctx, userID); err != nil {
			r.logger.Warnf(providers.TypeSync, "dropping pending sync of signed-out %s failed: %v", userID, err)
		}
		return Skipped
	}
	r.broadcaster.NotifyAll(ctx, broadcast.NewEvent(broadcast.UpdateButtonStates, stats))
	return Queued
}

func (r *RemoteSync) succeed(ctx context.Context, userID string, merged *models.StatsSnapshot) {
	ctx = context.WithoutCancel(ctx)
	if err := r.queue.Clear(ctx); err != nil {
		r.logger.Warnf(providers.TypeSync, "clearing pending sync failed: %v", err)
	}
	if err := r.queue.MarkResolved(ctx); err != nil {
		r.logger.Warnf(providers.TypeSync, "recording resolved sync failed: %v", err)
	}

	reconciled, err := r.store.Update(ctx, func(cur *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		if cur.UserID != userID {
			return nil, storage.ErrSkipWrite
		}
		return Merge(cur, merged), nil
	})
	switch {
	case err != nil:
		r.logger.Debugf(providers.TypeSync, "local reconcile for %s skipped: %v", userID, err)
		reconciled = merged
	case reconciled.UserID != userID:
		reconciled = merged
	default:
		r.cache.Del(providers.StatsViewKey(userID))
	}

	r.logger.Infof(providers.TypeSync, "stats of %s synced (%d jobs)", userID, len(reconciled.AppliedJobs))
	r.broadcaster.NotifyAll(ctx, broadcast.NewEvent(broadcast.RefreshStats, reconciled))
}

func (r *RemoteSync) currentUser(ctx context.Context, userID string) *models.User {
	u, err := r.store.CurrentUser(ctx)
	if err != nil || u.UID != userID {
		return nil
	}
	return u
}

// RetryPending takes the pending record off the queue before retrying it, so a crash
// mid-retry cannot loop on the same record. Stale records and records of another
// user are discarded.
func (r *RemoteSync) RetryPending(ctx context.Context) Outcome {
	rec, err := r.queue.Dequeue(ctx)
	if err != nil {
		r.logger.Errorf(providers.TypeSync, "reading pending sync failed: %v", err)
		return Skipped
	}
	if rec == nil {
		return Skipped
	}

	if age := rec.Age(r.now()); age > r.pendingMaxAge {
		r.logger.Infof(providers.TypeSync, "discarding pending sync of %s, %s old", rec.UserID, durafmt.Parse(age).LimitFirstN(2).String())
		return Skipped
	}

	u, err := r.store.CurrentUser(ctx)
	if err != nil || u.UID != rec.UserID {
		r.logger.Infof(providers.TypeSync, "discarding pending sync of %s, no longer signed in", rec.UserID)
		return Skipped
	}

	stats := rec.Stats
	if local, err := r.store.Load(ctx); err == nil && local.UserID == rec.UserID {
		stats = local
	}
	if stats == nil {
		return Skipped
	}
	r.logger.Infof(providers.TypeSync, "retrying pending sync of %s", rec.UserID)
	return r.Push(ctx, rec.UserID, stats)
}
