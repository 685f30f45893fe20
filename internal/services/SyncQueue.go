package services

import (
	"context"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/storage"
	"time"

	json "github.com/goccy/go-json"
)

// SyncQueueInterface is a durable single-slot queue: the newest pending sync replaces
// whatever was waiting.
type SyncQueueInterface interface {
	Enqueue(ctx context.Context, userID string, stats *models.StatsSnapshot) error
	Dequeue(ctx context.Context) (*models.PendingSync, error)
	Peek(ctx context.Context) (*models.PendingSync, error)
	Clear(ctx context.Context) error
	Discard(ctx context.Context, userID string) error
	MarkResolved(ctx context.Context) error
	LastResolved(ctx context.Context) (time.Time, bool, error)
}

type SyncQueue struct {
	storage storage.LocalStorage
	metrics providers.MetricsProviderInterface
	now     func() time.Time
}

type resolvedRecord struct {
	Timestamp int64 `json:"timestamp"`
}

func NewSyncQueue(st storage.LocalStorage, metrics providers.MetricsProviderInterface) SyncQueueInterface {
	return &SyncQueue{storage: st, metrics: metrics, now: time.Now}
}

func (q *SyncQueue) Enqueue(ctx context.Context, userID string, stats *models.StatsSnapshot) error {
	rec := models.PendingSync{
		UserID:    userID,
		Timestamp: q.now().UnixMilli(),
		Stats:     stats.Clone(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := q.storage.Set(ctx, storage.KeyPendingSync, data); err != nil {
		return err
	}
	q.metrics.SetPendingSync(true)
	return nil
}

// Dequeue removes and returns the pending record, or nil when there is none.
func (q *SyncQueue) Dequeue(ctx context.Context) (*models.PendingSync, error) {
	var rec *models.PendingSync
	err := q.storage.Update(ctx, storage.KeyPendingSync, func(raw []byte, ok bool) ([]byte, error) {
		if !ok {
			return nil, storage.ErrSkipWrite
		}
		rec = decodePending(raw)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	q.metrics.SetPendingSync(false)
	return rec, nil
}

func (q *SyncQueue) Peek(ctx context.Context) (*models.PendingSync, error) {
	raw, ok, err := q.storage.Get(ctx, storage.KeyPendingSync)
	if err != nil || !ok {
		return nil, err
	}
	return decodePending(raw), nil
}

func (q *SyncQueue) Clear(ctx context.Context) error {
	if err := q.storage.Remove(ctx, storage.KeyPendingSync); err != nil {
		return err
	}
	q.metrics.SetPendingSync(false)
	return nil
}

// Discard removes the pending record only while it still belongs to userID.
func (q *SyncQueue) Discard(ctx context.Context, userID string) error {
	removed := false
	err := q.storage.Update(ctx, storage.KeyPendingSync, func(raw []byte, ok bool) ([]byte, error) {
		if !ok {
			return nil, storage.ErrSkipWrite
		}
		if rec := decodePending(raw); rec != nil && rec.UserID != userID {
			return nil, storage.ErrSkipWrite
		}
		removed = true
		return nil, nil
	})
	if err != nil {
		return err
	}
	if removed {
		q.metrics.SetPendingSync(false)
	}
	return nil
}

func (q *SyncQueue) MarkResolved(ctx context.Context) error {
	data, err := json.Marshal(resolvedRecord{Timestamp: q.now().UnixMilli()})
	if err != nil {
		return err
	}
	return q.storage.Set(ctx, storage.KeyPendingSyncResolved, data)
}

func (q *SyncQueue) LastResolved(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := q.storage.Get(ctx, storage.KeyPendingSyncResolved)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	var rec resolvedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(rec.Timestamp), true, nil
}

// decodePending returns nil for records that cannot be parsed; they are dropped.
func decodePending(raw []byte) *models.PendingSync {
	var rec models.PendingSync
	if err := json.Unmarshal(raw, &rec); err != nil || rec.UserID == "" {
		return nil
	}
	return &rec
}
