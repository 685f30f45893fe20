// Package broadcast fans change notifications out to every live observer. Delivery is
// best effort: a failing observer is logged, counted and dropped, never reported back.
package broadcast

import (
	"context"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/structures"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
)

type EventKind string

const (
	// RefreshStats asks observers to re-render everything.
	RefreshStats EventKind = "refreshStats"
	// UpdateButtonStates is the light variant for track/remove affordances only.
	UpdateButtonStates EventKind = "updateButtonStates"
	// StatsUpdated reports that stored stats changed, possibly in another process.
	StatsUpdated EventKind = "statsUpdated"
)

type Event struct {
	Kind      EventKind             `json:"action"`
	UserID    string                `json:"userId,omitempty"`
	Stats     *models.StatsSnapshot `json:"stats,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewEvent(kind EventKind, stats *models.StatsSnapshot) Event {
	e := Event{Kind: kind, Timestamp: time.Now().UTC()}
	if stats != nil {
		e.UserID = stats.UserID
		e.Stats = stats.Clone()
	}
	return e
}

type Observer interface {
	ID() string
	Send(ctx context.Context, e Event) error
}

type BroadcasterInterface interface {
	Register(o Observer)
	Unregister(id string)
	NotifyAll(ctx context.Context, e Event)
	Count() int
}

type Broadcaster struct {
	mu          sync.RWMutex
	observers   map[string]Observer
	maxParallel int
	sendTimeout time.Duration
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
}

func NewBroadcaster(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) BroadcasterInterface {
	maxParallel := conf.Broadcast.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 8
	}
	timeout := conf.Broadcast.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broadcaster{
		observers:   make(map[string]Observer),
		maxParallel: maxParallel,
		sendTimeout: timeout,
		logger:      logger,
		metrics:     metrics,
	}
}

func (b *Broadcaster) Register(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers[o.ID()] = o
	b.logger.Debugf(providers.TypeBroadcast, "observer %s registered (total: %d)", o.ID(), len(b.observers))
}

func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[id]; ok {
		delete(b.observers, id)
		b.logger.Debugf(providers.TypeBroadcast, "observer %s removed (total: %d)", id, len(b.observers))
	}
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// NotifyAll returns once every observer has been tried or has timed out.
func (b *Broadcaster) NotifyAll(ctx context.Context, e Event) {
	b.mu.RLock()
	targets := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		targets = append(targets, o)
	}
	b.mu.RUnlock()

	swg := sizedwaitgroup.New(b.maxParallel)
	for _, o := range targets {
		swg.Add()
		go func(o Observer) {
			defer swg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
			defer cancel()

			if err := o.Send(sendCtx, e); err != nil {
				b.metrics.IncBroadcast(string(e.Kind), false)
				b.logger.Debugf(providers.TypeBroadcast, "dropping observer %s after %s failed: %v", o.ID(), e.Kind, err)
				b.Unregister(o.ID())
				return
			}
			b.metrics.IncBroadcast(string(e.Kind), true)
		}(o)
	}
	swg.Wait()
}
