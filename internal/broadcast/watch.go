package broadcast

import (
	"context"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
)

// ChangeSource emits a signal whenever the shared local storage changed.
type ChangeSource interface {
	Changes() <-chan struct{}
}

// WatchStorage turns storage change signals into StatsUpdated events until ctx ends.
// load supplies the current snapshot; when it fails the event is sent without stats.
// Each change drops the cached views of the user seen now and the one seen before.
func WatchStorage(
	ctx context.Context,
	src ChangeSource,
	b BroadcasterInterface,
	load func(context.Context) (*models.StatsSnapshot, error),
	views providers.CacheProviderInterface,
	logger providers.Logger,
) {
	lastUID := ""
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-src.Changes():
			if !ok {
				return
			}
			var stats *models.StatsSnapshot
			if load != nil {
				s, err := load(ctx)
				if err != nil {
					logger.Debugf(providers.TypeBroadcast, "storage changed, stats unavailable: %v", err)
				} else {
					stats = s
				}
			}
			if lastUID != "" {
				views.Del(providers.StatsViewKey(lastUID))
			}
			if stats != nil && stats.UserID != "" {
				views.Del(providers.StatsViewKey(stats.UserID))
				lastUID = stats.UserID
			}
			b.NotifyAll(ctx, NewEvent(StatsUpdated, stats))
		}
	}
}
