package broadcast

import (
	"context"
	"errors"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct{ ch chan struct{} }

func (c *chanSource) Changes() <-chan struct{} { return c.ch }

func TestWatchStorage_EmitsStatsUpdated(t *testing.T) {
	b, _ := newTestBroadcaster(time.Second)
	obs := NewChannelObserver(4)
	b.Register(obs)
	src := &chanSource{ch: make(chan struct{})}

	calls := 0
	load := func(context.Context) (*models.StatsSnapshot, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("no user")
		}
		return models.NewDefaultSnapshot("u1", models.NewDay(2024, time.May, 2)), nil
	}

	views := testutil.NewMockCache()
	views.Set(providers.StatsViewKey("u1"), []byte(`{}`))

	done := make(chan struct{})
	go func() {
		WatchStorage(context.Background(), src, b, load, views, &testutil.MockLogger{})
		close(done)
	}()

	src.ch <- struct{}{}
	e := <-obs.C
	assert.Equal(t, StatsUpdated, e.Kind)
	require.NotNil(t, e.Stats)
	assert.Equal(t, "u1", e.Stats.UserID)
	_, cached := views.Get(providers.StatsViewKey("u1"))
	assert.False(t, cached)

	views.Set(providers.StatsViewKey("u1"), []byte(`{}`))
	src.ch <- struct{}{}
	e = <-obs.C
	assert.Nil(t, e.Stats)
	_, cached = views.Get(providers.StatsViewKey("u1"))
	assert.False(t, cached, "view of the previously seen user is dropped too")

	close(src.ch)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop when the source closed")
	}
}
