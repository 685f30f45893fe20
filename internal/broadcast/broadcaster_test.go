package broadcast

import (
	"context"
	"errors"
	"jobstreak/internal/models"
	"jobstreak/internal/structures"
	"jobstreak/internal/testutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingObserver struct {
	id    string
	calls atomic.Int32
}

func (f *failingObserver) ID() string { return f.id }
func (f *failingObserver) Send(_ context.Context, _ Event) error {
	f.calls.Add(1)
	return errors.New("no listener")
}

type slowObserver struct{ id string }

func (s *slowObserver) ID() string { return s.id }
func (s *slowObserver) Send(ctx context.Context, _ Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestBroadcaster(timeout time.Duration) (*Broadcaster, *testutil.MockMetrics) {
	m := testutil.NewMockMetrics()
	conf := &structures.Config{Broadcast: structures.BroadcastConfig{MaxParallel: 2, SendTimeout: timeout}}
	return NewBroadcaster(conf, &testutil.MockLogger{}, m).(*Broadcaster), m
}

func TestBroadcaster_DeliversToAll(t *testing.T) {
	b, m := newTestBroadcaster(time.Second)
	obs := []*ChannelObserver{NewChannelObserver(1), NewChannelObserver(1), NewChannelObserver(1)}
	for _, o := range obs {
		b.Register(o)
	}

	stats := models.NewDefaultSnapshot("u1", models.NewDay(2024, time.May, 2))
	b.NotifyAll(context.Background(), NewEvent(RefreshStats, stats))

	for _, o := range obs {
		select {
		case e := <-o.C:
			assert.Equal(t, RefreshStats, e.Kind)
			assert.Equal(t, "u1", e.UserID)
		default:
			t.Fatal("event not delivered")
		}
	}
	assert.Equal(t, 3, m.Broadcasts["refreshStats:true"])
}

func TestBroadcaster_FailuresAreSwallowedAndDropped(t *testing.T) {
	b, m := newTestBroadcaster(time.Second)
	bad := &failingObserver{id: "bad"}
	good := NewChannelObserver(2)
	b.Register(bad)
	b.Register(good)

	assert.NotPanics(t, func() {
		b.NotifyAll(context.Background(), NewEvent(UpdateButtonStates, nil))
	})
	assert.Equal(t, 1, b.Count())
	assert.Equal(t, 1, m.Broadcasts["updateButtonStates:false"])

	b.NotifyAll(context.Background(), NewEvent(UpdateButtonStates, nil))
	assert.Equal(t, int32(1), bad.calls.Load())
	assert.Len(t, good.C, 2)
}

func TestBroadcaster_SlowObserverTimesOut(t *testing.T) {
	b, _ := newTestBroadcaster(50 * time.Millisecond)
	b.Register(&slowObserver{id: "slow"})
	fast := NewChannelObserver(1)
	b.Register(fast)

	start := time.Now()
	b.NotifyAll(context.Background(), NewEvent(StatsUpdated, nil))
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, fast.C, 1)
	assert.Equal(t, 1, b.Count())
}

func TestBroadcaster_NoObservers(t *testing.T) {
	b, _ := newTestBroadcaster(time.Second)
	assert.NotPanics(t, func() {
		b.NotifyAll(context.Background(), NewEvent(RefreshStats, nil))
	})
}

func TestBroadcaster_Unregister(t *testing.T) {
	b, _ := newTestBroadcaster(time.Second)
	o := NewChannelObserver(1)
	b.Register(o)
	b.Unregister(o.ID())
	b.Unregister("unknown")
	assert.Zero(t, b.Count())
}

func TestChannelObserver_FullBuffer(t *testing.T) {
	o := NewChannelObserver(1)
	require.NoError(t, o.Send(context.Background(), NewEvent(RefreshStats, nil)))
	assert.ErrorIs(t, o.Send(context.Background(), NewEvent(RefreshStats, nil)), ErrObserverFull)
}

func TestNewEvent_CopiesStats(t *testing.T) {
	stats := models.NewDefaultSnapshot("u1", models.NewDay(2024, time.May, 2))
	e := NewEvent(RefreshStats, stats)
	stats.TodayCount = 9
	assert.Zero(t, e.Stats.TodayCount)
}

func TestWebsocketObserver_SendAndServe(t *testing.T) {
	serverObs := make(chan *WebsocketObserver, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		o := NewWebsocketObserver(c)
		serverObs <- o
		_ = o.Serve(r.Context(), func(_ context.Context, msg []byte) any {
			return map[string]string{"echo": string(msg)}
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close(websocket.StatusNormalClosure, "")

	obs := <-serverObs
	assert.NotEmpty(t, obs.ID())
	require.NoError(t, obs.Send(ctx, NewEvent(StatsUpdated, nil)))

	_, data, err := client.Read(ctx)
	require.NoError(t, err)
	var e map[string]any
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "statsUpdated", e["action"])

	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte("ping")))
	_, data, err = client.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"ping"}`, string(data))
}
