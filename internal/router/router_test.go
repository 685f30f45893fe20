package router

import (
	"context"
	"fmt"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/models"
	"jobstreak/internal/providers"
	"jobstreak/internal/remote"
	"jobstreak/internal/remotesync"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/streak"
	"jobstreak/internal/structures"
	"jobstreak/internal/testutil"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSync struct {
	mu     sync.Mutex
	pushes []*models.StatsSnapshot
}

func (r *recordingSync) Push(_ context.Context, _ string, s *models.StatsSnapshot) remotesync.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, s)
	return remotesync.Succeeded
}

func (r *recordingSync) RetryPending(_ context.Context) remotesync.Outcome { return remotesync.Skipped }

func (r *recordingSync) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pushes)
}

type fixture struct {
	r       *Router
	st      *storage.MemoryStorage
	store   services.StatsStoreInterface
	sync    *recordingSync
	state   *remote.State
	friends *remote.MemoryStore
	cache   *testutil.MockCache
	metrics *testutil.MockMetrics
	obs     *broadcast.ChannelObserver
	b       broadcast.BroadcasterInterface
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conf := &structures.Config{Broadcast: structures.BroadcastConfig{SendTimeout: time.Second}}
	logger := &testutil.MockLogger{}
	f := &fixture{
		st:      storage.NewMemoryStorage(),
		sync:    &recordingSync{},
		state:   remote.NewState(),
		friends: remote.NewMemoryStore(),
		cache:   testutil.NewMockCache(),
		metrics: testutil.NewMockMetrics(),
		obs:     broadcast.NewChannelObserver(64),
	}
	f.store = services.NewStatsStore(f.st, conf, f.metrics)
	f.b = broadcast.NewBroadcaster(conf, logger, f.metrics)
	f.b.Register(f.obs)
	f.r = NewRouter(f.store, f.sync, f.state, f.b, f.friends, f.cache, logger, f.metrics)
	return f
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.SetUser(context.Background(), &models.User{UID: "u1", DisplayName: "Ada"}))
}

func (f *fixture) seedStats(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, f.st.Set(context.Background(), storage.KeyStats, []byte(raw)))
}

func (f *fixture) lastEvent(t *testing.T) broadcast.Event {
	t.Helper()
	select {
	case e := <-f.obs.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
		return broadcast.Event{}
	}
}

// stuckObserver never takes an event; Send returns only when its deadline passes.
type stuckObserver struct{}

func (stuckObserver) ID() string { return "stuck" }

func (stuckObserver) Send(ctx context.Context, _ broadcast.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func track(url string) TrackApplication {
	return TrackApplication{URL: url, Title: "Engineer"}
}

// --- track / remove ---

func TestRouter_Track(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	resp := f.r.Handle(context.Background(), track("https://www.acme.com/jobs/1"))
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, 1, resp.Stats.TodayCount)
	require.Len(t, resp.Stats.AppliedJobs, 1)
	assert.Equal(t, "Acme", resp.Stats.AppliedJobs[0].Company)
	assert.True(t, resp.Stats.AppliedJobs[0].LastTracked)

	assert.Equal(t, broadcast.RefreshStats, f.lastEvent(t).Kind)
	f.r.Wait()
	assert.Equal(t, 1, f.sync.count())
	assert.Equal(t, 1, f.metrics.Intents["trackApplication:true"])
}

func TestRouter_TrackTwiceCountsOnce(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)
	resp := f.r.Handle(context.Background(), track("https://jobs.example/1"))

	assert.False(t, resp.Success)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "already tracked")
	assert.Equal(t, 1, resp.Stats.TodayCount)
	f.r.Wait()
	assert.Equal(t, 1, f.sync.count())
}

func TestRouter_TrackWithoutUser(t *testing.T) {
	f := newFixture(t)

	resp := f.r.Handle(context.Background(), track("https://jobs.example/1"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, models.ErrNoUser.Error())
	assert.Equal(t, 1, f.metrics.Intents["trackApplication:false"])
}

func TestRouter_TrackReachingGoalCreditsStreak(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	var resp Response
	for i := range streak.DailyGoal + 2 {
		resp = f.r.Handle(context.Background(), track(fmt.Sprintf("https://jobs.example/%d", i)))
		require.True(t, resp.Success)
	}
	assert.Equal(t, streak.DailyGoal+2, resp.Stats.TodayCount)
	assert.Equal(t, 1, resp.Stats.Streak)
	f.r.Wait()
}

func TestRouter_TrackAppliesRolloverFirst(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	yesterday := f.store.Today().AddDays(-1).String()
	f.seedStats(t, `{"userId":"u1","todayCount":20,"streak":4,"lastUpdated":"`+yesterday+`","appliedJobs":[]}`)

	resp := f.r.Handle(context.Background(), track("https://jobs.example/1"))
	require.True(t, resp.Success)
	assert.Equal(t, 1, resp.Stats.TodayCount)
	assert.Equal(t, 5, resp.Stats.Streak)
	f.r.Wait()
}

func TestRouter_RemoveUndoesLastTrack(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)
	resp := f.r.Handle(context.Background(), RemoveApplication{URL: "https://jobs.example/1"})
	require.True(t, resp.Success, resp.Message)
	assert.Zero(t, resp.Stats.TodayCount)
	assert.Empty(t, resp.Stats.AppliedJobs)

	resp = f.r.Handle(context.Background(), RemoveApplication{URL: "https://jobs.example/1"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "nothing to undo")
	f.r.Wait()
	assert.Equal(t, 2, f.sync.count())
}

func TestRouter_MutationInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.cache.Set(providers.StatsViewKey("u1"), []byte(`{}`))

	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)
	_, cached := f.cache.Get(providers.StatsViewKey("u1"))
	assert.False(t, cached)
	f.r.Wait()
}

func TestRouter_ConcurrentTracksAllCounted(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.r.Handle(context.Background(), track(fmt.Sprintf("https://jobs.example/%d", i)))
		}()
	}
	wg.Wait()
	f.r.Wait()

	s, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, s.TodayCount)
	assert.Len(t, s.AppliedJobs, 10)
	assert.Equal(t, 0, s.LastTrackedJob())
}

// --- stats ---

func TestRouter_GetStats(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)

	resp := f.r.Handle(context.Background(), GetStats{UserID: "u1"})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, 1, resp.Stats.TodayCount)
	assert.Len(t, resp.Recent, 1)
	require.Len(t, resp.Daily, 7)
	assert.Equal(t, 1, resp.Daily[6].Count)
	f.r.Wait()
}

func TestRouter_GetStatsWritesRollover(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.seedStats(t, `{"userId":"u1","todayCount":3,"streak":4,"lastUpdated":"2020-01-01","appliedJobs":[]}`)

	resp := f.r.Handle(context.Background(), GetStats{UserID: "u1"})
	require.True(t, resp.Success)
	assert.Zero(t, resp.Stats.Streak)

	raw, ok, err := f.st.Get(context.Background(), storage.KeyStats)
	require.NoError(t, err)
	require.True(t, ok)
	var stored models.StatsSnapshot
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, f.store.Today(), stored.LastUpdated)
}

func TestRouter_GetStatsOtherUser(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	resp := f.r.Handle(context.Background(), GetStats{UserID: "u2"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, models.ErrUserMismatch.Error())
}

func TestRouter_UpdateStatsMerges(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)

	incoming := models.NewDefaultSnapshot("u1", f.store.Today())
	incoming.TodayCount = 2
	incoming.AppliedJobs = []models.JobRecord{{URL: "https://jobs.example/2", Date: f.store.Today(), Timestamp: time.Now()}}

	resp := f.r.Handle(context.Background(), UpdateStats{UserID: "u1", Stats: incoming})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, 2, resp.Stats.TodayCount)
	assert.Len(t, resp.Stats.AppliedJobs, 2)
	f.r.Wait()
	assert.Equal(t, 2, f.sync.count())
}

func TestRouter_UpdateStatsRejectsForeignSnapshot(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	resp := f.r.Handle(context.Background(), UpdateStats{UserID: "u1", Stats: models.NewDefaultSnapshot("u2", f.store.Today())})
	assert.False(t, resp.Success)
	f.r.Wait()
	assert.Zero(t, f.sync.count())
}

func TestRouter_SyncStats(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.r.Handle(context.Background(), SyncStats{}).Success)

	f.signIn(t)
	resp := f.r.Handle(context.Background(), SyncStats{})
	assert.True(t, resp.Success)
	f.r.Wait()
	assert.Equal(t, 1, f.sync.count())
}

// --- identity ---

func TestRouter_UserLoggedIn(t *testing.T) {
	f := newFixture(t)

	resp := f.r.Handle(context.Background(), UserLoggedIn{User: &models.User{UID: "u1", Email: "ada@example.com"}})
	require.True(t, resp.Success, resp.Message)

	u, err := f.store.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, broadcast.RefreshStats, f.lastEvent(t).Kind)
	f.r.Wait()
	assert.Equal(t, 1, f.sync.count())
}

func TestRouter_UserLoggedInWithoutUID(t *testing.T) {
	f := newFixture(t)

	resp := f.r.Handle(context.Background(), UserLoggedIn{User: &models.User{DisplayName: "nobody"}})
	assert.False(t, resp.Success)
}

func TestRouter_UserLoggedOut(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	require.True(t, f.r.Handle(context.Background(), track("https://jobs.example/1")).Success)
	f.r.Wait()
	require.NoError(t, f.st.Set(context.Background(), storage.KeyPendingSync, []byte(`{"userId":"u1","timestamp":1}`)))
	f.state.MarkInitialized()
	f.state.SetConnected(false)
	f.cache.Set(providers.StatsViewKey("u1"), []byte(`{}`))

	resp := f.r.Handle(context.Background(), UserLoggedOut{})
	require.True(t, resp.Success, resp.Message)

	for _, key := range []string{storage.KeyUser, storage.KeyStats, storage.KeyPendingSync} {
		_, ok, err := f.st.Get(context.Background(), key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	assert.False(t, f.state.Initialized())
	assert.True(t, f.state.Connected())
	_, cached := f.cache.Get(providers.StatsViewKey("u1"))
	assert.False(t, cached)
}

// --- relay ---

func TestRouter_StuckObserverDoesNotDelayResponse(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.b.Register(stuckObserver{})

	start := time.Now()
	resp := f.r.Handle(context.Background(), track("https://jobs.example/1"))
	elapsed := time.Since(start)

	require.True(t, resp.Success, resp.Message)
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.Equal(t, broadcast.RefreshStats, f.lastEvent(t).Kind)

	f.r.Wait()
	assert.Equal(t, 1, f.b.Count(), "observer that timed out is dropped")
}

func TestRouter_RelayWithoutUser(t *testing.T) {
	f := newFixture(t)

	resp := f.r.Handle(context.Background(), UpdateButtonStates{})
	require.True(t, resp.Success)
	e := f.lastEvent(t)
	assert.Equal(t, broadcast.UpdateButtonStates, e.Kind)
	assert.Nil(t, e.Stats)
}

func TestRouter_RelayCarriesStats(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	require.True(t, f.r.Handle(context.Background(), StatsUpdated{}).Success)
	e := f.lastEvent(t)
	assert.Equal(t, broadcast.StatsUpdated, e.Kind)
	require.NotNil(t, e.Stats)
	assert.Equal(t, "u1", e.UserID)
}

// --- friends ---

func TestRouter_GetFriends(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	require.NoError(t, f.friends.PutRaw("u2", []byte(`{"userId":"u2","displayName":"Grace","lastUpdated":"2024-05-02",
		"stats":{"streak":3,"todayCount":5,"appliedJobs":[]}}`)))
	f.friends.AddFriend("u1", "u2")

	resp := f.r.Handle(context.Background(), GetFriends{UserID: "u1"})
	require.True(t, resp.Success, resp.Message)
	require.Len(t, resp.Friends, 1)
	assert.Equal(t, "Grace", resp.Friends[0].DisplayName)
	assert.Equal(t, 3, resp.Friends[0].Streak)
}

func TestRouter_GetFriendsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)
	f.r.friends = nil

	resp := f.r.Handle(context.Background(), GetFriends{UserID: "u1"})
	assert.False(t, resp.Success)
}

// --- raw ---

func TestRouter_HandleRaw(t *testing.T) {
	f := newFixture(t)
	f.signIn(t)

	resp := f.r.HandleRaw(context.Background(), []byte(`{"action":"trackApplication","url":"https://jobs.example/1"}`))
	assert.True(t, resp.Success, resp.Message)

	resp = f.r.HandleRaw(context.Background(), []byte(`{"action":"bogus"}`))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, f.metrics.Intents["invalid:false"])
	f.r.Wait()
}
