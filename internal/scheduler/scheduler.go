package scheduler

import (
	"context"
	"errors"
	"jobstreak/internal/broadcast"
	"jobstreak/internal/models"
	"jobstreak/internal/monitor"
	"jobstreak/internal/providers"
	"jobstreak/internal/remotesync"
	"jobstreak/internal/scheduler/interfaces"
	"jobstreak/internal/services"
	"jobstreak/internal/storage"
	"jobstreak/internal/streak"
	"jobstreak/internal/structures"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context)
}

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	store       services.StatsStoreInterface
	remote      remotesync.RemoteSyncInterface
	monitor     monitor.ReconnectMonitorInterface
	broadcaster broadcast.BroadcasterInterface
	cache       providers.CacheProviderInterface
	cron        *gron.Cron
	opsMu       sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
}

func (s *Scheduler) jobs() []job {
	return []job{
		{name: "dailyCheck", interval: s.config.Sync.DailyCheckInterval, run: func(ctx context.Context) {
			if err := s.DailyCheck(ctx); err != nil {
				s.logger.Errorf(providers.TypeApp, "Daily check failed: %s", err)
			}
		}},
		{name: "syncRetry", interval: s.config.Sync.SweepInterval, run: s.monitor.Sweep},
		{name: "connectivityCheck", interval: s.config.Sync.ProbeInterval, run: s.monitor.HealthCheck},
	}
}

// Init runs the daily check once in the background and registers every recurring job.
// gron rounds intervals down to whole seconds, with one second as the floor.
func (s *Scheduler) Init() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = gron.New()

	jobs := s.jobs()
	go s.runJob(jobs[0])

	for _, j := range jobs {
		if j.interval <= 0 {
			s.logger.Warnf(providers.TypeApp, "Job %s disabled: no interval", j.name)
			continue
		}
		s.cron.AddFunc(gron.Every(j.interval), func() {
			s.runJob(j)
		})
	}

	s.cron.Start()
}

// runJob holds the ops mutex for the whole run, so jobs never overlap and Stop can
// wait for the one in flight.
func (s *Scheduler) runJob(j job) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.logger.Debugf(providers.TypeApp, "Running job %s", j.name)
	j.run(s.ctx)
}

func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cancel()

	// Waits for the job in flight; later runs see the cancelled context.
	s.opsMu.Lock()
	s.logger.Infof(providers.TypeApp, "Scheduler stopped")
	s.opsMu.Unlock()
}

// DailyCheck rolls the signed-in user's stats over to today and pushes the result.
// Nothing happens when no user is signed in or the stats are already current.
func (s *Scheduler) DailyCheck(ctx context.Context) error {
	today := s.store.Today()
	rolled := false
	snap, err := s.store.Update(ctx, func(cur *models.StatsSnapshot) (*models.StatsSnapshot, error) {
		next, changed := streak.ApplyRollover(cur, today)
		if !changed {
			return nil, storage.ErrSkipWrite
		}
		rolled = true
		return next, nil
	})
	switch {
	case errors.Is(err, models.ErrNoUser):
		return nil
	case err != nil:
		return err
	case !rolled:
		return nil
	}

	s.cache.Del(providers.StatsViewKey(snap.UserID))
	s.logger.Infof(providers.TypeApp, "Rolled stats of %s over to %s (streak %d)", snap.UserID, today, snap.Streak)
	s.broadcaster.NotifyAll(ctx, broadcast.NewEvent(broadcast.RefreshStats, snap))
	s.remote.Push(ctx, snap.UserID, snap)
	return nil
}

func NewScheduler(
	config *structures.Config,
	logger providers.Logger,
	store services.StatsStoreInterface,
	remote remotesync.RemoteSyncInterface,
	monitor monitor.ReconnectMonitorInterface,
	broadcaster broadcast.BroadcasterInterface,
	cache providers.CacheProviderInterface,
) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		store:       store,
		remote:      remote,
		monitor:     monitor,
		broadcaster: broadcaster,
		cache:       cache,
	}
}
