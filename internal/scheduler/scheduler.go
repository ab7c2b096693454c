package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/i474232898/climate-backend/internal/heatalert"
	"github.com/i474232898/climate-backend/internal/observability"
	"github.com/i474232898/climate-backend/internal/weather"
)

// Ranker computes a leaderboard for a set of locations.
type Ranker interface {
	ComputeTopAlerts(ctx context.Context, locations []weather.Location, now time.Time) []heatalert.HeatAlert
}

// Config configures a Scheduler.
type Config struct {
	Locations []weather.Location

	// Interval between refreshes (default: 6 hours).
	Interval time.Duration

	// FetchTimeout bounds the network work of a single refresh (default: 30 seconds).
	FetchTimeout time.Duration

	Ranker  Ranker
	Cache   *heatalert.Cache
	Clock   clockwork.Clock
	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

// Scheduler periodically recomputes the heat alert leaderboard and swaps it into the cache.
type Scheduler struct {
	scheduler    *gocron.Scheduler
	ranker       Ranker
	cache        *heatalert.Cache
	locations    []weather.Location
	interval     time.Duration
	fetchTimeout time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       zerolog.Logger

	// running is set while a scheduled refresh is in flight.
	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// Ticks that land while a refresh is running are dropped, not queued.
	cron := gocron.NewScheduler(time.UTC)
	cron.SetMaxConcurrentJobs(1, gocron.RescheduleMode)

	return &Scheduler{
		scheduler:    cron,
		ranker:       cfg.Ranker,
		cache:        cfg.Cache,
		locations:    cfg.Locations,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		clock:        clock,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		done:         make(chan struct{}),
	}
}

// Start schedules the refresh job, runs it once immediately, and returns.
// The scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.ranker == nil || s.cache == nil {
		return errors.New("scheduler: ranker and cache are required")
	}
	if len(s.locations) == 0 {
		s.logger.Warn().Msg("scheduler: no locations configured; leaderboard will stay empty")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if !s.running.CompareAndSwap(false, true) {
			s.logger.Warn().Msg("scheduler: previous refresh still running; skipping tick")
			s.observeSkip()
			return
		}
		defer s.running.Store(false)
		s.RunOnce(runCtx)
	})
	if err != nil {
		cancel()
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().
		Dur("interval", s.interval).
		Int("locations", len(s.locations)).
		Msg("scheduler: heat alert refresh started")

	go func() {
		select {
		case <-runCtx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	return nil
}

// Stop cancels any in-flight refresh and stops future runs. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.scheduler != nil {
			s.scheduler.Stop()
		}
		close(s.done)
		s.logger.Info().Msg("scheduler: heat alert refresh stopped")
	})
}

// Done is closed once the scheduler has stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// RunOnce performs one refresh. Network I/O happens before the cache lock is
// taken. A panic is logged and swallowed so the schedule keeps running.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("scheduler: heat alert refresh panicked")
			s.observeRun("panic", start)
		}
	}()

	now := s.clock.Now()
	s.logger.Debug().Msg("scheduler: running heat alert refresh")

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	alerts := s.ranker.ComputeTopAlerts(fetchCtx, s.locations, now)

	if ctx.Err() != nil {
		s.logger.Info().Msg("scheduler: refresh cancelled; keeping previous leaderboard")
		return
	}

	s.cache.Replace(alerts, now)

	outcome := "success"
	if len(alerts) == 0 {
		outcome = "empty"
	}
	s.observeRun(outcome, start)
	if s.metrics != nil {
		s.metrics.HeatAlertCitiesPolled.Set(float64(len(s.locations)))
		s.metrics.HeatAlertCitiesRanked.Set(float64(len(alerts)))
	}

	s.logger.Info().
		Int("alerts", len(alerts)).
		Dur("duration", time.Since(start)).
		Msg("scheduler: heat alert refresh completed")
}

func (s *Scheduler) observeRun(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.HeatAlertRuns.WithLabelValues(outcome).Inc()
	s.metrics.HeatAlertRunDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) observeSkip() {
	if s.metrics != nil {
		s.metrics.HeatAlertRuns.WithLabelValues("skipped").Inc()
	}
}
