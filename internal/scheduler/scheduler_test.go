package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/climate-backend/internal/heatalert"
	"github.com/i474232898/climate-backend/internal/observability"
	"github.com/i474232898/climate-backend/internal/weather"
)

type fakeRanker struct {
	calls  atomic.Int32
	alerts []heatalert.HeatAlert
	panics bool
	lastAt atomic.Value
}

func (f *fakeRanker) ComputeTopAlerts(_ context.Context, _ []weather.Location, now time.Time) []heatalert.HeatAlert {
	f.calls.Add(1)
	f.lastAt.Store(now)
	if f.panics {
		panic("boom")
	}
	return f.alerts
}

var fixedNow = time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC)

func newTestScheduler(r Ranker, cache *heatalert.Cache, interval time.Duration, m *observability.Metrics) *Scheduler {
	return New(Config{
		Locations: weather.DefaultLocations,
		Interval:  interval,
		Ranker:    r,
		Cache:     cache,
		Clock:     clockwork.NewFakeClockAt(fixedNow),
		Metrics:   m,
		Logger:    zerolog.Nop(),
	})
}

func TestRunOnce_ReplacesCache(t *testing.T) {
	r := &fakeRanker{alerts: []heatalert.HeatAlert{{City: "Baghdad, Iraq", Temperature: 47}}}
	cache := heatalert.NewCache()
	m := observability.NewMetricsForTesting()
	s := newTestScheduler(r, cache, time.Hour, m)

	s.RunOnce(context.Background())

	assert.Equal(t, r.alerts, cache.Snapshot())
	assert.Equal(t, fixedNow, cache.UpdatedAt())
	assert.Equal(t, fixedNow, r.lastAt.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeatAlertRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeatAlertCitiesRanked))
}

func TestRunOnce_EmptyResultEmptiesCache(t *testing.T) {
	cache := heatalert.NewCache()
	cache.Replace([]heatalert.HeatAlert{{City: "old"}}, fixedNow.Add(-6*time.Hour))
	m := observability.NewMetricsForTesting()
	s := newTestScheduler(&fakeRanker{}, cache, time.Hour, m)

	s.RunOnce(context.Background())

	assert.Empty(t, cache.Snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeatAlertRuns.WithLabelValues("empty")))
}

func TestRunOnce_PanicIsRecovered(t *testing.T) {
	cache := heatalert.NewCache()
	m := observability.NewMetricsForTesting()
	s := newTestScheduler(&fakeRanker{panics: true}, cache, time.Hour, m)

	require.NotPanics(t, func() { s.RunOnce(context.Background()) })
	assert.Empty(t, cache.Snapshot())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeatAlertRuns.WithLabelValues("panic")))
}

func TestRunOnce_CancelledContextKeepsPreviousLeaderboard(t *testing.T) {
	cache := heatalert.NewCache()
	prev := []heatalert.HeatAlert{{City: "Phoenix, AZ", Temperature: 44}}
	cache.Replace(prev, fixedNow)
	s := newTestScheduler(&fakeRanker{}, cache, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.RunOnce(ctx)

	assert.Equal(t, prev, cache.Snapshot())
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	r := &fakeRanker{alerts: []heatalert.HeatAlert{{City: "Lahore, Pakistan", Temperature: 45.5}}}
	cache := heatalert.NewCache()
	s := newTestScheduler(r, cache, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool {
		return len(cache.Snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStart_RepeatsOnInterval(t *testing.T) {
	r := &fakeRanker{}
	s := newTestScheduler(r, heatalert.NewCache(), 50*time.Millisecond, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return r.calls.Load() >= 3
	}, 3*time.Second, 10*time.Millisecond)

	s.Stop()
	calls := r.calls.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, calls, r.calls.Load())
}

// slowFirstRanker blocks its first call for block, then records when later calls start.
type slowFirstRanker struct {
	block     time.Duration
	calls     atomic.Int32
	releasedC chan time.Time

	mu     sync.Mutex
	starts []time.Time
}

func (r *slowFirstRanker) ComputeTopAlerts(_ context.Context, _ []weather.Location, _ time.Time) []heatalert.HeatAlert {
	if r.calls.Add(1) == 1 {
		time.Sleep(r.block)
		r.releasedC <- time.Now()
		return nil
	}
	r.mu.Lock()
	r.starts = append(r.starts, time.Now())
	r.mu.Unlock()
	return nil
}

func (r *slowFirstRanker) startsWithin(from time.Time, d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, at := range r.starts {
		if !at.Before(from) && at.Before(from.Add(d)) {
			n++
		}
	}
	return n
}

func TestStart_OverrunSkipsMissedTicks(t *testing.T) {
	r := &slowFirstRanker{block: 500 * time.Millisecond, releasedC: make(chan time.Time, 1)}
	s := newTestScheduler(r, heatalert.NewCache(), 50*time.Millisecond, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	var released time.Time
	select {
	case released = <-r.releasedC:
	case <-time.After(3 * time.Second):
		t.Fatal("first refresh never finished")
	}

	// Let the normal cadence resume for a few intervals.
	time.Sleep(300 * time.Millisecond)
	s.Stop()

	// Ten ticks were missed during the overrun; none of them may replay.
	assert.LessOrEqual(t, r.startsWithin(released, 30*time.Millisecond), 1)
	assert.LessOrEqual(t, r.calls.Load(), int32(1+8))
}

func TestStart_RequiresDependencies(t *testing.T) {
	s := New(Config{Logger: zerolog.Nop()})

	require.Error(t, s.Start(context.Background()))
}

func TestStop_Idempotent(t *testing.T) {
	s := newTestScheduler(&fakeRanker{}, heatalert.NewCache(), time.Hour, nil)
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	require.NotPanics(t, s.Stop)
}
