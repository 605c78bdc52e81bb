package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/scheduler"
)

func TestBatches(t *testing.T) {
	tests := map[string]struct {
		roster []domain.Handle
		size   int
		want   [][]domain.Handle
	}{
		"three users in batches of two": {
			roster: []domain.Handle{"A", "B", "C"},
			size:   2,
			want:   [][]domain.Handle{{"A", "B"}, {"C"}},
		},
		"exact multiple": {
			roster: []domain.Handle{"A", "B", "C", "D"},
			size:   2,
			want:   [][]domain.Handle{{"A", "B"}, {"C", "D"}},
		},
		"batch size one is sequential": {
			roster: []domain.Handle{"A", "B"},
			size:   1,
			want:   [][]domain.Handle{{"A"}, {"B"}},
		},
		"batch larger than roster": {
			roster: []domain.Handle{"A", "B"},
			size:   5,
			want:   [][]domain.Handle{{"A", "B"}},
		},
		"empty roster": {
			roster: nil,
			size:   3,
			want:   [][]domain.Handle{},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, scheduler.Batches(tt.roster, tt.size))
		})
	}
}

func TestScheduler_Run_BatchOrdering(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	s := scheduler.New(scheduler.Config{
		BatchSize: 2,
		Delay:     time.Second,
		SleepFunc: func(_ context.Context, d time.Duration) error {
			record("delay " + d.String())
			return nil
		},
	})

	results, err := s.Run(context.Background(), []domain.Handle{"A", "B", "C"}, func(_ context.Context, h domain.Handle) domain.Result {
		record("start " + string(h))
		time.Sleep(10 * time.Millisecond)
		record("end " + string(h))
		return okResult(h)
	})
	require.NoError(t, err)

	require.Equal(t, []domain.Handle{"A", "B", "C"}, handles(results), "results should follow roster order")

	require.Len(t, log, 7)
	assert.ElementsMatch(t, []string{"start A", "start B", "end A", "end B"}, log[:4], "first batch should run A and B")
	assert.Equal(t, []string{"delay 1s", "start C", "end C"}, log[4:], "second batch should start after the delay")
}

func TestScheduler_Run_ConcurrencyIsBoundedByBatchSize(t *testing.T) {
	var inFlight, peak atomic.Int32

	s := scheduler.New(scheduler.Config{
		BatchSize: 3,
		SleepFunc: func(context.Context, time.Duration) error { return nil },
	})

	roster := []domain.Handle{"A", "B", "C", "D", "E", "F", "G"}
	results, err := s.Run(context.Background(), roster, func(_ context.Context, h domain.Handle) domain.Result {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return okResult(h)
	})
	require.NoError(t, err)
	require.Len(t, results, len(roster))
	require.EqualValues(t, 3, peak.Load())
}

func TestScheduler_Run_CancelLetsBatchInFlightFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32

	s := scheduler.New(scheduler.Config{
		BatchSize: 2,
		Delay:     time.Millisecond,
	})

	results, err := s.Run(ctx, []domain.Handle{"A", "B", "C"}, func(ctx context.Context, h domain.Handle) domain.Result {
		started.Add(1)
		cancel()
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, ctx.Err(), "calls of a started batch should not see the cancellation")
		return okResult(h)
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []domain.Handle{"A", "B"}, handles(results))
	require.EqualValues(t, 2, started.Load(), "the second batch should not start")
}

func TestScheduler_Run_Jitter(t *testing.T) {
	var (
		mu     sync.Mutex
		sleeps []time.Duration
	)

	s := scheduler.New(scheduler.Config{
		BatchSize: 2,
		Jitter:    200 * time.Millisecond,
		JitterFunc: func(limit time.Duration) time.Duration {
			return limit / 2
		},
		SleepFunc: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			sleeps = append(sleeps, d)
			mu.Unlock()
			return nil
		},
	})

	_, err := s.Run(context.Background(), []domain.Handle{"A", "B"}, func(_ context.Context, h domain.Handle) domain.Result {
		return okResult(h)
	})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, sleeps)
}

func TestScheduler_Run_EmptyRoster(t *testing.T) {
	s := scheduler.New(scheduler.Config{})

	results, err := s.Run(context.Background(), nil, func(context.Context, domain.Handle) domain.Result {
		t.Fatal("work should not be called")
		return domain.Result{}
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func okResult(h domain.Handle) domain.Result {
	return domain.Result{Progress: domain.UserProgress{Handle: h, Status: domain.StatusOK}}
}

func handles(results []domain.Result) []domain.Handle {
	hs := make([]domain.Handle, 0, len(results))
	for _, r := range results {
		hs = append(hs, r.Progress.Handle)
	}
	return hs
}
