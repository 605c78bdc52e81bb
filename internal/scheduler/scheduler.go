// Package scheduler runs per-user work over a roster in sequential batches of concurrent calls,
// which bounds the load put on the achievement API.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/fetcher"
)

const (
	DefaultBatchSize = 5
	DefaultDelay     = 750 * time.Millisecond
	DefaultJitter    = 200 * time.Millisecond
)

type Config struct {
	// BatchSize is the number of users fetched concurrently. 1 fetches users one by one.
	BatchSize int
	// Delay is the pause between two batches.
	Delay time.Duration
	// Jitter is the upper bound of a random pause before each call of a batch. 0 disables it.
	Jitter time.Duration

	SleepFunc  fetcher.SleepFunc
	JitterFunc func(limit time.Duration) time.Duration
}

type Scheduler struct {
	batchSize int
	delay     time.Duration
	jitter    time.Duration
	sleep     fetcher.SleepFunc
	jitterFn  func(time.Duration) time.Duration
}

func New(c Config) *Scheduler {
	s := &Scheduler{
		batchSize: c.BatchSize,
		delay:     c.Delay,
		jitter:    c.Jitter,
		sleep:     c.SleepFunc,
		jitterFn:  c.JitterFunc,
	}

	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.sleep == nil {
		s.sleep = fetcher.Sleep
	}
	if s.jitterFn == nil {
		s.jitterFn = randomJitter
	}

	return s
}

// Work computes the result of one user. It must not fail: failures are reported inside the result.
type Work func(ctx context.Context, h domain.Handle) domain.Result

// Batches splits roster into consecutive batches of at most size handles, preserving order.
func Batches(roster []domain.Handle, size int) [][]domain.Handle {
	if size <= 0 {
		size = 1
	}

	batches := make([][]domain.Handle, 0, (len(roster)+size-1)/size)
	for start := 0; start < len(roster); start += size {
		end := min(start+size, len(roster))
		batches = append(batches, roster[start:end])
	}

	return batches
}

// Run applies work to every handle of roster. Batches run one after the other with the configured
// delay in between; the calls of a batch run concurrently and the batch completes when all of them
// have returned. Results are in roster order.
//
// Cancelling ctx does not interrupt the batch in flight, it prevents the next one from starting:
// Run then returns the results gathered so far together with the context error.
func (s *Scheduler) Run(ctx context.Context, roster []domain.Handle, work Work) ([]domain.Result, error) {
	batches := Batches(roster, s.batchSize)
	results := make([]domain.Result, 0, len(roster))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("batch %d/%d not started: %w", i+1, len(batches), err)
		}

		slog.DebugContext(ctx, "scheduler: starting batch",
			"batch", i+1,
			"batches", len(batches),
			"size", len(batch),
		)

		results = append(results, s.runBatch(context.WithoutCancel(ctx), batch, work)...)

		if i == len(batches)-1 {
			break
		}

		if err := s.sleep(ctx, s.delay); err != nil {
			return results, fmt.Errorf("delay after batch %d/%d: %w", i+1, len(batches), err)
		}
	}

	return results, nil
}

func (s *Scheduler) runBatch(ctx context.Context, batch []domain.Handle, work Work) []domain.Result {
	results := make([]domain.Result, len(batch))

	var eg errgroup.Group
	for i, h := range batch {
		eg.Go(func() error {
			if s.jitter > 0 {
				_ = s.sleep(ctx, s.jitterFn(s.jitter))
			}

			results[i] = work(ctx, h)
			return nil
		})
	}

	_ = eg.Wait()
	return results
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}
