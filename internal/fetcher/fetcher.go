// Package fetcher queries the progress of one user with retries.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/retroachievements"
	"github.com/victornm/raboard/internal/telemetry"
)

// API is the achievement service queried for each user.
type API interface {
	GetGameInfoAndUserProgress(ctx context.Context, gameID string, target domain.Handle) (*retroachievements.Payload, error)
}

type Config struct {
	API       API
	Retry     RetryPolicy
	SleepFunc SleepFunc
	Metrics   *telemetry.Metrics
}

type Fetcher struct {
	api     API
	retry   RetryPolicy
	sleep   SleepFunc
	metrics *telemetry.Metrics
}

func New(c Config) *Fetcher {
	f := &Fetcher{
		api:     c.API,
		retry:   c.Retry,
		sleep:   c.SleepFunc,
		metrics: c.Metrics,
	}

	if f.retry.MaxAttempts <= 0 {
		f.retry.MaxAttempts = DefaultMaxAttempts
	}
	if f.retry.Backoff == nil {
		f.retry.Backoff = ExponentialBackoff(DefaultBackoffBase)
	}
	if f.sleep == nil {
		f.sleep = Sleep
	}

	return f
}

// Result is the outcome of a fetch. Exactly one of Payload and Err is set.
type Result struct {
	Handle   domain.Handle
	Payload  *retroachievements.Payload
	Attempts int
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Fetch queries the progress of handle for gameID. Transient failures are retried according to the
// retry policy; a permanent failure stops immediately. Failures are returned in Result.Err and never
// abort the caller.
func (f *Fetcher) Fetch(ctx context.Context, gameID string, handle domain.Handle) Result {
	res := Result{Handle: handle}

	for attempt := 0; attempt < f.retry.MaxAttempts; attempt++ {
		res.Attempts = attempt + 1

		p, err := f.api.GetGameInfoAndUserProgress(ctx, gameID, handle)
		if err == nil {
			f.metrics.FetchAttempt("ok")
			f.metrics.FetchResult(domain.StatusOK.String())
			res.Payload = p
			res.Err = nil
			return res
		}

		res.Err = err

		if retroachievements.IsPermanent(err) {
			f.metrics.FetchAttempt("permanent")
			break
		}
		f.metrics.FetchAttempt("transient")

		if ctx.Err() != nil || attempt == f.retry.MaxAttempts-1 {
			break
		}

		wait := f.retry.Backoff(attempt)
		slog.WarnContext(ctx, "fetcher: transient failure, retrying",
			"game_id", gameID,
			"handle", handle,
			"attempt", res.Attempts,
			"wait", wait,
			"error", err,
		)

		if err := f.sleep(ctx, wait); err != nil {
			res.Err = fmt.Errorf("backoff: %w", err)
			break
		}
	}

	f.metrics.FetchResult(domain.StatusFetchFailed.String())
	slog.ErrorContext(ctx, "fetcher: fetch failed",
		"game_id", gameID,
		"handle", handle,
		"attempts", res.Attempts,
		"error", res.Err,
	)

	return res
}
