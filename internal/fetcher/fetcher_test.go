package fetcher_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/fetcher"
	"github.com/victornm/raboard/internal/retroachievements"
	"github.com/victornm/raboard/internal/telemetry"
)

var (
	errTransient = &retroachievements.TransientError{StatusCode: 503, Err: stderrors.New("unavailable")}
	errPermanent = &retroachievements.PermanentError{Err: stderrors.New("bad payload")}
)

func TestFetcher_Fetch(t *testing.T) {
	type outputs struct {
		res   fetcher.Result
		calls int
		waits []time.Duration
	}

	tests := map[string]struct {
		script []error
		assert func(t *testing.T, out outputs)
	}{
		"should succeed on first attempt": {
			script: []error{nil},
			assert: func(t *testing.T, out outputs) {
				require.True(t, out.res.OK())
				assert.NotNil(t, out.res.Payload)
				assert.Equal(t, 1, out.res.Attempts)
				assert.Empty(t, out.waits)
			},
		},

		"should succeed on third attempt after two transient failures": {
			script: []error{errTransient, errTransient, nil},
			assert: func(t *testing.T, out outputs) {
				require.True(t, out.res.OK())
				assert.NoError(t, out.res.Err, "earlier transient errors should not leak into a success")
				assert.NotNil(t, out.res.Payload)
				assert.Equal(t, 3, out.res.Attempts)
				assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, out.waits, "exponential backoff")
			},
		},

		"should fail after exhausting all attempts": {
			script: []error{errTransient, errTransient, errTransient},
			assert: func(t *testing.T, out outputs) {
				require.False(t, out.res.OK())
				assert.Nil(t, out.res.Payload)
				assert.ErrorIs(t, out.res.Err, errTransient)
				assert.Equal(t, 3, out.calls)
				assert.Len(t, out.waits, 2, "no wait after the last attempt")
			},
		},

		"should not retry a permanent failure": {
			script: []error{errPermanent, nil},
			assert: func(t *testing.T, out outputs) {
				require.False(t, out.res.OK())
				assert.ErrorIs(t, out.res.Err, errPermanent)
				assert.Equal(t, 1, out.calls)
				assert.Empty(t, out.waits)
			},
		},

		"should stop retrying on a permanent failure after a transient one": {
			script: []error{errTransient, errPermanent, nil},
			assert: func(t *testing.T, out outputs) {
				require.False(t, out.res.OK())
				assert.Equal(t, 2, out.calls)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			api := &scriptedAPI{script: tt.script}
			var waits []time.Duration

			f := fetcher.New(fetcher.Config{
				API:   api,
				Retry: fetcher.DefaultRetryPolicy(),
				SleepFunc: func(_ context.Context, d time.Duration) error {
					waits = append(waits, d)
					return nil
				},
			})

			res := f.Fetch(context.Background(), "1", "C")
			assert.Equal(t, domain.Handle("C"), res.Handle)

			tt.assert(t, outputs{res: res, calls: api.calls, waits: waits})
		})
	}
}

func TestFetcher_StopsWhenBackoffIsCancelled(t *testing.T) {
	api := &scriptedAPI{script: []error{errTransient, nil}}

	ctx, cancel := context.WithCancel(context.Background())
	f := fetcher.New(fetcher.Config{
		API: api,
		Retry: fetcher.RetryPolicy{
			MaxAttempts: 3,
			Backoff:     fetcher.ExponentialBackoff(time.Hour),
		},
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := f.Fetch(ctx, "1", "C")
	require.False(t, res.OK())
	require.ErrorIs(t, res.Err, context.Canceled)
	require.Equal(t, 1, api.calls)
}

func TestFetcher_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()

	f := fetcher.New(fetcher.Config{
		API:       &scriptedAPI{script: []error{errTransient, nil, errPermanent}},
		Metrics:   telemetry.NewMetrics(reg),
		SleepFunc: func(context.Context, time.Duration) error { return nil },
	})

	require.True(t, f.Fetch(context.Background(), "1", "A").OK())
	require.False(t, f.Fetch(context.Background(), "1", "B").OK())

	n, err := testutil.GatherAndCount(reg, "raboard_fetch_attempts_total", "raboard_fetch_results_total")
	require.NoError(t, err)
	require.Equal(t, 5, n, "3 attempt outcomes and 2 result statuses")
}

func TestExponentialBackoff(t *testing.T) {
	b := fetcher.ExponentialBackoff(500 * time.Millisecond)

	assert.Equal(t, 500*time.Millisecond, b(0))
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
}

type scriptedAPI struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (a *scriptedAPI) GetGameInfoAndUserProgress(_ context.Context, _ string, _ domain.Handle) (*retroachievements.Payload, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.calls < len(a.script) {
		err = a.script[a.calls]
	}
	a.calls++

	if err != nil {
		return nil, err
	}

	return &retroachievements.Payload{Title: "T", ImageIcon: "I", Achievements: retroachievements.Achievements{}}, nil
}
