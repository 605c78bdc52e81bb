package leaderboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/raboard/internal/cache"
	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/errors"
	"github.com/victornm/raboard/internal/event"
	"github.com/victornm/raboard/internal/fetcher"
	"github.com/victornm/raboard/internal/progress"
	"github.com/victornm/raboard/internal/roster"
	"github.com/victornm/raboard/internal/scheduler"
	"github.com/victornm/raboard/internal/telemetry"
)

const DefaultTimeout = 2 * time.Minute

// DefaultGameInfo is shown when no fetched user carried the game metadata.
var DefaultGameInfo = domain.GameInfo{
	Title:     "Final Fantasy Tactics: The War of the Lions",
	ImageIcon: "/Images/017657.png",
}

// Account exposes the achievement service account used for the queries.
type Account interface {
	HasCredentials() bool
	ProfileImage(h domain.Handle) string
	ProfileURL(h domain.Handle) string
}

type Fetcher interface {
	Fetch(ctx context.Context, gameID string, h domain.Handle) fetcher.Result
}

type Config struct {
	EventBus  *event.Bus
	Account   Account
	Roster    roster.Source
	Fetcher   Fetcher
	Scheduler *scheduler.Scheduler
	Cache     *cache.Cache
	Metrics   *telemetry.Metrics

	Policy   Policy
	Fallback domain.GameInfo
	// Timeout bounds a whole leaderboard computation. 0 disables it.
	Timeout time.Duration

	NowFunc func() time.Time
}

// Service computes leaderboards: cache check, credentials check, roster resolution, batched fetch,
// aggregation, then cache store.
type Service struct {
	eb        *event.Bus
	account   Account
	roster    roster.Source
	fetcher   Fetcher
	scheduler *scheduler.Scheduler
	cache     *cache.Cache
	metrics   *telemetry.Metrics
	policy    Policy
	fallback  domain.GameInfo
	timeout   time.Duration
	now       func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:        c.EventBus,
		account:   c.Account,
		roster:    c.Roster,
		fetcher:   c.Fetcher,
		scheduler: c.Scheduler,
		cache:     c.Cache,
		metrics:   c.Metrics,
		policy:    c.Policy,
		fallback:  c.Fallback,
		timeout:   c.Timeout,
		now:       c.NowFunc,
	}

	if !s.fallback.Valid() {
		s.fallback = DefaultGameInfo
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

type GetLeaderboardRequest struct {
	GameID string
}

// GetLeaderboard returns the leaderboard of a game, computed at most once per cache window.
// Users whose progress cannot be fetched are left out; only a missing configuration, an unavailable
// roster or a timeout fail the request.
func (s *Service) GetLeaderboard(ctx context.Context, req GetLeaderboardRequest) (*domain.Snapshot, error) {
	if req.GameID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("gameId is required"))
	}

	return s.cache.GetOrCompute(ctx, req.GameID, func(ctx context.Context) (*domain.Snapshot, error) {
		start := time.Now()

		snap, err := s.computeLeaderboard(ctx, req.GameID)
		s.metrics.Computation(outcome(err), time.Since(start))

		return snap, err
	})
}

func (s *Service) computeLeaderboard(ctx context.Context, gameID string) (*domain.Snapshot, error) {
	if !s.account.HasCredentials() {
		return nil, errors.ConfigMissing("achievement API username and key are required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate computation ID: %w", err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := slog.With("computation_id", id.String(), "game_id", gameID)

	handles, err := s.roster.Resolve(ctx)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Timeout(err)
		}
		log.ErrorContext(ctx, "leaderboard: resolve roster failed", "error", err)
		return nil, errors.RosterUnavailable(err)
	}

	log.InfoContext(ctx, "leaderboard: computing", "users", len(handles))

	results, err := s.scheduler.Run(ctx, handles, func(ctx context.Context, h domain.Handle) domain.Result {
		return s.fetchProgress(ctx, gameID, h)
	})
	if err != nil {
		log.ErrorContext(ctx, "leaderboard: computation abandoned", "fetched", len(results), "error", err)
		return nil, errors.Timeout(err)
	}

	agg := Aggregate(results, s.fallback, s.policy)

	snap := &domain.Snapshot{
		GameID:        gameID,
		GameInfo:      agg.GameInfo,
		TopEntries:    make([]domain.LeaderboardEntry, 0, len(agg.Top)),
		Overflow:      agg.Overflow,
		GeneratedAt:   s.now().UTC(),
		FailedFetches: agg.Failed,
	}
	for _, up := range agg.Top {
		snap.TopEntries = append(snap.TopEntries, domain.LeaderboardEntry{
			UserProgress: up,
			ProfileImage: s.account.ProfileImage(up.Handle),
			ProfileURL:   s.account.ProfileURL(up.Handle),
		})
	}

	log.InfoContext(ctx, "leaderboard: computed",
		"users", len(handles),
		"failed", agg.Failed,
		"ranked", len(agg.Top)+len(agg.Overflow),
	)

	s.eb.Publish(ctx, domain.EventLeaderboardComputed{
		Snapshot: *snap,
	})

	return snap, nil
}

func (s *Service) fetchProgress(ctx context.Context, gameID string, h domain.Handle) domain.Result {
	r := s.fetcher.Fetch(ctx, gameID, h)
	if !r.OK() {
		return domain.Result{
			Progress: domain.UserProgress{
				Handle: h,
				Status: domain.StatusFetchFailed,
			},
		}
	}

	return domain.Result{
		Progress: progress.Compute(h, r.Payload),
		GameInfo: r.Payload.GameInfo(),
	}
}

type GetUserProgressRequest struct {
	GameID string
	Handle domain.Handle
}

// GetUserProgress returns the progress of a single user, bypassing the cache.
func (s *Service) GetUserProgress(ctx context.Context, req GetUserProgressRequest) (*domain.SingleProgress, error) {
	if req.GameID == "" || req.Handle == "" {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("gameId and username are required"))
	}

	if !s.account.HasCredentials() {
		return nil, errors.ConfigMissing("achievement API username and key are required")
	}

	r := s.fetcher.Fetch(ctx, req.GameID, req.Handle)
	if !r.OK() {
		return nil, errors.New(errors.CodeInternal,
			errors.WithMessagef("fetch progress failed: game=%s user=%s", req.GameID, req.Handle),
			errors.WithCause(r.Err),
		)
	}

	if r.Payload.Title == "" {
		return nil, errors.New(errors.CodeNotFound,
			errors.WithMessagef("progress not found: game=%s user=%s", req.GameID, req.Handle),
		)
	}

	up := progress.Compute(req.Handle, r.Payload)

	return &domain.SingleProgress{
		Title:                 r.Payload.Title,
		TotalAchievements:     up.TotalAchievements,
		CompletedAchievements: up.CompletedAchievements,
		CompletionPercentage:  up.CompletionPercentage,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.KindConfigMissing):
		return "config_missing"
	case errors.Is(err, errors.KindRosterUnavailable):
		return "roster_unavailable"
	case errors.Is(err, errors.KindTimeout):
		return "timeout"
	default:
		return "error"
	}
}
