package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/event"
	"github.com/victornm/raboard/internal/leaderboard"
)

type Config struct {
	GRPC         *grpc.Server
	HTTP         gin.IRouter
	EventBus     *event.Bus
	Leaderboard  Leaderboard
	Redis        Redis
	PubsubPrefix string
}

type Leaderboard interface {
	GetLeaderboard(ctx context.Context, req leaderboard.GetLeaderboardRequest) (*domain.Snapshot, error)
	GetUserProgress(ctx context.Context, req leaderboard.GetUserProgressRequest) (*domain.SingleProgress, error)
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ls Leaderboard

	redis  Redis
	prefix string
}

// New registers the surfaces present in c. Notifications are published only when Redis is set.
func New(c Config) *API {
	a := &API{
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// gRPC APIs
	if c.GRPC != nil {
		c.GRPC.RegisterService(&leaderboardServiceDesc, a)
	}

	// HTTP APIs
	if c.HTTP != nil {
		a.registerHTTP(c.HTTP)
	}

	// Register event handlers
	if c.EventBus != nil && c.Redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardComputed, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardComputed(ctx, e.(domain.EventLeaderboardComputed))
		})
	}

	return a
}
