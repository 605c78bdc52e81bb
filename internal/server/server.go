package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/victornm/raboard/internal/api"
	"github.com/victornm/raboard/internal/cache"
	"github.com/victornm/raboard/internal/domain"
	"github.com/victornm/raboard/internal/event"
	"github.com/victornm/raboard/internal/fetcher"
	"github.com/victornm/raboard/internal/leaderboard"
	"github.com/victornm/raboard/internal/retroachievements"
	"github.com/victornm/raboard/internal/roster"
	"github.com/victornm/raboard/internal/scheduler"
	"github.com/victornm/raboard/internal/telemetry"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

func (c RedisConfig) enabled() bool {
	return len(c.Addrs) > 0
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

func (c PostgresConfig) enabled() bool {
	return c.Addr != ""
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	RetroAchievements struct {
		BaseURL     string
		Username    string
		APIKey      string
		RateLimit   float64
		Burst       int
		Timeout     time.Duration
		MaxBodySize int64
	}

	Fetch struct {
		MaxAttempts int
		BackoffBase time.Duration
	}

	Scheduler struct {
		BatchSize int
		Delay     time.Duration
		Jitter    time.Duration
	}

	Leaderboard struct {
		TopN                int
		IncludeZeroProgress bool
		Timeout             time.Duration
		Fallback            struct {
			Title     string
			ImageIcon string
		}
	}

	Cache struct {
		// Backend is "memory" or "redis".
		Backend string
		TTL     time.Duration
	}

	Roster roster.Config

	Redis struct {
		Cache  RedisConfig
		Pubsub RedisConfig
	}

	Postgres struct {
		Roster PostgresConfig
	}
}

// DefaultConfig holds the values used for every setting left out of the config file and environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090

	c.RetroAchievements.BaseURL = retroachievements.DefaultBaseURL
	c.RetroAchievements.Burst = 1
	c.RetroAchievements.Timeout = 15 * time.Second
	c.RetroAchievements.MaxBodySize = 10 << 20

	c.Fetch.MaxAttempts = fetcher.DefaultMaxAttempts
	c.Fetch.BackoffBase = fetcher.DefaultBackoffBase

	c.Scheduler.BatchSize = scheduler.DefaultBatchSize
	c.Scheduler.Delay = scheduler.DefaultDelay
	c.Scheduler.Jitter = scheduler.DefaultJitter

	c.Leaderboard.TopN = leaderboard.DefaultTopN
	c.Leaderboard.Timeout = leaderboard.DefaultTimeout
	c.Leaderboard.Fallback.Title = leaderboard.DefaultGameInfo.Title
	c.Leaderboard.Fallback.ImageIcon = leaderboard.DefaultGameInfo.ImageIcon

	c.Cache.Backend = CacheBackendMemory
	c.Cache.TTL = cache.DefaultTTL

	c.Roster.Source = roster.SourceStatic
	c.Roster.Handles = slices.Clone(roster.DefaultHandles)

	c.Redis.Cache.Prefix = "raboard"
	c.Redis.Pubsub.Prefix = "raboard"
	return c
}

type Server struct {
	c Config

	eb      *event.Bus
	metrics *telemetry.Metrics
	reg     *prometheus.Registry

	infra struct {
		redis struct {
			cache  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres struct {
			roster *pgxpool.Pool
		}
	}

	service struct {
		leaderboard *leaderboard.Service
	}

	http *http.Server
	grpc *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.initTelemetry()

	// Notifications are the only subscribers; a slow redis must not pile up handlers.
	s.eb = event.NewBus(event.WithPoolSize(100), event.WithTimeout(10*time.Second))

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initTelemetry() {
	s.reg = prometheus.NewRegistry()
	s.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = telemetry.NewMetrics(s.reg)
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, c RedisConfig) (redis.UniversalClient, error) {
		if !c.enabled() {
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    c.Addrs,
			Password: c.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.cache, err = connect("cache", s.c.Redis.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if s.c.Cache.Backend == CacheBackendRedis && s.infra.redis.cache == nil {
		return fmt.Errorf("cache: redis backend requires redis.cache.addrs")
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(c PostgresConfig) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	if !s.c.Postgres.Roster.enabled() {
		return nil
	}

	s.infra.postgres.roster, err = connect(s.c.Postgres.Roster)
	if err != nil {
		return fmt.Errorf("roster: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	rs, err := roster.New(s.c.Roster, s.infra.postgres.roster)
	if err != nil {
		return err
	}

	client := retroachievements.NewClient(retroachievements.Config{
		BaseURL:   s.c.RetroAchievements.BaseURL,
		Username:  s.c.RetroAchievements.Username,
		APIKey:    s.c.RetroAchievements.APIKey,
		RateLimit: s.c.RetroAchievements.RateLimit,
		Burst:     s.c.RetroAchievements.Burst,
		Timeout:   s.c.RetroAchievements.Timeout,

		MaxBodySize: s.c.RetroAchievements.MaxBodySize,
	})

	var store cache.Store = cache.NewMemory(time.Now)
	if s.c.Cache.Backend == CacheBackendRedis {
		store = cache.NewRedis(s.infra.redis.cache, s.c.Redis.Cache.Prefix)
	}

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Account:  client,
		Roster:   rs,
		Fetcher: fetcher.New(fetcher.Config{
			API: client,
			Retry: fetcher.RetryPolicy{
				MaxAttempts: s.c.Fetch.MaxAttempts,
				Backoff:     fetcher.ExponentialBackoff(s.c.Fetch.BackoffBase),
			},
			Metrics: s.metrics,
		}),
		Scheduler: scheduler.New(scheduler.Config{
			BatchSize: s.c.Scheduler.BatchSize,
			Delay:     s.c.Scheduler.Delay,
			Jitter:    s.c.Scheduler.Jitter,
		}),
		Cache: cache.New(cache.Config{
			Store:   store,
			TTL:     s.c.Cache.TTL,
			Metrics: s.metrics,
		}),
		Metrics: s.metrics,
		Policy: leaderboard.Policy{
			TopN:                s.c.Leaderboard.TopN,
			IncludeZeroProgress: s.c.Leaderboard.IncludeZeroProgress,
		},
		Fallback: domain.GameInfo{
			Title:     s.c.Leaderboard.Fallback.Title,
			ImageIcon: s.c.Leaderboard.Fallback.ImageIcon,
		},
		Timeout: s.c.Leaderboard.Timeout,
	})

	if !client.HasCredentials() {
		slog.Warn("server: achievement API credentials are not set, leaderboard requests will fail")
	}

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.HandleMethodNotAllowed = true
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(slog.Default()))

	c := api.Config{
		GRPC:         s.grpc,
		HTTP:         e,
		EventBus:     s.eb,
		Leaderboard:  s.service.leaderboard,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}
	if s.infra.redis.pubsub != nil {
		c.Redis = s.infra.redis.pubsub
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}
	if s.infra.postgres.roster != nil {
		s.infra.postgres.roster.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
