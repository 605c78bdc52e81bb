package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// MonitorRedis instruments r with tracing and metrics and logs its commands at debug level
// under the given client name.
func MonitorRedis(r redis.UniversalClient, name string) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{log: slog.With("redis_client", name)})
	return nil
}

type redisLog struct {
	log *slog.Logger
}

func (h redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := hook(ctx, network, addr)
		if err != nil {
			h.log.WarnContext(ctx, "redis: dial failed", "addr", addr, "error", err)
			return nil, err
		}
		h.log.InfoContext(ctx, "redis: connected", "network", network, "addr", addr)
		return conn, nil
	}
}

func (h redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		h.log.DebugContext(ctx, "redis: processed", "cmd", cmd.FullName(), "took", time.Since(start), "error", ignoreNil(err))
		return err
	}
}

func (h redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		h.log.DebugContext(ctx, "redis: pipeline processed", "cmds", len(cmds), "took", time.Since(start), "error", ignoreNil(err))
		return err
	}
}

// ignoreNil hides redis.Nil, which only reports a missing key.
func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}
