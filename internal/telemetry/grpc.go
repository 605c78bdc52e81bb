package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"

	"github.com/victornm/raboard/internal/errors"
)

// GRPCServerInterceptor logs every finished call and turns handler panics into Internal errors.
func GRPCServerInterceptor(l *slog.Logger) grpc.ServerOption {
	if l == nil {
		l = slog.Default()
	}

	opts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpcServerLogger(l), opts...),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(grpcPanicHandler(l))),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), "grpc: "+msg, fields...)
	})
}

func grpcPanicHandler(l *slog.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "grpc: handler panicked", "panic", p, "stack", string(debug.Stack()))
		return errors.Internal(fmt.Errorf("panic: %v", p))
	}
}
