package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/victornm/quizarena/internal/errors"
)

// GRPCServerInterceptor chains call logging, a metrics counter and panic
// recovery, outermost first.
func GRPCServerInterceptor() grpc.ServerOption {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}

	return grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpcServerLogger(slog.Default()), opts...),
		countRPCs,
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandlerContext(recoverPanic)),
	)
}

func grpcServerLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

func countRPCs(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	RPCsHandled.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	return resp, err
}

func recoverPanic(ctx context.Context, p any) error {
	err := fmt.Errorf("panic: %v", p)
	slog.ErrorContext(ctx, "grpc: handler panic", "error", err, "stack", string(debug.Stack()))
	return errors.Internal(err)
}
