package grpcclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/identity"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor forwards the caller's token so the backend can authorise.
func AuthInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token := identity.TokenFrom(ctx); token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func shortMethod(fullMethod string) string {
	if i := strings.LastIndex(fullMethod, "/"); i >= 0 {
		return fullMethod[i+1:]
	}
	return fullMethod
}

func MetricsInterceptor(m *metrics.MetricsManager, logger *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		took := time.Since(start)
		code := status.Code(err)
		m.ObserveBackend(shortMethod(method), code.String(), took)
		if err != nil {
			logger.Debug("Backend call failed",
				zap.String("method", method),
				zap.String("code", code.String()),
				zap.Duration("took", took),
				zap.Error(err))
		}
		return err
	}
}

// mapError turns a backend status into the domain error the HTTP layer knows.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("BackendClient.%s: %w: %v", op, domain.ErrTransient, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("BackendClient.%s: %w", op, err)
	}
	var sentinel error
	switch st.Code() {
	case codes.PermissionDenied:
		sentinel = domain.ErrForbidden
	case codes.Unauthenticated:
		sentinel = domain.ErrUnauthenticated
	case codes.NotFound:
		sentinel = domain.ErrNotFound
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return fmt.Errorf("BackendClient.%s: %w", op, domain.NewValidationError("request", st.Message()))
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		sentinel = domain.ErrTransient
	default:
		return fmt.Errorf("BackendClient.%s: %s: %w", op, st.Code(), err)
	}
	return fmt.Errorf("BackendClient.%s: %w: %s", op, sentinel, st.Message())
}
