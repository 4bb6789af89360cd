package grpcclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Signal is closed exactly once, when the backend first becomes usable.
type Signal struct {
	ch   chan struct{}
	once sync.Once
}

func NewSignal() *Signal { return &Signal{ch: make(chan struct{})} }

func (s *Signal) Ready() <-chan struct{} { return s.ch }

func (s *Signal) Fire() { s.once.Do(func() { close(s.ch) }) }

// Fired is a Signal that is already closed.
func Fired() *Signal {
	s := NewSignal()
	s.Fire()
	return s
}

// WatchReadiness fires sig once conn reaches READY and, when healthCheck is
// set, the standard health service reports SERVING. It returns when ctx ends
// or the signal has fired.
func WatchReadiness(ctx context.Context, conn *grpc.ClientConn, healthCheck bool, sig *Signal, logger *zap.Logger) {
	logger = logger.Named("Readiness")
	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			break
		}
		if state == connectivity.Shutdown {
			return
		}
		if !conn.WaitForStateChange(ctx, state) {
			return
		}
	}

	if healthCheck {
		client := healthpb.NewHealthClient(conn)
		backoff := 200 * time.Millisecond
		for {
			cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{Service: serviceName})
			cancel()
			if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
				break
			}
			logger.Debug("Backend not serving yet", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
		}
	}

	sig.Fire()
	logger.Info("Backend connection ready", zap.String("target", conn.Target()))
}
