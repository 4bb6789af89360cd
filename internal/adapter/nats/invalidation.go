package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pashumandi/mandi-gateway/internal/config"
	"github.com/pashumandi/mandi-gateway/internal/query"
	"go.uber.org/zap"
)

const DefaultInvalidationSubject = "mandi.cache.invalidate"

type InvalidationEvent struct {
	Origin string     `json:"origin"`
	Keys   [][]string `json:"keys"`
	At     time.Time  `json:"at"`
}

// Applier receives invalidations published by other gateway instances.
type Applier interface {
	ApplyRemote(ctx context.Context, keys []query.Key) error
}

// InvalidationBus shares cache invalidations between gateway instances.
type InvalidationBus struct {
	nc      *nats.Conn
	subject string
	origin  string
	sub     *nats.Subscription
	logger  *zap.Logger
}

func NewInvalidationBus(cfg *config.NATSConfig, logger *zap.Logger) (*InvalidationBus, error) {
	logger = logger.Named("InvalidationBus")
	opts := []nats.Option{
		nats.Name("mandi-gateway"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultInvalidationSubject
	}
	return &InvalidationBus{nc: nc, subject: subject, origin: uuid.NewString(), logger: logger}, nil
}

func encodeEvent(origin string, keys []query.Key, at time.Time) ([]byte, error) {
	ev := InvalidationEvent{Origin: origin, At: at, Keys: make([][]string, 0, len(keys))}
	for _, k := range keys {
		ev.Keys = append(ev.Keys, []string(k))
	}
	return json.Marshal(ev)
}

func (b *InvalidationBus) Broadcast(ctx context.Context, keys []query.Key) error {
	data, err := encodeEvent(b.origin, keys, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation for %s: %w", b.subject, err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		b.logger.Error("Failed to publish NATS message", zap.String("subject", b.subject), zap.Error(err))
		return fmt.Errorf("failed to publish NATS message for %s: %w", b.subject, err)
	}
	b.logger.Debug("Published invalidation", zap.String("subject", b.subject), zap.Int("keys", len(keys)))
	return nil
}

// Subscribe applies invalidations from peers; this instance's own events are
// skipped since they were applied before publishing.
func (b *InvalidationBus) Subscribe(applier Applier) error {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		handleEvent(b.origin, msg.Data, applier, b.logger)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.subject, err)
	}
	b.sub = sub
	b.logger.Info("Subscribed to cache invalidations", zap.String("subject", b.subject))
	return nil
}

func handleEvent(self string, data []byte, applier Applier, logger *zap.Logger) {
	var ev InvalidationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn("Discarding malformed invalidation event", zap.Error(err))
		return
	}
	if ev.Origin == self || len(ev.Keys) == 0 {
		return
	}
	keys := make([]query.Key, 0, len(ev.Keys))
	for _, k := range ev.Keys {
		keys = append(keys, query.Key(k))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := applier.ApplyRemote(ctx, keys); err != nil {
		logger.Error("Applying remote invalidation failed", zap.String("origin", ev.Origin), zap.Error(err))
	}
}

func (b *InvalidationBus) Close() {
	if b.nc != nil && !b.nc.IsClosed() {
		if err := b.nc.Drain(); err != nil {
			b.logger.Error("Error draining NATS connection", zap.Error(err))
		}
		b.nc.Close()
		b.logger.Info("NATS invalidation bus closed")
	}
}
