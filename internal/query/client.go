// Package query is the gateway's read cache: keyed, de-duplicated reads with
// explicit prefix invalidation after writes.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/pashumandi/mandi-gateway/internal/platform/metrics"
	"github.com/pashumandi/mandi-gateway/internal/port/backend"
	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Result mirrors what a page needs to render a read: data that is always
// usable, plus whether it is still loading or failed.
type Result[T any] struct {
	Data      T    `json:"data"`
	IsLoading bool `json:"is_loading"`
	IsError   bool `json:"is_error"`
}

// Read describes one cached read.
type Read[T any] struct {
	Key Key
	// Enabled false skips the call and yields Default, e.g. for an empty id.
	Enabled bool
	Default T
	// Propagate returns call errors instead of folding them into IsError.
	Propagate bool
	// TTL overrides the client's default freshness.
	TTL  time.Duration
	Call func(ctx context.Context) (T, error)
}

// Broadcaster tells peer gateways which keys were invalidated here.
type Broadcaster interface {
	Broadcast(ctx context.Context, keys []Key) error
}

type Client struct {
	store      cache.CacheRepository
	ready      backend.Readiness
	readyWait  time.Duration
	defaultTTL time.Duration
	bus        Broadcaster
	metrics    *metrics.MetricsManager
	logger     *zap.Logger

	group singleflight.Group

	// epoch advances on every invalidation; a read only writes back if no
	// invalidation happened since it started.
	epochMu sync.RWMutex
	epoch   uint64

	inflightMu sync.Mutex
	inflight   map[string]int
}

type Option func(*Client)

func WithBroadcaster(b Broadcaster) Option { return func(c *Client) { c.bus = b } }

func WithMetrics(m *metrics.MetricsManager) Option { return func(c *Client) { c.metrics = m } }

func NewClient(store cache.CacheRepository, ready backend.Readiness, readyWait, defaultTTL time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		store:      store,
		ready:      ready,
		readyWait:  readyWait,
		defaultTTL: defaultTTL,
		logger:     logger.Named("QueryClient"),
		inflight:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready reports without blocking whether the backend connection is usable.
func (c *Client) Ready() bool {
	select {
	case <-c.ready.Ready():
		return true
	default:
		return false
	}
}

func (c *Client) currentEpoch() uint64 {
	c.epochMu.RLock()
	defer c.epochMu.RUnlock()
	return c.epoch
}

func (c *Client) trackInflight(k string, on bool) {
	c.inflightMu.Lock()
	if on {
		c.inflight[k]++
	} else if c.inflight[k] <= 1 {
		delete(c.inflight, k)
	} else {
		c.inflight[k]--
	}
	c.inflightMu.Unlock()
}

// Fetch serves r from the cache or performs the call once for all concurrent
// identical reads.
func Fetch[T any](ctx context.Context, c *Client, r Read[T]) (Result[T], error) {
	op := r.Key.Operation()
	if !r.Enabled {
		c.metrics.CacheLookup(op, "disabled")
		return Result[T]{Data: r.Default}, nil
	}
	if !c.Ready() {
		c.metrics.CacheLookup(op, "not_ready")
		return Result[T]{Data: r.Default, IsLoading: true}, nil
	}

	storeKey := r.Key.Prefix()
	if raw, err := c.store.Get(ctx, storeKey); err == nil {
		var data T
		if err := json.Unmarshal(raw, &data); err == nil {
			c.metrics.CacheLookup(op, "hit")
			return Result[T]{Data: data}, nil
		}
		c.logger.Warn("Dropping undecodable cache entry", zap.String("key", r.Key.String()))
		_ = c.store.Delete(ctx, storeKey)
	} else if !errors.Is(err, cache.ErrNotFound) {
		c.logger.Warn("Cache lookup failed, reading through", zap.String("key", r.Key.String()), zap.Error(err))
	}

	ttl := r.TTL
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	v, err, shared := c.group.Do(storeKey, func() (interface{}, error) {
		c.trackInflight(storeKey, true)
		defer c.trackInflight(storeKey, false)

		started := c.currentEpoch()
		// The shared call must not be cancelled by whichever caller started it.
		data, err := r.Call(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.writeBack(storeKey, r.Key, data, ttl, started)
		return data, nil
	})
	if shared {
		c.metrics.CacheLookup(op, "shared")
	} else {
		c.metrics.CacheLookup(op, "miss")
	}

	if err != nil {
		if r.Propagate {
			return Result[T]{Data: r.Default, IsError: true}, err
		}
		c.logger.Warn("Read failed, serving default", zap.String("key", r.Key.String()), zap.Error(err))
		return Result[T]{Data: r.Default, IsError: true}, nil
	}
	return Result[T]{Data: v.(T)}, nil
}

func (c *Client) writeBack(storeKey string, key Key, data any, ttl time.Duration, started uint64) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("Cannot encode read result", zap.String("key", key.String()), zap.Error(err))
		return
	}

	if c.currentEpoch() != started {
		c.logger.Debug("Skipping write-back of read that raced an invalidation", zap.String("key", key.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Set(ctx, storeKey, raw, ttl); err != nil {
		c.logger.Warn("Cache write-back failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	// An invalidation that ran while Set was in flight may have missed the
	// entry; drop it so the next read goes to the backend.
	if c.currentEpoch() != started {
		if err := c.store.Delete(ctx, storeKey); err != nil {
			c.logger.Warn("Dropping raced write-back failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
}

// Invalidate drops every cached entry under each key, in order, and forgets
// matching in-flight reads so later reads start fresh calls.
func (c *Client) Invalidate(ctx context.Context, keys ...Key) error {
	if err := c.invalidate(ctx, keys); err != nil {
		return err
	}
	c.metrics.Invalidated("local", len(keys))
	if c.bus != nil && len(keys) > 0 {
		if err := c.bus.Broadcast(ctx, keys); err != nil {
			c.logger.Warn("Broadcasting invalidation failed", zap.Error(err))
		}
	}
	return nil
}

// ApplyRemote invalidates keys received from a peer without re-broadcasting.
func (c *Client) ApplyRemote(ctx context.Context, keys []Key) error {
	if err := c.invalidate(ctx, keys); err != nil {
		return err
	}
	c.metrics.Invalidated("remote", len(keys))
	return nil
}

func (c *Client) invalidate(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}
	c.epochMu.Lock()
	c.epoch++
	c.epochMu.Unlock()

	var errs []error
	for _, k := range keys {
		prefix := k.Prefix()
		c.forgetInflight(prefix)
		if err := c.store.DeletePrefix(ctx, prefix); err != nil {
			errs = append(errs, fmt.Errorf("invalidate %s: %w", k.String(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("QueryClient.Invalidate: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Client) forgetInflight(prefix string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	for k := range c.inflight {
		if strings.HasPrefix(k, prefix) {
			c.group.Forget(k)
		}
	}
}

// WaitReady blocks until the backend is usable, readyWait elapses, or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	if c.Ready() {
		return nil
	}
	t := time.NewTimer(c.readyWait)
	defer t.Stop()
	select {
	case <-c.ready.Ready():
		return nil
	case <-t.C:
		return domain.ErrNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mutate performs a write once the backend is ready and, on success,
// invalidates the given keys in order. Write errors are returned unchanged.
func Mutate[T any](ctx context.Context, c *Client, call func(ctx context.Context) (T, error), invalidate ...Key) (T, error) {
	var zero T
	if err := c.WaitReady(ctx); err != nil {
		return zero, err
	}
	out, err := call(ctx)
	if err != nil {
		return zero, err
	}
	if ierr := c.Invalidate(ctx, invalidate...); ierr != nil {
		c.logger.Error("Invalidation after write failed", zap.Error(ierr))
	}
	return out, nil
}

// Exec is Mutate for writes that return nothing.
func Exec(ctx context.Context, c *Client, call func(ctx context.Context) error, invalidate ...Key) error {
	_, err := Mutate(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, invalidate...)
	return err
}
