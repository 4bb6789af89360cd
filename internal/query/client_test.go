package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/adapter/cache/memory"
	"github.com/pashumandi/mandi-gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type readySignal chan struct{}

func (r readySignal) Ready() <-chan struct{} { return r }

func ready() readySignal {
	ch := make(readySignal)
	close(ch)
	return ch
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, keys []Key) error {
	return m.Called(ctx, keys).Error(0)
}

func newTestClient(r readySignal, opts ...Option) *Client {
	return NewClient(memory.NewCacheRepository(), r, 20*time.Millisecond, time.Hour, zap.NewNop(), opts...)
}

func countingRead(calls *int32, data []string) Read[[]string] {
	return Read[[]string]{
		Key:     NewKey("listings"),
		Enabled: true,
		Default: []string{},
		Call: func(context.Context) ([]string, error) {
			atomic.AddInt32(calls, 1)
			return data, nil
		},
	}
}

func TestFetch_DisabledSkipsCall(t *testing.T) {
	c := newTestClient(ready())
	var calls int32
	r := countingRead(&calls, []string{"a"})
	r.Enabled = false

	res, err := Fetch(context.Background(), c, r)
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Data)
	assert.False(t, res.IsLoading)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetch_NotReadyIsLoading(t *testing.T) {
	c := newTestClient(make(readySignal))
	var calls int32

	res, err := Fetch(context.Background(), c, countingRead(&calls, []string{"a"}))
	require.NoError(t, err)
	assert.True(t, res.IsLoading)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetch_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(ready())
	var calls int32
	r := countingRead(&calls, []string{"goat"})

	for i := 0; i < 3; i++ {
		res, err := Fetch(ctx, c, r)
		require.NoError(t, err)
		assert.Equal(t, []string{"goat"}, res.Data)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, c.Invalidate(ctx, NewKey("listings")))
	_, err := Fetch(ctx, c, r)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_ErrorsFoldIntoDefault(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(ready())
	boom := errors.New("boom")
	r := Read[*string]{
		Key:     NewKey("currentUserProfile", "alice"),
		Enabled: true,
		Call:    func(context.Context) (*string, error) { return nil, boom },
	}

	res, err := Fetch(ctx, c, r)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Nil(t, res.Data)

	r.Propagate = true
	res, err = Fetch(ctx, c, r)
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.IsError)
}

func TestFetch_ConcurrentReadsShareOneCall(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(ready())
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	r := Read[[]string]{
		Key:     NewKey("listings"),
		Enabled: true,
		Default: []string{},
		Call: func(context.Context) ([]string, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				close(entered)
			}
			<-release
			return []string{"cow"}, nil
		},
	}

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Fetch(ctx, c, r)
			assert.NoError(t, err)
			results[i] = res.Data
		}(i)
	}
	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, got := range results {
		assert.Equal(t, []string{"cow"}, got)
	}
}

func TestFetch_InvalidationDuringReadIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(ready())
	var calls int32
	entered := make(chan struct{})
	release := make(chan struct{})
	r := Read[[]string]{
		Key:     NewKey("pendingListings"),
		Enabled: true,
		Default: []string{},
		Call: func(context.Context) ([]string, error) {
			n := atomic.AddInt32(&calls, 1)
			if n == 1 {
				close(entered)
				<-release
				return []string{"stale"}, nil
			}
			return []string{"fresh"}, nil
		},
	}

	done := make(chan []string)
	go func() {
		res, _ := Fetch(ctx, c, r)
		done <- res.Data
	}()
	<-entered
	require.NoError(t, c.Invalidate(ctx, NewKey("pendingListings")))

	// a read started after the invalidation does not join the old call
	res, err := Fetch(ctx, c, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, res.Data)

	close(release)
	assert.Equal(t, []string{"stale"}, <-done)

	res, err = Fetch(ctx, c, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, res.Data)
}

// blockingSetStore holds every Set until release is closed.
type blockingSetStore struct {
	*memory.CacheRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSetStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.CacheRepository.Set(ctx, key, value, ttl)
}

func TestFetch_SlowWriteBackDoesNotStallInvalidation(t *testing.T) {
	ctx := context.Background()
	store := &blockingSetStore{
		CacheRepository: memory.NewCacheRepository(),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	c := NewClient(store, ready(), 20*time.Millisecond, time.Hour, zap.NewNop())
	var calls int32
	r := countingRead(&calls, []string{"goat"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = Fetch(ctx, c, r)
	}()
	<-store.entered

	invalidated := make(chan error, 1)
	go func() { invalidated <- c.Invalidate(ctx, NewKey("listings")) }()
	select {
	case err := <-invalidated:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("invalidation blocked behind a cache write")
	}

	close(store.release)
	<-done

	// The entry written across the invalidation was dropped.
	_, err := store.Get(ctx, NewKey("listings").Prefix())
	assert.Error(t, err)
	_, err = Fetch(ctx, c, r)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidate_PrefixMatchesCallerScopedKeys(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(ready())
	var calls int32
	read := func(parts ...string) Read[int] {
		return Read[int]{
			Key:     NewKey(parts...),
			Enabled: true,
			Call: func(context.Context) (int, error) {
				return int(atomic.AddInt32(&calls, 1)), nil
			},
		}
	}

	for _, k := range [][]string{{"myListings", "alice"}, {"myListings", "bob"}, {"listing", "1"}, {"listings"}} {
		_, err := Fetch(ctx, c, read(k...))
		require.NoError(t, err)
	}
	require.Equal(t, int32(4), atomic.LoadInt32(&calls))

	require.NoError(t, c.Invalidate(ctx, NewKey("myListings"), NewKey("listing", "1")))

	for _, k := range [][]string{{"myListings", "alice"}, {"myListings", "bob"}, {"listing", "1"}, {"listings"}} {
		_, err := Fetch(ctx, c, read(k...))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&calls))
}

func TestMutate_WaitsForReadiness(t *testing.T) {
	c := newTestClient(make(readySignal))
	called := false

	err := Exec(context.Background(), c, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrNotReady)
	assert.False(t, called)
}

func TestMutate_ProceedsWhenReadyArrives(t *testing.T) {
	sig := make(readySignal)
	c := NewClient(memory.NewCacheRepository(), sig, time.Second, time.Hour, zap.NewNop())
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(sig)
	}()

	id, err := Mutate(context.Background(), c, func(context.Context) (uint64, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestMutate_InvalidatesAndBroadcastsOnSuccessOnly(t *testing.T) {
	ctx := context.Background()
	bus := new(MockBroadcaster)
	c := newTestClient(ready(), WithBroadcaster(bus))
	var calls int32
	r := countingRead(&calls, []string{"x"})

	_, err := Fetch(ctx, c, r)
	require.NoError(t, err)

	failed := errors.New("write rejected")
	err = Exec(ctx, c, func(context.Context) error { return failed }, NewKey("listings"))
	assert.ErrorIs(t, err, failed)
	_, _ = Fetch(ctx, c, r)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	keys := []Key{NewKey("listings"), NewKey("allListingsAdmin")}
	bus.On("Broadcast", mock.Anything, keys).Return(nil).Once()
	require.NoError(t, Exec(ctx, c, func(context.Context) error { return nil }, keys...))
	_, _ = Fetch(ctx, c, r)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	bus.AssertExpectations(t)
}

func TestApplyRemote_DoesNotRebroadcast(t *testing.T) {
	ctx := context.Background()
	bus := new(MockBroadcaster)
	c := newTestClient(ready(), WithBroadcaster(bus))
	var calls int32
	r := countingRead(&calls, []string{"x"})

	_, _ = Fetch(ctx, c, r)
	require.NoError(t, c.ApplyRemote(ctx, []Key{NewKey("listings")}))
	_, _ = Fetch(ctx, c, r)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	bus.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything)
}
