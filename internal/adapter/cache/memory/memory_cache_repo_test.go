package memory

import (
	"context"
	"testing"
	"time"

	"github.com/pashumandi/mandi-gateway/internal/port/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRepository_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewCacheRepository()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "q:listings", []byte(`[]`), 0))
	got, err := c.Get(ctx, "q:listings")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)

	require.NoError(t, c.Delete(ctx, "q:listings"))
	_, err = c.Get(ctx, "q:listings")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestCacheRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewCacheRepository()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "q:conversation:a:b", []byte(`[1]`), 5*time.Second))

	now = now.Add(4 * time.Second)
	_, err := c.Get(ctx, "q:conversation:a:b")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "q:conversation:a:b")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, 0, c.Len())
}

func TestCacheRepository_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewCacheRepository()
	for _, k := range []string{"q:myListings:alice", "q:myListings:bob", "q:listings", "q:listing:7"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	require.NoError(t, c.DeletePrefix(ctx, "q:myListings:"))

	_, err := c.Get(ctx, "q:myListings:alice")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get(ctx, "q:myListings:bob")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = c.Get(ctx, "q:listings")
	assert.NoError(t, err)
	_, err = c.Get(ctx, "q:listing:7")
	assert.NoError(t, err)
}

func TestCacheRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewCacheRepository()
	v := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", v, 0))
	v[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
