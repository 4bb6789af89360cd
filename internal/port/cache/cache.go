package cache

import (
	"context"
	"time"
)

type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value; a zero ttl keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

type CacheError string

func (e CacheError) Error() string {
	return string(e)
}

const ErrNotFound = CacheError("key not found in cache")
