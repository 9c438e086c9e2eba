// Package cache contains the object cache interface and its key namespace.
//
// Values are stored without an expiry; staleness is prevented solely by the
// write pipeline deleting keys on every mutation.
package cache

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=./mock/cache.go -package=mock -source=cache.go

// ErrCacheMiss returned by Get when the key is not cached.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a key-value store used to shortcut read-heavy views.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}
