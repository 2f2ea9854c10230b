// Package cache holds the short-lived key store behind token revocation.
// A Redis implementation is used when Redis answers at startup, otherwise
// an in-process map keeps the same contract for a single instance.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheClosed = errors.New("cache is closed")

type Cache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Stats() map[string]interface{}
	Health(ctx context.Context) error
	Close() error
}
