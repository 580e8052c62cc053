package redis

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key or hash does not exist
var ErrNotFound = errors.New("redis: key not found")

// Client represents a Redis client interface for testing and abstraction
type Client interface {
	// Set sets a key to a value with an optional TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get gets the value of a key; missing keys yield ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Del removes keys
	Del(ctx context.Context, keys ...string) error

	// HSet sets several fields of a hash at once
	HSet(ctx context.Context, key string, fields map[string]interface{}) error

	// HGetAll gets all fields from a hash; missing hashes yield ErrNotFound
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Ping checks the connection to Redis
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}
