package redis

import "context"

// IdempotencyStoreInterface defines the interface for idempotent response storage.
type IdempotencyStoreInterface interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, response *CachedResponse) error
}

// Ensure concrete types implement interfaces.
var (
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
