package repository

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("storage key not found")

// KeyValueRepository is the durable client-side storage. Writes are
// synchronous: a successful Set is visible to the next Get.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
