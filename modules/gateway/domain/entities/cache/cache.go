package cache

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Cache stores recent replies keyed by a hash of profile config + message.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
