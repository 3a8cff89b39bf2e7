package app

import (
	"context"

	"storyreel/internal/media"
)

type Cache interface {
	EnsureSchema(ctx context.Context) error
	Stats(ctx context.Context) (media.CacheStats, error)
	Prune(ctx context.Context, maxBytes int64) (int, error)
	Close() error
}

var _ Cache = (*media.SQLiteCache)(nil)
