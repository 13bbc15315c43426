package cart

import (
	"context"
	"errors"
)

// Cache holds rendered cart views keyed by user. A miss or a cache outage is
// never fatal; the service falls back to the database.
type Cache interface {
	Get(ctx context.Context, userID int64) (*View, error)
	Set(ctx context.Context, userID int64, view *View) error
	Delete(ctx context.Context, userID int64) error
}

var ErrCacheMiss = errors.New("cache miss")
