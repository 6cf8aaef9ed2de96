package upload

import (
	"context"
	"time"
)

// Cache is the ephemeral session store port: sessions live here, not
// in the durable knowledge/library stores, since an abandoned upload
// should vanish on its own once expires_at passes.
type Cache interface {
	Put(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, bool, error)
	Delete(ctx context.Context, id string) error
}
