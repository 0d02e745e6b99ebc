// Package registry tracks which chunkservers have registered with the
// metaserver, backed by a Redis set, and blocks startup until a minimum
// count has checked in.
package registry

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	chunkserversKey = "kfs:chunkservers"
	lockKeyPrefix   = "kfs:lock:"
)

// Registry tracks which chunkservers have announced themselves, backed by
// a Redis set.
type Registry struct {
	rdb *redis.Client
}

// New returns a Registry against the given Redis client.
func New(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Register adds id to the set of known chunkservers. Re-registering an
// already-known id is a no-op (SAdd is idempotent).
func (r *Registry) Register(ctx context.Context, id string) error {
	return r.rdb.SAdd(ctx, chunkserversKey, id).Err()
}

// Unregister removes id, e.g. on a clean chunkserver shutdown.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	return r.rdb.SRem(ctx, chunkserversKey, id).Err()
}

// Count returns the number of currently registered chunkservers.
func (r *Registry) Count(ctx context.Context) (int64, error) {
	return r.rdb.SCard(ctx, chunkserversKey).Result()
}

// WaitForMinimum blocks, polling at the given interval, until at least n
// chunkservers are registered or ctx is done. This is the gate the startup
// orchestrator holds before releasing the event loop to client traffic.
func (r *Registry) WaitForMinimum(ctx context.Context, n int64, interval time.Duration) error {
	if n <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		count, err := r.Count(ctx)
		if err != nil {
			return err
		}
		if count >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WithLock runs fn while holding a SET-NX lock named by key, used to
// serialize a racing pair of Register calls for the same id across
// multiple metaserver processes. The lock is best-effort with a TTL
// rather than a fencing token, since the only contended operation here
// is an idempotent set add.
func (r *Registry) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	lockKey := lockKeyPrefix + key
	token := time.Now().UnixNano()
	ok, err := r.rdb.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		// Another process holds the lock; the caller's operation is
		// idempotent (registration), so there is nothing useful to retry
		// here beyond letting the holder finish.
		return nil
	}
	defer r.rdb.Del(ctx, lockKey)
	return fn()
}
