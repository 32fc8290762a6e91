package authgw

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Invalidation fans cache evictions out to every gateway instance
// through a Redis stream. Logout on one instance must not leave a
// live identity cached on its peers.
type Invalidation struct {
	Cache *Cache
	Redis *redis.Client
	Log   *zap.Logger

	StreamKey string // Redis key
	Backlog   int64  // Number of invalidations to keep

	streamID string // ID of last message
}

// newRetryPolicy builds the backoff for the consumer loop.
// The consumer runs for the process lifetime, so the policy must never
// give up on its own: MaxElapsedTime would stop retrying 15 minutes
// after the first read, not 15 minutes into an outage.
func newRetryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	return policy
}

// Run consumes invalidations until the context is canceled.
// Transient Redis failures are retried with exponential backoff.
func (i *Invalidation) Run(ctx context.Context) error {
	policy := backoff.WithContext(newRetryPolicy(), ctx)
	return backoff.Retry(func() error {
		for {
			if err := i.read(ctx); err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				i.Log.Warn("Invalidation read failed", zap.Error(err))
				return err
			}
		}
	}, policy)
}

func (i *Invalidation) read(ctx context.Context) error {
	if i.streamID == "" {
		i.streamID = "$"
	}
	streams, err := i.Redis.XRead(ctx, &redis.XReadArgs{
		Streams: []string{i.StreamKey, i.streamID},
		Count:   128,
		Block:   time.Second,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	} else if err != nil {
		return err
	}
	if len(streams) < 1 {
		return nil
	}
	for _, msg := range streams[0].Messages {
		i.streamID = msg.ID
		i.apply(msg)
	}
	return nil
}

func (i *Invalidation) apply(msg redis.XMessage) {
	if op, _ := msg.Values["op"].(string); op == "purge" {
		i.Cache.Purge()
		return
	}
	keyStr, ok := msg.Values["key"].(string)
	if !ok || len(keyStr) != hex.EncodedLen(len(Key{})) {
		return
	}
	var key Key
	if _, err := hex.Decode(key[:], []byte(keyStr)); err != nil {
		return
	}
	i.Cache.Remove(key)
}

// Add publishes the eviction of a single cache key.
func (i *Invalidation) Add(ctx context.Context, key Key) error {
	return i.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream:       i.StreamKey,
		MaxLenApprox: i.Backlog,
		ID:           "*",
		Values:       []string{"key", hex.EncodeToString(key[:])},
	}).Err()
}

// Flush publishes a purge of every cached identity.
func (i *Invalidation) Flush(ctx context.Context) error {
	return i.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream:       i.StreamKey,
		MaxLenApprox: i.Backlog,
		ID:           "*",
		Values:       []string{"op", "purge"},
	}).Err()
}
