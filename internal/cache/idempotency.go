package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const idempotencyTTL = 24 * time.Hour

// IdempotencyKeys remembers which job a client supplied key created.
type IdempotencyKeys struct {
	cache *Cache
	ttl   time.Duration
}

func NewIdempotencyKeys(c *Cache) *IdempotencyKeys {
	return &IdempotencyKeys{cache: c, ttl: idempotencyTTL}
}

// reserveAttempts bounds retries when the key expires between SETNX and GET.
const reserveAttempts = 3

// Reserve claims key for jobID. If the key is already taken, the job it
// points to is returned with reserved set to false.
func (k *IdempotencyKeys) Reserve(ctx context.Context, key string, jobID uuid.UUID) (uuid.UUID, bool, error) {
	for range reserveAttempts {
		ok, err := k.cache.SetNX(ctx, "idem:"+key, jobID.String(), k.ttl)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("reserve key: %w", err)
		}
		if ok {
			return jobID, true, nil
		}

		var existing string
		err = k.cache.Get(ctx, "idem:"+key, &existing)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return uuid.Nil, false, err
		}

		id, err := uuid.Parse(existing)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("parse stored job ID: %w", err)
		}
		return id, false, nil
	}
	return uuid.Nil, false, fmt.Errorf("reserve key %q: value kept expiring", key)
}

func (k *IdempotencyKeys) Release(ctx context.Context, key string) error {
	return k.cache.Delete(ctx, "idem:"+key)
}
