package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/chronicle/pkg/redis"
)

// Guard remembers which outbox events a publisher already delivered so a row
// that survives a crash between publish and mark is not sent twice.
// Keys follow the `chronicle:idempotency:published:<publisher>:<event_id>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a guard whose records expire after ttl (zero keeps them).
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl}, nil
}

// Delivered reports whether publisher recorded a delivery of eventID.
func (g *Guard) Delivered(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(publisher, eventID)
	if err != nil {
		return false, err
	}
	if _, err := g.store.Get(ctx, key); err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remember records that publisher delivered eventID. An existing record is
// left untouched.
func (g *Guard) Remember(ctx context.Context, publisher string, eventID uuid.UUID) error {
	key, err := g.key(publisher, eventID)
	if err != nil {
		return err
	}
	_, err = g.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl)
	return err
}

func (g *Guard) key(publisher string, eventID uuid.UUID) (string, error) {
	if publisher == "" {
		return "", errors.New("publisher name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(fmt.Sprintf("published:%s", publisher), eventID.String()), nil
}
