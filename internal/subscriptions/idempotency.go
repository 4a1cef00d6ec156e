package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mvillanueva/gymflow-backend/pkg/redis"
)

const verifyGuardScope = "subscription-verify"

// VerifyGuard dampens repeated confirm calls for the same subscription inside
// a short window. It is best-effort: verification itself is idempotent, so a
// missing or unreachable Redis only costs duplicate gateway reads.
type VerifyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewVerifyGuard builds a guard over the provided store.
func NewVerifyGuard(store redis.IdempotencyStore, ttl time.Duration) (*VerifyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &VerifyGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether an equivalent verification ran recently. The
// first caller within the TTL gets false and owns the window.
func (g *VerifyGuard) CheckAndMark(ctx context.Context, subscriptionID, artifact string) (bool, error) {
	if g == nil || g.store == nil {
		return false, nil
	}
	key := g.store.IdempotencyKey(verifyGuardScope, fmt.Sprintf("%s:%s", subscriptionID, artifact))
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set verify guard key: %w", err)
	}
	return !set, nil
}
