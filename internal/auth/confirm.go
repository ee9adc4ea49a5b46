package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ConfirmationCache remembers confirmed tokens for ttl so the gated routes do
// not hit the auth service on every request. Negative answers and errors are
// not cached, so a user who just confirmed gets through on the next call.
type ConfirmationCache struct {
	next  Confirmer
	cache *expirable.LRU[string, struct{}]
}

func NewConfirmationCache(next Confirmer, size int, ttl time.Duration) *ConfirmationCache {
	return &ConfirmationCache{
		next:  next,
		cache: expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (c *ConfirmationCache) EmailConfirmed(ctx context.Context, accessToken string) (bool, error) {
	if _, ok := c.cache.Get(accessToken); ok {
		return true, nil
	}
	confirmed, err := c.next.EmailConfirmed(ctx, accessToken)
	if err != nil || !confirmed {
		return false, err
	}
	c.cache.Add(accessToken, struct{}{})
	return true, nil
}
