package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlocklist records revoked JWT IDs (JTIs) until their natural expiry.
// Logout writes here; the auth middleware checks it on every request.
type TokenBlocklist struct {
	client *redis.Client
}

func NewTokenBlocklist(client *redis.Client) *TokenBlocklist {
	return &TokenBlocklist{client: client}
}

func (b *TokenBlocklist) key(jti string) string {
	return fmt.Sprintf("jti:revoked:%s", jti)
}

// Revoke marks a JTI as revoked for ttl (the token's remaining lifetime).
func (b *TokenBlocklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // token already expired, nothing to revoke
	}
	if err := b.client.Set(ctx, b.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether the JTI has been revoked.
func (b *TokenBlocklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, b.key(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check jti: %w", err)
	}
	return true, nil
}
