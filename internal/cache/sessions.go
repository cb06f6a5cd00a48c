package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sessions maps a storefront session id to the cart it is building.
type Sessions struct {
	client redis.UniversalClient
}

func NewSessions(client redis.UniversalClient) *Sessions {
	return &Sessions{client: client}
}

func (s *Sessions) CartID(ctx context.Context, sessionID string) (string, error) {
	id, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return id, nil
}

func (s *Sessions) SetCartID(ctx context.Context, sessionID, cartID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(sessionID), cartID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Sessions) ClearCartID(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:cart", sessionID)
}
