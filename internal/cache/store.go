package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tagSetTTL bounds how long a tag keeps track of its member keys.
const tagSetTTL = 24 * time.Hour

// Store keeps JSON entries in redis and groups their keys under tags so a
// whole region can be dropped at once.
type Store struct {
	client redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

// Set stores v under key and records key as a member of every tag.
func (s *Store) Set(ctx context.Context, key string, v any, ttl time.Duration, tags ...string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagKey(tag), key)
		pipe.Expire(ctx, tagKey(tag), tagSetTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops every entry recorded under the given tags. Readers racing
// the invalidation may still observe the old entries briefly.
func (s *Store) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		members, err := s.client.SMembers(ctx, tagKey(tag)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis smembers %s failed: %w", tag, err)
		}
		keys := append(members, tagKey(tag))
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis invalidate %s failed: %w", tag, err)
		}
	}
	return nil
}
