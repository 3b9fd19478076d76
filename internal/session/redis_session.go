package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis so they survive restarts and are
// shared across replicas. Expiry rides on the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr, password string, ttl time.Duration) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, ttl: ttl}
}

func sessionKey(token string) string { return "session:" + token }

func (s *RedisStore) Create(ctx context.Context, userID string) (string, error) {
	tok := newToken()
	if err := s.client.Set(ctx, sessionKey(tok), userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return tok, nil
}

func (s *RedisStore) UserID(ctx context.Context, token string) (string, bool, error) {
	v, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
