package ott

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"schedpoll/pkg/redis"
)

// RedisStore keeps tokens in Redis. The value of each key is the token's
// expiry in epoch milliseconds; the key also carries a matching TTL so Redis
// evicts it on its own.
type RedisStore struct {
	client *redis.Client
	gen    Generator
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a store on top of an environment-prefixed client
func NewRedisStore(client *redis.Client, gen Generator, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, gen: gen, ttl: ttl, now: time.Now}
}

// WithClock replaces the store's time source
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Issue(ctx context.Context, pollToken string) (string, error) {
	now := s.now()
	token, err := s.gen(pollToken, now)
	if err != nil {
		return "", err
	}

	expiry := now.Add(s.ttl).UnixMilli()
	key := s.client.KeyBuilder.KeyOneTimeToken(pollToken, token)
	if err := s.client.Set(ctx, key, expiry, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store one-time token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Consume(ctx context.Context, pollToken, token string) (bool, error) {
	_, ok, err := s.Take(ctx, pollToken, token)
	return ok, err
}

func (s *RedisStore) Take(ctx context.Context, pollToken, token string) (time.Time, bool, error) {
	if token == "" {
		return time.Time{}, false, nil
	}

	val, err := s.client.GetDel(ctx, s.client.KeyBuilder.KeyOneTimeToken(pollToken, token))
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to consume one-time token: %w", err)
	}

	expiry, ok := s.expiry(val)
	if !ok {
		return time.Time{}, false, nil
	}
	return expiry, true, nil
}

func (s *RedisStore) Restore(ctx context.Context, pollToken, token string, expiry time.Time) error {
	remaining := expiry.Sub(s.now())
	if token == "" || remaining <= 0 {
		return nil
	}

	key := s.client.KeyBuilder.KeyOneTimeToken(pollToken, token)
	if err := s.client.Set(ctx, key, expiry.UnixMilli(), remaining); err != nil {
		return fmt.Errorf("failed to restore one-time token: %w", err)
	}
	return nil
}

func (s *RedisStore) Peek(ctx context.Context, pollToken, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	val, err := s.client.Get(ctx, s.client.KeyBuilder.KeyOneTimeToken(pollToken, token))
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read one-time token: %w", err)
	}
	_, ok := s.expiry(val)
	return ok, nil
}

func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	var expired []string

	err := s.client.ScanKeys(ctx, s.client.KeyBuilder.KeyOneTimeTokenPattern(), func(key string) error {
		val, err := s.client.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, ok := s.expiry(val); !ok {
			expired = append(expired, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan one-time tokens: %w", err)
	}

	if len(expired) == 0 {
		return 0, nil
	}
	if err := s.client.Delete(ctx, expired...); err != nil {
		return 0, fmt.Errorf("failed to delete expired one-time tokens: %w", err)
	}
	return len(expired), nil
}

func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// expiry parses a stored expiry and reports whether it lies in the future.
// Unparseable values count as expired.
func (s *RedisStore) expiry(val string) (time.Time, bool) {
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	expiry := time.UnixMilli(millis)
	return expiry, s.now().Before(expiry)
}
