package ott

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps tokens in a process-local map
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	gen    Generator
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore(gen Generator, ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		gen:    gen,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the store's time source
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func memoryKey(pollToken, token string) string {
	return pollToken + ":" + token
}

func (s *MemoryStore) Issue(ctx context.Context, pollToken string) (string, error) {
	now := s.now()
	token, err := s.gen(pollToken, now)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.tokens[memoryKey(pollToken, token)] = now.Add(s.ttl)
	s.mu.Unlock()

	return token, nil
}

func (s *MemoryStore) Consume(ctx context.Context, pollToken, token string) (bool, error) {
	_, ok, err := s.Take(ctx, pollToken, token)
	return ok, err
}

func (s *MemoryStore) Take(ctx context.Context, pollToken, token string) (time.Time, bool, error) {
	if token == "" {
		return time.Time{}, false, nil
	}
	key := memoryKey(pollToken, token)

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[key]
	if !ok {
		return time.Time{}, false, nil
	}
	delete(s.tokens, key)
	if !s.now().Before(expiry) {
		return time.Time{}, false, nil
	}
	return expiry, true, nil
}

func (s *MemoryStore) Restore(ctx context.Context, pollToken, token string, expiry time.Time) error {
	if token == "" || !s.now().Before(expiry) {
		return nil
	}

	s.mu.Lock()
	s.tokens[memoryKey(pollToken, token)] = expiry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Peek(ctx context.Context, pollToken, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[memoryKey(pollToken, token)]
	return ok && s.now().Before(expiry), nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.tokens {
		if !now.Before(expiry) {
			delete(s.tokens, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Len returns the number of stored tokens, expired or not
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
