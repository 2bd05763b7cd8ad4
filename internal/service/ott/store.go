// Package ott keeps the short-lived first-setup tokens handed to a poll's
// creator. A token is bound to one poll and can be consumed exactly once.
package ott

import (
	"context"
	"time"
)

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = time.Hour

// Generator produces a fresh token value for a poll
type Generator func(pollToken string, now time.Time) (string, error)

// Store registers, checks and consumes one-time tokens
type Store interface {
	// Issue creates a token for pollToken valid for the store's TTL
	Issue(ctx context.Context, pollToken string) (string, error)

	// Consume reports whether the token was live and removes it. At most one
	// concurrent caller observes true for a given token.
	Consume(ctx context.Context, pollToken, token string) (bool, error)

	// Take removes a live token and returns its expiry. At most one
	// concurrent caller observes ok for a given token.
	Take(ctx context.Context, pollToken, token string) (expiry time.Time, ok bool, err error)

	// Restore puts a taken token back until expiry. Tokens already past
	// their expiry are dropped.
	Restore(ctx context.Context, pollToken, token string, expiry time.Time) error

	// Peek reports whether the token is live without consuming it
	Peek(ctx context.Context, pollToken, token string) (bool, error)

	// Sweep deletes every expired token and returns how many were removed
	Sweep(ctx context.Context) (int, error)

	// Health checks the backing storage
	Health(ctx context.Context) error
}
