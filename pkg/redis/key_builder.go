package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging":
		prefix = "staging"
	case "test":
		prefix = "test"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyOneTimeToken is the key of a first-setup token issued for a poll
func (kb *KeyBuilder) KeyOneTimeToken(pollToken, ott string) string {
	return kb.BuildKey(fmt.Sprintf(KeyOneTimeToken, pollToken, ott))
}

// KeyOneTimeTokenPattern matches every one-time token in this environment
func (kb *KeyBuilder) KeyOneTimeTokenPattern() string {
	return kb.BuildKey(KeyOneTimeTokenPattern)
}
