package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters for member passwords
const (
	passwordTime    = 1
	passwordMemory  = 32 * 1024
	passwordThreads = 2
	passwordKeyLen  = 32
)

// pollTokenLen is the length of the public poll token in hex characters
const pollTokenLen = 32

// CredentialService derives digests, password hashes and random tokens from
// the application secret.
type CredentialService struct {
	secret []byte
	salt   []byte
}

// NewCredentialService creates a credential service keyed by secret
func NewCredentialService(secret string) *CredentialService {
	s := &CredentialService{secret: []byte(secret)}
	salt, _ := hex.DecodeString(s.Digest("password-salt"))
	s.salt = salt
	return s
}

// Digest returns the hex HMAC-SHA256 of value under the application secret
func (s *CredentialService) Digest(value string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPassword returns the stored form of a member password
func (s *CredentialService) HashPassword(pass string) string {
	key := argon2.IDKey([]byte(pass), s.salt, passwordTime, passwordMemory, passwordThreads, passwordKeyLen)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether pass matches digest
func (s *CredentialService) VerifyPassword(pass, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(s.HashPassword(pass)), []byte(digest)) == 1
}

// NewPollToken generates the public capability token of a new poll
func (s *CredentialService) NewPollToken(title string, now time.Time) (string, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return "", err
	}
	return s.Digest(fmt.Sprintf("%d:%s:%s", now.UnixNano(), title, nonce))[:pollTokenLen], nil
}

// NewOneTimeToken generates a first-setup token for a poll
func (s *CredentialService) NewOneTimeToken(pollToken string, now time.Time) (string, error) {
	nonce, err := randomHex(16)
	if err != nil {
		return "", err
	}
	return s.Digest(fmt.Sprintf("%d:%s:%s", now.UnixNano(), pollToken, nonce)), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
