package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialService_Digest(t *testing.T) {
	a := NewCredentialService("secret-a")
	b := NewCredentialService("secret-b")

	assert.Len(t, a.Digest("x"), 64)
	assert.Equal(t, a.Digest("x"), a.Digest("x"))
	assert.NotEqual(t, a.Digest("x"), a.Digest("y"))
	assert.NotEqual(t, a.Digest("x"), b.Digest("x"))
}

func TestCredentialService_Passwords(t *testing.T) {
	s := NewCredentialService("secret")

	digest := s.HashPassword("hunter2")
	assert.Equal(t, digest, s.HashPassword("hunter2"))
	assert.NotEqual(t, "hunter2", digest)

	assert.True(t, s.VerifyPassword("hunter2", digest))
	assert.False(t, s.VerifyPassword("hunter3", digest))
	assert.False(t, s.VerifyPassword("", digest))
	assert.False(t, NewCredentialService("other").VerifyPassword("hunter2", digest))
}

func TestCredentialService_Tokens(t *testing.T) {
	s := NewCredentialService("secret")
	now := time.Now()

	t1, err := s.NewPollToken("Session zero", now)
	require.NoError(t, err)
	t2, err := s.NewPollToken("Session zero", now)
	require.NoError(t, err)

	assert.Len(t, t1, 32)
	assert.NotEqual(t, t1, t2)

	o1, err := s.NewOneTimeToken(t1, now)
	require.NoError(t, err)
	o2, err := s.NewOneTimeToken(t1, now)
	require.NoError(t, err)
	assert.Len(t, o1, 64)
	assert.NotEqual(t, o1, o2)
}
