package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"schedpoll/internal/repository"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/database"
	"schedpoll/pkg/logger"
)

type testEnv struct {
	repo        repository.PollRepository
	tokens      *ott.MemoryStore
	credentials *CredentialService
	aggregator  *Aggregator
	auth        Authorizer
	polls       PollService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.OpenSQLite(ctx, database.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := repository.NewSQLitePollRepository(ctx, db)
	require.NoError(t, err)

	log := logger.NewNop()
	credentials := NewCredentialService("test-secret")
	tokens := ott.NewMemoryStore(credentials.NewOneTimeToken, time.Hour)
	aggregator := NewAggregator(repo, tokens, credentials, log)

	return &testEnv{
		repo:        repo,
		tokens:      tokens,
		credentials: credentials,
		aggregator:  aggregator,
		auth:        NewAuthorizer(repo, tokens, credentials, log),
		polls:       NewPollService(repo, tokens, credentials, aggregator, log),
	}
}

var pollSeq int64

func (e *testEnv) createPoll(t *testing.T, opts ...string) *CreatePollResult {
	t.Helper()
	res, err := e.polls.CreatePoll(context.Background(), CreatePollInput{
		Name:      "Gm",
		Pass:      "host-pass",
		Title:     fmt.Sprintf("Session %d", atomic.AddInt64(&pollSeq, 1)),
		DateStart: "2024-01-01",
		DateEnd:   "2024-01-02",
		Timezone:  "Europe/Berlin",
		Opts:      opts,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) join(t *testing.T, token, name string, aux map[string]interface{}) int64 {
	t.Helper()
	id, err := e.polls.CreateMember(context.Background(), CreateMemberInput{
		Token:   token,
		Name:    name,
		Pass:    name + "-pass",
		AuxInfo: aux,
	})
	require.NoError(t, err)
	return id
}

func (e *testEnv) actor(t *testing.T, token string, id int64, pass string) *Actor {
	t.Helper()
	actor, err := e.auth.Authorize(context.Background(), token, credsFor(id, pass))
	require.NoError(t, err)
	return actor
}

func (e *testEnv) hostID(t *testing.T, token string) int64 {
	t.Helper()
	view, err := e.polls.PollView(context.Background(), token, "")
	require.NoError(t, err)
	require.NotEmpty(t, view.UserData)
	require.True(t, view.UserData[0].Host)
	return view.UserData[0].ID
}
