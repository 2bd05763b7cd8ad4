package service

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedpoll/internal/domain"
	"schedpoll/pkg/errors"
)

func TestPollService_CreatePollValidation(t *testing.T) {
	env := newTestEnv(t)
	valid := CreatePollInput{Name: "Gm", Pass: "p", Title: "T", DateStart: "2024-01-01", DateEnd: "2024-01-02"}

	tests := []struct {
		name   string
		mutate func(in *CreatePollInput)
	}{
		{name: "missing name", mutate: func(in *CreatePollInput) { in.Name = "  " }},
		{name: "missing pass", mutate: func(in *CreatePollInput) { in.Pass = "" }},
		{name: "missing title", mutate: func(in *CreatePollInput) { in.Title = "" }},
		{name: "long title", mutate: func(in *CreatePollInput) { in.Title = strings.Repeat("x", MaxTitleLength+1) }},
		{name: "reversed dates", mutate: func(in *CreatePollInput) { in.DateStart, in.DateEnd = in.DateEnd, in.DateStart }},
		{name: "bad date", mutate: func(in *CreatePollInput) { in.DateEnd = "2024-01-32" }},
		{name: "range too long", mutate: func(in *CreatePollInput) { in.DateEnd = "2025-01-01" }},
		{name: "bad field code", mutate: func(in *CreatePollInput) { in.Opts = []string{"NOT OK"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := env.polls.CreatePoll(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
			assert.Equal(t, http.StatusBadRequest, errors.AsAppError(err).StatusCode)
		})
	}

	res, err := env.polls.CreatePoll(context.Background(), valid)
	require.NoError(t, err)
	assert.Len(t, res.Token, 32)
	assert.NotEmpty(t, res.OTT)
}

func TestPollService_CreateMemberOnClosedPoll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	host := env.actor(t, poll.Token, env.hostID(t, poll.Token), "host-pass")

	require.NoError(t, env.polls.SetOpen(ctx, host, false))
	require.NoError(t, env.polls.SetOpen(ctx, host, false))

	_, err := env.polls.CreateMember(ctx, CreateMemberInput{Token: poll.Token, Name: "late", Pass: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTeapot, errors.AsAppError(err).StatusCode)

	_, err = env.polls.CreateMember(ctx, CreateMemberInput{Token: "missing", Name: "late", Pass: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTeapot, errors.AsAppError(err).StatusCode)

	require.NoError(t, env.polls.SetOpen(ctx, host, true))
	env.join(t, poll.Token, "late", nil)
}

func TestPollService_AnswersAreFilteredAndEncoded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t, domain.CodeFirstTimer, domain.OptVeilsLines)
	aliceID := env.join(t, poll.Token, "alice", map[string]interface{}{
		domain.CodeFirstTimer: true,
		domain.CodeVeils:      "spiders",
		domain.CodeLines:      "",
		"not-a-field":         "ignored",
	})

	info, err := env.polls.Login(ctx, poll.Token, aliceID, "alice-pass")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{domain.CodeVeils: "spiders"}, info[aliceID])

	view, err := env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	alice := findMember(t, view, aliceID)
	assert.Equal(t, map[string]interface{}{domain.CodeFirstTimer: true}, alice.AuxInfo)

	actor := env.actor(t, poll.Token, aliceID, "alice-pass")
	require.NoError(t, env.polls.SaveAuxInfo(ctx, actor, map[string]interface{}{domain.CodeFirstTimer: false}))

	view, err = env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	alice = findMember(t, view, aliceID)
	assert.Equal(t, map[string]interface{}{domain.CodeFirstTimer: false}, alice.AuxInfo)

	info, err = env.polls.Login(ctx, poll.Token, aliceID, "alice-pass")
	require.NoError(t, err)
	assert.Empty(t, info[aliceID], "full replace drops answers that were not resubmitted")

	err = env.polls.SaveAuxInfo(ctx, actor, map[string]interface{}{domain.CodeFirstTimer: 3.0})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestPollService_SaveAttendance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	aliceID := env.join(t, poll.Token, "alice", nil)
	actor := env.actor(t, poll.Token, aliceID, "alice-pass")

	first := map[string]bool{"2024-01-01-0": true, "2024-01-01-1": false, "2024-01-02-47": true}
	require.NoError(t, env.polls.SaveAttendance(ctx, actor, first))
	view, err := env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	assert.Equal(t, first, findMember(t, view, aliceID).Attendance)

	second := map[string]bool{"2024-01-02-3": false}
	require.NoError(t, env.polls.SaveAttendance(ctx, actor, second))
	view, err = env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	assert.Equal(t, second, findMember(t, view, aliceID).Attendance)

	for _, bad := range []string{"2024-01-01-48", "2024-01-03-0", "2023-12-31-5", "junk", "2024-01-01-07"} {
		err := env.polls.SaveAttendance(ctx, actor, map[string]bool{bad: true})
		require.Error(t, err, bad)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation), bad)
	}

	// two spellings of one slot cannot both reach the store
	err = env.polls.SaveAttendance(ctx, actor, map[string]bool{"2024-01-01-7": true, "2024-01-01-07": false})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	// rejected saves leave the stored set untouched
	view, err = env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	assert.Equal(t, second, findMember(t, view, aliceID).Attendance)
}

func TestPollService_HostOnlyOperationsAreNoopsForMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	aliceID := env.join(t, poll.Token, "alice", nil)
	bobID := env.join(t, poll.Token, "bob", nil)
	alice := env.actor(t, poll.Token, aliceID, "alice-pass")

	require.NoError(t, env.polls.SetOpen(ctx, alice, false))
	require.NoError(t, env.polls.DeleteMember(ctx, alice, bobID))
	require.NoError(t, env.polls.DeletePoll(ctx, alice))

	view, err := env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	assert.True(t, view.PollData.Open)
	assert.Len(t, view.UserData, 3)
}

func TestPollService_DeleteMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	other := env.createPoll(t)
	hostID := env.hostID(t, poll.Token)
	host := env.actor(t, poll.Token, hostID, "host-pass")
	bobID := env.join(t, poll.Token, "bob", nil)
	strangerID := env.join(t, other.Token, "stranger", nil)

	err := env.polls.DeleteMember(ctx, host, strangerID)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, env.polls.DeleteMember(ctx, host, hostID))
	require.NoError(t, env.polls.DeleteMember(ctx, host, bobID))

	view, err := env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	require.Len(t, view.UserData, 1)
	assert.Equal(t, hostID, view.UserData[0].ID)
}

func TestPollService_Withdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	host := env.actor(t, poll.Token, env.hostID(t, poll.Token), "host-pass")
	aliceID := env.join(t, poll.Token, "alice", nil)
	alice := env.actor(t, poll.Token, aliceID, "alice-pass")

	err := env.polls.Withdraw(ctx, host)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, env.polls.SaveAttendance(ctx, alice, map[string]bool{"2024-01-01-3": true}))
	require.NoError(t, env.polls.Withdraw(ctx, alice))

	_, err = env.auth.Authorize(ctx, poll.Token, credsFor(aliceID, "alice-pass"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	entries, err := env.repo.ListAttendance(ctx, alice.Poll.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPollService_DeletePoll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	host := env.actor(t, poll.Token, env.hostID(t, poll.Token), "host-pass")
	env.join(t, poll.Token, "alice", nil)

	require.NoError(t, env.polls.DeletePoll(ctx, host))

	_, err := env.polls.PollView(ctx, poll.Token, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusTeapot, errors.AsAppError(err).StatusCode)
}

func TestPollService_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	aliceID := env.join(t, poll.Token, "alice", nil)

	for name, call := range map[string]func() error{
		"wrong password": func() error { _, err := env.polls.Login(ctx, poll.Token, aliceID, "nope"); return err },
		"unknown user":   func() error { _, err := env.polls.Login(ctx, poll.Token, 424242, "x"); return err },
		"unknown poll":   func() error { _, err := env.polls.Login(ctx, "missing", aliceID, "alice-pass"); return err },
	} {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, errors.AsAppError(err).StatusCode)
		})
	}
}

func findMember(t *testing.T, view *PollView, id int64) domain.MemberView {
	t.Helper()
	for _, m := range view.UserData {
		if m.ID == id {
			return m
		}
	}
	t.Fatalf("member %d not in view", id)
	return domain.MemberView{}
}
