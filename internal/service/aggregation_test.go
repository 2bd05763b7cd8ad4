package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedpoll/internal/domain"
)

func TestBuildPollView_Redaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t, domain.CodeFirstTimer, domain.CodeDiscordHandle, domain.OptVeilsLines)
	hostID := env.hostID(t, poll.Token)
	host, err := env.auth.Authorize(ctx, poll.Token, domain.Credentials{UserID: hostID, Auth: domain.AuthModePassword, Key: "host-pass"})
	require.NoError(t, err)
	require.NoError(t, env.polls.SaveAuxInfo(ctx, host, map[string]interface{}{
		domain.CodeDiscordHandle: "gm#1",
		domain.CodeVeils:         "spiders",
	}))
	aliceID := env.join(t, poll.Token, "alice", map[string]interface{}{
		domain.CodeFirstTimer:    true,
		domain.CodeDiscordHandle: "alice#2",
		domain.CodeLines:         "gore",
	})

	t.Run("without first setup", func(t *testing.T) {
		view, err := env.polls.PollView(ctx, poll.Token, "")
		require.NoError(t, err)
		assert.False(t, view.FirstSetup)
		for _, m := range view.UserData {
			for code := range m.AuxInfo {
				assert.False(t, domain.IsSensitive(code), "member %d leaked %s", m.ID, code)
			}
		}
		assert.Equal(t, true, findMember(t, view, aliceID).AuxInfo[domain.CodeFirstTimer])
	})

	t.Run("with live one-time token", func(t *testing.T) {
		view, err := env.polls.PollView(ctx, poll.Token, poll.OTT)
		require.NoError(t, err)
		assert.True(t, view.FirstSetup)

		hostView := findMember(t, view, hostID)
		assert.Equal(t, "gm#1", hostView.AuxInfo[domain.CodeDiscordHandle])
		assert.Equal(t, "spiders", hostView.AuxInfo[domain.CodeVeils])

		aliceView := findMember(t, view, aliceID)
		assert.NotContains(t, aliceView.AuxInfo, domain.CodeDiscordHandle)
		assert.NotContains(t, aliceView.AuxInfo, domain.CodeLines)

		// peeking the token does not consume it
		view, err = env.polls.PollView(ctx, poll.Token, poll.OTT)
		require.NoError(t, err)
		assert.True(t, view.FirstSetup)
	})

	t.Run("token of another poll", func(t *testing.T) {
		other := env.createPoll(t)
		view, err := env.polls.PollView(ctx, poll.Token, other.OTT)
		require.NoError(t, err)
		assert.False(t, view.FirstSetup)
	})

	t.Run("privileged lookup", func(t *testing.T) {
		all, err := env.polls.Login(ctx, poll.Token, hostID, "host-pass")
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, "alice#2", all[aliceID][domain.CodeDiscordHandle])
		assert.NotContains(t, all[aliceID], domain.CodeFirstTimer)

		own, err := env.polls.Login(ctx, poll.Token, aliceID, "alice-pass")
		require.NoError(t, err)
		assert.Len(t, own, 1)
		assert.Equal(t, map[string]interface{}{domain.CodeDiscordHandle: "alice#2", domain.CodeLines: "gore"}, own[aliceID])
	})
}

func TestBuildPollView_FieldsAndOrdering(t *testing.T) {
	env := newTestEnv(t)

	poll := env.createPoll(t, "snacks", domain.OptVeilsLines, domain.CodeFirstTimer)
	hostID := env.hostID(t, poll.Token)
	zoeID := env.join(t, poll.Token, "zoe", nil)
	bobID := env.join(t, poll.Token, "Bob", nil)
	aliceID := env.join(t, poll.Token, "alice", nil)
	bob2ID := env.join(t, poll.Token, "bob", nil)

	view, err := env.polls.PollView(context.Background(), poll.Token, "")
	require.NoError(t, err)

	var ids []int64
	for _, m := range view.UserData {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{hostID, aliceID, bobID, bob2ID, zoeID}, ids)

	var codes []string
	for _, f := range view.AuxInfo {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{domain.CodeFirstTimer, domain.CodeVeils, domain.CodeLines, "snacks"}, codes)

	assert.Equal(t, "2024-01-01", view.PollData.DateStart)
	assert.True(t, view.PollData.Open)
}

func TestHostClosed(t *testing.T) {
	members := []domain.MemberView{
		{ID: 1, Host: true, Attendance: map[string]bool{"d1": false, "d2": true}},
		{ID: 2, Attendance: map[string]bool{"d3": false, "d1": true}},
	}
	assert.Equal(t, map[string]bool{"d1": true}, HostClosed(members))
	assert.Empty(t, HostClosed(members[1:]))
}

func TestEffectiveCell(t *testing.T) {
	closed := map[string]bool{"k": true}
	wants := domain.MemberView{ID: 2, Attendance: map[string]bool{"k": true, "other": false}}
	blank := domain.MemberView{ID: 3, Attendance: map[string]bool{}}

	tests := []struct {
		name   string
		member domain.MemberView
		key    string
		opts   GridOptions
		want   Cell
	}{
		{name: "locked veto beats preference", member: wants, key: "k", opts: GridOptions{TimeslotHostLock: true}, want: Cell{CellClosed, true}},
		{name: "host viewer sees stored value", member: wants, key: "k", opts: GridOptions{TimeslotHostLock: true, ViewerIsHost: true}, want: Cell{CellPreferred, true}},
		{name: "unlocked sees stored value", member: wants, key: "k", want: Cell{CellPreferred, true}},
		{name: "missing entry is open", member: blank, key: "k", want: Cell{CellOpen, true}},
		{name: "explicit false is closed", member: wants, key: "other", want: Cell{CellClosed, false}},
		{name: "not host closed", member: blank, key: "free", opts: GridOptions{TimeslotHostLock: true}, want: Cell{CellOpen, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveCell(tt.member, tt.key, closed, tt.opts))
		})
	}
}

func TestCanEdit(t *testing.T) {
	closed := map[string]bool{"k": true}
	host := domain.MemberView{ID: 1, Host: true}
	alice := domain.MemberView{ID: 2}

	assert.True(t, CanEdit(alice, alice, "free", closed, true))
	assert.False(t, CanEdit(alice, alice, "k", closed, true))
	assert.True(t, CanEdit(alice, alice, "k", closed, false))
	assert.True(t, CanEdit(host, host, "k", closed, true))
	assert.False(t, CanEdit(host, alice, "free", closed, false))
	assert.False(t, CanEdit(alice, host, "free", closed, false))
}

func TestTallyAndBestSlots(t *testing.T) {
	poll := &domain.Poll{DateStart: "2024-01-01", DateEnd: "2024-01-02"}
	members := []domain.MemberView{
		{ID: 1, Host: true, Attendance: map[string]bool{"2024-01-01-10": false, "2024-01-02-5": true}},
		{ID: 2, Attendance: map[string]bool{"2024-01-01-10": true, "2024-01-02-5": true, "2024-01-01-3": true}},
		{ID: 3, Attendance: map[string]bool{"2024-01-02-5": true, "2024-01-01-3": true, "2024-01-01-4": true}},
	}

	slots := Tally(poll, members, GridOptions{TimeslotHostLock: true})
	require.Len(t, slots, 96)
	assert.Equal(t, "2024-01-01-0", slots[0].DateKey)
	assert.Equal(t, "2024-01-02-47", slots[95].DateKey)

	locked := slots[10]
	assert.Equal(t, "2024-01-01-10", locked.DateKey)
	assert.True(t, locked.HostClosed)
	assert.Equal(t, 3, locked.Closed)
	assert.Equal(t, 0, locked.Preferred)

	best := BestSlots(slots, 2)
	require.Len(t, best, 2)
	assert.Equal(t, "2024-01-02-5", best[0].DateKey)
	assert.Equal(t, 3, best[0].Preferred)
	assert.Equal(t, "2024-01-01-3", best[1].DateKey)

	unlocked := Tally(poll, members, GridOptions{})
	assert.Equal(t, 1, unlocked[10].Preferred)
	assert.Equal(t, 1, unlocked[10].Closed)
	assert.Equal(t, 1, unlocked[10].Open)

	assert.Len(t, BestSlots(unlocked, -1), 4)
}

func TestHostClosedScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	poll := env.createPoll(t)
	hostID := env.hostID(t, poll.Token)
	host := env.actor(t, poll.Token, hostID, "host-pass")
	aliceID := env.join(t, poll.Token, "alice", nil)
	alice := env.actor(t, poll.Token, aliceID, "alice-pass")

	require.NoError(t, env.polls.SaveAttendance(ctx, host, map[string]bool{"2024-01-01-10": false}))
	require.NoError(t, env.polls.SaveAttendance(ctx, alice, map[string]bool{"2024-01-01-10": true}))

	view, err := env.polls.PollView(ctx, poll.Token, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01-10"}, view.HostClosed)

	closed := HostClosed(view.UserData)
	cell := EffectiveCell(findMember(t, view, aliceID), "2024-01-01-10", closed, GridOptions{TimeslotHostLock: true})
	assert.Equal(t, CellClosed, cell.State)

	grid, err := env.polls.Grid(ctx, poll.Token, true, aliceID, 5)
	require.NoError(t, err)
	assert.Len(t, grid.Slots, 96)
	assert.Equal(t, 2, grid.Slots[10].Closed)
	assert.Empty(t, grid.Best)

	grid, err = env.polls.Grid(ctx, poll.Token, true, hostID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, grid.Slots[10].Preferred)
	require.Len(t, grid.Best, 1)
	assert.Equal(t, "2024-01-01-10", grid.Best[0].DateKey)
}
