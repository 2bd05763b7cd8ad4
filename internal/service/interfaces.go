package service

import (
	"context"

	"schedpoll/internal/domain"
)

// GridResult is the tally of every slot plus the best candidates
type GridResult struct {
	Slots []SlotTally `json:"slots"`
	Best  []SlotTally `json:"best"`
}

// Authorizer checks the credentials presented to mutating poll endpoints
type Authorizer interface {
	// Authorize resolves the poll and member and verifies the credential
	Authorize(ctx context.Context, pollToken string, creds domain.Credentials) (*Actor, error)

	// Release hands back a one-time token taken by Authorize after the
	// action it authorized failed. A no-op for password actors.
	Release(ctx context.Context, actor *Actor) error
}

// PollService defines the poll lifecycle operations
type PollService interface {
	// CreatePoll creates a poll and its host
	CreatePoll(ctx context.Context, in CreatePollInput) (*CreatePollResult, error)

	// CreateMember adds a member to an open poll
	CreateMember(ctx context.Context, in CreateMemberInput) (int64, error)

	// Login verifies a password and returns the private answers visible to the caller
	Login(ctx context.Context, pollToken string, userID int64, pass string) (PrivateAuxInfo, error)

	// PollView returns the public aggregate of a poll
	PollView(ctx context.Context, pollToken, presentedOTT string) (*PollView, error)

	// Grid tallies the effective cells of every slot
	Grid(ctx context.Context, pollToken string, lock bool, viewerID int64, best int) (*GridResult, error)

	SaveAttendance(ctx context.Context, actor *Actor, attendance map[string]bool) error
	SaveAuxInfo(ctx context.Context, actor *Actor, answers map[string]interface{}) error
	Withdraw(ctx context.Context, actor *Actor) error

	// Host-only operations. Non-host callers get a successful no-op.
	DeleteMember(ctx context.Context, actor *Actor, memberID int64) error
	SetOpen(ctx context.Context, actor *Actor, open bool) error
	DeletePoll(ctx context.Context, actor *Actor) error
}

// ExpiryService defines the background sweeps
type ExpiryService interface {
	// Start begins the periodic sweeps
	Start(ctx context.Context) error

	// Stop gracefully shuts the sweeps down
	Stop(ctx context.Context) error

	// SweepTokens deletes expired one-time tokens
	SweepTokens(ctx context.Context) (int, error)

	// SweepPolls deletes polls past their retention period
	SweepPolls(ctx context.Context) (int64, error)
}

// Services aggregates all service interfaces
type Services struct {
	Polls  PollService
	Auth   Authorizer
	Expiry ExpiryService
}
