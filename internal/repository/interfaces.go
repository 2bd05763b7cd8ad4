package repository

import (
	"context"
	"time"

	"schedpoll/internal/domain"
)

// PollRepository owns polls, members, fields, attendance and answers.
// Lookups return (nil, nil) when the row does not exist. Every method that
// touches more than one row runs in a single transaction.
type PollRepository interface {
	// CreatePoll inserts the poll, its host and its fields, filling in their ids
	CreatePoll(ctx context.Context, poll *domain.Poll, host *domain.Member, fields []domain.AuxInfoField) error

	// GetPollByToken retrieves a poll by its public token
	GetPollByToken(ctx context.Context, token string) (*domain.Poll, error)

	// SetPollOpen updates whether the poll accepts new members
	SetPollOpen(ctx context.Context, pollID int64, open bool) error

	// DeletePoll removes the poll and everything it owns
	DeletePoll(ctx context.Context, pollID int64) error

	// DeletePollsCreatedBefore removes every poll created before cutoff
	DeletePollsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CreateMember inserts a member and its answers, filling in the member id
	CreateMember(ctx context.Context, member *domain.Member, values []domain.AuxInfoValue) error

	// GetMember retrieves a member scoped to a poll
	GetMember(ctx context.Context, pollID, memberID int64) (*domain.Member, error)

	// ListMembers retrieves every member of a poll
	ListMembers(ctx context.Context, pollID int64) ([]domain.Member, error)

	// DeleteMember removes a member of a poll with its attendance and answers
	DeleteMember(ctx context.Context, pollID, memberID int64) error

	// ListFields retrieves the poll's auxiliary fields
	ListFields(ctx context.Context, pollID int64) ([]domain.AuxInfoField, error)

	// ListAttendance retrieves every attendance entry of the poll's members
	ListAttendance(ctx context.Context, pollID int64) ([]domain.AttendanceEntry, error)

	// ReplaceAttendance swaps a member's whole entry set for entries
	ReplaceAttendance(ctx context.Context, memberID int64, entries []domain.AttendanceEntry) error

	// ListAuxInfoValues retrieves the members' answers to this poll's fields
	ListAuxInfoValues(ctx context.Context, pollID int64) ([]domain.AuxInfoValue, error)

	// ReplaceAuxInfoValues swaps a member's whole answer set for values
	ReplaceAuxInfoValues(ctx context.Context, memberID int64, values []domain.AuxInfoValue) error

	// Health checks the underlying storage
	Health(ctx context.Context) error
}
