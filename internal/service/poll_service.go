package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"schedpoll/internal/domain"
	"schedpoll/internal/repository"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/errors"
	"schedpoll/pkg/logger"
)

// Input limits
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 4000
	MaxNameLength        = 100
	MaxTimezoneLength    = 64
)

// CreatePollInput is the body of poll/create
type CreatePollInput struct {
	Name      string   `json:"name"`
	Pass      string   `json:"pass"`
	Title     string   `json:"title"`
	Desc      string   `json:"desc"`
	DateStart string   `json:"dateStart"`
	DateEnd   string   `json:"dateEnd"`
	Timezone  string   `json:"timezone"`
	Opts      []string `json:"opts"`
}

// CreatePollResult carries the poll's capability token and the creator's
// one-time first-setup token
type CreatePollResult struct {
	Token string `json:"token"`
	OTT   string `json:"ott"`
}

// CreateMemberInput is the body of poll/create-user
type CreateMemberInput struct {
	Token   string                 `json:"token"`
	Name    string                 `json:"name"`
	Pass    string                 `json:"pass"`
	AuxInfo map[string]interface{} `json:"auxInfo"`
}

type pollService struct {
	repo        repository.PollRepository
	tokens      ott.Store
	credentials *CredentialService
	aggregator  *Aggregator
	logger      *logger.Logger
	now         func() time.Time
}

// NewPollService creates the poll lifecycle service
func NewPollService(repo repository.PollRepository, tokens ott.Store, credentials *CredentialService, aggregator *Aggregator, log *logger.Logger) PollService {
	return &pollService{
		repo:        repo,
		tokens:      tokens,
		credentials: credentials,
		aggregator:  aggregator,
		logger:      log,
		now:         time.Now,
	}
}

// CreatePoll creates a poll with its host and fields and issues the host's
// first-setup token
func (s *pollService) CreatePoll(ctx context.Context, in CreatePollInput) (*CreatePollResult, error) {
	name := strings.TrimSpace(in.Name)
	title := strings.TrimSpace(in.Title)

	if err := validateMemberInput(name, in.Pass); err != nil {
		return nil, err
	}
	if title == "" {
		return nil, errors.NewValidationError("Title is required", nil)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, errors.NewValidationError("Title is too long", map[string]interface{}{"max": MaxTitleLength})
	}
	if utf8.RuneCountInString(in.Desc) > MaxDescriptionLength {
		return nil, errors.NewValidationError("Description is too long", map[string]interface{}{"max": MaxDescriptionLength})
	}
	if len(in.Timezone) > MaxTimezoneLength {
		return nil, errors.NewValidationError("Timezone is too long", nil)
	}
	if err := domain.ValidateDateRange(in.DateStart, in.DateEnd); err != nil {
		return nil, errors.NewValidationError(err.Error(), nil)
	}

	fields, err := domain.FieldsFromOptions(in.Opts)
	if err != nil {
		return nil, errors.NewValidationError(err.Error(), nil)
	}

	now := s.now()
	token, err := s.credentials.NewPollToken(title, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate poll token: %w", err)
	}

	poll := &domain.Poll{
		Token:       token,
		Title:       title,
		Description: in.Desc,
		DateStart:   in.DateStart,
		DateEnd:     in.DateEnd,
		Timezone:    in.Timezone,
		Open:        true,
		TimeCreated: now,
	}
	host := &domain.Member{
		Name:           name,
		PasswordDigest: s.credentials.HashPassword(in.Pass),
		Host:           true,
	}

	if err := s.repo.CreatePoll(ctx, poll, host, fields); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	oneTime, err := s.tokens.Issue(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to issue one-time token: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_id": poll.ID,
		"days":    len(poll.Dates()),
		"fields":  len(fields),
	}).Info("Poll created")

	return &CreatePollResult{Token: token, OTT: oneTime}, nil
}

// CreateMember adds a non-host member to an open poll. Missing and closed
// polls fail the same way.
func (s *pollService) CreateMember(ctx context.Context, in CreateMemberInput) (int64, error) {
	poll, err := s.repo.GetPollByToken(ctx, in.Token)
	if err != nil {
		return 0, fmt.Errorf("failed to load poll: %w", err)
	}
	if poll == nil || !poll.Open {
		return 0, errors.NewHiddenNotFoundError("Poll not found")
	}

	name := strings.TrimSpace(in.Name)
	if err := validateMemberInput(name, in.Pass); err != nil {
		return 0, err
	}

	values, err := s.encodeAnswers(ctx, poll.ID, in.AuxInfo)
	if err != nil {
		return 0, err
	}

	member := &domain.Member{
		PollID:         poll.ID,
		Name:           name,
		PasswordDigest: s.credentials.HashPassword(in.Pass),
	}
	if err := s.repo.CreateMember(ctx, member, values); err != nil {
		return 0, fmt.Errorf("failed to create member: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_id":   poll.ID,
		"member_id": member.ID,
	}).Info("Member joined poll")

	return member.ID, nil
}

// Login checks a member password and returns the private answers it may see
func (s *pollService) Login(ctx context.Context, pollToken string, userID int64, pass string) (PrivateAuxInfo, error) {
	return s.aggregator.PrivilegedAuxInfo(ctx, pollToken, userID, pass)
}

// PollView returns the public aggregate of a poll
func (s *pollService) PollView(ctx context.Context, pollToken, presentedOTT string) (*PollView, error) {
	return s.aggregator.BuildPollView(ctx, pollToken, presentedOTT)
}

// Grid returns the per-slot tally and the best slots of a poll
func (s *pollService) Grid(ctx context.Context, pollToken string, lock bool, viewerID int64, best int) (*GridResult, error) {
	slots, err := s.aggregator.Grid(ctx, pollToken, lock, viewerID)
	if err != nil {
		return nil, err
	}
	return &GridResult{Slots: slots, Best: BestSlots(slots, best)}, nil
}

// SaveAttendance replaces the actor's whole attendance set
func (s *pollService) SaveAttendance(ctx context.Context, actor *Actor, attendance map[string]bool) error {
	entries := make([]domain.AttendanceEntry, 0, len(attendance))
	for key, val := range attendance {
		date, slot, err := domain.ParseDateKey(key)
		if err != nil {
			return errors.NewValidationError(err.Error(), nil)
		}
		if !actor.Poll.Contains(date) {
			return errors.NewValidationError("Date key outside poll range", map[string]interface{}{"dateKey": key})
		}
		entries = append(entries, domain.AttendanceEntry{
			UserID:   actor.Member.ID,
			Date:     date,
			Timeslot: slot,
			Val:      val,
		})
	}

	if err := s.repo.ReplaceAttendance(ctx, actor.Member.ID, entries); err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

// SaveAuxInfo replaces the actor's whole answer set
func (s *pollService) SaveAuxInfo(ctx context.Context, actor *Actor, answers map[string]interface{}) error {
	values, err := s.encodeAnswers(ctx, actor.Poll.ID, answers)
	if err != nil {
		return err
	}

	if err := s.repo.ReplaceAuxInfoValues(ctx, actor.Member.ID, values); err != nil {
		return fmt.Errorf("failed to save answers: %w", err)
	}
	return nil
}

// Withdraw removes the actor from the poll. The host cannot leave its own poll.
func (s *pollService) Withdraw(ctx context.Context, actor *Actor) error {
	if actor.Member.Host {
		return errors.NewValidationError("The host cannot withdraw from the poll", nil)
	}

	if err := s.repo.DeleteMember(ctx, actor.Poll.ID, actor.Member.ID); err != nil {
		return fmt.Errorf("failed to withdraw member: %w", err)
	}
	return nil
}

// DeleteMember removes another member. Host only; the host row is never removed.
func (s *pollService) DeleteMember(ctx context.Context, actor *Actor, memberID int64) error {
	if !s.requireHost(actor, "delete-user") {
		return nil
	}

	target, err := s.repo.GetMember(ctx, actor.Poll.ID, memberID)
	if err != nil {
		return fmt.Errorf("failed to load member: %w", err)
	}
	if target == nil {
		return errors.NewNotFoundError("User not found")
	}
	if target.Host {
		return nil
	}

	if err := s.repo.DeleteMember(ctx, actor.Poll.ID, target.ID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// SetOpen opens or closes the poll to new members. Host only.
func (s *pollService) SetOpen(ctx context.Context, actor *Actor, open bool) error {
	if !s.requireHost(actor, "set-open") {
		return nil
	}

	if err := s.repo.SetPollOpen(ctx, actor.Poll.ID, open); err != nil {
		return fmt.Errorf("failed to update poll: %w", err)
	}
	return nil
}

// DeletePoll removes the poll and everything it owns. Host only.
func (s *pollService) DeletePoll(ctx context.Context, actor *Actor) error {
	if !s.requireHost(actor, "delete") {
		return nil
	}

	if err := s.repo.DeletePoll(ctx, actor.Poll.ID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}

	s.logger.WithField("poll_id", actor.Poll.ID).Info("Poll deleted")
	return nil
}

// requireHost reports whether the actor is the host. Non-host calls to host
// operations succeed without effect.
func (s *pollService) requireHost(actor *Actor, op string) bool {
	if actor.Member.Host {
		return true
	}
	s.logger.WithFields(map[string]interface{}{
		"poll_id":   actor.Poll.ID,
		"member_id": actor.Member.ID,
		"operation": op,
	}).Warn("Ignoring host-only operation from non-host member")
	return false
}

// encodeAnswers converts submitted answers into stored values. Codes the poll
// does not define are ignored and empty answers are dropped.
func (s *pollService) encodeAnswers(ctx context.Context, pollID int64, answers map[string]interface{}) ([]domain.AuxInfoValue, error) {
	if len(answers) == 0 {
		return nil, nil
	}

	fields, err := s.repo.ListFields(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fields: %w", err)
	}
	domain.SortFields(fields)

	var values []domain.AuxInfoValue
	for _, f := range fields {
		raw, ok := answers[f.Code]
		if !ok {
			continue
		}
		stored, keep, err := domain.EncodeAuxValue(f, raw)
		if err != nil {
			return nil, errors.NewValidationError(err.Error(), nil)
		}
		if keep {
			values = append(values, domain.AuxInfoValue{InfoID: f.ID, Val: stored})
		}
	}
	return values, nil
}

func validateMemberInput(name, pass string) error {
	if name == "" {
		return errors.NewValidationError("Name is required", nil)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.NewValidationError("Name is too long", map[string]interface{}{"max": MaxNameLength})
	}
	if pass == "" {
		return errors.NewValidationError("Password is required", nil)
	}
	return nil
}
