package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"schedpoll/internal/domain"
	"schedpoll/internal/repository"
	"schedpoll/internal/service/ott"
	"schedpoll/pkg/errors"
	"schedpoll/pkg/logger"
)

// PollView is the aggregate returned by poll/data
type PollView struct {
	FirstSetup bool                  `json:"firstSetup"`
	PollData   domain.PollSummary    `json:"pollData"`
	UserData   []domain.MemberView   `json:"userData"`
	AuxInfo    []domain.AuxInfoField `json:"auxInfo"`
	HostClosed []string              `json:"hostClosed"`
}

// PrivateAuxInfo maps member id to that member's sensitive answers
type PrivateAuxInfo map[int64]map[string]interface{}

// CellState is what a grid cell displays for one member
type CellState string

const (
	CellPreferred CellState = "preferred"
	CellOpen      CellState = "open"
	CellClosed    CellState = "closed"
)

// Cell is the effective display of one member at one date key
type Cell struct {
	State           CellState `json:"state"`
	HostUnavailable bool      `json:"hostUnavailable"`
}

// GridOptions control the host-closed overlay
type GridOptions struct {
	TimeslotHostLock bool
	ViewerIsHost     bool
}

// SlotTally counts effective cells of every member at one date key
type SlotTally struct {
	DateKey    string `json:"dateKey"`
	Preferred  int    `json:"preferred"`
	Open       int    `json:"open"`
	Closed     int    `json:"closed"`
	HostClosed bool   `json:"hostClosed"`
}

// Aggregator builds read models of a poll from the store
type Aggregator struct {
	repo        repository.PollRepository
	tokens      ott.Store
	credentials *CredentialService
	logger      *logger.Logger
}

// NewAggregator creates the poll read model builder
func NewAggregator(repo repository.PollRepository, tokens ott.Store, credentials *CredentialService, log *logger.Logger) *Aggregator {
	return &Aggregator{repo: repo, tokens: tokens, credentials: credentials, logger: log}
}

// BuildPollView assembles the public view of a poll. Sensitive answers are
// only included while the presented one-time token is live, and then only on
// the host's row.
func (a *Aggregator) BuildPollView(ctx context.Context, pollToken, presentedOTT string) (*PollView, error) {
	poll, err := a.repo.GetPollByToken(ctx, pollToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	if poll == nil {
		return nil, errors.NewHiddenNotFoundError("Poll not found")
	}

	firstSetup, err := a.tokens.Peek(ctx, pollToken, presentedOTT)
	if err != nil {
		return nil, fmt.Errorf("failed to check one-time token: %w", err)
	}

	fields, members, err := a.loadMembers(ctx, poll)
	if err != nil {
		return nil, err
	}

	for i := range members {
		if firstSetup && members[i].Host {
			continue
		}
		for code := range members[i].AuxInfo {
			if domain.IsSensitive(code) {
				delete(members[i].AuxInfo, code)
			}
		}
	}

	SortMembers(members)

	closed := HostClosed(members)
	closedKeys := make([]string, 0, len(closed))
	for key := range closed {
		closedKeys = append(closedKeys, key)
	}
	sort.Strings(closedKeys)

	return &PollView{
		FirstSetup: firstSetup,
		PollData:   poll.Summary(),
		UserData:   members,
		AuxInfo:    fields,
		HostClosed: closedKeys,
	}, nil
}

// PrivilegedAuxInfo returns sensitive answers after a password check. The
// host receives every member's answers, anyone else only their own.
func (a *Aggregator) PrivilegedAuxInfo(ctx context.Context, pollToken string, userID int64, pass string) (PrivateAuxInfo, error) {
	denied := errors.NewAuthenticationError("Invalid user or password").WithStatus(http.StatusBadRequest)

	poll, err := a.repo.GetPollByToken(ctx, pollToken)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	if poll == nil {
		return nil, denied
	}

	viewer, err := a.repo.GetMember(ctx, poll.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if viewer == nil || !a.credentials.VerifyPassword(pass, viewer.PasswordDigest) {
		a.logger.WithField("user_id", userID).Info("Rejected poll login")
		return nil, denied
	}

	_, members, err := a.loadMembers(ctx, poll)
	if err != nil {
		return nil, err
	}

	result := make(PrivateAuxInfo)
	for _, m := range members {
		if !viewer.Host && m.ID != viewer.ID {
			continue
		}
		private := make(map[string]interface{})
		for code, val := range m.AuxInfo {
			if domain.IsSensitive(code) {
				private[code] = val
			}
		}
		result[m.ID] = private
	}

	return result, nil
}

// Grid tallies the effective cells of every date key of the poll
func (a *Aggregator) Grid(ctx context.Context, pollToken string, lock bool, viewerID int64) ([]SlotTally, error) {
	view, err := a.BuildPollView(ctx, pollToken, "")
	if err != nil {
		return nil, err
	}

	opts := GridOptions{TimeslotHostLock: lock}
	for _, m := range view.UserData {
		if m.ID == viewerID && m.Host {
			opts.ViewerIsHost = true
		}
	}

	poll := &domain.Poll{DateStart: view.PollData.DateStart, DateEnd: view.PollData.DateEnd}
	return Tally(poll, view.UserData, opts), nil
}

// loadMembers reads fields, members, attendance and answers of a poll and
// folds them into member views. Fields come back in canonical order.
func (a *Aggregator) loadMembers(ctx context.Context, poll *domain.Poll) ([]domain.AuxInfoField, []domain.MemberView, error) {
	fields, err := a.repo.ListFields(ctx, poll.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fields: %w", err)
	}
	domain.SortFields(fields)

	members, err := a.repo.ListMembers(ctx, poll.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load members: %w", err)
	}

	attendance, err := a.repo.ListAttendance(ctx, poll.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load attendance: %w", err)
	}

	values, err := a.repo.ListAuxInfoValues(ctx, poll.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load answers: %w", err)
	}

	views := make([]domain.MemberView, len(members))
	index := make(map[int64]int, len(members))
	for i, m := range members {
		views[i] = domain.MemberView{
			ID:         m.ID,
			Name:       m.Name,
			Host:       m.Host,
			Attendance: make(map[string]bool),
			AuxInfo:    make(map[string]interface{}),
		}
		index[m.ID] = i
	}

	for _, e := range attendance {
		if i, ok := index[e.UserID]; ok {
			views[i].Attendance[e.Key()] = e.Val
		}
	}

	byID := make(map[int64]domain.AuxInfoField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}
	for _, v := range values {
		i, ok := index[v.UserID]
		f, known := byID[v.InfoID]
		if !ok || !known {
			continue
		}
		views[i].AuxInfo[f.Code] = domain.DecodeAuxValue(f.Type, v.Val)
	}

	return fields, views, nil
}

// SortMembers puts the host first, then orders members by name using
// case-insensitive collation, then by id.
func SortMembers(members []domain.MemberView) {
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Host != members[j].Host {
			return members[i].Host
		}
		if cmp := c.CompareString(members[i].Name, members[j].Name); cmp != 0 {
			return cmp < 0
		}
		return members[i].ID < members[j].ID
	})
}

// HostClosed returns the date keys that some host explicitly marked unavailable
func HostClosed(members []domain.MemberView) map[string]bool {
	closed := make(map[string]bool)
	for _, m := range members {
		if !m.Host {
			continue
		}
		for key, val := range m.Attendance {
			if !val {
				closed[key] = true
			}
		}
	}
	return closed
}

// EffectiveCell returns what the grid shows for member at dateKey. Under the
// host lock a host-closed key displays as closed to non-host viewers whatever
// the member stored.
func EffectiveCell(member domain.MemberView, dateKey string, hostClosed map[string]bool, opts GridOptions) Cell {
	cell := Cell{State: CellOpen, HostUnavailable: hostClosed[dateKey]}

	if cell.HostUnavailable && opts.TimeslotHostLock && !opts.ViewerIsHost {
		cell.State = CellClosed
		return cell
	}

	if val, ok := member.Attendance[dateKey]; ok {
		if val {
			cell.State = CellPreferred
		} else {
			cell.State = CellClosed
		}
	}
	return cell
}

// CanEdit reports whether viewer may change member's cell at dateKey
func CanEdit(viewer, member domain.MemberView, dateKey string, hostClosed map[string]bool, lock bool) bool {
	if viewer.ID != member.ID {
		return false
	}
	return !hostClosed[dateKey] || viewer.Host || !lock
}

// Tally counts effective cells per date key over the poll's whole range, in
// chronological order.
func Tally(poll *domain.Poll, members []domain.MemberView, opts GridOptions) []SlotTally {
	closed := HostClosed(members)
	dates := poll.Dates()
	slots := make([]SlotTally, 0, len(dates)*domain.SlotsPerDay)

	for _, date := range dates {
		for slot := 0; slot < domain.SlotsPerDay; slot++ {
			key := domain.DateKey(date, slot)
			t := SlotTally{DateKey: key, HostClosed: closed[key]}
			for _, m := range members {
				switch EffectiveCell(m, key, closed, opts).State {
				case CellPreferred:
					t.Preferred++
				case CellClosed:
					t.Closed++
				default:
					t.Open++
				}
			}
			slots = append(slots, t)
		}
	}
	return slots
}

// BestSlots picks up to n slots with at least one preferred cell, ranked by
// preferred count, then fewest closed, then chronologically.
func BestSlots(slots []SlotTally, n int) []SlotTally {
	var best []SlotTally
	for _, s := range slots {
		if s.Preferred > 0 {
			best = append(best, s)
		}
	}

	sort.SliceStable(best, func(i, j int) bool {
		if best[i].Preferred != best[j].Preferred {
			return best[i].Preferred > best[j].Preferred
		}
		return best[i].Closed < best[j].Closed
	})

	if n >= 0 && len(best) > n {
		best = best[:n]
	}
	return best
}
