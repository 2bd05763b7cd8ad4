package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for poll ranges and date keys
const DateLayout = "2006-01-02"

// MaxPollDays caps the inclusive length of a poll's date range
const MaxPollDays = 186

// Poll represents a scheduling poll over an inclusive range of calendar days
type Poll struct {
	ID          int64     `json:"-"`
	Token       string    `json:"token"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DateStart   string    `json:"dateStart"`
	DateEnd     string    `json:"dateEnd"`
	Timezone    string    `json:"timezone"`
	Open        bool      `json:"open"`
	TimeCreated time.Time `json:"-"`
}

// PollSummary is the public part of a poll returned to clients
type PollSummary struct {
	Token       string `json:"token"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DateStart   string `json:"dateStart"`
	DateEnd     string `json:"dateEnd"`
	Timezone    string `json:"timezone"`
	Open        bool   `json:"open"`
	TimeCreated int64  `json:"timeCreated"`
}

// Summary returns the client-visible fields of the poll
func (p *Poll) Summary() PollSummary {
	return PollSummary{
		Token:       p.Token,
		Title:       p.Title,
		Description: p.Description,
		DateStart:   p.DateStart,
		DateEnd:     p.DateEnd,
		Timezone:    p.Timezone,
		Open:        p.Open,
		TimeCreated: p.TimeCreated.Unix(),
	}
}

// Dates lists every calendar day of the poll, in order
func (p *Poll) Dates() []string {
	start, err := time.Parse(DateLayout, p.DateStart)
	if err != nil {
		return nil
	}
	end, err := time.Parse(DateLayout, p.DateEnd)
	if err != nil {
		return nil
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}

// Contains reports whether the calendar day falls inside the poll's range.
// ISO dates compare correctly as strings.
func (p *Poll) Contains(date string) bool {
	return date >= p.DateStart && date <= p.DateEnd
}

// ValidateDateRange checks an inclusive ISO date range
func ValidateDateRange(dateStart, dateEnd string) error {
	start, err := time.Parse(DateLayout, dateStart)
	if err != nil {
		return fmt.Errorf("dateStart must be YYYY-MM-DD")
	}
	end, err := time.Parse(DateLayout, dateEnd)
	if err != nil {
		return fmt.Errorf("dateEnd must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return fmt.Errorf("dateEnd must not be before dateStart")
	}
	if days := int(end.Sub(start).Hours()/24) + 1; days > MaxPollDays {
		return fmt.Errorf("date range spans %d days, at most %d allowed", days, MaxPollDays)
	}
	return nil
}
