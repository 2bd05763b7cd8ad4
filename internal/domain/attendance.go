package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SlotsPerDay is the number of half-hour timeslots in a calendar day
const SlotsPerDay = 48

// AttendanceEntry is one member's explicit preference for one timeslot.
// Val true means preferred, false means unavailable. A missing entry is neutral.
type AttendanceEntry struct {
	UserID   int64
	Date     string
	Timeslot int
	Val      bool
}

// Key returns the wire date key of the entry
func (e AttendanceEntry) Key() string {
	return DateKey(e.Date, e.Timeslot)
}

// DateKey formats a date key as "YYYY-MM-DD-<timeslot>"
func DateKey(date string, timeslot int) string {
	return date + "-" + strconv.Itoa(timeslot)
}

// ParseDateKey splits a date key into its calendar day and timeslot index
func ParseDateKey(key string) (string, int, error) {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 || i == len(key)-1 {
		return "", 0, fmt.Errorf("malformed date key %q", key)
	}

	date := key[:i]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", 0, fmt.Errorf("malformed date in key %q", key)
	}

	// only the canonical decimal form, so each (date, slot) has exactly one key
	raw := key[i+1:]
	slot, err := strconv.Atoi(raw)
	if err != nil || strconv.Itoa(slot) != raw {
		return "", 0, fmt.Errorf("malformed timeslot in key %q", key)
	}
	if slot < 0 || slot >= SlotsPerDay {
		return "", 0, fmt.Errorf("timeslot %d out of range in key %q", slot, key)
	}

	return date, slot, nil
}
