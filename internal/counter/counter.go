// Package counter holds scalar counters and their daily rollover.
package counter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"routined/internal/calendar"
)

var ErrInvalid = errors.New("invalid counter")

type Type string

const (
	// Daily counters restart from zero every day; yesterday's value is kept
	// as an Entry.
	Daily Type = "daily"
	Total Type = "total"
)

type Counter struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Type  Type          `json:"type"`
	Value int           `json:"current_value"`
	Start calendar.Date `json:"start_date"`
	End   calendar.Date `json:"end_date,omitempty"`
	Goal  int           `json:"goal,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Entry is the recorded value of a counter on one day.
type Entry struct {
	ID        string        `json:"id"`
	CounterID string        `json:"counter_id"`
	Date      calendar.Date `json:"date"`
	Value     int           `json:"value"`
	Name      string        `json:"name,omitempty"`
}

func NewID() string { return uuid.NewString() }

// ActiveOn reports whether d is within [Start, End].
func (c Counter) ActiveOn(d calendar.Date) bool {
	if !c.Start.IsZero() && d.Before(c.Start) {
		return false
	}
	return c.End.IsZero() || !d.After(c.End)
}

// GoalReached is false for counters without a goal.
func (c Counter) GoalReached() bool { return c.Goal > 0 && c.Value >= c.Goal }

func Increment(c Counter) Counter {
	c.Value++
	return c
}

// Decrement never goes below zero.
func Decrement(c Counter) Counter {
	if c.Value > 0 {
		c.Value--
	}
	return c
}

func (c Counter) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id required", ErrInvalid)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalid)
	}
	switch c.Type {
	case Daily, Total:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, c.Type)
	}
	if c.Start.IsZero() {
		return fmt.Errorf("%w: start date required", ErrInvalid)
	}
	if !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalid, c.End, c.Start)
	}
	if c.Value < 0 || c.Goal < 0 {
		return fmt.Errorf("%w: value and goal must be >= 0", ErrInvalid)
	}
	return nil
}
