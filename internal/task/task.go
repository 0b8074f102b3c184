// Package task holds the task record and the pure completion/occurrence
// queries over it.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"routined/internal/calendar"
	"routined/internal/recurrence"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid task")

type Kind string

const (
	OneTime Kind = "one_time"
	Routine Kind = "routine"
)

type AdvanceUnit string

const (
	Minutes AdvanceUnit = "minutes"
	Hours   AdvanceUnit = "hours"
)

// DefaultAdvance is the lead time used when a notification sets no amount.
const DefaultAdvance = 10 * time.Minute

// Notification configures the reminder of a task.
type Notification struct {
	Enabled       bool        `json:"enabled"`
	AdvanceAmount int         `json:"advance_amount,omitempty"`
	AdvanceUnit   AdvanceUnit `json:"advance_unit,omitempty"`
}

// Advance converts the amount/unit pair into a lead time. An unset or
// non-positive amount yields DefaultAdvance; an unknown unit means minutes.
func (n Notification) Advance() time.Duration {
	if n.AdvanceAmount <= 0 {
		return DefaultAdvance
	}
	if n.AdvanceUnit == Hours {
		return time.Duration(n.AdvanceAmount) * time.Hour
	}
	return time.Duration(n.AdvanceAmount) * time.Minute
}

// Task is a one-off or recurring commitment.
//
// OneTime tasks use Date and Completed; routines use Recurrence and
// CompletedDates. Fields of the other kind are ignored.
type Task struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	TimeOfDay   calendar.Clock `json:"time_of_day"`
	Kind        Kind           `json:"kind"`

	Date      calendar.Date `json:"date,omitempty"`
	Completed bool          `json:"completed,omitempty"`

	Recurrence     *recurrence.Pattern `json:"recurrence,omitempty"`
	CompletedDates calendar.DateSet    `json:"completed_dates,omitempty"`

	Notification *Notification `json:"notification,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a fresh random task identifier.
func NewID() string { return uuid.NewString() }

func (t Task) IsRoutine() bool { return t.Kind == Routine }

// NotifyEnabled reports whether reminders are switched on for t.
func (t Task) NotifyEnabled() bool { return t.Notification != nil && t.Notification.Enabled }

// Advance is the reminder lead time of t.
func (t Task) Advance() time.Duration {
	if t.Notification == nil {
		return DefaultAdvance
	}
	return t.Notification.Advance()
}

// Clone returns a deep copy; the sets and pointers of the result can be
// mutated without affecting t.
func (t Task) Clone() Task {
	out := t
	if t.Recurrence != nil {
		p := *t.Recurrence
		if p.Excluded != nil {
			p.Excluded = p.Excluded.Clone()
		}
		out.Recurrence = &p
	}
	if t.CompletedDates != nil {
		out.CompletedDates = t.CompletedDates.Clone()
	}
	if t.Notification != nil {
		n := *t.Notification
		out.Notification = &n
	}
	return out
}

// IsScheduledOn reports whether t is due on d. One-time tasks are due on
// their date only.
func IsScheduledOn(t Task, d calendar.Date) bool {
	switch t.Kind {
	case OneTime:
		return !t.Date.IsZero() && t.Date == d
	case Routine:
		if t.Recurrence == nil {
			return false
		}
		return recurrence.IsScheduledOn(*t.Recurrence, d)
	}
	return false
}

// Validate checks a record before it is stored.
func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id required", ErrInvalid)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	switch t.Kind {
	case OneTime:
		if t.Date.IsZero() {
			return fmt.Errorf("%w: one-time task needs a date", ErrInvalid)
		}
	case Routine:
		if t.Recurrence == nil {
			return fmt.Errorf("%w: routine needs a recurrence", ErrInvalid)
		}
		if err := t.Recurrence.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, t.Kind)
	}
	if n := t.Notification; n != nil {
		if n.AdvanceAmount < 0 {
			return fmt.Errorf("%w: advance must be >= 0", ErrInvalid)
		}
		switch n.AdvanceUnit {
		case "", Minutes, Hours:
		default:
			return fmt.Errorf("%w: unknown advance unit %q", ErrInvalid, n.AdvanceUnit)
		}
	}
	return nil
}
