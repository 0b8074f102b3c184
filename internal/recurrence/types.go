package recurrence

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"routined/internal/calendar"
)

// Kind is the recurrence family.
type Kind string

const (
	Weekly   Kind = "weekly"
	Biweekly Kind = "biweekly"
	Monthly  Kind = "monthly"
	Custom   Kind = "custom"
)

// Unit is the interval unit of a Custom pattern.
type Unit string

const (
	Days   Unit = "days"
	Weeks  Unit = "weeks"
	Months Unit = "months"
)

// Pattern is the immutable recurrence definition of a routine.
//
// Optional fields use their zero value for "absent": MonthDay 0 derives the
// day from Start, a zero End means open-ended.
type Pattern struct {
	Kind     Kind       `json:"kind"`
	Weekdays WeekdaySet `json:"weekdays,omitempty"`
	MonthDay int        `json:"month_day,omitempty"`
	Interval int        `json:"interval,omitempty"`
	Unit     Unit       `json:"unit,omitempty"`

	Start    calendar.Date    `json:"start_date"`
	End      calendar.Date    `json:"end_date,omitempty"`
	Excluded calendar.DateSet `json:"excluded_dates,omitempty"`
}

// kind returns the effective kind; an empty kind behaves as Weekly.
func (p Pattern) kind() Kind {
	if p.Kind == "" {
		return Weekly
	}
	return Kind(strings.ToLower(string(p.Kind)))
}

// unit returns the effective custom unit; empty defaults to Days.
func (p Pattern) unit() Unit {
	if p.Unit == "" {
		return Days
	}
	return Unit(strings.ToLower(string(p.Unit)))
}

// inBounds reports whether d lies within [Start, End] and is not excluded.
func (p Pattern) inBounds(d calendar.Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && d.After(p.End) {
		return false
	}
	return !p.Excluded.Has(d)
}

// Validate reports malformed definitions. Evaluation never requires a
// valid pattern (an invalid one simply has no occurrences); Validate exists
// for callers creating new records.
func (p Pattern) Validate() error {
	switch p.kind() {
	case Weekly, Biweekly:
		if p.Weekdays.Len() == 0 {
			return fmt.Errorf("%s pattern needs at least one weekday", p.kind())
		}
		if p.kind() == Biweekly && p.Start.IsZero() {
			return fmt.Errorf("biweekly pattern needs a start date")
		}
	case Monthly:
		if p.MonthDay == 0 && p.Start.IsZero() {
			return fmt.Errorf("monthly pattern needs a month day or a start date")
		}
	case Custom:
		if p.Interval <= 0 {
			return fmt.Errorf("custom pattern interval must be > 0")
		}
		if p.Start.IsZero() {
			return fmt.Errorf("custom pattern needs a start date")
		}
		switch p.unit() {
		case Days, Weeks, Months:
		default:
			return fmt.Errorf("unknown custom unit %q", p.Unit)
		}
	default:
		return fmt.Errorf("unknown recurrence kind %q", p.Kind)
	}
	if p.MonthDay < 0 || p.MonthDay > 31 {
		return fmt.Errorf("month day must be within 1..31")
	}
	if !p.End.IsZero() && !p.Start.IsZero() && p.End.Before(p.Start) {
		return fmt.Errorf("end date %s is before start date %s", p.End, p.Start)
	}
	return nil
}

// WeekdaySet is a set of weekdays encoded as ["mon","tue",...].
type WeekdaySet uint8

func NewWeekdaySet(ws ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, w := range ws {
		s = s.With(w)
	}
	return s
}

func (s WeekdaySet) Has(w time.Weekday) bool { return s&(1<<uint(w)) != 0 }

func (s WeekdaySet) With(w time.Weekday) WeekdaySet {
	if w < time.Sunday || w > time.Saturday {
		return s
	}
	return s | 1<<uint(w)
}

func (s WeekdaySet) Len() int {
	n := 0
	for w := time.Sunday; w <= time.Saturday; w++ {
		if s.Has(w) {
			n++
		}
	}
	return n
}

var weekdayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// ParseWeekday accepts short ("mon") and long ("monday") English names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, n := range weekdayNames {
			if strings.HasPrefix(s, n) && strings.HasPrefix(strings.ToLower(time.Weekday(i).String()), s) {
				return time.Weekday(i), nil
			}
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (s WeekdaySet) Names() []string {
	out := make([]string, 0, 7)
	// Monday first, like the calendar views.
	for _, w := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		if s.Has(w) {
			out = append(out, weekdayNames[w])
		}
	}
	return out
}

func (s WeekdaySet) String() string { return strings.Join(s.Names(), ",") }

func (s WeekdaySet) MarshalJSON() ([]byte, error) { return json.Marshal(s.Names()) }

func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out WeekdaySet
	for _, n := range names {
		w, err := ParseWeekday(n)
		if err != nil {
			return err
		}
		out = out.With(w)
	}
	*s = out
	return nil
}

// ParseWeekdays parses a comma separated weekday list.
func ParseWeekdays(raw string) (WeekdaySet, error) {
	var out WeekdaySet
	for _, p := range strings.Split(raw, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		w, err := ParseWeekday(p)
		if err != nil {
			return 0, err
		}
		out = out.With(w)
	}
	return out, nil
}
