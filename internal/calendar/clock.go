package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is an optional wall-clock time of day with minute precision.
// The zero value is "unset".
type Clock struct {
	min int // minutes since midnight + 1; 0 means unset
}

// NewClock returns hh:mm. Out of range values are clamped into a day.
func NewClock(hour, minute int) Clock {
	v := hour*60 + minute
	if v < 0 {
		v = 0
	}
	if v > 24*60-1 {
		v = 24*60 - 1
	}
	return Clock{min: v + 1}
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) IsSet() bool { return c.min > 0 }

func (c Clock) Hour() int {
	if !c.IsSet() {
		return 0
	}
	return (c.min - 1) / 60
}

func (c Clock) Minute() int {
	if !c.IsSet() {
		return 0
	}
	return (c.min - 1) % 60
}

// Less orders unset clocks after set ones.
func (c Clock) Less(o Clock) bool {
	switch {
	case !c.IsSet():
		return false
	case !o.IsSet():
		return true
	}
	return c.min < o.min
}

func (c Clock) String() string {
	if !c.IsSet() {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*c = Clock{}
		return nil
	}
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
