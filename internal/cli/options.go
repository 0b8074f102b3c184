package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"routined/internal/calendar"
	"routined/internal/recurrence"
	"routined/internal/task"
)

// ErrReported means the error was already written as JSON output.
var ErrReported = errors.New("error reported")

type OutputOptions struct {
	JSON bool
}

func AddOutputArg(cmd *cobra.Command, o *OutputOptions) {
	cmd.PersistentFlags().BoolVar(&o.JSON, "json", false, "Output as JSON.")
}

func (o *OutputOptions) HandleError(err error) error {
	if !o.JSON || err == nil {
		return err
	}
	b, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return err
	}
	_, _ = fmt.Fprintln(color.Output, string(b))
	return ErrReported
}

func (o *OutputOptions) printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ParseDay accepts YYYY-MM-DD, today, tomorrow, yesterday, a signed day
// offset (+3, -1) or a weekday name meaning its next occurrence from
// today on.
func ParseDay(s string, today calendar.Date) (calendar.Date, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDays(1), nil
	case "yesterday":
		return today.AddDays(-1), nil
	}
	if s[0] == '+' || s[0] == '-' {
		n, err := strconv.Atoi(s)
		if err != nil {
			return calendar.Date{}, fmt.Errorf("invalid day offset %q", s)
		}
		return today.AddDays(n), nil
	}
	if w, err := recurrence.ParseWeekday(s); err == nil {
		return today.AddDays((int(w) - int(today.Weekday()) + 7) % 7), nil
	}
	return calendar.Parse(s)
}

// DayOptions is the --on flag.
type DayOptions struct {
	On string
}

func AddDayArg(cmd *cobra.Command, o *DayOptions, usage string) {
	cmd.Flags().StringVar(&o.On, "on", "", usage+` Accepts 2024-03-04, today, tomorrow, +2 or a weekday.`)
}

func (o *DayOptions) Day(today calendar.Date) (calendar.Date, error) {
	return ParseDay(o.On, today)
}

// TaskOptions are the flags of "task add".
type TaskOptions struct {
	Description string
	Date        string
	At          string

	Every    string
	Days     string
	MonthDay int
	Interval int
	Unit     string
	Start    string
	End      string

	Notify  bool
	Advance string
}

func AddTaskArgs(cmd *cobra.Command, o *TaskOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.Description, "description", "d", "", "Longer description.")
	f.StringVar(&o.Date, "date", "", "Day of a one-time task (default today).")
	f.StringVar(&o.At, "at", "", "Time of day, HH:MM. Needed for reminders.")
	f.StringVar(&o.Every, "every", "", "Make a routine: weekly, biweekly, monthly or custom.")
	f.StringVar(&o.Days, "days", "", "Weekdays of a weekly/biweekly routine, e.g. mon,wed,fri.")
	f.IntVar(&o.MonthDay, "day", 0, "Day of month of a monthly routine (default: the start day).")
	f.IntVar(&o.Interval, "interval", 0, "Interval of a custom routine.")
	f.StringVar(&o.Unit, "unit", "days", "Unit of a custom routine: days, weeks or months.")
	f.StringVar(&o.Start, "start", "", "First day of a routine (default today).")
	f.StringVar(&o.End, "end", "", "Last day of a routine.")
	f.BoolVarP(&o.Notify, "notify", "n", false, "Send a reminder before the task.")
	f.StringVar(&o.Advance, "advance", "", "Reminder lead time, e.g. 15m or 2h (default 10m).")
}

// Task builds the record described by the flags.
func (o *TaskOptions) Task(title string, today calendar.Date) (task.Task, error) {
	t := task.Task{Title: strings.TrimSpace(title), Description: strings.TrimSpace(o.Description)}
	if strings.TrimSpace(o.At) != "" {
		c, err := calendar.ParseClock(o.At)
		if err != nil {
			return task.Task{}, err
		}
		t.TimeOfDay = c
	}
	if o.Notify || o.Advance != "" {
		n, err := notification(o.Advance)
		if err != nil {
			return task.Task{}, err
		}
		t.Notification = &n
	}

	if o.Every == "" {
		d, err := ParseDay(o.Date, today)
		if err != nil {
			return task.Task{}, err
		}
		t.Kind, t.Date = task.OneTime, d
		return t, nil
	}

	p, err := o.pattern(today)
	if err != nil {
		return task.Task{}, err
	}
	t.Kind, t.Recurrence = task.Routine, &p
	return t, nil
}

func (o *TaskOptions) pattern(today calendar.Date) (recurrence.Pattern, error) {
	p := recurrence.Pattern{Kind: recurrence.Kind(strings.ToLower(strings.TrimSpace(o.Every)))}
	var err error
	if p.Start, err = ParseDay(o.Start, today); err != nil {
		return p, fmt.Errorf("--start: %w", err)
	}
	if o.End != "" {
		if p.End, err = ParseDay(o.End, today); err != nil {
			return p, fmt.Errorf("--end: %w", err)
		}
	}
	switch p.Kind {
	case recurrence.Weekly, recurrence.Biweekly:
		if o.Days == "" {
			p.Weekdays = recurrence.NewWeekdaySet(p.Start.Weekday())
		} else if p.Weekdays, err = recurrence.ParseWeekdays(o.Days); err != nil {
			return p, fmt.Errorf("--days: %w", err)
		}
	case recurrence.Monthly:
		p.MonthDay = o.MonthDay
	case recurrence.Custom:
		p.Interval = o.Interval
		p.Unit = recurrence.Unit(strings.ToLower(strings.TrimSpace(o.Unit)))
	default:
		return p, fmt.Errorf("--every: unknown kind %q", o.Every)
	}
	return p, p.Validate()
}

// notification converts a lead time to the stored amount/unit pair; whole
// hours are kept as hours.
func notification(raw string) (task.Notification, error) {
	n := task.Notification{Enabled: true}
	if strings.TrimSpace(raw) == "" {
		return n, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return n, fmt.Errorf("--advance: %w", err)
	}
	if d <= 0 || d%time.Minute != 0 {
		return n, fmt.Errorf("--advance must be a positive whole number of minutes, got %s", raw)
	}
	if d%time.Hour == 0 {
		n.AdvanceAmount, n.AdvanceUnit = int(d/time.Hour), task.Hours
	} else {
		n.AdvanceAmount, n.AdvanceUnit = int(d/time.Minute), task.Minutes
	}
	return n, nil
}
