package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"routined/internal/app"
	"routined/internal/calendar"
	"routined/internal/counter"
	"routined/internal/recurrence"
	"routined/internal/task"
)

var (
	bold  = color.New(color.Bold)
	faint = color.New(color.Faint)
	green = color.New(color.FgGreen)
	idCol = color.New(color.FgHiYellow, color.Faint)
)

// shortID is the prefix shown in listings; commands accept it back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	return tbl
}

func check(done bool) string {
	if done {
		return green.Sprint("✔")
	}
	return "·"
}

func clockOrDash(c calendar.Clock) string {
	if !c.IsSet() {
		return faint.Sprint("--:--")
	}
	return c.String()
}

func printAgenda(w io.Writer, title string, items []app.AgendaItem) {
	_, _ = bold.Fprintln(w, title)
	if len(items) == 0 {
		_, _ = faint.Fprintln(w, "  nothing due")
		return
	}
	tbl := newTable()
	for _, it := range items {
		tbl.AddRow(check(it.Done), clockOrDash(it.Task.TimeOfDay), it.Task.Title, reminderMark(it.Task), idCol.Sprint(shortID(it.Task.ID)))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func printUpcoming(w io.Writer, items []app.AgendaItem, now time.Time) {
	if len(items) == 0 {
		_, _ = faint.Fprintln(w, "nothing upcoming")
		return
	}
	tbl := newTable()
	tbl.AddRow(bold.Sprint("WHEN"), bold.Sprint("IN"), bold.Sprint("TASK"), bold.Sprint("ID"))
	for _, it := range items {
		when := it.Date.String()
		if it.Task.TimeOfDay.IsSet() {
			when += " " + it.Task.TimeOfDay.String()
		}
		tbl.AddRow(when, until(now, it.At), it.Task.Title, idCol.Sprint(shortID(it.Task.ID)))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func until(now, at time.Time) string {
	d := at.Sub(now)
	switch {
	case d < 0:
		return faint.Sprint("now")
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

func reminderMark(t task.Task) string {
	if !t.NotifyEnabled() {
		return ""
	}
	return faint.Sprintf("⏰ -%s", shortDuration(t.Advance()))
}

func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}

func printTasks(w io.Writer, tasks []task.Task) {
	if len(tasks) == 0 {
		_, _ = faint.Fprintln(w, "no tasks")
		return
	}
	tbl := newTable()
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("TIME"), bold.Sprint("TITLE"), bold.Sprint("SCHEDULE"), "")
	for _, t := range tasks {
		title := t.Title
		if t.Kind == task.OneTime && t.Completed {
			title = green.Sprint(title + " ✔")
		}
		tbl.AddRow(idCol.Sprint(shortID(t.ID)), clockOrDash(t.TimeOfDay), title, Schedule(t), reminderMark(t))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Schedule describes when a task occurs.
func Schedule(t task.Task) string {
	if t.Kind == task.OneTime {
		return t.Date.String()
	}
	if t.Recurrence == nil {
		return "?"
	}
	p := *t.Recurrence
	var b strings.Builder
	switch p.Kind {
	case recurrence.Weekly, "":
		fmt.Fprintf(&b, "weekly %s", p.Weekdays)
	case recurrence.Biweekly:
		fmt.Fprintf(&b, "every 2 weeks %s", p.Weekdays)
	case recurrence.Monthly:
		day := p.MonthDay
		if day == 0 {
			day = p.Start.Day()
		}
		fmt.Fprintf(&b, "monthly on day %d", day)
	case recurrence.Custom:
		unit := string(p.Unit)
		if unit == "" {
			unit = string(recurrence.Days)
		}
		if p.Interval == 1 {
			unit = strings.TrimSuffix(unit, "s")
		}
		fmt.Fprintf(&b, "every %d %s", p.Interval, unit)
	default:
		b.WriteString(string(p.Kind))
	}
	if !p.End.IsZero() {
		fmt.Fprintf(&b, " until %s", p.End)
	}
	if n := p.Excluded.Len(); n > 0 {
		fmt.Fprintf(&b, " (%d skipped)", n)
	}
	return b.String()
}

func printCounters(w io.Writer, cs []counter.Counter, today calendar.Date) {
	if len(cs) == 0 {
		_, _ = faint.Fprintln(w, "no counters")
		return
	}
	tbl := newTable()
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("NAME"), bold.Sprint("TYPE"), bold.Sprint("VALUE"), bold.Sprint("GOAL"), "")
	for _, c := range cs {
		goal := ""
		if c.Goal > 0 {
			goal = fmt.Sprint(c.Goal)
		}
		value := fmt.Sprint(c.Value)
		if c.GoalReached() {
			value = green.Sprint(value)
		}
		state := ""
		if !c.ActiveOn(today) {
			state = faint.Sprint("inactive")
		}
		tbl.AddRow(idCol.Sprint(shortID(c.ID)), c.Name, string(c.Type), value, goal, state)
	}
	tbl.RightAlign(3)
	_, _ = fmt.Fprintln(w, tbl)
}

func printHistory(w io.Writer, c counter.Counter, es []counter.Entry) {
	_, _ = bold.Fprintln(w, c.Name)
	if len(es) == 0 {
		_, _ = faint.Fprintln(w, "  no history yet")
		return
	}
	tbl := newTable()
	for _, e := range es {
		v := fmt.Sprint(e.Value)
		if c.Goal > 0 && e.Value >= c.Goal {
			v = green.Sprint(v)
		}
		tbl.AddRow(e.Date.String(), v)
	}
	tbl.RightAlign(1)
	_, _ = fmt.Fprintln(w, tbl)
}
