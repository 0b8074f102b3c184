package app

import (
	"context"
	"sort"
	"strings"
	"time"

	"routined/internal/calendar"
	"routined/internal/recurrence"
	"routined/internal/task"
)

// AgendaItem is one task due on a date.
type AgendaItem struct {
	Task task.Task     `json:"task"`
	Date calendar.Date `json:"date"`
	Done bool          `json:"done"`
	// At is zero for tasks without a time of day.
	At time.Time `json:"at,omitempty"`
}

// DueOn lists the tasks scheduled on d, timed ones first in clock order,
// then by title.
func (a *App) DueOn(ctx context.Context, d calendar.Date) ([]AgendaItem, error) {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	loc := a.sched.Location()
	var out []AgendaItem
	for _, t := range tasks {
		if !task.IsScheduledOn(t, d) {
			continue
		}
		it := AgendaItem{Task: t, Date: d, Done: task.IsCompletedOn(t, d)}
		if t.TimeOfDay.IsSet() {
			it.At = d.At(t.TimeOfDay, loc)
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Task.TimeOfDay, out[j].Task.TimeOfDay
		if ci.Less(cj) || cj.Less(ci) {
			return ci.Less(cj)
		}
		return strings.ToLower(out[i].Task.Title) < strings.ToLower(out[j].Task.Title)
	})
	return out, nil
}

// Upcoming lists the next pending occurrence of every task after now,
// soonest first. Occurrences already marked done are skipped. limit <= 0
// means no limit.
func (a *App) Upcoming(ctx context.Context, limit int) ([]AgendaItem, error) {
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return nil, err
	}
	loc := a.sched.Location()
	now := a.now().In(loc)
	eval := recurrence.Evaluator{Budget: a.Config().Scheduler.MaxSearch}

	var out []AgendaItem
	for _, t := range tasks {
		if it, ok := nextPending(eval, t, now, loc); ok {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return strings.ToLower(out[i].Task.Title) < strings.ToLower(out[j].Task.Title)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// maxDoneSkips bounds how many completed occurrences are stepped over.
const maxDoneSkips = 64

func nextPending(eval recurrence.Evaluator, t task.Task, now time.Time, loc *time.Location) (AgendaItem, bool) {
	switch t.Kind {
	case task.OneTime:
		if t.Completed || t.Date.IsZero() {
			return AgendaItem{}, false
		}
		at := t.Date.At(t.TimeOfDay, loc)
		if !at.After(now) && t.Date != calendar.Of(now) {
			return AgendaItem{}, false
		}
		return AgendaItem{Task: t, Date: t.Date, At: at}, true
	case task.Routine:
		if t.Recurrence == nil {
			return AgendaItem{}, false
		}
		ref := now
		for i := 0; i < maxDoneSkips; i++ {
			d, ok := eval.NextDateAfter(*t.Recurrence, ref, t.TimeOfDay)
			if !ok {
				return AgendaItem{}, false
			}
			at := d.At(t.TimeOfDay, loc)
			if !task.IsCompletedOn(t, d) {
				return AgendaItem{Task: t, Date: d, At: at}, true
			}
			ref = at
		}
	}
	return AgendaItem{}, false
}
