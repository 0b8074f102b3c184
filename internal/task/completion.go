package task

import "routined/internal/calendar"

// IsCompletedOn reports whether t is done for d. One-time tasks ignore d.
func IsCompletedOn(t Task, d calendar.Date) bool {
	if t.Kind == OneTime {
		return t.Completed
	}
	return t.CompletedDates.Has(d)
}

// ToggleCompletion returns a copy of t with d's completion flipped. t is
// left untouched.
func ToggleCompletion(t Task, d calendar.Date) Task {
	out := t.Clone()
	if out.Kind == OneTime {
		out.Completed = !out.Completed
		return out
	}
	if d.IsZero() {
		return out
	}
	if out.CompletedDates == nil {
		out.CompletedDates = calendar.NewDateSet()
	}
	if out.CompletedDates.Has(d) {
		out.CompletedDates.Remove(d)
	} else {
		out.CompletedDates.Add(d)
	}
	return out
}

// ExcludeOccurrence returns a copy of t with d removed from the routine's
// occurrence set. One-time tasks are returned unchanged.
func ExcludeOccurrence(t Task, d calendar.Date) Task {
	out := t.Clone()
	if out.Kind != Routine || out.Recurrence == nil || d.IsZero() {
		return out
	}
	if out.Recurrence.Excluded == nil {
		out.Recurrence.Excluded = calendar.NewDateSet()
	}
	out.Recurrence.Excluded.Add(d)
	return out
}
