package recurrence

import (
	"time"

	"routined/internal/calendar"
)

// DefaultSearchBudget bounds how many candidate dates NextOccurrenceAfter
// inspects before giving up. Each rejected candidate (excluded date, or an
// instant not after the reference) costs one unit.
const DefaultSearchBudget = 512

// IsScheduledOn reports whether d is an occurrence of p.
//
// It is total: unknown kinds, empty weekday sets and non-positive intervals
// simply never match.
func IsScheduledOn(p Pattern, d calendar.Date) bool {
	if d.IsZero() || !p.inBounds(d) {
		return false
	}
	r, ok := ruleFor(p)
	if !ok {
		return false
	}
	return r.match(p, d)
}

// NextOccurrenceAfter is Evaluator{}.NextAfter.
func NextOccurrenceAfter(p Pattern, ref time.Time, at calendar.Clock) (time.Time, bool) {
	return Evaluator{}.NextAfter(p, ref, at)
}

// Evaluator carries the search budget. The zero value uses
// DefaultSearchBudget.
type Evaluator struct {
	Budget int
}

func (e Evaluator) budget() int {
	if e.Budget <= 0 {
		return DefaultSearchBudget
	}
	return e.Budget
}

// NextAfter returns the earliest occurrence of p whose instant (date at
// clock `at`, in ref's location) is strictly after ref. An unset clock
// means midnight.
//
// ok=false covers both an ended pattern and an unsatisfiable one.
func (e Evaluator) NextAfter(p Pattern, ref time.Time, at calendar.Clock) (time.Time, bool) {
	d, ok := e.nextDate(p, ref, at)
	if !ok {
		return time.Time{}, false
	}
	return d.At(at, ref.Location()), true
}

// NextDateAfter is NextAfter returning the occurrence date.
func (e Evaluator) NextDateAfter(p Pattern, ref time.Time, at calendar.Clock) (calendar.Date, bool) {
	return e.nextDate(p, ref, at)
}

func (e Evaluator) nextDate(p Pattern, ref time.Time, at calendar.Clock) (calendar.Date, bool) {
	r, ok := ruleFor(p)
	if !ok {
		return calendar.Date{}, false
	}
	loc := ref.Location()
	from := calendar.Of(ref)
	if !p.Start.IsZero() && from.Before(p.Start) {
		from = p.Start
	}
	for i := 0; i < e.budget(); i++ {
		if !p.End.IsZero() && from.After(p.End) {
			return calendar.Date{}, false
		}
		cand, ok := r.first(p, from)
		if !ok {
			return calendar.Date{}, false
		}
		if !p.End.IsZero() && cand.After(p.End) {
			return calendar.Date{}, false
		}
		if p.Excluded.Has(cand) || !cand.At(at, loc).After(ref) {
			from = cand.AddDays(1)
			continue
		}
		return cand, true
	}
	return calendar.Date{}, false
}

// Occurrences lists the occurrence dates of p in [from, to], inclusive.
// At most limit dates are returned; limit <= 0 means no cap beyond the
// range itself.
func Occurrences(p Pattern, from, to calendar.Date, limit int) []calendar.Date {
	r, ok := ruleFor(p)
	if !ok || from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}
	if !p.Start.IsZero() && from.Before(p.Start) {
		from = p.Start
	}
	if !p.End.IsZero() && to.After(p.End) {
		to = p.End
	}
	var out []calendar.Date
	for !from.After(to) {
		cand, ok := r.first(p, from)
		if !ok || cand.After(to) {
			break
		}
		if !p.Excluded.Has(cand) {
			out = append(out, cand)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		from = cand.AddDays(1)
	}
	return out
}
