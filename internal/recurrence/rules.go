package recurrence

import "routined/internal/calendar"

// rule is the per-kind arithmetic shared by the membership predicate and
// the forward search. Both ignore Start/End/Excluded bounds; those are
// applied once, by the callers in evaluator.go.
//
//   - match reports whether d belongs to the pattern's cycle.
//   - first returns the earliest d >= from for which match is true, or
//     ok=false when the pattern can never match. Callers guarantee
//     from >= Start when Start is set.
type rule struct {
	match func(p Pattern, d calendar.Date) bool
	first func(p Pattern, from calendar.Date) (calendar.Date, bool)
}

type ruleKey string

const (
	keyWeekly       ruleKey = "weekly"
	keyBiweekly     ruleKey = "biweekly"
	keyMonthly      ruleKey = "monthly"
	keyCustomDays   ruleKey = "custom/days"
	keyCustomWeeks  ruleKey = "custom/weeks"
	keyCustomMonths ruleKey = "custom/months"
)

// rules is the single source of truth for every recurrence family.
// Weekly and Biweekly are week cycles of 1 and 2, Custom/Weeks is a week
// cycle of Interval anchored on Start's weekday, Monthly is a month cycle
// of 1 and Custom/Months a month cycle of Interval.
var rules = map[ruleKey]rule{
	keyWeekly: {
		match: func(p Pattern, d calendar.Date) bool { return weekCycleMatch(p.Weekdays, p.Start, 1, d) },
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			return weekCycleFirst(p.Weekdays, p.Start, 1, from)
		},
	},
	keyBiweekly: {
		match: func(p Pattern, d calendar.Date) bool {
			return !p.Start.IsZero() && weekCycleMatch(p.Weekdays, p.Start, 2, d)
		},
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			if p.Start.IsZero() {
				return calendar.Date{}, false
			}
			return weekCycleFirst(p.Weekdays, p.Start, 2, from)
		},
	},
	keyMonthly: {
		match: func(p Pattern, d calendar.Date) bool { return monthCycleMatch(targetDay(p), p.Start, 1, d) },
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			return monthCycleFirst(targetDay(p), p.Start, 1, from)
		},
	},
	keyCustomDays: {
		match: func(p Pattern, d calendar.Date) bool {
			if p.Start.IsZero() || p.Interval <= 0 {
				return false
			}
			return calendar.FloorMod(calendar.DaysBetween(p.Start, d), p.Interval) == 0
		},
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			if p.Start.IsZero() || p.Interval <= 0 {
				return calendar.Date{}, false
			}
			return p.Start.AddDays(ceilMultiple(calendar.DaysBetween(p.Start, from), p.Interval)), true
		},
	},
	keyCustomWeeks: {
		match: func(p Pattern, d calendar.Date) bool {
			if p.Start.IsZero() || p.Interval <= 0 {
				return false
			}
			return weekCycleMatch(NewWeekdaySet(p.Start.Weekday()), p.Start, p.Interval, d)
		},
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			if p.Start.IsZero() || p.Interval <= 0 {
				return calendar.Date{}, false
			}
			return weekCycleFirst(NewWeekdaySet(p.Start.Weekday()), p.Start, p.Interval, from)
		},
	},
	keyCustomMonths: {
		match: func(p Pattern, d calendar.Date) bool {
			if p.Start.IsZero() || p.Interval <= 0 {
				return false
			}
			return monthCycleMatch(targetDay(p), p.Start, p.Interval, d)
		},
		first: func(p Pattern, from calendar.Date) (calendar.Date, bool) {
			if p.Start.IsZero() || p.Interval <= 0 {
				return calendar.Date{}, false
			}
			return monthCycleFirst(targetDay(p), p.Start, p.Interval, from)
		},
	},
}

// ruleFor resolves the rule for p. Unknown kinds/units have no rule.
func ruleFor(p Pattern) (rule, bool) {
	var key ruleKey
	switch p.kind() {
	case Weekly:
		key = keyWeekly
	case Biweekly:
		key = keyBiweekly
	case Monthly:
		key = keyMonthly
	case Custom:
		switch p.unit() {
		case Days:
			key = keyCustomDays
		case Weeks:
			key = keyCustomWeeks
		case Months:
			key = keyCustomMonths
		}
	}
	r, ok := rules[key]
	return r, ok
}

// ---- week cycles ----

// weekCycleMatch: weekday in ws and the week index since anchor is a
// multiple of n. Week indexes are floor(days/7) of the plain day count,
// not ISO week numbers. A zero anchor is only valid for n == 1.
func weekCycleMatch(ws WeekdaySet, anchor calendar.Date, n int, d calendar.Date) bool {
	if !ws.Has(d.Weekday()) {
		return false
	}
	if n == 1 {
		return true
	}
	if anchor.IsZero() {
		return false
	}
	week := calendar.FloorDiv(calendar.DaysBetween(anchor, d), 7)
	return calendar.FloorMod(week, n) == 0
}

func weekCycleFirst(ws WeekdaySet, anchor calendar.Date, n int, from calendar.Date) (calendar.Date, bool) {
	if ws == 0 || n <= 0 {
		return calendar.Date{}, false
	}
	if n == 1 {
		for i := 0; i < 7; i++ {
			if d := from.AddDays(i); ws.Has(d.Weekday()) {
				return d, true
			}
		}
		return calendar.Date{}, false
	}
	if anchor.IsZero() {
		return calendar.Date{}, false
	}
	week := calendar.FloorDiv(calendar.DaysBetween(anchor, from), 7)
	// An active week holds every weekday, so at most two active weeks are
	// ever inspected: the current (partial) one and the next full one.
	for i := 0; i < 2; i++ {
		if r := calendar.FloorMod(week, n); r != 0 {
			week += n - r
			if wkStart := anchor.AddDays(week * 7); wkStart.After(from) {
				from = wkStart
			}
		}
		wkEnd := anchor.AddDays(week*7 + 6)
		for d := from; !d.After(wkEnd); d = d.AddDays(1) {
			if ws.Has(d.Weekday()) {
				return d, true
			}
		}
		week++
		from = wkEnd.AddDays(1)
	}
	return calendar.Date{}, false
}

// ---- month cycles ----

// targetDay resolves the day-of-month a monthly pattern fires on: MonthDay,
// else Start's day. 0 means unresolvable.
func targetDay(p Pattern) int {
	if p.MonthDay != 0 {
		if p.MonthDay < 1 || p.MonthDay > 31 {
			return 0
		}
		return p.MonthDay
	}
	if p.Start.IsZero() {
		return 0
	}
	return p.Start.Day()
}

// dayMatches: d's day equals target, or target >= 28 and d is the last day
// of its month, so a "31st" still fires in 30-day months and February.
func dayMatches(target int, d calendar.Date) bool {
	if target <= 0 {
		return false
	}
	return d.Day() == target || (target >= 28 && d.IsLastDayOfMonth())
}

func monthCycleMatch(target int, anchor calendar.Date, n int, d calendar.Date) bool {
	if !dayMatches(target, d) {
		return false
	}
	if n == 1 {
		return true
	}
	if anchor.IsZero() {
		return false
	}
	return calendar.FloorMod(calendar.MonthsBetween(anchor, d), n) == 0
}

func monthCycleFirst(target int, anchor calendar.Date, n int, from calendar.Date) (calendar.Date, bool) {
	if target <= 0 || n <= 0 {
		return calendar.Date{}, false
	}
	if n > 1 && anchor.IsZero() {
		return calendar.Date{}, false
	}
	// Every active month holds a matching day (target <= 28 exists, and a
	// larger target falls back to the month's last day), so two active
	// months always suffice.
	for i := 0; i < 2; i++ {
		if n > 1 {
			if r := calendar.FloorMod(calendar.MonthsBetween(anchor, from), n); r != 0 {
				from = from.FirstOfMonth().AddMonths(n - r)
			}
		}
		if d, ok := firstInMonth(target, from); ok {
			return d, true
		}
		from = from.FirstOfMonth().AddMonths(1)
	}
	return calendar.Date{}, false
}

// firstInMonth returns the earliest day >= from, within from's month, that
// satisfies dayMatches.
func firstInMonth(target int, from calendar.Date) (calendar.Date, bool) {
	last := calendar.DaysIn(from.Year(), from.Month())
	best := 0
	if target <= last && target >= from.Day() {
		best = target
	}
	if target >= 28 && last >= from.Day() && (best == 0 || last < best) {
		best = last
	}
	if best == 0 {
		return calendar.Date{}, false
	}
	return calendar.New(from.Year(), from.Month(), best), true
}

func ceilMultiple(v, n int) int {
	if v <= 0 {
		return 0
	}
	return ((v + n - 1) / n) * n
}
