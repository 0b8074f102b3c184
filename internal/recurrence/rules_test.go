package recurrence

import (
	"encoding/json"
	"testing"
	"time"

	"routined/internal/calendar"
)

var d = calendar.MustParse

func TestWeeklyMembership(t *testing.T) {
	t.Parallel()
	p := Pattern{
		Kind:     Weekly,
		Weekdays: NewWeekdaySet(time.Monday, time.Thursday),
		Start:    d("2024-01-03"),
		End:      d("2024-06-30"),
		Excluded: calendar.NewDateSet(d("2024-03-04")),
	}
	day := d("2023-12-01")
	for i := 0; i < 300; i++ {
		want := (day.Weekday() == time.Monday || day.Weekday() == time.Thursday) &&
			!day.Before(p.Start) && !day.After(p.End) && day != d("2024-03-04")
		if got := IsScheduledOn(p, day); got != want {
			t.Fatalf("IsScheduledOn(%s) = %v, want %v", day, got, want)
		}
		day = day.AddDays(1)
	}
}

func TestBiweeklyParity(t *testing.T) {
	t.Parallel()
	p := Pattern{Kind: Biweekly, Weekdays: NewWeekdaySet(time.Monday), Start: d("2024-01-01")}
	for _, s := range []string{"2024-01-01", "2024-01-15", "2024-01-29"} {
		if !IsScheduledOn(p, d(s)) {
			t.Fatalf("%s should be scheduled", s)
		}
	}
	for _, s := range []string{"2024-01-08", "2024-01-22", "2023-12-25"} {
		if IsScheduledOn(p, d(s)) {
			t.Fatalf("%s should not be scheduled", s)
		}
	}
}

func TestMonthlyShortMonthClamp(t *testing.T) {
	t.Parallel()
	p := Pattern{Kind: Monthly, MonthDay: 31, Start: d("2024-01-01")}
	tests := []struct {
		date string
		want bool
	}{
		{"2024-02-29", true},
		{"2024-02-15", false},
		{"2024-04-30", true},
		{"2024-05-31", true},
		{"2024-05-30", false},
	}
	for _, tt := range tests {
		if got := IsScheduledOn(p, d(tt.date)); got != tt.want {
			t.Fatalf("IsScheduledOn(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}

	// Day derived from the start date.
	derived := Pattern{Kind: Monthly, Start: d("2024-01-12")}
	if !IsScheduledOn(derived, d("2024-03-12")) || IsScheduledOn(derived, d("2024-03-13")) {
		t.Fatal("monthly pattern without month day must follow the start date's day")
	}
}

func TestExclusion(t *testing.T) {
	t.Parallel()
	p := Pattern{
		Kind:     Weekly,
		Weekdays: NewWeekdaySet(time.Monday),
		Start:    d("2024-01-01"),
		Excluded: calendar.NewDateSet(d("2024-03-04")),
	}
	if IsScheduledOn(p, d("2024-03-04")) {
		t.Fatal("excluded date must not be scheduled")
	}
	if !IsScheduledOn(p, d("2024-03-11")) {
		t.Fatal("following monday must be scheduled")
	}
	ref := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got, ok := NextOccurrenceAfter(p, ref, calendar.NewClock(9, 0))
	want := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	if !ok || !got.Equal(want) {
		t.Fatalf("NextOccurrenceAfter = %v, %v; want %v", got, ok, want)
	}
}

func TestCustomMonthsEveryTwo(t *testing.T) {
	t.Parallel()
	p := Pattern{Kind: Custom, Unit: Months, Interval: 2, Start: d("2024-01-10")}
	for _, s := range []string{"2024-01-10", "2024-03-10", "2024-05-10"} {
		if !IsScheduledOn(p, d(s)) {
			t.Fatalf("%s should be scheduled", s)
		}
	}
	for _, s := range []string{"2024-02-10", "2024-04-10", "2024-03-11"} {
		if IsScheduledOn(p, d(s)) {
			t.Fatalf("%s should not be scheduled", s)
		}
	}
}

func TestCustomWeeksUsesStartWeekday(t *testing.T) {
	t.Parallel()
	// 2024-02-07 is a Wednesday; selected weekdays are ignored for this unit.
	p := Pattern{Kind: Custom, Unit: Weeks, Interval: 3, Start: d("2024-02-07"), Weekdays: NewWeekdaySet(time.Friday)}
	if !IsScheduledOn(p, d("2024-02-28")) {
		t.Fatal("2024-02-28 should be scheduled")
	}
	if IsScheduledOn(p, d("2024-02-21")) || IsScheduledOn(p, d("2024-02-09")) {
		t.Fatal("off-cycle dates must not be scheduled")
	}
}

func TestUnsatisfiablePatterns(t *testing.T) {
	t.Parallel()
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		p    Pattern
	}{
		{"empty weekdays", Pattern{Kind: Weekly}},
		{"biweekly without start", Pattern{Kind: Biweekly, Weekdays: NewWeekdaySet(time.Monday)}},
		{"zero interval", Pattern{Kind: Custom, Unit: Days, Start: d("2024-01-01")}},
		{"negative interval", Pattern{Kind: Custom, Unit: Months, Interval: -1, Start: d("2024-01-01")}},
		{"unknown kind", Pattern{Kind: "yearly", Start: d("2024-01-01")}},
		{"unknown unit", Pattern{Kind: Custom, Unit: "years", Interval: 1, Start: d("2024-01-01")}},
		{"month day out of range", Pattern{Kind: Monthly, MonthDay: 40}},
		{"ended", Pattern{Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday), Start: d("2023-01-01"), End: d("2023-12-31")}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got, ok := NextOccurrenceAfter(tt.p, ref, calendar.NewClock(8, 0)); ok {
				t.Fatalf("NextOccurrenceAfter = %v, want none", got)
			}
		})
	}
}

func TestSearchBudgetBoundsExclusionRetries(t *testing.T) {
	t.Parallel()
	p := Pattern{Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday), Start: d("2024-01-01")}
	p.Excluded = calendar.NewDateSet()
	for day := d("2024-01-01"); day.Year() == 2024; day = day.AddDays(7) {
		p.Excluded.Add(day)
	}
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := (Evaluator{Budget: 10}).NextAfter(p, ref, calendar.NewClock(9, 0)); ok {
		t.Fatal("expected budget exhaustion")
	}
	got, ok := Evaluator{}.NextAfter(p, ref, calendar.NewClock(9, 0))
	if !ok || calendar.Of(got) != d("2025-01-06") {
		t.Fatalf("NextAfter = %v, %v; want 2025-01-06", got, ok)
	}
}

func TestNextOccurrenceIsStrictlyAfterReference(t *testing.T) {
	t.Parallel()
	p := Pattern{Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday)}
	at := calendar.NewClock(9, 0)

	before := time.Date(2024, 1, 1, 8, 59, 0, 0, time.UTC)
	got, ok := NextOccurrenceAfter(p, before, at)
	if !ok || !got.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("same day: got %v, %v", got, ok)
	}
	exact := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	got, ok = NextOccurrenceAfter(p, exact, at)
	if !ok || !got.Equal(time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("exact instant: got %v, %v", got, ok)
	}
}

func TestNextOccurrenceKeepsReferenceLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	p := Pattern{Kind: Custom, Unit: Days, Interval: 1, Start: d("2024-01-01")}
	ref := time.Date(2024, 5, 1, 23, 30, 0, 0, loc)
	got, ok := NextOccurrenceAfter(p, ref, calendar.NewClock(6, 15))
	if !ok || !got.Equal(time.Date(2024, 5, 2, 6, 15, 0, 0, loc)) {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestOccurrences(t *testing.T) {
	t.Parallel()
	p := Pattern{
		Kind:     Custom,
		Unit:     Days,
		Interval: 10,
		Start:    d("2024-01-01"),
		End:      d("2024-02-15"),
		Excluded: calendar.NewDateSet(d("2024-01-21")),
	}
	got := Occurrences(p, d("2023-12-01"), d("2024-12-31"), 0)
	want := []string{"2024-01-01", "2024-01-11", "2024-01-31", "2024-02-10"}
	if len(got) != len(want) {
		t.Fatalf("Occurrences = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("Occurrences[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if got := Occurrences(p, d("2024-01-01"), d("2024-12-31"), 2); len(got) != 2 {
		t.Fatalf("limit ignored: %v", got)
	}
}

// Every kind must agree with a day-by-day scan over IsScheduledOn.
func TestNextOccurrenceConsistentWithMembership(t *testing.T) {
	t.Parallel()
	patterns := map[string]Pattern{
		"weekly":           {Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday, time.Wednesday, time.Friday), Start: d("2024-01-03")},
		"weekly open":      {Weekdays: NewWeekdaySet(time.Sunday)},
		"biweekly":         {Kind: Biweekly, Weekdays: NewWeekdaySet(time.Tuesday, time.Thursday), Start: d("2024-01-01")},
		"biweekly sat":     {Kind: Biweekly, Weekdays: NewWeekdaySet(time.Saturday, time.Sunday), Start: d("2024-01-05")},
		"monthly 31":       {Kind: Monthly, MonthDay: 31, Start: d("2023-11-15")},
		"monthly 28":       {Kind: Monthly, MonthDay: 28, Start: d("2024-01-01")},
		"monthly derived":  {Kind: Monthly, Start: d("2024-01-30")},
		"monthly 5 ended":  {Kind: Monthly, MonthDay: 5, Start: d("2024-01-01"), End: d("2024-07-04")},
		"custom days":      {Kind: Custom, Unit: Days, Interval: 3, Start: d("2024-01-05"), End: d("2024-09-01"), Excluded: calendar.NewDateSet(d("2024-01-08"), d("2024-01-11"))},
		"custom days unit": {Kind: Custom, Interval: 4, Start: d("2024-02-01")},
		"custom weeks":     {Kind: Custom, Unit: Weeks, Interval: 3, Start: d("2024-02-07")},
		"custom months":    {Kind: Custom, Unit: Months, Interval: 2, Start: d("2024-01-31")},
		"custom months md": {Kind: Custom, Unit: Months, Interval: 5, MonthDay: 15, Start: d("2024-01-10")},
		"excluded mondays": {Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday), Excluded: calendar.NewDateSet(d("2024-03-04"), d("2024-03-11"))},
	}
	at := calendar.NewClock(9, 30)
	const horizon = 800
	for name, p := range patterns {
		name, p := name, p
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			for day := d("2023-12-20"); day.Before(d("2024-12-31")); day = day.AddDays(1) {
				for _, hm := range [][2]int{{0, 0}, {9, 30}, {21, 0}} {
					ref := time.Date(day.Year(), day.Month(), day.Day(), hm[0], hm[1], 0, 0, time.UTC)
					want, wantOK := scanNext(p, ref, at, horizon)
					got, ok := Evaluator{}.NextDateAfter(p, ref, at)
					if ok != wantOK || got != want {
						t.Fatalf("ref %v: NextDateAfter = %s,%v; scan = %s,%v", ref, got, ok, want, wantOK)
					}
					if ok && !IsScheduledOn(p, got) {
						t.Fatalf("ref %v: %s is not scheduled", ref, got)
					}
				}
			}
		})
	}
}

func scanNext(p Pattern, ref time.Time, at calendar.Clock, horizon int) (calendar.Date, bool) {
	day := calendar.Of(ref)
	for i := 0; i < horizon; i++ {
		if IsScheduledOn(p, day) && day.At(at, ref.Location()).After(ref) {
			return day, true
		}
		day = day.AddDays(1)
	}
	return calendar.Date{}, false
}

func TestPatternJSON(t *testing.T) {
	t.Parallel()
	in := Pattern{
		Kind:     Biweekly,
		Weekdays: NewWeekdaySet(time.Sunday, time.Monday),
		Start:    d("2024-01-01"),
		Excluded: calendar.NewDateSet(d("2024-02-01"), d("2024-01-15")),
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"kind":"biweekly","weekdays":["mon","sun"],"start_date":"2024-01-01","end_date":"","excluded_dates":["2024-01-15","2024-02-01"]}`
	if string(b) != want {
		t.Fatalf("json = %s, want %s", b, want)
	}
	var out Pattern
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Weekdays != in.Weekdays || out.Start != in.Start || out.Excluded.Len() != 2 || !out.End.IsZero() {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		p       Pattern
		wantErr bool
	}{
		{"weekly ok", Pattern{Kind: Weekly, Weekdays: NewWeekdaySet(time.Monday)}, false},
		{"weekly empty", Pattern{Kind: Weekly}, true},
		{"biweekly no start", Pattern{Kind: Biweekly, Weekdays: NewWeekdaySet(time.Monday)}, true},
		{"monthly ok", Pattern{Kind: Monthly, MonthDay: 3}, false},
		{"monthly nothing", Pattern{Kind: Monthly}, true},
		{"custom ok", Pattern{Kind: Custom, Interval: 2, Start: d("2024-01-01")}, false},
		{"custom bad unit", Pattern{Kind: Custom, Interval: 2, Unit: "years", Start: d("2024-01-01")}, true},
		{"end before start", Pattern{Kind: Custom, Interval: 1, Start: d("2024-02-01"), End: d("2024-01-01")}, true},
		{"unknown", Pattern{Kind: "hourly"}, true},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestParseWeekdays(t *testing.T) {
	t.Parallel()
	ws, err := ParseWeekdays("mon, Wednesday,fri")
	if err != nil {
		t.Fatalf("ParseWeekdays: %v", err)
	}
	if ws != NewWeekdaySet(time.Monday, time.Wednesday, time.Friday) {
		t.Fatalf("unexpected set %s", ws)
	}
	if _, err := ParseWeekdays("mon,xyz"); err == nil {
		t.Fatal("expected error for unknown weekday")
	}
}
