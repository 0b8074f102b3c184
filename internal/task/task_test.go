package task

import (
	"errors"
	"testing"
	"time"

	"routined/internal/calendar"
	"routined/internal/recurrence"
)

func routine() Task {
	return Task{
		ID:    "r1",
		Title: "stretch",
		Kind:  Routine,
		Recurrence: &recurrence.Pattern{
			Kind:     recurrence.Weekly,
			Weekdays: recurrence.NewWeekdaySet(time.Monday),
			Start:    calendar.MustParse("2024-01-01"),
		},
	}
}

func TestToggleCompletionRoundTrip(t *testing.T) {
	t.Parallel()
	day := calendar.MustParse("2024-01-08")
	orig := routine()

	once := ToggleCompletion(orig, day)
	if !IsCompletedOn(once, day) {
		t.Fatal("toggle should mark the date done")
	}
	if IsCompletedOn(orig, day) {
		t.Fatal("toggle must not mutate its input")
	}
	twice := ToggleCompletion(once, day)
	if IsCompletedOn(twice, day) != IsCompletedOn(orig, day) {
		t.Fatal("double toggle must restore membership")
	}
	if !IsCompletedOn(once, day) {
		t.Fatal("second toggle must not mutate the first result")
	}
}

func TestOneTimeCompletionIgnoresDate(t *testing.T) {
	t.Parallel()
	tk := Task{ID: "o1", Title: "dentist", Kind: OneTime, Date: calendar.MustParse("2024-05-02")}
	done := ToggleCompletion(tk, calendar.MustParse("1999-01-01"))
	if !done.Completed || !IsCompletedOn(done, calendar.MustParse("2030-12-31")) {
		t.Fatal("one-time completion must be date independent")
	}
	if IsCompletedOn(ToggleCompletion(done, calendar.Date{}), calendar.Date{}) {
		t.Fatal("toggle should flip back")
	}
}

func TestExcludeOccurrence(t *testing.T) {
	t.Parallel()
	day := calendar.MustParse("2024-03-04")
	orig := routine()
	if !IsScheduledOn(orig, day) {
		t.Fatal("precondition: monday scheduled")
	}
	ex := ExcludeOccurrence(orig, day)
	if IsScheduledOn(ex, day) {
		t.Fatal("excluded occurrence still scheduled")
	}
	if !IsScheduledOn(ex, day.AddDays(7)) {
		t.Fatal("next occurrence must survive")
	}
	if !IsScheduledOn(orig, day) {
		t.Fatal("ExcludeOccurrence mutated its input")
	}

	one := Task{ID: "o", Title: "x", Kind: OneTime, Date: day}
	if got := ExcludeOccurrence(one, day); !IsScheduledOn(got, day) {
		t.Fatal("one-time tasks are unaffected")
	}
}

func TestNotificationAdvance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n    *Notification
		want time.Duration
	}{
		{nil, 10 * time.Minute},
		{&Notification{Enabled: true}, 10 * time.Minute},
		{&Notification{Enabled: true, AdvanceAmount: 1, AdvanceUnit: Hours}, time.Hour},
		{&Notification{Enabled: true, AdvanceAmount: 45, AdvanceUnit: Minutes}, 45 * time.Minute},
		{&Notification{Enabled: true, AdvanceAmount: 5}, 5 * time.Minute},
	}
	for _, tt := range tests {
		tk := Task{Notification: tt.n}
		if got := tk.Advance(); got != tt.want {
			t.Fatalf("Advance(%+v) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	good := routine()
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	bad := []Task{
		{Title: "no id", Kind: OneTime, Date: calendar.MustParse("2024-01-01")},
		{ID: "x", Kind: OneTime, Date: calendar.MustParse("2024-01-01")},
		{ID: "x", Title: "no date", Kind: OneTime},
		{ID: "x", Title: "no rec", Kind: Routine},
		{ID: "x", Title: "bad rec", Kind: Routine, Recurrence: &recurrence.Pattern{Kind: recurrence.Weekly}},
		{ID: "x", Title: "kind", Kind: "weird"},
		{ID: "x", Title: "unit", Kind: OneTime, Date: calendar.MustParse("2024-01-01"), Notification: &Notification{AdvanceUnit: "days"}},
	}
	for _, tk := range bad {
		if err := tk.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("Validate(%q) = %v, want ErrInvalid", tk.Title, err)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	a := routine()
	a.CompletedDates = calendar.NewDateSet(calendar.MustParse("2024-01-01"))
	a.Notification = &Notification{Enabled: true}
	b := a.Clone()
	b.CompletedDates.Add(calendar.MustParse("2024-01-08"))
	b.Recurrence.Weekdays = 0
	b.Notification.Enabled = false
	if a.CompletedDates.Len() != 1 || a.Recurrence.Weekdays == 0 || !a.Notification.Enabled {
		t.Fatal("Clone shares state with the original")
	}
}
