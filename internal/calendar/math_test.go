package calendar

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWeekdayMatchesTimePackage(t *testing.T) {
	t.Parallel()
	start := time.Date(1999, time.December, 25, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3000; i++ {
		tt := start.AddDate(0, 0, i)
		d := Of(tt)
		if d.Weekday() != tt.Weekday() {
			t.Fatalf("%s: Weekday = %v, want %v", d, d.Weekday(), tt.Weekday())
		}
		if got := d.AddDays(1); got != Of(tt.AddDate(0, 0, 1)) {
			t.Fatalf("%s.AddDays(1) = %s", d, got)
		}
	}
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-01-15", 13, "2025-02-15"},
		{"2024-12-31", 2, "2025-02-28"},
		{"2024-05-31", 1, "2024-06-30"},
		{"2024-01-10", -12, "2023-01-10"},
	}
	for _, tt := range tests {
		got := MustParse(tt.in).AddMonths(tt.n)
		if got.String() != tt.want {
			t.Fatalf("%s.AddMonths(%d) = %s, want %s", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestDifferences(t *testing.T) {
	t.Parallel()
	a := MustParse("2024-01-31")
	b := MustParse("2024-03-01")
	if got := DaysBetween(a, b); got != 30 {
		t.Fatalf("DaysBetween = %d, want 30", got)
	}
	if got := DaysBetween(b, a); got != -30 {
		t.Fatalf("DaysBetween reversed = %d, want -30", got)
	}
	if got := MonthsBetween(a, b); got != 2 {
		t.Fatalf("MonthsBetween = %d, want 2", got)
	}
	if got := MonthsBetween(MustParse("2023-11-30"), MustParse("2024-01-01")); got != 2 {
		t.Fatalf("MonthsBetween across year = %d, want 2", got)
	}
}

func TestIsLastDayOfMonth(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"2024-02-29", "2023-02-28", "2024-04-30", "2024-12-31"} {
		if !MustParse(s).IsLastDayOfMonth() {
			t.Fatalf("%s should be last day of month", s)
		}
	}
	for _, s := range []string{"2024-02-28", "2024-04-29", "2024-01-30"} {
		if MustParse(s).IsLastDayOfMonth() {
			t.Fatalf("%s should not be last day of month", s)
		}
	}
}

func TestDateJSON(t *testing.T) {
	t.Parallel()
	type rec struct {
		D Date  `json:"d"`
		C Clock `json:"c"`
	}
	in := rec{D: MustParse("2024-03-04"), C: NewClock(7, 5)}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2024-03-04","c":"07:05"}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out rec
	if err := json.Unmarshal([]byte(`{"d":"","c":""}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.D.IsZero() || out.C.IsSet() {
		t.Fatalf("expected unset values, got %+v", out)
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	c, err := ParseClock("23:15")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if c.Hour() != 23 || c.Minute() != 15 {
		t.Fatalf("unexpected clock %s", c)
	}
	if _, err := ParseClock("24:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
	if !NewClock(0, 0).IsSet() {
		t.Fatal("midnight must be a set clock")
	}
}
