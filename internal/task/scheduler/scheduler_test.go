package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"routined/internal/calendar"
	"routined/internal/eventbus"
	"routined/internal/recurrence"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) live() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// AdvanceTo moves the clock forward, firing due timers in order.
func (c *fakeClock) AdvanceTo(to time.Time) {
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(to) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = to
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

type recorder struct {
	mu  sync.Mutex
	got []Reminder
}

func (r *recorder) handle(rem Reminder) {
	r.mu.Lock()
	r.got = append(r.got, rem)
	r.mu.Unlock()
}

func (r *recorder) all() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reminder(nil), r.got...)
}

func utc(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestService(t *testing.T, now string, opts ...Option) (*Service, *fakeClock, *recorder) {
	t.Helper()
	clk := &fakeClock{now: utc(now)}
	rec := &recorder{}
	base := []Option{WithClock(clk.Now), WithAfterFunc(clk.AfterFunc), WithHandler(rec.handle)}
	s := New(Config{Enabled: true, Timezone: "UTC"}, logx.Nop(), eventbus.New(), append(base, opts...)...)
	return s, clk, rec
}

func mondayRoutine(id string) task.Task {
	return task.Task{
		ID:        id,
		Title:     "standup " + id,
		Kind:      task.Routine,
		TimeOfDay: calendar.NewClock(9, 0),
		Recurrence: &recurrence.Pattern{
			Kind:     recurrence.Weekly,
			Weekdays: recurrence.NewWeekdaySet(time.Monday),
			Start:    calendar.MustParse("2024-01-01"),
		},
		Notification: &task.Notification{Enabled: true},
	}
}

func TestResyncArmsNextOccurrence(t *testing.T) {
	t.Parallel()
	s, clk, _ := newTestService(t, "2024-01-01 08:00")
	s.Resync([]task.Task{mondayRoutine("a")})

	p, ok := s.Pending("a")
	if !ok {
		t.Fatal("expected a pending reminder")
	}
	if p.Occurrence != calendar.MustParse("2024-01-01") || !p.FireAt.Equal(utc("2024-01-01 08:50")) {
		t.Fatalf("pending = %+v", p)
	}
	if n := len(clk.live()); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}
	if st, _ := s.State("a"); st != StateArmed {
		t.Fatalf("state = %s, want armed", st)
	}
}

func TestResyncIsIdempotent(t *testing.T) {
	t.Parallel()
	s, clk, _ := newTestService(t, "2024-01-03 12:00")
	tasks := []task.Task{mondayRoutine("a"), mondayRoutine("b")}
	s.Resync(tasks)
	first := s.Snapshot().Pending
	s.Resync(tasks)
	second := s.Snapshot().Pending

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("pending sizes %d/%d, want 2/2", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("pending[%d] drifted: %+v vs %+v", i, first[i], second[i])
		}
	}
	if n := len(clk.live()); n != 2 {
		t.Fatalf("live timers = %d, want 2", n)
	}
}

func TestFireEmitsAndReArms(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 08:00")
	s.Resync([]task.Task{mondayRoutine("a")})

	clk.AdvanceTo(utc("2024-01-01 08:55"))
	got := rec.all()
	if len(got) != 1 {
		t.Fatalf("reminders = %d, want 1", len(got))
	}
	if got[0].TaskID != "a" || got[0].Occurrence != calendar.MustParse("2024-01-01") || got[0].Advance != 10*time.Minute {
		t.Fatalf("reminder = %+v", got[0])
	}
	p, ok := s.Pending("a")
	if !ok || p.Occurrence != calendar.MustParse("2024-01-08") {
		t.Fatalf("re-armed pending = %+v, %v", p, ok)
	}
	if n := len(clk.live()); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}

	clk.AdvanceTo(utc("2024-01-22 10:00"))
	if n := len(rec.all()); n != 4 {
		t.Fatalf("reminders after three weeks = %d, want 4", n)
	}
}

func TestCompletedOccurrenceIsSuppressed(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 08:00")
	tk := task.ToggleCompletion(mondayRoutine("a"), calendar.MustParse("2024-01-01"))
	s.Resync([]task.Task{tk})

	clk.AdvanceTo(utc("2024-01-01 09:00"))
	if n := len(rec.all()); n != 0 {
		t.Fatalf("reminders = %d, want 0 (completed)", n)
	}
	p, ok := s.Pending("a")
	if !ok || p.Occurrence != calendar.MustParse("2024-01-08") {
		t.Fatalf("chain must continue after suppression: %+v, %v", p, ok)
	}
}

func TestPastFireInstantSkipsToNextOccurrence(t *testing.T) {
	t.Parallel()
	// 08:55 is inside the advance window of today's 09:00 occurrence.
	s, _, _ := newTestService(t, "2024-01-01 08:55")
	s.Resync([]task.Task{mondayRoutine("a")})
	p, ok := s.Pending("a")
	if !ok || p.Occurrence != calendar.MustParse("2024-01-08") {
		t.Fatalf("pending = %+v, %v", p, ok)
	}
}

func TestAdvanceUnits(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, "2024-01-01 00:00")
	tk := mondayRoutine("a")
	tk.Notification = &task.Notification{Enabled: true, AdvanceAmount: 2, AdvanceUnit: task.Hours}
	s.Resync([]task.Task{tk})
	p, _ := s.Pending("a")
	if !p.FireAt.Equal(utc("2024-01-01 07:00")) {
		t.Fatalf("fire at = %v, want 07:00", p.FireAt)
	}

	s2, _, _ := newTestService(t, "2024-01-01 00:00")
	s2.Apply(Config{Enabled: true, Timezone: "UTC", DefaultAdvance: 30 * time.Minute})
	s2.Resync([]task.Task{mondayRoutine("a")})
	p, _ = s2.Pending("a")
	if !p.FireAt.Equal(utc("2024-01-01 08:30")) {
		t.Fatalf("fire at with default advance = %v, want 08:30", p.FireAt)
	}
}

func TestOneTimeArmedThenExhausted(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-05-01 10:00")
	tk := task.Task{
		ID:           "o",
		Title:        "dentist",
		Kind:         task.OneTime,
		Date:         calendar.MustParse("2024-05-02"),
		TimeOfDay:    calendar.NewClock(14, 30),
		Notification: &task.Notification{Enabled: true, AdvanceAmount: 1, AdvanceUnit: task.Hours},
	}
	s.Resync([]task.Task{tk})
	if st, _ := s.State("o"); st != StateArmed {
		t.Fatalf("state = %s, want armed", st)
	}
	clk.AdvanceTo(utc("2024-05-03 00:00"))
	if n := len(rec.all()); n != 1 {
		t.Fatalf("reminders = %d, want 1", n)
	}
	if st, _ := s.State("o"); st != StateExhausted {
		t.Fatalf("state = %s, want exhausted", st)
	}
	if len(clk.live()) != 0 {
		t.Fatal("no timer may remain after a one-time reminder")
	}
}

func TestEndedRoutineExhausts(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 00:00")
	tk := mondayRoutine("a")
	tk.Recurrence.End = calendar.MustParse("2024-01-08")
	s.Resync([]task.Task{tk})
	clk.AdvanceTo(utc("2024-02-01 00:00"))
	if n := len(rec.all()); n != 2 {
		t.Fatalf("reminders = %d, want 2", n)
	}
	if st, _ := s.State("a"); st != StateExhausted {
		t.Fatalf("state = %s, want exhausted", st)
	}
}

func TestDisabledTasks(t *testing.T) {
	t.Parallel()
	noNotify := mondayRoutine("no-notify")
	noNotify.Notification = nil

	off := mondayRoutine("off")
	off.Notification = &task.Notification{Enabled: false}

	noTime := mondayRoutine("no-time")
	noTime.TimeOfDay = calendar.Clock{}

	empty := mondayRoutine("empty")
	empty.Recurrence.Weekdays = 0

	done := task.Task{ID: "done", Title: "x", Kind: task.OneTime, Completed: true,
		Date: calendar.MustParse("2024-02-01"), TimeOfDay: calendar.NewClock(9, 0),
		Notification: &task.Notification{Enabled: true}}

	past := done
	past.ID = "past"
	past.Completed = false
	past.Date = calendar.MustParse("2023-12-01")

	s, clk, _ := newTestService(t, "2024-01-01 00:00")
	s.Resync([]task.Task{noNotify, off, noTime, empty, done, past})
	for _, id := range []string{"no-notify", "off", "no-time", "empty", "done", "past"} {
		if st, _ := s.State(id); st != StateDisabled {
			t.Fatalf("%s: state = %s, want disabled", id, st)
		}
	}
	if len(clk.live()) != 0 {
		t.Fatal("disabled tasks must not hold timers")
	}
}

func TestSchedulerDisabledArmsNothing(t *testing.T) {
	t.Parallel()
	s, clk, _ := newTestService(t, "2024-01-01 00:00")
	s.Apply(Config{Enabled: false, Timezone: "UTC"})
	s.Resync([]task.Task{mondayRoutine("a")})
	if len(clk.live()) != 0 || len(s.Snapshot().Pending) != 0 {
		t.Fatal("disabled scheduler must not arm")
	}
	s.Apply(Config{Enabled: true, Timezone: "UTC"})
	if _, ok := s.Pending("a"); !ok {
		t.Fatal("enabling must re-derive reminders from the synced set")
	}
}

func TestCancelForLeavesOtherTasks(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 00:00")
	s.Resync([]task.Task{mondayRoutine("a"), mondayRoutine("b")})
	s.CancelFor("a")
	if _, ok := s.Pending("a"); ok {
		t.Fatal("a still pending")
	}
	if _, ok := s.Pending("b"); !ok {
		t.Fatal("b must stay pending")
	}
	clk.AdvanceTo(utc("2024-01-01 09:00"))
	got := rec.all()
	if len(got) != 1 || got[0].TaskID != "b" {
		t.Fatalf("reminders = %+v", got)
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	s, clk, _ := newTestService(t, "2024-01-01 00:00")
	s.Resync([]task.Task{mondayRoutine("a"), mondayRoutine("b")})
	s.CancelAll()
	if len(clk.live()) != 0 || len(s.Snapshot().Pending) != 0 {
		t.Fatal("CancelAll left timers behind")
	}
}

func TestStaleCallbackIsNoop(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 00:00")
	s.Resync([]task.Task{mondayRoutine("a")})
	stale := clk.live()[0]
	s.Resync([]task.Task{mondayRoutine("a")})

	// A timer that already lost the race still runs its callback.
	stale.f()
	if n := len(rec.all()); n != 0 {
		t.Fatalf("stale callback delivered %d reminders", n)
	}
	if n := len(clk.live()); n != 1 {
		t.Fatalf("live timers = %d, want 1", n)
	}
}

func TestReentrantCancelFromHandler(t *testing.T) {
	t.Parallel()
	var s *Service
	handler := func(r Reminder) { s.CancelFor(r.TaskID) }
	s, clk, _ := newTestService(t, "2024-01-01 00:00", WithHandler(handler))
	s.Resync([]task.Task{mondayRoutine("a")})
	clk.AdvanceTo(utc("2024-01-01 09:00"))
	if _, ok := s.Pending("a"); ok {
		t.Fatal("cancelled task re-armed after its in-flight callback")
	}
	if len(clk.live()) != 0 {
		t.Fatal("timers left after re-entrant cancel")
	}
}

func TestReentrantResyncFromHandler(t *testing.T) {
	t.Parallel()
	tasks := []task.Task{mondayRoutine("a")}
	var s *Service
	handler := func(Reminder) { s.Resync(tasks) }
	s, clk, _ := newTestService(t, "2024-01-01 00:00", WithHandler(handler))
	s.Resync(tasks)
	clk.AdvanceTo(utc("2024-01-01 09:00"))

	if n := len(clk.live()); n != 1 {
		t.Fatalf("live timers = %d, want exactly 1", n)
	}
	p, ok := s.Pending("a")
	if !ok || p.Occurrence != calendar.MustParse("2024-01-08") {
		t.Fatalf("pending = %+v, %v", p, ok)
	}
}

func TestFireReadsLatestTaskState(t *testing.T) {
	t.Parallel()
	s, clk, rec := newTestService(t, "2024-01-01 00:00")
	s.Resync([]task.Task{mondayRoutine("a")})

	// The task is deleted from the store; the app resyncs without it.
	s.Resync(nil)
	clk.AdvanceTo(utc("2024-01-02 00:00"))
	if n := len(rec.all()); n != 0 {
		t.Fatalf("deleted task fired %d reminders", n)
	}
}

func TestSnapshotOrderedByFireInstant(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, "2024-01-01 00:00")
	early := mondayRoutine("z")
	early.TimeOfDay = calendar.NewClock(6, 0)
	s.Resync([]task.Task{mondayRoutine("a"), early})
	snap := s.Snapshot()
	if len(snap.Pending) != 2 || snap.Pending[0].TaskID != "z" {
		t.Fatalf("snapshot order = %+v", snap.Pending)
	}
	if snap.States[StateArmed] != 2 || snap.Tasks != 2 {
		t.Fatalf("snapshot counts = %+v", snap)
	}
}

func TestAddCron(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, "2024-01-01 00:00")
	if err := s.AddCron("rollover", "not a spec", func() {}); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.AddCron("rollover", "@midnight", func() {}); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	if err := s.AddCron("rollover", "0 3 * * *", func() {}); err != nil {
		t.Fatalf("AddCron replace: %v", err)
	}
	jobs := s.Snapshot().Jobs
	if len(jobs) != 1 || jobs[0].Spec != "0 3 * * *" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if !s.RemoveCron("rollover") {
		t.Fatal("RemoveCron should report removal")
	}
}

func TestDisabledDuringCallbackReportsDisabled(t *testing.T) {
	t.Parallel()
	var s *Service
	// the window between Apply committing Enabled=false and its resync
	handler := func(Reminder) {
		s.mu.Lock()
		s.cfg.Enabled = false
		s.mu.Unlock()
	}
	s, clk, _ := newTestService(t, "2024-01-01 00:00", WithHandler(handler))
	s.Resync([]task.Task{mondayRoutine("a")})
	clk.AdvanceTo(utc("2024-01-01 09:00"))

	if st, _ := s.State("a"); st != StateDisabled {
		t.Fatalf("state = %v, want %v", st, StateDisabled)
	}
	if _, ok := s.Pending("a"); ok {
		t.Fatal("re-armed while disabled")
	}
}

func TestApplyTimezoneWhileJobRuns(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, "2024-01-01 00:00")

	running := make(chan struct{})
	jobDone := make(chan struct{})
	var once sync.Once
	err := s.AddCron("rollover", "@every 1s", func() {
		once.Do(func() {
			close(running)
			time.Sleep(200 * time.Millisecond)
			_ = s.Location() // jobs read the zone, as the counter rollover does
			close(jobDone)
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case <-running:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	applied := make(chan struct{})
	go func() {
		s.Apply(Config{Enabled: true, Timezone: "Europe/Rome"})
		close(applied)
	}()
	for name, ch := range map[string]chan struct{}{"Apply": applied, "job": jobDone} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s blocked: scheduler lock held across cron stop", name)
		}
	}
	if got := s.Location().String(); got != "Europe/Rome" {
		t.Fatalf("location = %s", got)
	}
	if jobs := s.Snapshot().Jobs; len(jobs) != 1 {
		t.Fatalf("jobs after restart = %+v", jobs)
	}
}

func TestStartWithDoneContextStartsNothing(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t, "2024-01-01 00:00")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
	s.mu.Lock()
	started := s.c != nil
	s.mu.Unlock()
	if started {
		t.Fatal("cron started on a done context")
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())
	s.mu.Lock()
	started = s.c != nil
	s.mu.Unlock()
	if !started {
		t.Fatal("cron not started on a live context")
	}
}
