package scheduler

import (
	"sort"
	"strings"
	"time"

	"routined/internal/calendar"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

// Bus event types.
const (
	EventReminderDue        = "reminder.due"
	EventReminderSuppressed = "reminder.suppressed"
	EventResync             = "scheduler.resync"
)

// Resync replaces the task set. Every pending reminder is cancelled and
// each task is re-armed from scratch. Calling it twice with the same list
// yields the same pending set.
func (s *Service) Resync(tasks []task.Task) {
	s.mu.Lock()
	s.stopAllLocked()
	s.tasks = make(map[string]task.Task, len(tasks))
	s.states = make(map[string]State, len(tasks))
	for _, t := range tasks {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			continue
		}
		s.tasks[id] = t.Clone()
	}
	enabled := s.cfg.Enabled
	armed := 0
	if enabled {
		now := s.now()
		for _, id := range s.sortedIDsLocked() {
			if s.armLocked(s.tasks[id], now, true) == StateArmed {
				armed++
			}
		}
	} else {
		for id := range s.tasks {
			s.states[id] = StateDisabled
		}
	}
	n := len(s.tasks)
	s.mu.Unlock()

	s.log.Info("resync", logx.Int("tasks", n), logx.Int("armed", armed), logx.Bool("enabled", enabled))
	s.publish(EventResync, map[string]any{"tasks": n, "armed": armed})
}

// CancelFor drops the reminder of one task and forgets the task until the
// next Resync, so an in-flight callback for it will not re-arm.
func (s *Service) CancelFor(taskID string) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return
	}
	s.mu.Lock()
	removed := false
	if p, ok := s.pending[taskID]; ok {
		_ = p.timer.Stop()
		delete(s.pending, taskID)
		removed = true
	}
	delete(s.tasks, taskID)
	delete(s.states, taskID)
	s.mu.Unlock()
	if removed {
		s.log.Debug("reminder cancelled", logx.String("task", taskID))
	}
}

// CancelAll drops every reminder and the synced task set.
func (s *Service) CancelAll() {
	s.mu.Lock()
	n := len(s.pending)
	s.stopAllLocked()
	s.tasks = map[string]task.Task{}
	s.states = map[string]State{}
	s.mu.Unlock()
	if n > 0 {
		s.log.Debug("reminders cancelled", logx.Int("count", n))
	}
}

// State returns the reminder state of a synced task.
func (s *Service) State(taskID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[taskID]
	return st, ok
}

// Pending returns the armed reminder of a task, if any.
func (s *Service) Pending(taskID string) (PendingReminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[taskID]
	if !ok {
		return PendingReminder{}, false
	}
	return p.PendingReminder, true
}

func (s *Service) stopAllLocked() {
	for id, p := range s.pending {
		_ = p.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Service) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) taskListLocked() []task.Task {
	out := make([]task.Task, 0, len(s.tasks))
	for _, id := range s.sortedIDsLocked() {
		out = append(out, s.tasks[id])
	}
	return out
}

func (s *Service) advanceFor(t task.Task) time.Duration {
	if t.Notification != nil && t.Notification.AdvanceAmount <= 0 && s.cfg.DefaultAdvance > 0 {
		return s.cfg.DefaultAdvance
	}
	return t.Advance()
}

// armLocked derives the state of t and, when a future fire instant exists,
// registers its timer. ref is the instant occurrences must be after.
// initial distinguishes a resync (no occurrence: Disabled) from a chain
// step (no occurrence: Exhausted).
func (s *Service) armLocked(t task.Task, ref time.Time, initial bool) State {
	st := s.nextLocked(t, ref, initial)
	s.states[t.ID] = st
	return st
}

func (s *Service) nextLocked(t task.Task, ref time.Time, initial bool) State {
	if !t.NotifyEnabled() || !t.TimeOfDay.IsSet() {
		return StateDisabled
	}
	none := StateExhausted
	if initial {
		none = StateDisabled
	}
	now := s.now()
	loc := s.loc
	adv := s.advanceFor(t)

	switch t.Kind {
	case task.OneTime:
		if t.Completed || t.Date.IsZero() {
			return StateDisabled
		}
		at := t.Date.At(t.TimeOfDay, loc)
		fireAt := at.Add(-adv)
		if !at.After(ref) || !fireAt.After(now) {
			if !initial {
				s.log.Debug("reminder chain exhausted", logx.String("task", t.ID))
			}
			return none
		}
		s.registerLocked(t, calendar.Of(at), at, fireAt, now)
		return StateArmed

	case task.Routine:
		if t.Recurrence == nil {
			return StateDisabled
		}
		ref = ref.In(loc)
		for i := 0; i < s.searchBudget(); i++ {
			occ, ok := s.eval.NextDateAfter(*t.Recurrence, ref, t.TimeOfDay)
			if !ok {
				break
			}
			at := occ.At(t.TimeOfDay, loc)
			fireAt := at.Add(-adv)
			if fireAt.After(now) {
				s.registerLocked(t, occ, at, fireAt, now)
				return StateArmed
			}
			// Never fire retroactively: skip to the occurrence after this one.
			ref = at
		}
		if !initial {
			s.log.Debug("reminder chain exhausted", logx.String("task", t.ID))
		}
		return none
	}
	return StateDisabled
}

func (s *Service) searchBudget() int {
	if s.cfg.MaxSearch > 0 {
		return s.cfg.MaxSearch
	}
	return 64
}

func (s *Service) registerLocked(t task.Task, occ calendar.Date, at, fireAt, now time.Time) {
	if old, ok := s.pending[t.ID]; ok {
		_ = old.timer.Stop()
	}
	s.seq++
	ver := s.seq
	id := t.ID
	p := &pending{
		PendingReminder: PendingReminder{
			TaskID:     id,
			Title:      t.Title,
			Occurrence: occ,
			At:         at,
			FireAt:     fireAt,
		},
		ver: ver,
	}
	p.timer = s.afterFunc(fireAt.Sub(now), func() { s.fire(id, ver) })
	s.pending[id] = p
	s.log.Debug("reminder armed",
		logx.String("task", id),
		logx.Stringer("occurrence", occ),
		logx.Time("fire_at", fireAt),
	)
}

// fire runs on timer expiry. The task is re-read from the latest synced
// set; a stale or cancelled timer is a no-op.
func (s *Service) fire(id string, ver uint64) {
	s.mu.Lock()
	p, ok := s.pending[id]
	if !ok || p.ver != ver {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	s.states[id] = StateFired
	handler := s.handler
	s.mu.Unlock()

	r := Reminder{
		TaskID:     id,
		Title:      t.Title,
		Occurrence: p.Occurrence,
		At:         p.At,
		Advance:    p.At.Sub(p.FireAt),
	}
	if task.IsCompletedOn(t, p.Occurrence) {
		s.log.Info("reminder suppressed", logx.String("task", id), logx.Stringer("occurrence", p.Occurrence))
		s.publish(EventReminderSuppressed, r)
	} else {
		s.log.Info("reminder fired", logx.String("task", id), logx.String("title", t.Title), logx.Stringer("occurrence", p.Occurrence))
		s.publish(EventReminderDue, r)
		if handler != nil {
			handler(r)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[id]
	if !ok {
		return
	}
	if !s.cfg.Enabled {
		s.states[id] = StateDisabled
		return
	}
	if _, armed := s.pending[id]; armed {
		// A resync during the handler already armed this task.
		return
	}
	ref := s.now()
	if p.At.After(ref) {
		ref = p.At
	}
	s.armLocked(cur, ref, false)
}
