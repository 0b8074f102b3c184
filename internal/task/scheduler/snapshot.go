package scheduler

import "sort"

// Snapshot lists pending reminders ordered by fire instant, plus the
// housekeeping jobs.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Enabled:  s.cfg.Enabled,
		Timezone: s.loc.String(),
		Tasks:    len(s.tasks),
		States:   map[State]int{},
		Pending:  make([]PendingReminder, 0, len(s.pending)),
	}
	for _, st := range s.states {
		out.States[st]++
	}
	for _, p := range s.pending {
		out.Pending = append(out.Pending, p.PendingReminder)
	}
	sort.Slice(out.Pending, func(i, j int) bool {
		a, b := out.Pending[i], out.Pending[j]
		if !a.FireAt.Equal(b.FireAt) {
			return a.FireAt.Before(b.FireAt)
		}
		return a.TaskID < b.TaskID
	})
	for _, j := range s.jobs {
		it := JobInfo{Name: j.name, Spec: j.spec}
		if s.c != nil && j.entryID != 0 {
			e := s.c.Entry(j.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		out.Jobs = append(out.Jobs, it)
	}
	return out
}
