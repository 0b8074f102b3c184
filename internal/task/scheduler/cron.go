package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "routined/pkg/logx"
)

// AddCron registers a housekeeping job (e.g. counter rollover) on a cron
// spec evaluated in the scheduler timezone. Registering the same name again
// replaces the previous job.
func (s *Service) AddCron(name, spec string, job func()) error {
	name = strings.TrimSpace(name)
	spec = strings.TrimSpace(spec)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeJobLocked(name)
	s.jobs = append(s.jobs, cronJob{name: name, spec: spec, job: job})
	if s.c == nil {
		// registered on Start
		return nil
	}
	if err := s.addCronLocked(&s.jobs[len(s.jobs)-1]); err != nil {
		s.log.Error("job register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return err
	}
	s.log.Debug("job registered", logx.String("name", name), logx.String("spec", spec))
	return nil
}

// RemoveCron unregisters a housekeeping job.
func (s *Service) RemoveCron(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeJobLocked(strings.TrimSpace(name))
}

func (s *Service) removeJobLocked(name string) bool {
	removed := false
	n := 0
	for _, j := range s.jobs {
		if j.name == name {
			if s.c != nil && j.entryID != 0 {
				s.c.Remove(j.entryID)
			}
			removed = true
			continue
		}
		s.jobs[n] = j
		n++
	}
	s.jobs = s.jobs[:n]
	return removed
}

func (s *Service) addCronLocked(j *cronJob) error {
	name, run := j.name, j.job
	eid, err := s.c.AddJob(j.spec, cron.FuncJob(func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("job panic", logx.String("name", name), logx.Any("panic", r))
			}
		}()
		run()
	}))
	if err == nil {
		j.entryID = eid
	}
	return err
}

// restartCronLocked swaps in a cron on the current zone and returns the
// old one. The caller stops it after unlocking: running jobs may call back
// into the scheduler.
func (s *Service) restartCronLocked() *cron.Cron {
	old := s.c
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.jobs {
		_ = s.addCronLocked(&s.jobs[i])
	}
	s.c.Start()
	s.log.Info("service restarted", logx.Stringer("tz", s.loc), logx.Int("jobs", len(s.jobs)))
	return old
}

// stopCron waits up to max for the running jobs of c to return.
func (s *Service) stopCron(ctx context.Context, c *cron.Cron, max time.Duration) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("cron jobs still running after stop", logx.Duration("waited", max))
	}
}
