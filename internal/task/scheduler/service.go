package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"routined/internal/eventbus"
	"routined/internal/recurrence"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

func New(cfg Config, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:       cfg,
		log:       log,
		bus:       bus,
		eval:      recurrence.Evaluator{Budget: cfg.MaxSearch},
		now:       time.Now,
		afterFunc: realAfterFunc,
		tasks:     map[string]task.Task{},
		pending:   map[string]*pending{},
		states:    map[string]State{},
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, o := range opts {
		o(s)
	}
	s.loc = s.loadLocationLocked()
	return s
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Location is the zone occurrences are combined with a time of day in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Apply swaps the config. A change in anything that affects fire instants
// re-derives every reminder from the last synced task set.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	s.eval = recurrence.Evaluator{Budget: cfg.MaxSearch}
	tzChanged := strings.TrimSpace(old.Timezone) != strings.TrimSpace(cfg.Timezone)
	var oldCron *cron.Cron
	if tzChanged {
		s.loc = s.loadLocationLocked()
		if s.c != nil {
			oldCron = s.restartCronLocked()
		}
	}
	changed := tzChanged || old.Enabled != cfg.Enabled || old.DefaultAdvance != cfg.DefaultAdvance || old.MaxSearch != cfg.MaxSearch
	tasks := s.taskListLocked()
	s.mu.Unlock()

	s.stopCron(context.Background(), oldCron, cronStopWait)

	if changed {
		s.log.Info("config applied", logx.Bool("enabled", cfg.Enabled), logx.String("tz", s.Location().String()))
		s.Resync(tasks)
	}
}

// cronStopWait bounds how long a timezone change waits for running jobs
// of the replaced cron.
const cronStopWait = 30 * time.Second

// Start starts cron triggering for housekeeping jobs. Reminder timers do
// not depend on it. A ctx already done starts nothing.
func (s *Service) Start(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.jobs {
		_ = s.addCronLocked(&s.jobs[i])
	}
	s.c.Start()
	s.log.Info("service started", logx.Stringer("tz", s.loc), logx.Int("jobs", len(s.jobs)))
}

// Stop stops cron triggering and cancels every reminder.
func (s *Service) Stop(ctx context.Context) {
	start := s.now()
	s.log.Info("stop requested")

	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	s.stopCron(ctx, c, cronStopWait)
	s.CancelAll()
	s.log.Info("service stopped", logx.Duration("took", s.now().Sub(start)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
