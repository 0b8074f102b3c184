package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"routined/internal/calendar"
	"routined/internal/config"
	"routined/internal/eventbus"
	"routined/internal/notifier"
	"routined/internal/observability/debugserver"
	rtsup "routined/internal/runtime/supervisor"
	"routined/internal/storage"
	"routined/internal/task/scheduler"
	logx "routined/pkg/logx"
)

// App owns the store and the reminder pipeline. CLI commands use it for
// one-shot mutations; Serve turns it into the long-running daemon.
type App struct {
	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus

	store *storage.Store
	sched *scheduler.Service
	notif *notifier.Service
	dbg   *debugserver.Service
	sup   *rtsup.Supervisor

	now     func() time.Time
	verbose bool

	// serving gates timer arming: only the daemon process holds reminders.
	serving atomic.Bool

	storeOnce sync.Once
	storeErr  error
	logsOnce  sync.Once
}

type options struct {
	log       logx.Logger
	verbose   bool
	sinks     []notifier.Sink
	sinksSet  bool
	now       func() time.Time
	schedOpts []scheduler.Option
}

type Option func(*options)

// WithLogger replaces the configured logging service (tests, quiet CLI).
func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }

// WithVerbose forces debug logging regardless of logging.level.
func WithVerbose() Option { return func(o *options) { o.verbose = true } }

// WithSinks replaces the configured delivery targets.
func WithSinks(sinks ...notifier.Sink) Option {
	return func(o *options) {
		o.sinks = sinks
		o.sinksSet = true
	}
}

// WithClock overrides the wall clock used for "today" and reminders.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *options) { o.schedOpts = append(o.schedOpts, opts...) }
}

// Open loads the config (defaults when the file is missing) and opens the
// store. Nothing is armed until Serve.
func Open(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm, bus: eventbus.New(), now: o.now, verbose: o.verbose}
	if o.log.IsZero() {
		a.logs, a.log = logx.New(a.loggingConfig(cfg))
	} else {
		a.log = o.log
	}

	scfg, err := mapStorageConfig(cfg)
	if err != nil {
		a.closeLogs()
		return nil, err
	}
	a.store, err = storage.Open(scfg, a.log.Component("storage"))
	if err != nil {
		a.closeLogs()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sinks := o.sinks
	if !o.sinksSet {
		sinks, err = buildSinks(cfg, a.log.Component("sink"))
		if err != nil {
			_ = a.store.Close()
			a.closeLogs()
			return nil, err
		}
	}
	a.notif = notifier.New(mapNotifierConfig(cfg), a.log.Component("notifier"), a.bus, a.store, sinks...)

	sopts := append([]scheduler.Option{
		scheduler.WithClock(a.now),
		scheduler.WithHandler(a.onReminder),
	}, o.schedOpts...)
	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.log.Component("scheduler"), a.bus, sopts...)
	a.dbg = debugserver.New(mapDebugConfig(cfg), a.log.Component("debug"), func() any { return a.Status() })

	a.log.Debug("app opened",
		logx.String("config", cfgPath),
		logx.String("storage", a.store.Driver()),
		logx.Int("sinks", len(sinks)),
	)
	return a, nil
}

func (a *App) Log() logx.Logger { return a.log }
func (a *App) Bus() eventbus.Bus { return a.bus }
func (a *App) Config() *config.Config { return a.cfgm.Get() }
func (a *App) ConfigPath() string { return a.cfgm.Path() }
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Today is the current date in the scheduler timezone.
func (a *App) Today() calendar.Date { return calendar.Today(a.now(), a.sched.Location()) }

// Close releases the store and log outputs. It is safe to call after
// Serve returned.
func (a *App) Close() error {
	err := a.closeStore()
	a.closeLogs()
	return err
}

func (a *App) loggingConfig(cfg *config.Config) logx.Config {
	lc := mapLoggingConfig(cfg)
	if a.verbose {
		lc.Level = "debug"
	}
	return lc
}

func (a *App) closeStore() error {
	a.storeOnce.Do(func() { a.storeErr = a.store.Close() })
	return a.storeErr
}

func (a *App) closeLogs() {
	a.logsOnce.Do(func() {
		if a.logs != nil {
			_ = a.logs.Close()
		}
	})
}

// resync re-arms reminders from the stored tasks. Outside Serve it is a
// no-op so CLI invocations never hold timers.
func (a *App) resync(ctx context.Context) error {
	if !a.serving.Load() {
		return nil
	}
	tasks, err := a.store.Tasks(ctx)
	if err != nil {
		return err
	}
	a.sched.Resync(tasks)
	return nil
}

func (a *App) onReminder(r scheduler.Reminder) {
	m := notifier.Message{
		Key:    notifier.ReminderKey(r.TaskID, r.Occurrence.String()),
		TaskID: r.TaskID,
		Title:  r.Title,
		Text:   notifier.ReminderText(r.Title, r.Advance),
		At:     r.At,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := a.notif.Notify(ctx, m)
	switch {
	case err == nil:
	case errors.Is(err, notifier.ErrDisabled):
		a.log.Debug("reminder not delivered: notifier disabled", logx.String("task", r.TaskID))
	default:
		a.log.Warn("reminder not queued", logx.String("task", r.TaskID), logx.Err(err))
	}
}
