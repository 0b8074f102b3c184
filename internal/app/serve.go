package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"routined/internal/config"
	rtsup "routined/internal/runtime/supervisor"
	logx "routined/pkg/logx"
	"routined/pkg/systemd"
)

const (
	jobRollover   = "counters.rollover"
	jobDedupPrune = "notifier.dedup_prune"
	dedupPruneAt  = "@hourly"
)

// Serve runs the daemon until ctx is done or a supervised loop fails. It
// arms reminders for the stored tasks and keeps them in sync with store
// and config changes made by other processes.
func (a *App) Serve(ctx context.Context) error {
	if !a.serving.CompareAndSwap(false, true) {
		return errors.New("already serving")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.Component("supervisor")), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.Component("config"))
	run := a.sup.Context()

	cfg := a.cfgm.Get()
	if a.notif.Enabled() {
		a.notif.Start(run)
	}
	if err := a.registerJobs(cfg); err != nil {
		_ = a.Stop(context.Background(), StopFatalError)
		return err
	}
	a.sched.Start(run)

	if _, err := a.RolloverCounters(run); err != nil {
		a.log.Warn("startup rollover failed", logx.Err(err))
	}
	if err := a.resync(run); err != nil {
		_ = a.Stop(context.Background(), StopFatalError)
		return fmt.Errorf("initial sync: %w", err)
	}

	a.sup.GoRestart("storage.watch", func(c context.Context) error {
		return a.store.Watch(c, func() {
			if err := a.resync(c); err != nil {
				a.log.Warn("resync after store change failed", logx.Err(err))
			}
		})
	}, rtsup.WithRestartBackoff(time.Second, time.Minute))
	a.sup.GoRestart("config.watch", a.cfgm.Watch, rtsup.WithRestartBackoff(time.Second, time.Minute))
	a.startConfigReload()
	a.startEventLog()
	a.dbg.Start(run)

	snap := a.sched.Snapshot()
	a.log.Info("daemon started",
		logx.String("config", a.cfgm.Path()),
		logx.String("storage", a.store.Driver()),
		logx.String("tz", snap.Timezone),
		logx.Int("reminders", len(snap.Pending)),
	)
	if ok, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		_, _ = systemd.StatusLine(fmt.Sprintf("%d reminders armed", len(snap.Pending)))
	}

	<-run.Done()
	reason := StopSignal
	if a.sup.Err() != nil {
		reason = StopFatalError
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	_ = a.Stop(stopCtx, reason)
	return a.sup.Err()
}

func (a *App) registerJobs(cfg *config.Config) error {
	spec := strings.TrimSpace(cfg.Counters.Rollover)
	if spec == "" {
		spec = config.DefaultRollover
	}
	if err := a.sched.AddCron(jobRollover, spec, a.rolloverJob); err != nil {
		return fmt.Errorf("counters.rollover %q: %w", spec, err)
	}
	return a.sched.AddCron(jobDedupPrune, dedupPruneAt, a.pruneJob)
}

func (a *App) rolloverJob() {
	ctx, cancel := context.WithTimeout(a.sup.Context(), 30*time.Second)
	defer cancel()
	if _, err := a.RolloverCounters(ctx); err != nil {
		a.log.Error("scheduled rollover failed", logx.Err(err))
	}
}

func (a *App) pruneJob() {
	ctx, cancel := context.WithTimeout(a.sup.Context(), 30*time.Second)
	defer cancel()
	n, err := a.store.PruneDedup(ctx, a.now())
	if err != nil {
		a.log.Warn("dedup prune failed", logx.Err(err))
		return
	}
	if n > 0 {
		a.log.Debug("dedup marks pruned", logx.Int("n", n))
	}
}

func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

// startConfigReload fans committed configs out to the live services.
func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, last, newCfg)
				last = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := make(map[string]bool, len(sections))
	for _, s := range sections {
		changed[s] = true
	}
	if changed["storage"] {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	if changed["logging"] && a.logs != nil {
		a.logs.Apply(a.loggingConfig(newCfg))
	}
	if changed["scheduler"] {
		a.sched.Apply(mapSchedulerConfig(newCfg))
	}
	if changed["counters"] {
		if err := a.registerJobs(newCfg); err != nil {
			a.log.Warn("invalid counters.rollover; keeping previous", logx.Err(err))
		}
	}
	if changed["notifier"] {
		a.applyNotifier(ctx, oldCfg, newCfg)
	}
	if changed["debug"] {
		a.dbg.Reconfigure(ctx, mapDebugConfig(newCfg))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) applyNotifier(ctx context.Context, oldCfg, newCfg *config.Config) {
	if sinksChanged(oldCfg, newCfg) {
		sinks, err := buildSinks(newCfg, a.log.Component("sink"))
		if err != nil {
			a.log.Warn("invalid notifier sinks; keeping previous", logx.Err(err))
		} else {
			a.notif.SetSinks(sinks...)
		}
	}
	prev := a.notif.Enabled()
	ncfg := mapNotifierConfig(newCfg)
	a.notif.Apply(ncfg)
	switch {
	case prev && !ncfg.Enabled:
		a.log.Info("notifier disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.notif.Stop(stopCtx)
		cancel()
	case !prev && ncfg.Enabled:
		a.log.Info("notifier enabled via config")
		a.notif.Start(ctx)
	}
}

func sinksChanged(oldCfg, newCfg *config.Config) bool {
	var o, n config.SinksConfig
	if oldCfg.Notifier != nil {
		o = oldCfg.Notifier.Sinks
	}
	if newCfg.Notifier != nil {
		n = newCfg.Notifier.Sinks
	}
	return (oldCfg.Notifier == nil) != (newCfg.Notifier == nil) || !reflect.DeepEqual(o, n)
}

// Stop shuts the daemon down. Each step is bounded so one component can
// not stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil || !a.serving.Load() {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()
	a.sup.Cancel()

	a.step(ctx, "debug", time.Second, func(c context.Context) error { a.dbg.Stop(c); return nil })
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.serving.Store(false)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	a.closeLogs()
	return nil
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	// respect the caller's deadline; never extend it
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped: deadline reached", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
