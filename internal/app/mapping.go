package app

import (
	"fmt"
	"strings"
	"time"

	"routined/internal/config"
	"routined/internal/notifier"
	"routined/internal/observability/debugserver"
	"routined/internal/storage"
	"routined/internal/task/scheduler"
	logx "routined/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:        cfg.Scheduler.Enabled,
		Timezone:       cfg.Scheduler.Timezone,
		DefaultAdvance: config.DurationOr(cfg.Scheduler.DefaultAdvance, 0),
		MaxSearch:      cfg.Scheduler.MaxSearch,
	}
}

// mapNotifierConfig treats a missing section as enabled with defaults.
func mapNotifierConfig(cfg *config.Config) notifier.Config {
	n := cfg.Notifier
	if n == nil {
		return notifier.Config{Enabled: true}
	}
	return notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		RetryBase:       config.DurationOr(n.RetryBase, 0),
		RetryMaxDelay:   config.DurationOr(n.RetryMaxDelay, 0),
		DedupWindow:     config.DurationOr(n.DedupWindow, 0),
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,

		BreakerTrip:        n.BreakerTrip,
		BreakerCooldown:    config.DurationOr(n.BreakerCooldown, 0),
		BreakerMaxCooldown: config.DurationOr(n.BreakerMaxCooldown, 0),
	}
}

func mapDebugConfig(cfg *config.Config) debugserver.Config {
	return debugserver.Config{
		Enabled: cfg.Debug.Enabled,
		Addr:    cfg.Debug.Addr,
		Token:   cfg.Debug.Token,
		Pprof:   cfg.Debug.Pprof,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	path, err := config.ExpandPath(cfg.Storage.Path)
	if err != nil {
		return storage.Config{}, fmt.Errorf("storage.path: %w", err)
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	if busy == 0 {
		busy = time.Second
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        path,
		BusyTimeout: busy,
	}, nil
}

// buildSinks returns the configured delivery targets. A missing notifier
// section means console only.
func buildSinks(cfg *config.Config, log logx.Logger) ([]notifier.Sink, error) {
	n := cfg.Notifier
	if n == nil {
		return []notifier.Sink{notifier.NewConsoleSink(nil, log)}, nil
	}
	var sinks []notifier.Sink
	if n.Sinks.Console {
		sinks = append(sinks, notifier.NewConsoleSink(nil, log))
	}
	if tg := n.Sinks.Telegram; tg.Enabled {
		s, err := notifier.NewTelegramSink(notifier.TelegramConfig{
			Token:    tg.Token,
			ChatID:   tg.ChatID,
			ThreadID: tg.ThreadID,
		})
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
