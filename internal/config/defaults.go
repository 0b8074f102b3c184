package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/robfig/cron/v3"

	"routined/internal/observability/debugserver"
)

const (
	DefaultDirName    = ".routined"
	DefaultConfigFile = "config.yaml"
	DefaultRollover   = "@midnight"
	DefaultDebugAddr  = debugserver.DefaultAddr
)

// DefaultDir is ~/.routined.
func DefaultDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// DefaultPath is ~/.routined/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// ExpandPath expands a leading "~".
func ExpandPath(p string) (string, error) {
	return homedir.Expand(strings.TrimSpace(p))
}

// Default is the configuration used when no file exists.
func Default() *Config {
	dir, err := DefaultDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		Logging:   LoggingConfig{Level: "info", Console: true},
		Scheduler: SchedulerConfig{Enabled: true},
		Notifier: &NotifierConfig{
			Enabled:       true,
			Workers:       1,
			QueueSize:     64,
			RatePerSec:    5,
			RetryMax:      3,
			RetryBase:     "500ms",
			RetryMaxDelay: "10s",
			DedupWindow:   "24h",
			Sinks:         SinksConfig{Console: true},
		},
		Storage:  StorageConfig{Driver: "file", Path: filepath.Join(dir, "data")},
		Counters: CountersConfig{Rollover: DefaultRollover},
		Debug:    DebugConfig{Enabled: true, Addr: DefaultDebugAddr},
	}
}

// Validate rejects configs the daemon could not apply.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if _, err := ParseDurationField("scheduler.default_advance", cfg.Scheduler.DefaultAdvance); err != nil {
		return err
	}
	if cfg.Scheduler.MaxSearch < 0 {
		return fmt.Errorf("scheduler.max_search must be >= 0")
	}
	if n := cfg.Notifier; n != nil {
		for path, raw := range map[string]string{
			"notifier.retry_base":           n.RetryBase,
			"notifier.retry_max_delay":      n.RetryMaxDelay,
			"notifier.dedup_window":         n.DedupWindow,
			"notifier.breaker_cooldown":     n.BreakerCooldown,
			"notifier.breaker_max_cooldown": n.BreakerMaxCooldown,
		} {
			if _, err := ParseDurationField(path, raw); err != nil {
				return err
			}
		}
		if n.Sinks.Telegram.Enabled {
			if strings.TrimSpace(n.Sinks.Telegram.Token) == "" {
				return fmt.Errorf("notifier.sinks.telegram.token required when enabled")
			}
			if n.Sinks.Telegram.ChatID == 0 {
				return fmt.Errorf("notifier.sinks.telegram.chat_id required when enabled")
			}
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "file", "sqlite", "diskv":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if spec := strings.TrimSpace(cfg.Counters.Rollover); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("counters.rollover: %w", err)
		}
	}
	if addr := strings.TrimSpace(cfg.Debug.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("debug.addr: %w", err)
		}
		if cfg.Debug.Enabled && strings.TrimSpace(cfg.Debug.Token) == "" && !debugserver.IsLoopbackAddr(addr) {
			return fmt.Errorf("debug.token required when debug.addr is not loopback")
		}
	}
	return nil
}

