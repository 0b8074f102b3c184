package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
scheduler:
  enabled: true
  timezone: UTC
  default_advance: 15m
notifier:
  enabled: true
  workers: 2
  queue_size: 16
  rate_per_sec: 3
  retry_max: 2
  retry_base: 200ms
  retry_max_delay: 2s
  dedup_window: 1h
  sinks:
    console: true
    telegram:
      enabled: false
storage:
  driver: sqlite
  path: /tmp/routined.db
counters:
  rollover: "@midnight"
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Storage.Driver != "sqlite" || cfg.Notifier == nil || cfg.Notifier.Workers != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if DurationOr(cfg.Scheduler.DefaultAdvance, 0) != 15*time.Minute {
		t.Fatalf("default_advance = %q", cfg.Scheduler.DefaultAdvance)
	}
	if m.Get() != cfg {
		t.Fatal("Load must commit")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeFile(t, "config.json", `{"scheduler":{"enabled":true,"bogus":1}}`))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "bogus") {
		t.Fatalf("Parse error = %v, want unknown field", err)
	}
	m = NewConfigManager(writeFile(t, "config.json", `{} {}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mut  func(c *Config)
	}{
		{"timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"advance", func(c *Config) { c.Scheduler.DefaultAdvance = "ten minutes" }},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"rollover", func(c *Config) { c.Counters.Rollover = "every night" }},
		{"retry", func(c *Config) { c.Notifier.RetryBase = "-1s" }},
		{"telegram", func(c *Config) { c.Notifier.Sinks.Telegram.Enabled = true }},
		{"debug addr", func(c *Config) { c.Debug.Addr = "7787" }},
		{"debug public without token", func(c *Config) { c.Debug.Addr = "0.0.0.0:7787" }},
	}
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() invalid: %v", err)
	}
	for _, tt := range tests {
		c := Default()
		tt.mut(c)
		if err := Validate(c); err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := m.LoadOrDefault()
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Counters.Rollover != DefaultRollover || !cfg.Scheduler.Enabled {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := Default()
	in.Scheduler.Timezone = "Europe/Rome"
	if err := Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := NewConfigManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Scheduler.Timezone != "Europe/Rome" || out.Storage != in.Storage {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	if ok, err := m.Reload(context.Background()); err != nil || ok {
		t.Fatalf("unchanged Reload = %v, %v", ok, err)
	}
	if err := os.WriteFile(path, []byte(strings.Replace(sampleYAML, "level: debug", "level: warn", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := m.Reload(context.Background()); err != nil || !ok {
		t.Fatalf("changed Reload = %v, %v", ok, err)
	}
	select {
	case cfg := <-ch:
		if cfg.Logging.Level != "warn" {
			t.Fatalf("published level %q", cfg.Logging.Level)
		}
	default:
		t.Fatal("nothing published")
	}

	if err := os.WriteFile(path, []byte(strings.Replace(sampleYAML, "driver: sqlite", "driver: mongo", 1)), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(context.Background()); err == nil {
		t.Fatal("invalid config must be rejected")
	}
	if m.Get().Storage.Driver != "sqlite" {
		t.Fatal("rejected config was committed")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := Default()
	b := Default()
	b.Scheduler.Timezone = "UTC"
	b.Notifier.Sinks.Telegram.Token = "secret"
	b.Debug.Pprof = true
	changed, _ := SummarizeConfigChange(a, b)
	if strings.Join(changed, ",") != "scheduler,notifier,debug" {
		t.Fatalf("changed = %v", changed)
	}
}
