package config

// Config is the daemon configuration. All durations are Go duration
// strings ("500ms", "10m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  *NotifierConfig `json:"notifier,omitempty"`
	Storage   StorageConfig   `json:"storage"`
	Counters  CountersConfig  `json:"counters"`
	Debug     DebugConfig     `json:"debug"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls reminder timers.
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`
	// DefaultAdvance is used for tasks whose notification has no amount.
	// Empty keeps 10m.
	DefaultAdvance string `json:"default_advance,omitempty"`
	MaxSearch      int    `json:"max_search,omitempty"`
}

// NotifierConfig controls reminder delivery. If the whole section is
// omitted the notifier runs with defaults and the console sink.
type NotifierConfig struct {
	Enabled         bool        `json:"enabled"`
	Workers         int         `json:"workers"`
	QueueSize       int         `json:"queue_size"`
	RatePerSec      int         `json:"rate_per_sec"`
	RetryMax        int         `json:"retry_max"`
	RetryBase       string      `json:"retry_base"`
	RetryMaxDelay   string      `json:"retry_max_delay"`
	DedupWindow     string      `json:"dedup_window"`
	DedupMaxEntries int         `json:"dedup_max_entries,omitempty"`
	PersistDedup    bool        `json:"persist_dedup,omitempty"`

	// BreakerTrip skips a sink after this many consecutive undelivered
	// reminders (0 means 3, negative disables).
	BreakerTrip        int         `json:"breaker_trip,omitempty"`
	BreakerCooldown    string      `json:"breaker_cooldown,omitempty"`
	BreakerMaxCooldown string      `json:"breaker_max_cooldown,omitempty"`
	Sinks              SinksConfig `json:"sinks"`
}

type SinksConfig struct {
	Console  bool           `json:"console"`
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the Telegram reminder sink (send only).
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// StorageConfig selects the persistence driver.
//
//	"storage": { "driver": "sqlite", "path": "~/.routined/routined.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // file | sqlite | diskv
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

type CountersConfig struct {
	// Rollover is a cron spec for the daily counter reset (default "@midnight").
	Rollover string `json:"rollover,omitempty"`
}

// DebugConfig controls the daemon's local status server, used by
// `routined status`. A non-loopback addr requires a token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
