package notifier

import (
	"context"
	"time"
)

// Config controls the async reminder delivery pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool

	// BreakerTrip is the number of consecutive undelivered reminders after
	// which a sink is skipped for BreakerCooldown (doubling up to
	// BreakerMaxCooldown). Zero means 3, negative disables.
	BreakerTrip        int
	BreakerCooldown    time.Duration
	BreakerMaxCooldown time.Duration
}

// Message is one reminder to deliver.
type Message struct {
	// Key identifies the reminder for dedup ("task-<id>-<date>"). Empty
	// derives a key from Text.
	Key    string
	TaskID string
	Title  string
	Text   string
	// At is the instant the reminded thing happens.
	At time.Time
}

// Sink delivers formatted messages somewhere (console, Telegram).
type Sink interface {
	Name() string
	Send(ctx context.Context, m Message) error
}

// DedupStore persists suppress-until marks across restarts.
type DedupStore interface {
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Sink string    `json:"sink"`
	Text string    `json:"text"`
}

// Event types published on the bus.
const (
	EventQueued  = "notifier.queued"
	EventDeduped = "notifier.deduped"
	EventDropped = "notifier.dropped"
	EventSent    = "notifier.sent"
	EventFailed  = "notifier.failed"
	EventSkipped = "notifier.skipped"
)

// NotificationEvent is the payload of notifier bus events.
type NotificationEvent struct {
	Sink   string    `json:"sink,omitempty"`
	Key    string    `json:"key"`
	TaskID string    `json:"task_id,omitempty"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}
