package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"routined/internal/calendar"
	"routined/internal/eventbus"
	"routined/internal/recurrence"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

// Config controls the reminder scheduler.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local

	// DefaultAdvance replaces the 10 minute lead time for tasks whose
	// notification sets no amount. Zero keeps task.DefaultAdvance.
	DefaultAdvance time.Duration

	// MaxSearch bounds candidate dates per next-occurrence search.
	MaxSearch int
}

// State is the reminder state of one task.
type State string

const (
	StateDisabled  State = "disabled"
	StateArmed     State = "armed"
	StateFired     State = "fired"
	StateExhausted State = "exhausted"
)

// Reminder is what the scheduler hands to its Handler when a timer fires.
type Reminder struct {
	TaskID     string
	Title      string
	Occurrence calendar.Date
	At         time.Time // occurrence instant
	Advance    time.Duration
}

// Handler receives due reminders. It runs on the timer goroutine and may
// call back into the scheduler.
type Handler func(r Reminder)

// Timer is the part of *time.Timer the scheduler uses.
type Timer interface {
	Stop() bool
}

// AfterFunc registers f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// PendingReminder is one armed timer.
type PendingReminder struct {
	TaskID     string        `json:"task_id"`
	Title      string        `json:"title"`
	Occurrence calendar.Date `json:"occurrence"`
	At         time.Time     `json:"at"`
	FireAt     time.Time     `json:"fire_at"`
}

type pending struct {
	PendingReminder
	timer Timer
	ver   uint64
}

type cronJob struct {
	name    string
	spec    string
	job     func()
	entryID cron.EntryID
}

type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
}

type Snapshot struct {
	Enabled  bool              `json:"enabled"`
	Timezone string            `json:"timezone"`
	Tasks    int               `json:"tasks"`
	States   map[State]int     `json:"states"`
	Pending  []PendingReminder `json:"pending"`
	Jobs     []JobInfo         `json:"jobs"`
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterFunc replaces time.AfterFunc.
func WithAfterFunc(f AfterFunc) Option {
	return func(s *Service) {
		if f != nil {
			s.afterFunc = f
		}
	}
}

// WithHandler sets the receiver of due reminders.
func WithHandler(h Handler) Option {
	return func(s *Service) { s.handler = h }
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	eval      recurrence.Evaluator
	now       func() time.Time
	afterFunc AfterFunc
	handler   Handler

	// latest synced task set; fire callbacks re-read from here
	tasks   map[string]task.Task
	pending map[string]*pending
	states  map[string]State
	seq     uint64

	parser cron.Parser
	c      *cron.Cron
	jobs   []cronJob
}
