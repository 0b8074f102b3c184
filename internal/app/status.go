package app

import (
	"time"

	"routined/internal/notifier"
	rtsup "routined/internal/runtime/supervisor"
	"routined/internal/task/scheduler"
)

// Status is the live daemon state served at /status.
type Status struct {
	Now        time.Time              `json:"now"`
	Serving    bool                   `json:"serving"`
	Storage    string                 `json:"storage"`
	Scheduler  scheduler.Snapshot     `json:"scheduler"`
	Notifier   bool                   `json:"notifier_enabled"`
	Deliveries []notifier.HistoryItem `json:"deliveries"`
	Cooling    map[string]time.Time   `json:"cooling_sinks,omitempty"`
	Loops      rtsup.Counters         `json:"loops"`
}

func (a *App) Status() Status {
	return Status{
		Now:        a.now(),
		Serving:    a.serving.Load(),
		Storage:    a.store.Driver(),
		Scheduler:  a.sched.Snapshot(),
		Notifier:   a.notif.Enabled(),
		Deliveries: a.notif.History(),
		Cooling:    a.notif.CoolingDown(),
		Loops:      a.sup.Counters(),
	}
}
