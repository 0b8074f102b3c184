package app

import (
	"context"
	"fmt"

	logx "routined/pkg/logx"
)

// EventDataReset is published after ResetAll wiped the store.
const EventDataReset = "data.reset"

// ResetAll deletes every task, counter and counter entry. The store is
// cleared before any reminder is cancelled, so a failure leaves the daemon
// still tracking whatever survived. When serving, every armed reminder is
// cancelled and the scheduler resynced against the now empty store.
func (a *App) ResetAll(ctx context.Context) (int, error) {
	n, err := a.store.Clear(ctx)
	if err != nil {
		if n > 0 {
			_ = a.resync(ctx)
		}
		return n, fmt.Errorf("reset all: %w", err)
	}
	if a.serving.Load() {
		a.sched.CancelAll()
	}
	if err := a.resync(ctx); err != nil {
		return n, err
	}
	a.log.Warn("all data reset", logx.Int("records", n))
	a.publish(EventDataReset, n)
	return n, nil
}
