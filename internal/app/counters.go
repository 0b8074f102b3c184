package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"routined/internal/counter"
	"routined/internal/eventbus"
	"routined/internal/storage"
	logx "routined/pkg/logx"
)

// Event types published by counter operations.
const (
	EventCounterRollover = "counter.rollover"
	EventGoalReached     = "counter.goal_reached"
	EventCountersReset   = "counter.reset"
)

// AddCounter assigns an ID and creation time and defaults the start date
// to today.
func (a *App) AddCounter(ctx context.Context, c counter.Counter) (counter.Counter, error) {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = counter.NewID()
	}
	c.Name = strings.TrimSpace(c.Name)
	if c.Type == "" {
		c.Type = counter.Daily
	}
	if c.Start.IsZero() {
		c.Start = a.Today()
	}
	c.CreatedAt = a.now()
	if err := a.store.PutCounter(ctx, c); err != nil {
		return counter.Counter{}, err
	}
	a.log.Info("counter added", logx.String("id", c.ID), logx.String("name", c.Name), logx.String("type", string(c.Type)))
	return c, nil
}

// Counters lists every counter after applying a pending rollover.
func (a *App) Counters(ctx context.Context) ([]counter.Counter, error) {
	if _, err := a.RolloverCounters(ctx); err != nil {
		return nil, err
	}
	return a.store.Counters(ctx)
}

// Counter resolves ref as an ID, a unique ID prefix or a unique name.
func (a *App) Counter(ctx context.Context, ref string) (counter.Counter, error) {
	ref = strings.TrimSpace(ref)
	c, err := a.store.Counter(ctx, ref)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return c, err
	}
	all, err := a.store.Counters(ctx)
	if err != nil {
		return counter.Counter{}, err
	}
	var found []counter.Counter
	for _, c := range all {
		if strings.EqualFold(c.Name, ref) || (len(ref) >= minPrefix && strings.HasPrefix(c.ID, ref)) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return counter.Counter{}, fmt.Errorf("counter %q: %w", ref, storage.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return counter.Counter{}, fmt.Errorf("counter %q matches %d counters: %w", ref, len(found), ErrAmbiguous)
}

func (a *App) Increment(ctx context.Context, ref string) (counter.Counter, error) {
	return a.updateCounter(ctx, ref, counter.Increment)
}

// Decrement never goes below zero.
func (a *App) Decrement(ctx context.Context, ref string) (counter.Counter, error) {
	return a.updateCounter(ctx, ref, counter.Decrement)
}

// DeleteCounter removes the counter and its history.
func (a *App) DeleteCounter(ctx context.Context, ref string) (counter.Counter, error) {
	c, err := a.Counter(ctx, ref)
	if err != nil {
		return counter.Counter{}, err
	}
	if err := a.store.DeleteCounter(ctx, c.ID); err != nil {
		return counter.Counter{}, err
	}
	a.log.Info("counter deleted", logx.String("id", c.ID))
	return c, nil
}

// History returns the recorded daily values of a counter, oldest first.
func (a *App) History(ctx context.Context, ref string) (counter.Counter, []counter.Entry, error) {
	c, err := a.Counter(ctx, ref)
	if err != nil {
		return counter.Counter{}, nil, err
	}
	if _, err := a.RolloverCounters(ctx); err != nil {
		return counter.Counter{}, nil, err
	}
	es, err := a.store.History(ctx, c.ID)
	return c, es, err
}

// RolloverCounters records yesterday's daily values and resets the daily
// counters, at most once per day. It is safe to call from every process
// sharing the store.
func (a *App) RolloverCounters(ctx context.Context) (counter.RolloverResult, error) {
	today := a.Today()
	last, err := a.store.LastReset(ctx)
	if err != nil {
		return counter.RolloverResult{}, err
	}
	if last == today {
		return counter.RolloverResult{}, nil
	}
	cs, err := a.store.Counters(ctx)
	if err != nil {
		return counter.RolloverResult{}, err
	}
	ys, err := a.store.EntriesOn(ctx, today.AddDays(-1))
	if err != nil {
		return counter.RolloverResult{}, err
	}
	res := counter.Rollover(cs, ys, last, today)
	if err := a.store.ApplyRollover(ctx, res); err != nil {
		return counter.RolloverResult{}, fmt.Errorf("counter rollover: %w", err)
	}
	if res.Due {
		a.log.Info("counters rolled over",
			logx.Stringer("day", today),
			logx.Int("entries", len(res.Entries)),
			logx.Int("reset", len(res.Reset)),
		)
		a.publish(EventCounterRollover, res)
	}
	return res, nil
}

// ResetDailyCounters sets every daily counter active today back to zero and
// returns the ones that changed. A pending rollover runs first so
// yesterday's values are recorded before anything is cleared. Today's values
// are dropped without an entry.
func (a *App) ResetDailyCounters(ctx context.Context) ([]counter.Counter, error) {
	if _, err := a.RolloverCounters(ctx); err != nil {
		return nil, err
	}
	cs, err := a.store.Counters(ctx)
	if err != nil {
		return nil, err
	}
	today := a.Today()
	var reset []counter.Counter
	for _, c := range cs {
		if c.Type != counter.Daily || !c.ActiveOn(today) || c.Value == 0 {
			continue
		}
		c.Value = 0
		if err := a.store.PutCounter(ctx, c); err != nil {
			return reset, fmt.Errorf("reset counter %s: %w", c.ID, err)
		}
		reset = append(reset, c)
	}
	a.log.Info("daily counters reset", logx.Int("reset", len(reset)))
	if len(reset) > 0 {
		a.publish(EventCountersReset, reset)
	}
	return reset, nil
}

func (a *App) updateCounter(ctx context.Context, ref string, fn func(counter.Counter) counter.Counter) (counter.Counter, error) {
	if _, err := a.RolloverCounters(ctx); err != nil {
		return counter.Counter{}, err
	}
	c, err := a.Counter(ctx, ref)
	if err != nil {
		return counter.Counter{}, err
	}
	if !c.ActiveOn(a.Today()) {
		return counter.Counter{}, fmt.Errorf("counter %s is not active today", c.Name)
	}
	out := fn(c)
	if err := a.store.PutCounter(ctx, out); err != nil {
		return counter.Counter{}, err
	}
	if out.GoalReached() && !c.GoalReached() {
		a.log.Info("counter goal reached", logx.String("id", out.ID), logx.Int("goal", out.Goal))
		a.publish(EventGoalReached, out)
	}
	return out, nil
}

func (a *App) publish(typ string, data any) {
	a.bus.Publish(eventbus.Event{Type: typ, Time: a.now(), Data: data})
}
