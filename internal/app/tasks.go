package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"routined/internal/calendar"
	"routined/internal/storage"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

// ErrAmbiguous is returned when an ID prefix matches more than one record.
var ErrAmbiguous = errors.New("ambiguous id")

// minPrefix is the shortest ID prefix accepted in place of a full ID.
const minPrefix = 4

// AddTask assigns an ID and timestamps, defaults a routine's start to
// today, then validates and stores t.
func (a *App) AddTask(ctx context.Context, t task.Task) (task.Task, error) {
	now := a.now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = task.NewID()
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Kind == task.Routine && t.Recurrence != nil && t.Recurrence.Start.IsZero() {
		p := *t.Recurrence
		p.Start = a.Today()
		t.Recurrence = &p
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := a.store.PutTask(ctx, t); err != nil {
		return task.Task{}, err
	}
	a.log.Info("task added", logx.String("id", t.ID), logx.String("kind", string(t.Kind)), logx.String("title", t.Title))
	return t, a.resync(ctx)
}

func (a *App) Tasks(ctx context.Context) ([]task.Task, error) { return a.store.Tasks(ctx) }

// Task resolves ref as a full ID or a unique prefix of at least four
// characters.
func (a *App) Task(ctx context.Context, ref string) (task.Task, error) {
	ref = strings.TrimSpace(ref)
	t, err := a.store.Task(ctx, ref)
	if err == nil || !errors.Is(err, storage.ErrNotFound) || len(ref) < minPrefix {
		return t, err
	}
	all, err := a.store.Tasks(ctx)
	if err != nil {
		return task.Task{}, err
	}
	var found []task.Task
	for _, c := range all {
		if strings.HasPrefix(c.ID, ref) {
			found = append(found, c)
		}
	}
	switch len(found) {
	case 0:
		return task.Task{}, fmt.Errorf("task %q: %w", ref, storage.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return task.Task{}, fmt.Errorf("task %q matches %d tasks: %w", ref, len(found), ErrAmbiguous)
}

// ToggleCompletion flips the completion of ref for d (ignored for one-time
// tasks) and returns the stored result.
func (a *App) ToggleCompletion(ctx context.Context, ref string, d calendar.Date) (task.Task, error) {
	return a.updateTask(ctx, ref, func(t task.Task) (task.Task, error) {
		if t.IsRoutine() && d.IsZero() {
			return t, errors.New("date required for a routine")
		}
		out := task.ToggleCompletion(t, d)
		a.log.Info("task completion toggled",
			logx.String("id", t.ID),
			logx.Stringer("date", d),
			logx.Bool("done", task.IsCompletedOn(out, d)),
		)
		return out, nil
	})
}

// ExcludeOccurrence skips one date of a routine without touching the rest
// of the series.
func (a *App) ExcludeOccurrence(ctx context.Context, ref string, d calendar.Date) (task.Task, error) {
	return a.updateTask(ctx, ref, func(t task.Task) (task.Task, error) {
		if !t.IsRoutine() {
			return t, fmt.Errorf("task %s is not a routine", t.ID)
		}
		if d.IsZero() {
			return t, errors.New("date required")
		}
		a.log.Info("occurrence excluded", logx.String("id", t.ID), logx.Stringer("date", d))
		return task.ExcludeOccurrence(t, d), nil
	})
}

// DeleteTask removes the task and forgets its reminder.
func (a *App) DeleteTask(ctx context.Context, ref string) (task.Task, error) {
	t, err := a.Task(ctx, ref)
	if err != nil {
		return task.Task{}, err
	}
	if err := a.store.DeleteTask(ctx, t.ID); err != nil {
		return task.Task{}, err
	}
	if a.serving.Load() {
		a.sched.CancelFor(t.ID)
	}
	a.log.Info("task deleted", logx.String("id", t.ID))
	return t, nil
}

func (a *App) updateTask(ctx context.Context, ref string, fn func(task.Task) (task.Task, error)) (task.Task, error) {
	t, err := a.Task(ctx, ref)
	if err != nil {
		return task.Task{}, err
	}
	out, err := fn(t)
	if err != nil {
		return task.Task{}, err
	}
	out.UpdatedAt = a.now()
	if err := a.store.PutTask(ctx, out); err != nil {
		return task.Task{}, err
	}
	return out, a.resync(ctx)
}
