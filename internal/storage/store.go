package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"routined/internal/calendar"
	"routined/internal/counter"
	"routined/internal/fswatch"
	"routined/internal/task"
	logx "routined/pkg/logx"
)

// Store is the typed persistence API.
type Store struct {
	b      backend
	log    logx.Logger
	driver string
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) Close() error {
	if s == nil || s.b == nil {
		return nil
	}
	return s.b.close()
}

func (s *Store) putJSON(ctx context.Context, bucket, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.b.put(ctx, bucket, key, b)
}

func (s *Store) getJSON(ctx context.Context, bucket, key string, v any) error {
	b, err := s.b.get(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s/%s: %w", bucket, key, err)
	}
	return nil
}

// listJSON decodes every record of bucket under prefix. Records that fail
// to decode are logged and skipped so one bad record does not hide the
// rest.
func listJSON[T any](ctx context.Context, s *Store, bucket, prefix string) ([]T, error) {
	raw, err := s.b.list(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(raw))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal(raw[k], &v); err != nil {
			s.log.Warn("skipping undecodable record", logx.String("bucket", bucket), logx.String("key", k), logx.Err(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id required", kind)
	}
	return nil
}

// Tasks returns every task ordered by creation time, then ID.
func (s *Store) Tasks(ctx context.Context) ([]task.Task, error) {
	ts, err := listJSON[task.Task](ctx, s, bucketTasks, "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
	return ts, nil
}

func (s *Store) Task(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	if err := requireID("task", id); err != nil {
		return t, err
	}
	if err := s.getJSON(ctx, bucketTasks, id, &t); err != nil {
		return task.Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	return t, nil
}

// PutTask validates and upserts t.
func (s *Store) PutTask(ctx context.Context, t task.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.putJSON(ctx, bucketTasks, t.ID, t)
}

// DeleteTask returns ErrNotFound for unknown IDs.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.Task(ctx, id); err != nil {
		return err
	}
	return s.b.del(ctx, bucketTasks, id)
}

// Counters returns every counter ordered by creation time, then name.
func (s *Store) Counters(ctx context.Context) ([]counter.Counter, error) {
	cs, err := listJSON[counter.Counter](ctx, s, bucketCounters, "")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.Before(cs[j].CreatedAt)
		}
		return cs[i].Name < cs[j].Name
	})
	return cs, nil
}

func (s *Store) Counter(ctx context.Context, id string) (counter.Counter, error) {
	var c counter.Counter
	if err := requireID("counter", id); err != nil {
		return c, err
	}
	if err := s.getJSON(ctx, bucketCounters, id, &c); err != nil {
		return counter.Counter{}, fmt.Errorf("counter %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) PutCounter(ctx context.Context, c counter.Counter) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.putJSON(ctx, bucketCounters, c.ID, c)
}

// DeleteCounter removes the counter and its recorded entries.
func (s *Store) DeleteCounter(ctx context.Context, id string) error {
	if _, err := s.Counter(ctx, id); err != nil {
		return err
	}
	raw, err := s.b.list(ctx, bucketEntries, "")
	if err != nil {
		return err
	}
	for k, v := range raw {
		var e counter.Entry
		if json.Unmarshal(v, &e) == nil && e.CounterID == id {
			if err := s.b.del(ctx, bucketEntries, k); err != nil {
				return err
			}
		}
	}
	return s.b.del(ctx, bucketCounters, id)
}

// Clear deletes every task, counter and recorded entry and returns how many
// records went. Tasks go first so a watching daemon drops their timers on
// the first change it sees. Meta and dedup records survive.
func (s *Store) Clear(ctx context.Context) (int, error) {
	n := 0
	for _, bucket := range []string{bucketTasks, bucketCounters, bucketEntries} {
		raw, err := s.b.list(ctx, bucket, "")
		if err != nil {
			return n, err
		}
		for k := range raw {
			if err := s.b.del(ctx, bucket, k); err != nil {
				return n, fmt.Errorf("%s/%s: %w", bucket, k, err)
			}
			n++
		}
	}
	return n, nil
}

func entryKey(e counter.Entry) string { return e.Date.String() + "_" + e.ID }

func (s *Store) PutEntry(ctx context.Context, e counter.Entry) error {
	if e.Date.IsZero() {
		return fmt.Errorf("%w: entry date required", counter.ErrInvalid)
	}
	if err := requireID("entry", e.ID); err != nil {
		return err
	}
	return s.putJSON(ctx, bucketEntries, entryKey(e), e)
}

// EntriesOn returns the entries recorded for d.
func (s *Store) EntriesOn(ctx context.Context, d calendar.Date) ([]counter.Entry, error) {
	return listJSON[counter.Entry](ctx, s, bucketEntries, d.String()+"_")
}

// History returns a counter's entries, oldest first.
func (s *Store) History(ctx context.Context, counterID string) ([]counter.Entry, error) {
	all, err := listJSON[counter.Entry](ctx, s, bucketEntries, "")
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.CounterID == counterID {
			out = append(out, e)
		}
	}
	return out, nil
}

// LastReset is the day of the last counter rollover; zero if none ran yet.
func (s *Store) LastReset(ctx context.Context) (calendar.Date, error) {
	var d calendar.Date
	err := s.getJSON(ctx, bucketMeta, keyLastReset, &d)
	if errors.Is(err, ErrNotFound) {
		return calendar.Date{}, nil
	}
	return d, err
}

func (s *Store) SetLastReset(ctx context.Context, d calendar.Date) error {
	return s.putJSON(ctx, bucketMeta, keyLastReset, d)
}

// ApplyRollover persists the outcome of counter.Rollover. The marker is
// written last so an interrupted rollover is retried.
func (s *Store) ApplyRollover(ctx context.Context, res counter.RolloverResult) error {
	if !res.Due {
		return nil
	}
	for _, e := range res.Entries {
		if err := s.PutEntry(ctx, e); err != nil {
			return err
		}
	}
	for _, c := range res.Reset {
		if err := s.PutCounter(ctx, c); err != nil {
			return err
		}
	}
	return s.SetLastReset(ctx, res.LastReset)
}

type dedupRecord struct {
	Until int64 `json:"until"` // unix milli
}

// PutDedup records that key was delivered and stays suppressed until until.
func (s *Store) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return s.putJSON(ctx, bucketDedup, key, dedupRecord{Until: until.UnixMilli()})
}

func (s *Store) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	var r dedupRecord
	err := s.getJSON(ctx, bucketDedup, key, &r)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(r.Until), true, nil
}

// PruneDedup drops records that expired before now.
func (s *Store) PruneDedup(ctx context.Context, now time.Time) (int, error) {
	raw, err := s.b.list(ctx, bucketDedup, "")
	if err != nil {
		return 0, err
	}
	n := 0
	for k, v := range raw {
		var r dedupRecord
		if json.Unmarshal(v, &r) != nil || r.Until < now.UnixMilli() {
			if err := s.b.del(ctx, bucketDedup, k); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

// Watch calls onChange after writes to the task data (from this or any
// other process) until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	opt := s.b.watchOptions()
	opt.Log = s.log
	opt.Debounce = fswatch.DefaultDebounce
	return fswatch.Watch(ctx, opt, onChange)
}
