// Package scheduler keeps one live reminder timer per task.
//
// Each timer fires at occurrence minus the task's advance offset. On expiry
// the callback re-reads the task from the latest synced set, suppresses the
// reminder if that occurrence is already completed, and re-arms for the next
// occurrence. A version number per armed timer turns stale callbacks into
// no-ops, so Resync/CancelFor/CancelAll are safe from inside a handler.
//
// The service also hosts cron housekeeping jobs (robfig/cron).
package scheduler
