// Package notifier delivers due reminders.
//
// Notify enqueues a Message and returns at once; workers drain the queue,
// pace sends with a shared rate limit and hand each message to every Sink
// (console, Telegram). A failed send is retried with jittered backoff, then
// dropped and reported on the event bus.
//
// # Dedup
//
// A reminder key ("task-<id>-<date>") is delivered at most once per dedup
// window. With PersistDedup the marks survive restarts through a DedupStore.
//
// # Circuit breaker
//
// A sink that keeps dropping reminders is skipped for a growing cooldown so
// a dead bot token does not hold up the console.
//
// # History
//
// The last 200 deliveries are kept in memory for `routined status`.
package notifier
