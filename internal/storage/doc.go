// Package storage persists tasks, counters, counter entries and notifier
// dedup state.
//
// A Store is a typed layer over a small bucketed key/value backend. Three
// drivers exist:
//   - "file": one JSON document per bucket (<path>/<bucket>.json)
//   - "diskv": one file per record (<path>/<bucket>/<key>)
//   - "sqlite": a single kv table in an SQLite database
//
// Every driver re-reads on access, so a CLI process and the daemon can share
// one data directory; Watch reports writes from any of them.
package storage
