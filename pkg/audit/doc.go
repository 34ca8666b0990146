// Package audit persists the lineage of synthesis runs.
//
// Every finished run becomes an Entry: the outcome, the policy version it
// ran under, the input and final content hashes, and the ordered correction
// records. Entries can be listed, fetched by run id, re-verified against
// their hash chain, and pruned on a retention schedule.
//
// # Backends
//
//   - MemoryStore: in-process, for tests and one-shot CLI runs
//   - SQLiteStore: durable single-file storage; the driver is selectable
//     between modernc.org/sqlite ("sqlite", pure Go) and
//     github.com/mattn/go-sqlite3 ("sqlite3", cgo)
//
// # Retention
//
// A Pruner deletes entries older than RetentionDays and trims the store to
// MaxEntries. Start schedules it with a cron expression:
//
//	audit:
//	  retention_days: 365
//	  prune_schedule: "0 3 * * *"
//
// The synthesis engine never depends on a sink succeeding; recording
// errors are logged and the run result is returned unchanged.
package audit
