// Package core provides the business logic for tracking bulk imports.
//
// An external worker parses an uploaded file and reports back; this package
// records what happened. It is independent of any transport and is used by
// the HTTP server, the ledgerctl CLI and tests alike.
//
// # Architecture
//
//   - Import ledger: one record per uploaded file with its lifecycle status
//     and aggregate counters ([Service.CreateImport], [Service.UpdateImportStatus]).
//   - Row results: one record per data row, created PENDING in a single batch
//     and finalized individually ([Service.CreateRowResults], [Service.UpdateRowResult]).
//   - Counter aggregator: every row finalization applies an additive delta
//     to the import, so concurrent workers never lose increments.
//   - Progress cursor: [Service.PollProgress] returns rows changed after a
//     client-held timestamp together with the next cursor.
//   - Dispatch boundary: [Service.StartImport] hands a [JobDescriptor] to a
//     [Dispatcher] and marks the import FAILED if that fails.
//
// Persistence is behind the [Store] interface. internal/database implements
// it on PostgreSQL; internal/memstore keeps everything in memory.
//
// # Lifecycle
//
//	PENDING -> VALIDATING -> PROCESSING -> COMPLETED
//	   \___________\______________\______> FAILED
//
// Transitions are not enforced: workers may report them in any order and
// the ledger records what it is told. startedAt is stamped on the first
// move to VALIDATING or PROCESSING, completedAt each time a terminal status is set.
//
// # Error Handling
//
// Domain errors are sentinels matched with errors.Is. [MapError] turns any
// error into a client-facing message and a support code (IMP, ROW, VAL, DB).
package core
