// Package store persists the structural fact base: files, symbols,
// functions, call edges, summaries and processing status.
//
// The store is concurrency-safe behind a bounded database/sql connection
// pool running SQLite in WAL mode. Reads may run concurrently with writes,
// but structural mutations are expected to arrive from the pipeline's single
// writer context; the store enforces row-level atomicity (insert-or-ignore
// identity assignment, upsert-on-conflict summaries), not cross-table
// ordering.
//
// Symbol and function inserts are append-only: re-extraction adds rows
// rather than replacing them, and read-time unification is left to the
// codemap package. This preserves the fact base's history at the cost of a
// known growth gap.
package store
