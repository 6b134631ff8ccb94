// Package codemap assembles the per-file structural view from stored facts.
//
// The assembler is read-only: it joins files, symbols, functions, call
// edges and commit-scoped summaries into a Map keyed by file path. Function
// rows are append-only in the store, so logically-identical rows (same
// file, name and line range) are unified here, and prototype rows are
// folded into their real definitions when one exists.
package codemap
