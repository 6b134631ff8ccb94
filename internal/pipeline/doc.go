// Package pipeline drives the concurrent indexing run: discover source
// files, fan extraction out across a worker pool, and funnel every
// structural mutation through one writer goroutine.
//
// The run moves through Discovering -> Dispatching -> Draining -> Stopped.
// Discovery collects the complete file list before any dispatch so progress
// can be reported against a fixed total. Workers parse and extract only;
// the writer owns all structural store mutations and consumes its queue in
// arrival order, storing each file's symbols, functions and call edges as
// one transaction before marking the file processed.
//
// Cancellation is cooperative and observed at dispatch boundaries only:
// in-flight extractions and writes always complete, the writer drains
// whatever was enqueued, and the store is never left with a partially
// written file. Interrupted runs resume cheaply because processed files are
// skipped through the tracker.
package pipeline
