package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row doesn't exist.
	ErrNotFound = errors.New("not found")
)

// Symbol type tags persisted in file_symbols.symbol_type.
const (
	SymbolStruct  = "struct"
	SymbolTypedef = "typedef"
	SymbolGlobal  = "global"
)

// Item type tags for processing status rows.
const (
	ItemFile     = "file"
	ItemFunction = "function"
)

// Querier is the set of row operations available both on the store itself
// and inside a transaction.
type Querier interface {
	// Files. Paths are repo-relative and unique; ids are immutable once
	// assigned.
	InsertOrGetFile(ctx context.Context, path string) (int64, error)
	GetFileID(ctx context.Context, path string) (int64, error)
	ListFiles(ctx context.Context) ([]*File, error)

	// Symbols (structs, typedefs, globals). Append-only.
	InsertSymbol(ctx context.Context, sym *Symbol) error
	ListSymbols(ctx context.Context) ([]*Symbol, error)

	// Functions. Append-only; duplicate logical rows are expected across
	// extraction passes and unified at read time.
	InsertFunction(ctx context.Context, fn *Function) error
	ListFunctions(ctx context.Context) ([]*Function, error)
	FindFunctionInFile(ctx context.Context, fileID int64, name string) (int64, error)
	// FindFunctionByName searches globally, preferring a real definition
	// over a prototype. A heuristic: same-named static functions across
	// files resolve to the first match.
	FindFunctionByName(ctx context.Context, name string) (int64, error)

	// Call edges. Self edges are dropped; duplicate rows are allowed.
	InsertCallEdge(ctx context.Context, callerID, calleeID int64) error
	ListCallEdges(ctx context.Context) ([]*CallEdge, error)

	// Summaries, keyed by (item, commit); repeated writes overwrite.
	UpsertFileSummary(ctx context.Context, fileID int64, commit, summary, refined string) error
	UpsertFunctionSummary(ctx context.Context, functionID int64, commit, summary, refined string) error
	HasFileSummary(ctx context.Context, fileID int64, commit string) (bool, error)
	HasFunctionSummary(ctx context.Context, functionID int64, commit string) (bool, error)
	ListFileSummaries(ctx context.Context, commit string) ([]*Summary, error)
	ListFunctionSummaries(ctx context.Context, commit string) ([]*Summary, error)

	// Processing status, two-tier: a master first-seen row per
	// (item_type, item_id) and a commit-scoped row per (item, commit).
	MarkProcessed(ctx context.Context, itemType string, itemID int64, commit string) error
	HasProcessed(ctx context.Context, itemType string, itemID int64, commit string) (bool, error)
	UnprocessedFiles(ctx context.Context, commit string) ([]*File, error)
	UnprocessedFunctions(ctx context.Context, commit string) ([]*Function, error)

	// Commit metadata.
	RecordCommit(ctx context.Context, sha, author, message string, timestamp time.Time) error
}

// Store is the durable fact base.
type Store interface {
	Querier
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a transaction over the same row operations.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// File is a tracked source file.
type File struct {
	ID   int64
	Path string
}

// Symbol is a struct, typedef or global fact belonging to one file.
type Symbol struct {
	ID      int64
	FileID  int64
	Type    string
	Name    string
	Snippet string
}

// Function is one persisted function row (definition or prototype).
type Function struct {
	ID         int64
	FileID     int64
	Name       string
	ReturnType string
	Parameters []string
	StartLine  int
	EndLine    int
	Prototype  bool
	CodeHash   string
	Snippet    string
}

// CallEdge is a directed caller -> callee edge between function rows.
type CallEdge struct {
	ID       int64
	CallerID int64
	CalleeID int64
}

// Summary is a stored file- or function-scoped summary for one commit.
type Summary struct {
	ItemID  int64
	Commit  string
	Summary string
	Refined string
}

// Text returns the refined summary when present, else the initial one.
func (s *Summary) Text() string {
	if s.Refined != "" {
		return s.Refined
	}
	return s.Summary
}

// HashSnippet computes the content hash stored with each function row.
func HashSnippet(snippet string) string {
	sum := sha256.Sum256([]byte(snippet))
	return hex.EncodeToString(sum[:])
}
