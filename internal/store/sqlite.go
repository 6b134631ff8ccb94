package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPoolSize bounds the sql connection pool when the caller doesn't
// configure one.
const DefaultPoolSize = 5

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db *sql.DB
	queries
}

// openDatabase opens a SQLite database in WAL mode with a bounded pool.
// Per-connection pragmas (busy_timeout, foreign_keys) arrive via the DSN so
// they hold on every pooled connection.
func openDatabase(dbPath string, poolSize int) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// WAL is a persistent database property; one exec is enough.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the fact base at dbPath.
func NewSQLiteStore(dbPath string, poolSize int) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath, poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, queries: queries{q: db}}, nil
}

// Close closes the underlying pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a transaction exposing the same row operations.
func (s *SQLiteStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, queries: queries{q: tx}}, nil
}

type sqliteTx struct {
	tx *sql.Tx
	queries
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries implements Querier against any dbtx.
type queries struct {
	q dbtx
}

// File operations

func (s queries) InsertOrGetFile(ctx context.Context, path string) (int64, error) {
	if _, err := s.q.ExecContext(ctx, "INSERT OR IGNORE INTO files (path) VALUES (?)", path); err != nil {
		return 0, fmt.Errorf("failed to insert file %s: %w", path, err)
	}
	var id int64
	err := s.q.QueryRowContext(ctx, "SELECT file_id FROM files WHERE path = ?", path).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve file id for %s: %w", path, err)
	}
	return id, nil
}

func (s queries) GetFileID(ctx context.Context, path string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, "SELECT file_id FROM files WHERE path = ?", path).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up file %s: %w", path, err)
	}
	return id, nil
}

func (s queries) ListFiles(ctx context.Context) ([]*File, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT file_id, path FROM files ORDER BY file_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// Symbol operations

func (s queries) InsertSymbol(ctx context.Context, sym *Symbol) error {
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO file_symbols (file_id, symbol_type, symbol_name, code_snippet)
		VALUES (?, ?, ?, ?)`,
		sym.FileID, sym.Type, sym.Name, sym.Snippet)
	if err != nil {
		return fmt.Errorf("failed to insert symbol %s: %w", sym.Name, err)
	}
	sym.ID, err = result.LastInsertId()
	return err
}

func (s queries) ListSymbols(ctx context.Context) ([]*Symbol, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT symbol_id, file_id, symbol_type, symbol_name, code_snippet
		FROM file_symbols ORDER BY symbol_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var syms []*Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Type, &sym.Name, &sym.Snippet); err != nil {
			return nil, err
		}
		syms = append(syms, &sym)
	}
	return syms, rows.Err()
}

// Function operations

func (s queries) InsertFunction(ctx context.Context, fn *Function) error {
	params, err := json.Marshal(fn.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters for %s: %w", fn.Name, err)
	}
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO functions
		(file_id, name, return_type, parameters, start_line, end_line, is_prototype, code_hash, code_snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fn.FileID, fn.Name, fn.ReturnType, string(params),
		fn.StartLine, fn.EndLine, fn.Prototype, fn.CodeHash, fn.Snippet)
	if err != nil {
		return fmt.Errorf("failed to insert function %s: %w", fn.Name, err)
	}
	fn.ID, err = result.LastInsertId()
	return err
}

const functionColumns = `function_id, file_id, name, return_type, parameters,
	start_line, end_line, is_prototype, code_hash, code_snippet`

func scanFunction(scan func(...interface{}) error) (*Function, error) {
	var fn Function
	var params string
	if err := scan(&fn.ID, &fn.FileID, &fn.Name, &fn.ReturnType, &params,
		&fn.StartLine, &fn.EndLine, &fn.Prototype, &fn.CodeHash, &fn.Snippet); err != nil {
		return nil, err
	}
	// Tolerate rows written with malformed parameter blobs.
	if err := json.Unmarshal([]byte(params), &fn.Parameters); err != nil {
		fn.Parameters = nil
	}
	return &fn, nil
}

func (s queries) ListFunctions(ctx context.Context) ([]*Function, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+functionColumns+" FROM functions ORDER BY function_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fns []*Function
	for rows.Next() {
		fn, err := scanFunction(rows.Scan)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

func (s queries) FindFunctionInFile(ctx context.Context, fileID int64, name string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		SELECT function_id FROM functions
		WHERE file_id = ? AND name = ?
		ORDER BY function_id LIMIT 1`, fileID, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (s queries) FindFunctionByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		SELECT function_id FROM functions
		WHERE name = ? AND is_prototype = 0
		ORDER BY function_id LIMIT 1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT function_id FROM functions
		WHERE name = ?
		ORDER BY function_id LIMIT 1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

// Call edge operations

func (s queries) InsertCallEdge(ctx context.Context, callerID, calleeID int64) error {
	// Recursive calls are intentionally not modeled.
	if callerID == calleeID {
		return nil
	}
	_, err := s.q.ExecContext(ctx,
		"INSERT INTO function_calls (caller_id, callee_id) VALUES (?, ?)",
		callerID, calleeID)
	if err != nil {
		return fmt.Errorf("failed to insert call edge %d->%d: %w", callerID, calleeID, err)
	}
	return nil
}

func (s queries) ListCallEdges(ctx context.Context) ([]*CallEdge, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT call_id, caller_id, callee_id FROM function_calls ORDER BY call_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var edges []*CallEdge
	for rows.Next() {
		var e CallEdge
		if err := rows.Scan(&e.ID, &e.CallerID, &e.CalleeID); err != nil {
			return nil, err
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// Summary operations

func (s queries) UpsertFileSummary(ctx context.Context, fileID int64, commit, summary, refined string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO file_summaries (file_id, commit_sha, summary, summary_refined)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_id, commit_sha) DO UPDATE SET
			summary = excluded.summary,
			summary_refined = excluded.summary_refined`,
		fileID, commit, summary, refined)
	if err != nil {
		return fmt.Errorf("failed to upsert file summary: %w", err)
	}
	return nil
}

func (s queries) UpsertFunctionSummary(ctx context.Context, functionID int64, commit, summary, refined string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO function_summaries (function_id, commit_sha, summary, summary_refined)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(function_id, commit_sha) DO UPDATE SET
			summary = excluded.summary,
			summary_refined = excluded.summary_refined`,
		functionID, commit, summary, refined)
	if err != nil {
		return fmt.Errorf("failed to upsert function summary: %w", err)
	}
	return nil
}

func (s queries) HasFileSummary(ctx context.Context, fileID int64, commit string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		"SELECT 1 FROM file_summaries WHERE file_id = ? AND commit_sha = ?",
		fileID, commit).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s queries) HasFunctionSummary(ctx context.Context, functionID int64, commit string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		"SELECT 1 FROM function_summaries WHERE function_id = ? AND commit_sha = ?",
		functionID, commit).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s queries) ListFileSummaries(ctx context.Context, commit string) ([]*Summary, error) {
	return s.listSummaries(ctx, `
		SELECT file_id, commit_sha, summary, summary_refined
		FROM file_summaries WHERE commit_sha = ? ORDER BY file_id`, commit)
}

func (s queries) ListFunctionSummaries(ctx context.Context, commit string) ([]*Summary, error) {
	return s.listSummaries(ctx, `
		SELECT function_id, commit_sha, summary, summary_refined
		FROM function_summaries WHERE commit_sha = ? ORDER BY function_id`, commit)
}

func (s queries) listSummaries(ctx context.Context, query, commit string) ([]*Summary, error) {
	rows, err := s.q.QueryContext(ctx, query, commit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sums []*Summary
	for rows.Next() {
		var sum Summary
		var summary, refined sql.NullString
		if err := rows.Scan(&sum.ItemID, &sum.Commit, &summary, &refined); err != nil {
			return nil, err
		}
		sum.Summary = summary.String
		sum.Refined = refined.String
		sums = append(sums, &sum)
	}
	return sums, rows.Err()
}

// Processing status operations

func (s queries) MarkProcessed(ctx context.Context, itemType string, itemID int64, commit string) error {
	if _, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO summary_status_master (item_type, item_id, first_seen_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)`, itemType, itemID); err != nil {
		return fmt.Errorf("failed to record first-seen status: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO summary_status_commit (item_type, item_id, commit_sha, last_updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(item_type, item_id, commit_sha) DO UPDATE SET
			last_updated_at = CURRENT_TIMESTAMP`, itemType, itemID, commit); err != nil {
		return fmt.Errorf("failed to record commit status: %w", err)
	}
	return nil
}

func (s queries) HasProcessed(ctx context.Context, itemType string, itemID int64, commit string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `
		SELECT 1 FROM summary_status_commit
		WHERE item_type = ? AND item_id = ? AND commit_sha = ?`,
		itemType, itemID, commit).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s queries) UnprocessedFiles(ctx context.Context, commit string) ([]*File, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT f.file_id, f.path
		FROM files f
		LEFT JOIN summary_status_commit s
			ON s.item_type = 'file' AND s.item_id = f.file_id AND s.commit_sha = ?
		WHERE s.history_id IS NULL
		ORDER BY f.file_id`, commit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func (s queries) UnprocessedFunctions(ctx context.Context, commit string) ([]*Function, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT fn.function_id, fn.file_id, fn.name, fn.return_type, fn.parameters,
		       fn.start_line, fn.end_line, fn.is_prototype, fn.code_hash, fn.code_snippet
		FROM functions fn
		LEFT JOIN summary_status_commit s
			ON s.item_type = 'function' AND s.item_id = fn.function_id AND s.commit_sha = ?
		WHERE s.history_id IS NULL
		ORDER BY fn.function_id`, commit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var fns []*Function
	for rows.Next() {
		fn, err := scanFunction(rows.Scan)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, rows.Err()
}

// Commit metadata

func (s queries) RecordCommit(ctx context.Context, sha, author, message string, timestamp time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO commits (commit_sha, timestamp, author, message)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(commit_sha) DO UPDATE SET
			timestamp = excluded.timestamp,
			author = excluded.author,
			message = excluded.message`,
		sha, timestamp, author, message)
	if err != nil {
		return fmt.Errorf("failed to record commit %s: %w", sha, err)
	}
	return nil
}
