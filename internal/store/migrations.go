package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion tracks the database schema version.
const CurrentSchemaVersion = "1.0.0"

// Migration is one schema step.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all migrations in order.
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS files (
    file_id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS file_symbols (
    symbol_id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    symbol_type TEXT NOT NULL,
    symbol_name TEXT,
    code_snippet TEXT,
    FOREIGN KEY(file_id) REFERENCES files(file_id)
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON file_symbols(file_id);

CREATE TABLE IF NOT EXISTS functions (
    function_id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    return_type TEXT,
    parameters TEXT,
    start_line INTEGER,
    end_line INTEGER,
    is_prototype BOOLEAN,
    code_hash TEXT,
    code_snippet TEXT,
    FOREIGN KEY(file_id) REFERENCES files(file_id)
);

CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_id);
CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);

CREATE TABLE IF NOT EXISTS function_calls (
    call_id INTEGER PRIMARY KEY AUTOINCREMENT,
    caller_id INTEGER NOT NULL,
    callee_id INTEGER NOT NULL,
    FOREIGN KEY(caller_id) REFERENCES functions(function_id),
    FOREIGN KEY(callee_id) REFERENCES functions(function_id)
);

CREATE INDEX IF NOT EXISTS idx_calls_caller ON function_calls(caller_id);
CREATE INDEX IF NOT EXISTS idx_calls_callee ON function_calls(callee_id);

CREATE TABLE IF NOT EXISTS file_summaries (
    file_summary_id INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id INTEGER NOT NULL,
    commit_sha TEXT,
    summary TEXT,
    summary_refined TEXT,
    UNIQUE(file_id, commit_sha),
    FOREIGN KEY(file_id) REFERENCES files(file_id)
);

CREATE TABLE IF NOT EXISTS function_summaries (
    function_summary_id INTEGER PRIMARY KEY AUTOINCREMENT,
    function_id INTEGER NOT NULL,
    commit_sha TEXT,
    summary TEXT,
    summary_refined TEXT,
    UNIQUE(function_id, commit_sha),
    FOREIGN KEY(function_id) REFERENCES functions(function_id)
);

CREATE TABLE IF NOT EXISTS commits (
    commit_sha TEXT PRIMARY KEY,
    timestamp DATETIME,
    author TEXT,
    message TEXT
);

CREATE TABLE IF NOT EXISTS summary_status_master (
    item_type TEXT NOT NULL,
    item_id INTEGER NOT NULL,
    first_seen_at TEXT NOT NULL,
    PRIMARY KEY(item_type, item_id)
);

CREATE TABLE IF NOT EXISTS summary_status_commit (
    history_id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_type TEXT NOT NULL,
    item_id INTEGER NOT NULL,
    commit_sha TEXT NOT NULL,
    last_updated_at TEXT NOT NULL,
    UNIQUE(item_type, item_id, commit_sha)
);

CREATE INDEX IF NOT EXISTS idx_status_commit ON summary_status_commit(commit_sha);
`

const migrationV1Down = `
DROP TABLE IF EXISTS summary_status_commit;
DROP TABLE IF EXISTS summary_status_master;
DROP TABLE IF EXISTS commits;
DROP TABLE IF EXISTS function_summaries;
DROP TABLE IF EXISTS file_summaries;
DROP TABLE IF EXISTS function_calls;
DROP TABLE IF EXISTS functions;
DROP TABLE IF EXISTS file_symbols;
DROP TABLE IF EXISTS files;
DROP TABLE IF EXISTS schema_version;
`

// ApplyMigrations runs all pending migrations.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion *semver.Version
	switch {
	case err == sql.ErrNoRows:
		currentVersion = semver.MustParse("0.0.0")
	case err != nil:
		return fmt.Errorf("failed to check schema_version table: %w", err)
	default:
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		currentVersion = migrationVersion
	}

	return nil
}
