// Package store is the embedded record store: one SQLite database holding
// every typed record stream the parser produces, keyed by log id. Writes
// are batched inside transactions; readers only see committed batches, so
// timeline assembly can run against a store that is still being appended
// to.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS log_metadata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_file TEXT NOT NULL,
	file_size INTEGER,
	file_mtime INTEGER,
	file_inode INTEGER,
	fingerprint TEXT,
	editor_version TEXT,
	platform TEXT,
	architecture TEXT,
	project_name TEXT,
	start_ts INTEGER,
	end_ts INTEGER,
	total_lines INTEGER NOT NULL DEFAULT 0,
	parse_time_ms REAL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS asset_imports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	asset_path TEXT NOT NULL,
	asset_name TEXT,
	asset_type TEXT,
	asset_category TEXT,
	guid TEXT,
	artifact_id TEXT,
	importer_type TEXT,
	import_time_ms REAL NOT NULL,
	start_ts INTEGER,
	end_ts INTEGER,
	worker_id INTEGER,
	UNIQUE (log_id, line_number, guid)
);

CREATE TABLE IF NOT EXISTS operations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	process_type TEXT NOT NULL,
	process_name TEXT,
	duration_ms REAL NOT NULL,
	memory_mb INTEGER,
	start_ts INTEGER,
	end_ts INTEGER,
	UNIQUE (log_id, line_number, process_type)
);

CREATE TABLE IF NOT EXISTS pipeline_refreshes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	refresh_id TEXT,
	total_time_seconds REAL NOT NULL,
	initiated_by TEXT,
	imports_total INTEGER,
	imports_actual INTEGER,
	assetdb_process_ms REAL,
	callbacks_ms REAL,
	domain_reloads INTEGER,
	domain_reload_ms REAL,
	compile_ms REAL,
	other_ms REAL,
	UNIQUE (log_id, line_number)
);

CREATE TABLE IF NOT EXISTS domain_reload_steps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	step_id INTEGER NOT NULL,
	line_number INTEGER NOT NULL,
	parent_id INTEGER,
	step_name TEXT NOT NULL,
	time_ms REAL NOT NULL,
	indent_level INTEGER NOT NULL,
	UNIQUE (log_id, step_id)
);

CREATE TABLE IF NOT EXISTS worker_phases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	worker_id INTEGER NOT NULL,
	start_ts INTEGER,
	end_ts INTEGER,
	import_count INTEGER NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	UNIQUE (log_id, worker_id, start_line)
);

CREATE TABLE IF NOT EXISTS cache_server_blocks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	start_ts INTEGER,
	end_ts INTEGER,
	assets_requested INTEGER NOT NULL,
	assets_downloaded INTEGER NOT NULL,
	duration_seconds REAL NOT NULL,
	UNIQUE (log_id, line_number)
);

CREATE TABLE IF NOT EXISTS telemetry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	event_type TEXT,
	payload TEXT,
	UNIQUE (log_id, line_number)
);

CREATE TABLE IF NOT EXISTS script_compilation (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	assembly_path TEXT NOT NULL,
	defines_count INTEGER NOT NULL,
	references_count INTEGER NOT NULL,
	UNIQUE (log_id, line_number)
);

CREATE TABLE IF NOT EXISTS log_lines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	log_id INTEGER NOT NULL REFERENCES log_metadata(id),
	line_number INTEGER NOT NULL,
	content TEXT NOT NULL,
	line_type TEXT,
	indent_level INTEGER NOT NULL DEFAULT 0,
	is_error INTEGER NOT NULL DEFAULT 0,
	is_warning INTEGER NOT NULL DEFAULT 0,
	ts INTEGER,
	UNIQUE (log_id, line_number)
);

CREATE INDEX IF NOT EXISTS idx_imports_line ON asset_imports(log_id, line_number);
CREATE INDEX IF NOT EXISTS idx_imports_category ON asset_imports(log_id, asset_category, import_time_ms DESC);
CREATE INDEX IF NOT EXISTS idx_operations_line ON operations(log_id, line_number);
CREATE INDEX IF NOT EXISTS idx_operations_type ON operations(log_id, process_type, duration_ms DESC);
CREATE INDEX IF NOT EXISTS idx_phases_worker ON worker_phases(log_id, worker_id, start_ts);
CREATE INDEX IF NOT EXISTS idx_lines_number ON log_lines(log_id, line_number);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY
	// churn during batched ingestion.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Identity is the file identity used to recognize an already-ingested log.
type Identity struct {
	Size        int64
	ModTime     int64
	Inode       uint64
	Fingerprint string
}

// CreateLog inserts a fresh metadata row and returns its id.
func (s *Store) CreateLog(ctx context.Context, filePath string, id Identity) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO log_metadata (log_file, file_size, file_mtime, file_inode, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		filePath, id.Size, id.ModTime, int64(id.Inode), id.Fingerprint, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("create log entry: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create log entry: %w", err)
	}
	return logID, nil
}

// FindLog looks up a previously ingested, unchanged copy of the same file.
func (s *Store) FindLog(ctx context.Context, filePath string, id Identity) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM log_metadata
		WHERE log_file = ? AND file_size = ? AND file_mtime = ? AND file_inode = ? AND fingerprint = ?
		  AND parse_time_ms IS NOT NULL
		ORDER BY id DESC LIMIT 1`,
		filePath, id.Size, id.ModTime, int64(id.Inode), id.Fingerprint)

	var logID int64
	if err := row.Scan(&logID); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("find log entry: %w", err)
	}
	return logID, true, nil
}

// LatestLogID returns the most recently created log entry.
func (s *Store) LatestLogID(ctx context.Context) (int64, bool, error) {
	var logID int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM log_metadata ORDER BY id DESC LIMIT 1`).Scan(&logID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("latest log entry: %w", err)
	}
	return logID, true, nil
}
