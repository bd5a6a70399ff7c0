package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite export of analysed files: their scopes, bindings and
// classified occurrences.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  line_count      INTEGER DEFAULT 0,
  repaired        BOOLEAN DEFAULT FALSE,
  syntax_error    TEXT DEFAULT '',
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scopes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  kind            TEXT NOT NULL,
  name            TEXT,
  path            TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  parent_scope_id INTEGER REFERENCES scopes(id)
);

CREATE TABLE IF NOT EXISTS bindings (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  scope_id        INTEGER NOT NULL REFERENCES scopes(id),
  name            TEXT NOT NULL,
  kinds           INTEGER NOT NULL,
  is_self         BOOLEAN DEFAULT FALSE,
  used            BOOLEAN DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS occurrences (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  scope_id        INTEGER NOT NULL REFERENCES scopes(id),
  binding_id      INTEGER REFERENCES bindings(id),
  name            TEXT NOT NULL,
  role            TEXT NOT NULL,
  category        TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  ordinal         INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file_id);
CREATE INDEX IF NOT EXISTS idx_scopes_parent ON scopes(parent_scope_id);
CREATE INDEX IF NOT EXISTS idx_bindings_file ON bindings(file_id);
CREATE INDEX IF NOT EXISTS idx_bindings_scope ON bindings(scope_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_file ON occurrences(file_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_binding ON occurrences(binding_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_name ON occurrences(name);
CREATE INDEX IF NOT EXISTS idx_occurrences_category ON occurrences(category);
`

// DeleteFileData transactionally removes the analysis rows of a file.
// Deletes in reverse-dependency order to respect FK constraints. The file
// row itself stays.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM occurrences WHERE file_id = ?",
		"DELETE FROM bindings WHERE file_id = ?",
		"DELETE FROM scopes WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete analysis data: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteFile removes a file and all of its analysis rows.
func (s *Store) DeleteFile(fileID int64) error {
	if err := s.DeleteFileData(fileID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" when unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
