// Package storage handles data persistence: SQLite database, photo files on
// disk, the redis result cache and the MinIO photo archive.
package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 database/sql driver
)

// The schema is applied on every start; statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS analyses (
    id               TEXT PRIMARY KEY,
    request_id       TEXT NOT NULL DEFAULT '',
    photo_sha256     TEXT NOT NULL,
    provider         TEXT NOT NULL DEFAULT '',
    model            TEXT NOT NULL DEFAULT '',
    raw_report       TEXT NOT NULL DEFAULT '',
    zones            TEXT NOT NULL DEFAULT '{}',
    diagnosis        TEXT NOT NULL DEFAULT '',
    recommendations  TEXT NOT NULL DEFAULT '[]',
    confidence       REAL NOT NULL DEFAULT 0.8,
    image_quality    TEXT NOT NULL DEFAULT 'Good',
    additional_notes TEXT,
    has_thumbnail    BOOLEAN NOT NULL DEFAULT 0,
    archive_url      TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS llm_calls (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    photo_sha256 TEXT NOT NULL,
    provider     TEXT NOT NULL,
    model        TEXT NOT NULL,
    success      BOOLEAN NOT NULL DEFAULT 0,
    status_code  INTEGER,
    duration_ms  INTEGER,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_analyses_photo ON analyses(photo_sha256);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_llm_calls_photo ON llm_calls(photo_sha256);
`

// NewDatabase opens the SQLite database at dbPath and runs migrations.
//
// The constructor creates the resource and validates it (Ping); on failure
// the caller decides what to do.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL allows concurrent reads while writing; busy_timeout waits on lock
	// contention instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Open is lazy; Ping actually connects.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
