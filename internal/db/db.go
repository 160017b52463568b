package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"timecapsule/internal/config"
	"timecapsule/internal/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/capsule.db.
// The baseDir parameter allows tests to use t.TempDir() instead of the app data dir.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("failed to create base directory: %w", err))
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections).
	// foreign_keys is required for capsule_image ON DELETE CASCADE.
	dbPath := filepath.Join(baseDir, "capsule.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("failed to open database: %w", err))
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// Reset destructively removes the database files under baseDir.
// Development tooling only; the handle must be closed first.
func Reset(baseDir string) error {
	dbPath := filepath.Join(baseDir, "capsule.db")
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.NewIOFailure(fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return nil
}

// migrate applies schema migrations based on user_version.
// Migrations are forward-only and additive; every statement uses IF NOT EXISTS
// so an interrupted run is safe to repeat.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: initial schema
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS capsule (
		  id                  TEXT PRIMARY KEY,
		  type                TEXT NOT NULL CHECK (type IN ('emotion','goal','memory','decision')),
		  status              TEXT NOT NULL DEFAULT 'locked' CHECK (status IN ('locked','ready','opened')),
		  content             TEXT NOT NULL,
		  reflection_question TEXT,
		  reflection_answer   TEXT CHECK (reflection_answer IS NULL OR reflection_answer IN ('yes','no','1','2','3','4','5')),
		  created_at          INTEGER NOT NULL,
		  unlock_at           INTEGER NOT NULL,
		  opened_at           INTEGER,
		  updated_at          INTEGER NOT NULL,
		  CHECK (unlock_at > created_at)
		);

		CREATE TABLE IF NOT EXISTS capsule_image (
		  id          TEXT PRIMARY KEY,
		  capsule_id  TEXT NOT NULL REFERENCES capsule(id) ON DELETE CASCADE,
		  file_path   TEXT NOT NULL,
		  order_index INTEGER NOT NULL CHECK (order_index BETWEEN 0 AND 2),
		  created_at  INTEGER NOT NULL,
		  UNIQUE (capsule_id, order_index)
		);

		CREATE INDEX IF NOT EXISTS idx_capsule_unlock_status
		ON capsule(unlock_at ASC, status)
		WHERE status IN ('locked','ready');

		CREATE INDEX IF NOT EXISTS idx_capsule_opened
		ON capsule(opened_at DESC)
		WHERE status = 'opened';

		CREATE INDEX IF NOT EXISTS idx_capsule_image_capsule
		ON capsule_image(capsule_id, order_index);

		CREATE INDEX IF NOT EXISTS idx_capsule_pending
		ON capsule(unlock_at ASC)
		WHERE status = 'locked';
		`
		if _, err := db.Exec(schema); err != nil {
			return errors.NewStorageUnavailable(fmt.Errorf("migration 1 failed: %w", err))
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return errors.NewStorageUnavailable(fmt.Errorf("failed to verify journal mode: %w", err))
	}
	if journalMode != "wal" {
		return errors.NewStorageUnavailable(fmt.Errorf("expected WAL mode, got %s", journalMode))
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, errors.NewStorageUnavailable(fmt.Errorf("failed to get user_version: %w", err))
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return errors.NewStorageUnavailable(fmt.Errorf("failed to set user_version: %w", err))
	}
	return nil
}
