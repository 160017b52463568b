package ops

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/filestore"
)

// setupTest creates a fresh database and file store rooted in a temp dir.
func setupTest(t *testing.T) (*sql.DB, *filestore.Store) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	files := filestore.New(filepath.Join(tmpDir, "images"), 10*1024*1024, nil)
	return database, files
}

// writeImage writes a small source file in its own temp dir.
func writeImage(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xCD}, size), 0600); err != nil {
		t.Fatalf("writeImage failed: %v", err)
	}
	return path
}

// seedCapsule inserts a capsule row with explicit timestamps and status,
// bypassing creation-time validation so tests can craft past unlock times.
func seedCapsule(t *testing.T, database *sql.DB, id string, typ capsule.Type, status capsule.Status, unlockAt int64) {
	t.Helper()
	now := time.Now().UnixMilli()
	createdAt := unlockAt - time.Hour.Milliseconds()

	c := &capsule.Capsule{
		ID:        id,
		Type:      typ,
		Status:    capsule.StatusLocked,
		Content:   "seed content",
		CreatedAt: createdAt,
		UnlockAt:  unlockAt,
		UpdatedAt: createdAt,
	}
	if typ.RequiresReflection() {
		q := "How did it go?"
		c.ReflectionQuestion = &q
	}
	if err := db.InsertCapsule(context.Background(), database, c); err != nil {
		t.Fatalf("seedCapsule insert failed: %v", err)
	}

	switch status {
	case capsule.StatusReady:
		if _, err := database.Exec(`UPDATE capsule SET status = 'ready' WHERE id = ?`, id); err != nil {
			t.Fatalf("seedCapsule fixup failed: %v", err)
		}
	case capsule.StatusOpened:
		if _, err := database.Exec(`UPDATE capsule SET status = 'opened', opened_at = ? WHERE id = ?`, now, id); err != nil {
			t.Fatalf("seedCapsule fixup failed: %v", err)
		}
	}
}

func strPtr(s string) *string {
	return &s
}

// countRows counts rows in a table matching the capsule id.
func countRows(t *testing.T, database *sql.DB, table, column, id string) int {
	t.Helper()
	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE `+column+` = ?`, id).Scan(&count); err != nil {
		t.Fatalf("countRows failed: %v", err)
	}
	return count
}
