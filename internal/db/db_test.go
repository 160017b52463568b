package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInit_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, "capsule.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	version, err := GetUserVersion(database)
	if err != nil {
		t.Fatalf("GetUserVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()

	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	database.Close()

	// Re-opening an already-migrated database must be a no-op
	database, err = Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	defer database.Close()

	version, err := GetUserVersion(database)
	if err != nil {
		t.Fatalf("GetUserVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_ForeignKeysEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	var enabled int
	if err := database.QueryRow("PRAGMA foreign_keys;").Scan(&enabled); err != nil {
		t.Fatalf("pragma query failed: %v", err)
	}
	if enabled != 1 {
		t.Error("foreign_keys pragma should be on; cascade deletion depends on it")
	}
}

func TestSchema_ChecksEnforced(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	insert := `
		INSERT INTO capsule (id, type, status, content, created_at, unlock_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	// Unknown type
	if _, err := database.Exec(insert, "c1", "secret", "locked", "x", 1000, 2000, 1000); err == nil {
		t.Error("insert with unknown type should violate CHECK")
	}

	// Unknown status
	if _, err := database.Exec(insert, "c2", "goal", "pending", "x", 1000, 2000, 1000); err == nil {
		t.Error("insert with unknown status should violate CHECK")
	}

	// unlock_at must be after created_at
	if _, err := database.Exec(insert, "c3", "goal", "locked", "x", 2000, 2000, 2000); err == nil {
		t.Error("insert with unlock_at == created_at should violate CHECK")
	}

	// Answer outside the vocabulary
	full := `
		INSERT INTO capsule (id, type, status, content, reflection_answer, created_at, unlock_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := database.Exec(full, "c4", "emotion", "opened", "x", "maybe", 1000, 2000, 1000); err == nil {
		t.Error("insert with out-of-vocabulary answer should violate CHECK")
	}

	// Valid row passes
	if _, err := database.Exec(insert, "c5", "goal", "locked", "x", 1000, 2000, 1000); err != nil {
		t.Errorf("valid insert failed: %v", err)
	}

	// order_index outside 0-2
	if _, err := database.Exec(
		`INSERT INTO capsule_image (id, capsule_id, file_path, order_index, created_at) VALUES (?, ?, ?, ?, ?)`,
		"i1", "c5", "/tmp/x.png", 3, 1000,
	); err == nil {
		t.Error("insert with order_index 3 should violate CHECK")
	}
}

func TestSchema_ImageCascade(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(
		`INSERT INTO capsule (id, type, status, content, created_at, unlock_at, updated_at) VALUES ('c1','memory','opened','x',1000,2000,1000)`,
	); err != nil {
		t.Fatalf("insert capsule failed: %v", err)
	}
	if _, err := database.Exec(
		`INSERT INTO capsule_image (id, capsule_id, file_path, order_index, created_at) VALUES ('i1','c1','/tmp/a.png',0,1000)`,
	); err != nil {
		t.Fatalf("insert image failed: %v", err)
	}

	if _, err := database.Exec(`DELETE FROM capsule WHERE id = 'c1'`); err != nil {
		t.Fatalf("delete capsule failed: %v", err)
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM capsule_image WHERE capsule_id = 'c1'`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("image rows remaining after cascade = %d, want 0", count)
	}
}

func TestReset_RemovesDatabaseFiles(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	database.Close()

	if err := Reset(tmpDir); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "capsule.db")); !os.IsNotExist(err) {
		t.Error("database file should be gone after Reset")
	}

	// A second Reset on a clean directory is fine
	if err := Reset(tmpDir); err != nil {
		t.Errorf("Reset on missing files should succeed, got: %v", err)
	}
}
