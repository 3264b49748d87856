// Package kvstore tests for the SQLite-backed store.
package kvstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// TestOpen verifies database opening with proper configuration.
func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	// Verify database file was created
	dbPath := filepath.Join(tmpDir, "donedex.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	// Verify connection is usable
	var result int
	err = store.db.QueryRow("SELECT 1").Scan(&result)
	if err != nil {
		t.Errorf("Database query failed: %v", err)
	}
	if result != 1 {
		t.Errorf("Expected 1, got %d", result)
	}

	// Verify WAL mode is enabled
	var walMode string
	err = store.db.QueryRow("PRAGMA journal_mode").Scan(&walMode)
	if err != nil {
		t.Errorf("Failed to check WAL mode: %v", err)
	}
	if walMode != "wal" {
		t.Errorf("WAL mode not enabled, got: %s", walMode)
	}

	// Verify foreign keys are enabled
	var fkEnabled int
	err = store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	if err != nil {
		t.Errorf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("Foreign keys not enabled, got: %d", fkEnabled)
	}
}

// TestOpen_invalidDataDir verifies error when data directory cannot be created.
func TestOpen_invalidDataDir(t *testing.T) {
	// Use a path that cannot be created as a directory
	invalidPath := "/dev/null/invalid_path/that/cannot/be/created"

	_, err := Open(invalidPath)
	if err == nil {
		t.Error("Open() with invalid path should return error")
	}
}

// TestSQLite_getAbsentKey verifies a missing key returns (nil, nil).
func TestSQLite_getAbsentKey(t *testing.T) {
	store := openTestStore(t)

	value, err := store.Get("never_written")
	if err != nil {
		t.Fatalf("Get() of absent key failed: %v", err)
	}
	if value != nil {
		t.Errorf("Get() of absent key = %v, want nil", value)
	}
}

// TestSQLite_setGet verifies byte-for-byte round trip.
func TestSQLite_setGet(t *testing.T) {
	store := openTestStore(t)

	original := []byte(`{"schema_version":1,"revision":3,"items":[{"id":"q-1"}]}`)
	if err := store.Set(KeySyncQueue, original); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := store.Get(KeySyncQueue)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if !bytes.Equal(got, original) {
		t.Errorf("Get() = %q, want %q", got, original)
	}
}

// TestSQLite_setOverwrites verifies Set replaces the previous value.
func TestSQLite_setOverwrites(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set(KeyLastSync, []byte("1700000000000")); err != nil {
		t.Fatalf("Set() first failed: %v", err)
	}
	if err := store.Set(KeyLastSync, []byte("1700000005000")); err != nil {
		t.Fatalf("Set() second failed: %v", err)
	}

	got, err := store.Get(KeyLastSync)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if string(got) != "1700000005000" {
		t.Errorf("Get() = %q, want '1700000005000'", got)
	}
}

// TestSQLite_remove verifies removal and remove-of-absent semantics.
func TestSQLite_remove(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set(KeyDrafts, []byte(`{}`)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := store.Remove(KeyDrafts); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}

	value, err := store.Get(KeyDrafts)
	if err != nil {
		t.Fatalf("Get() after Remove() failed: %v", err)
	}
	if value != nil {
		t.Errorf("Get() after Remove() = %v, want nil", value)
	}

	// Removing an absent key is not an error
	if err := store.Remove(KeyDrafts); err != nil {
		t.Errorf("Remove() of absent key failed: %v", err)
	}
}

// TestSQLite_binaryValue verifies non-UTF8 bytes survive the round trip.
func TestSQLite_binaryValue(t *testing.T) {
	store := openTestStore(t)

	original := []byte{0x00, 0x01, 0xFF, 0xFE, 0x80, 0x7F}
	if err := store.Set("binary_blob", original); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := store.Get("binary_blob")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if !bytes.Equal(got, original) {
		t.Errorf("Get() = %v, want %v", got, original)
	}
}

// TestSQLite_persistsAcrossReopen verifies durability across open/close cycles.
func TestSQLite_persistsAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()

	store1, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("First Open() failed: %v", err)
	}

	queue := []byte(`{"schema_version":1,"revision":1,"items":[]}`)
	if err := store1.Set(KeySyncQueue, queue); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	if err := store1.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	store2, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Second Open() failed: %v", err)
	}
	defer store2.Close()

	got, err := store2.Get(KeySyncQueue)
	if err != nil {
		t.Fatalf("Get() after reopen failed: %v", err)
	}

	if !bytes.Equal(got, queue) {
		t.Errorf("Get() after reopen = %q, want %q", got, queue)
	}
}

// TestSQLite_wellKnownKeysIndependent verifies the three sync keys do not collide.
func TestSQLite_wellKnownKeysIndependent(t *testing.T) {
	store := openTestStore(t)

	writes := map[string][]byte{
		KeySyncQueue: []byte(`{"items":[]}`),
		KeyDrafts:    []byte(`{"drafts":{}}`),
		KeyLastSync:  []byte(`1700000000000`),
	}

	for key, value := range writes {
		if err := store.Set(key, value); err != nil {
			t.Fatalf("Set(%q) failed: %v", key, err)
		}
	}

	for key, want := range writes {
		got, err := store.Get(key)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", key, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
}

// TestSQLite_concurrentReads verifies the store handles concurrent readers.
func TestSQLite_concurrentReads(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set(KeySyncQueue, []byte(`{"items":[]}`)); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	done := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 20; j++ {
				if _, err := store.Get(KeySyncQueue); err != nil {
					t.Errorf("Concurrent Get() failed: %v", err)
					done <- false
					return
				}
			}
			done <- true
		}()
	}

	for i := 0; i < 5; i++ {
		if !<-done {
			t.Error("Concurrent read failed")
		}
	}
}

// openTestStore opens a SQLite store in a per-test temp dir.
func openTestStore(t *testing.T) *SQLite {
	t.Helper()

	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
