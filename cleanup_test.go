package otaripper

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTransactionRollbackRemovesFilesAndOwnedDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "out")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	f1 := filepath.Join(dir, "boot.img")
	f2 := filepath.Join(dir, "vendor.img")
	for _, f := range []string{f1, f2} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	tx := NewTransaction()
	tx.TrackDir(dir, true)
	tx.TrackFile(f1)
	tx.TrackFile(f2)

	if errs := tx.Rollback(); len(errs) != 0 {
		t.Fatalf("Rollback errors: %v", errs)
	}

	for _, f := range []string{f1, f2} {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("%s should have been removed", f)
		}
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("owned directory should have been removed")
	}
}

func TestTransactionRollbackPreservesUnownedDir(t *testing.T) {
	dir := t.TempDir() // pre-existing, not created by the run
	f := filepath.Join(dir, "boot.img")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction()
	tx.TrackDir(dir, false)
	tx.TrackFile(f)
	tx.Rollback()

	if _, err := os.Stat(dir); err != nil {
		t.Fatal("pre-existing directory should not have been removed")
	}
	if _, err := os.Stat(f); !os.IsNotExist(err) {
		t.Fatal("tracked file should have been removed")
	}
}

func TestTransactionCommitPreventsRollback(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "boot.img")
	if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tx := NewTransaction()
	tx.TrackDir(dir, true)
	tx.TrackFile(f)
	tx.Commit()

	if errs := tx.Rollback(); errs != nil {
		t.Fatalf("committed transaction's Rollback should be a no-op, got %v", errs)
	}
	if _, err := os.Stat(f); err != nil {
		t.Fatal("committed file should survive Rollback")
	}
}

func TestTransactionRollbackIdempotent(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "boot.img")
	os.WriteFile(f, []byte("x"), 0644)

	tx := NewTransaction()
	tx.TrackDir(dir, true)
	tx.TrackFile(f)

	tx.Rollback()
	if errs := tx.Rollback(); len(errs) != 0 {
		t.Fatalf("second Rollback should be a clean no-op, got %v", errs)
	}
}
