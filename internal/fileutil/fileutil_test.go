package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thermolog.pid")

	if err := WriteAtomic(path, []byte("123\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteAtomic(path, []byte("456\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "456\n" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode mismatch: got %o, want %o", info.Mode().Perm(), 0o600)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteAtomicMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "file")
	if err := WriteAtomic(path, []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRemoveIfOwned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thermolog.pid")
	if err := os.WriteFile(path, []byte("999\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveIfOwned(path, []byte("123\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected foreign file to survive: %v", err)
	}

	if err := RemoveIfOwned(path, []byte("999\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, got %v", err)
	}

	if err := RemoveIfOwned(path, []byte("999\n")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}
