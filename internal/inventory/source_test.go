package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adm-tools/profreap/internal/profile"
)

func TestSourceDelete_RemovesDirAndRow(t *testing.T) {
	s := openTestStore(t)
	src := NewSource(s)

	root := t.TempDir()
	dir := filepath.Join(root, "bob")
	if err := os.MkdirAll(filepath.Join(dir, "documents"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "documents", "note.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPath("bob", dir); err != nil {
		t.Fatalf("UpsertPath: %v", err)
	}

	p := profile.Profile{AccountID: "bob", LocalPath: dir}
	if err := src.Delete(context.Background(), p); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("profile directory still exists: %v", err)
	}
	if _, err := s.Get("bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("row still present, Get error = %v", err)
	}
}

func TestSourceDelete_RefusesDangerousPaths(t *testing.T) {
	s := openTestStore(t)
	src := NewSource(s)

	for _, path := range []string{"", "/", "/home", "."} {
		p := profile.Profile{AccountID: "x", LocalPath: path}
		err := src.Delete(context.Background(), p)
		var delErr *DeletionError
		if !errors.As(err, &delErr) {
			t.Errorf("Delete(%q) error = %v, want DeletionError", path, err)
		}
	}
}

func TestSourceDelete_ReportsDeletionError(t *testing.T) {
	s := openTestStore(t)
	src := NewSource(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.Delete(ctx, profile.Profile{AccountID: "bob", LocalPath: "/tmp/profreap-test/bob"})
	var delErr *DeletionError
	if !errors.As(err, &delErr) {
		t.Fatalf("error = %v, want DeletionError", err)
	}
	if delErr.AccountID != "bob" {
		t.Errorf("AccountID = %q, want bob", delErr.AccountID)
	}
}

func TestScan_RegistersDirectories(t *testing.T) {
	s := openTestStore(t)

	root := t.TempDir()
	for _, name := range []string{"Alice", "bob"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Plain files are not profiles.
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := Scan(context.Background(), s, root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Errorf("Scan registered %d profiles, want 2", n)
	}

	got, err := s.Get("alice")
	if err != nil {
		t.Fatalf("Get(alice): %v", err)
	}
	if got.LocalPath != filepath.Join(root, "Alice") {
		t.Errorf("LocalPath = %q, want %q", got.LocalPath, filepath.Join(root, "Alice"))
	}
}

func TestScan_PreservesExistingFlags(t *testing.T) {
	s := openTestStore(t)

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "bob"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertRecord(profile.Profile{AccountID: "bob", LocalPath: "/stale/bob", Roaming: true}); err != nil {
		t.Fatalf("UpsertRecord: %v", err)
	}

	if _, err := Scan(context.Background(), s, root); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	got, err := s.Get("bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Roaming {
		t.Error("Scan must not clear the roaming flag")
	}
	if got.LocalPath == "/stale/bob" {
		t.Error("Scan should refresh the local path")
	}
}

func TestScan_MissingRoot(t *testing.T) {
	s := openTestStore(t)
	if _, err := Scan(context.Background(), s, filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
