package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adm-tools/profreap/internal/profile"
)

// DeletionError reports a failed profile deletion. It is local to one
// profile: callers log it and continue with the rest of the run.
type DeletionError struct {
	AccountID string
	Err       error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("deleting profile %s: %v", e.AccountID, e.Err)
}

func (e *DeletionError) Unwrap() error { return e.Err }

// Source enumerates and deletes profiles using the inventory store
// and the local filesystem.
type Source struct {
	store *Store
}

// NewSource creates a Source over the given store.
func NewSource(store *Store) *Source {
	return &Source{store: store}
}

// List returns a snapshot of all known profiles.
func (s *Source) List() ([]profile.Profile, error) {
	return s.store.List()
}

// Count returns the number of known profiles.
func (s *Source) Count() (int, error) {
	return s.store.Count()
}

// Delete removes the profile directory from disk and then its
// inventory row. A single best-effort attempt: deletion is not safe to
// retry blindly once partial state may have been removed.
func (s *Source) Delete(ctx context.Context, p profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return &DeletionError{AccountID: p.AccountID, Err: err}
	}
	if !deletablePath(p.LocalPath) {
		return &DeletionError{AccountID: p.AccountID, Err: fmt.Errorf("refusing to delete path %q", p.LocalPath)}
	}
	if err := os.RemoveAll(p.LocalPath); err != nil {
		return &DeletionError{AccountID: p.AccountID, Err: err}
	}
	if err := s.store.Delete(p.AccountID); err != nil && !errors.Is(err, ErrNotFound) {
		return &DeletionError{AccountID: p.AccountID, Err: err}
	}
	return nil
}

// deletablePath rejects paths whose removal would be catastrophic:
// empty, root, or a first-level directory like /home.
func deletablePath(path string) bool {
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." || cleaned == string(filepath.Separator) {
		return false
	}
	parent := filepath.Dir(cleaned)
	return parent != string(filepath.Separator) && parent != cleaned
}
