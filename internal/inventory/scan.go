package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adm-tools/profreap/internal/profile"
)

// scanConcurrency bounds parallel stats; profile roots on network
// mounts make each stat slow.
const scanConcurrency = 8

// Scan walks the first level of root, treating every directory as a
// candidate profile, and registers each in the store. Existing flags
// and directory-service timestamps are preserved. Returns the number
// of registered profiles.
//
// Scanning is read-only with respect to the profiles themselves, so
// the stat phase runs concurrently; upserts are serialized by the
// store's single connection.
func Scan(ctx context.Context, store *Store, root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("reading profile root: %w", err)
	}

	var (
		mu    sync.Mutex
		found int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(root, entry.Name())
			// ReadDir reports symlinks as non-dirs; stat resolves them
			// so linked profile directories are still picked up.
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() {
				return nil
			}
			if err := store.UpsertPath(profile.AccountIDFromPath(path), path); err != nil {
				return fmt.Errorf("registering %s: %w", path, err)
			}
			mu.Lock()
			found++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return found, err
	}
	return found, nil
}
