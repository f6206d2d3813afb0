// Package inventory is the profile source: a SQLite inventory of
// known profiles (attributes the directory service supplies) combined
// with the local filesystem for enumeration and deletion.
package inventory

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adm-tools/profreap/internal/profile"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a profile row does not exist.
var ErrNotFound = errors.New("profile not found")

// Store wraps the SQLite inventory database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the inventory database in dataDir and runs
// pending migrations. Pass ":memory:" as dataDir for an in-memory
// database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "inventory.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// UpsertRecord inserts or fully replaces a profile row.
func (s *Store) UpsertRecord(p profile.Profile) error {
	if p.AccountID == "" {
		return errors.New("account ID is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (account_id, local_path, roaming, special, last_use, last_download, last_upload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			local_path = excluded.local_path,
			roaming = excluded.roaming,
			special = excluded.special,
			last_use = excluded.last_use,
			last_download = excluded.last_download,
			last_upload = excluded.last_upload,
			updated_at = excluded.updated_at`,
		p.AccountID, p.LocalPath, boolInt(p.Roaming), boolInt(p.Special),
		profile.FormatDirectoryTime(p.LastUse),
		profile.FormatDirectoryTime(p.LastDownload),
		profile.FormatDirectoryTime(p.LastUpload),
		now(),
	)
	return err
}

// UpsertPath registers a discovered profile directory, preserving any
// flags and timestamps already on the row.
func (s *Store) UpsertPath(accountID, localPath string) error {
	if accountID == "" {
		return errors.New("account ID is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO profiles (account_id, local_path, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			local_path = excluded.local_path,
			updated_at = excluded.updated_at`,
		accountID, localPath, now(),
	)
	return err
}

// SetFlags updates the roaming/special markers for an account.
func (s *Store) SetFlags(accountID string, roaming, special bool) error {
	res, err := s.db.Exec(`UPDATE profiles SET roaming = ?, special = ?, updated_at = ? WHERE account_id = ?`,
		boolInt(roaming), boolInt(special), now(), accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a single profile row.
func (s *Store) Get(accountID string) (profile.Profile, error) {
	row := s.db.QueryRow(`
		SELECT account_id, local_path, roaming, special, last_use, last_download, last_upload
		FROM profiles WHERE account_id = ?`, accountID)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return profile.Profile{}, ErrNotFound
	}
	return p, err
}

// List returns all profile rows ordered by account ID. The result is
// a snapshot at call time.
func (s *Store) List() ([]profile.Profile, error) {
	rows, err := s.db.Query(`
		SELECT account_id, local_path, roaming, special, last_use, last_download, last_upload
		FROM profiles ORDER BY account_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Delete removes a profile row.
func (s *Store) Delete(accountID string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE account_id = ?`, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of profile rows.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

func scanProfile(scan func(...any) error) (profile.Profile, error) {
	var p profile.Profile
	var roaming, special int
	var lastUse, lastDownload, lastUpload string
	if err := scan(&p.AccountID, &p.LocalPath, &roaming, &special, &lastUse, &lastDownload, &lastUpload); err != nil {
		return profile.Profile{}, err
	}
	p.Roaming = roaming != 0
	p.Special = special != 0

	var err error
	if p.LastUse, err = profile.ParseDirectoryTime(lastUse); err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.AccountID, err)
	}
	if p.LastDownload, err = profile.ParseDirectoryTime(lastDownload); err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.AccountID, err)
	}
	if p.LastUpload, err = profile.ParseDirectoryTime(lastUpload); err != nil {
		return profile.Profile{}, fmt.Errorf("profile %s: %w", p.AccountID, err)
	}
	return p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
