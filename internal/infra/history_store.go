package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// EncryptedHistoryStore implements domain.HistoryStore using a SQLCipher
// encrypted SQLite database.
type EncryptedHistoryStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistoryStore opens (or creates) the history database at dbPath.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedHistoryStore(dbPath string, key []byte) (*EncryptedHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	keyHex := hex.EncodeToString(key)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// A wrong key only shows up on first access
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	store := &EncryptedHistoryStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// ErrHistoryKeyMissing means history.db exists but its key file does not.
var ErrHistoryKeyMissing = errors.New("history key missing")

// OpenHistoryStore opens the history database with the key from provider,
// generating the key on first use. A database whose key has gone missing
// is reported instead of being paired with a new key it cannot decrypt.
func OpenHistoryStore(dbPath string, provider domain.KeyProvider) (*EncryptedHistoryStore, error) {
	if !provider.KeyExists() {
		if _, err := os.Stat(dbPath); err == nil {
			return nil, fmt.Errorf("%w: %s exists without its key", ErrHistoryKeyMissing, dbPath)
		}
	}
	key, err := EnsureKey(provider)
	if err != nil {
		return nil, err
	}
	return NewEncryptedHistoryStore(dbPath, key)
}

func (s *EncryptedHistoryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS check_runs (
		id TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		root TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		scanned INTEGER NOT NULL,
		modified INTEGER NOT NULL,
		added INTEGER NOT NULL,
		deleted INTEGER NOT NULL,
		unchanged INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_runs_started_at ON check_runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a check run. Re-recording the same ID replaces the row.
func (s *EncryptedHistoryStore) Record(run domain.CheckRun) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO check_runs
			(id, host, root, started_at, duration_ms, scanned, modified, added, deleted, unchanged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Host, run.Root, run.StartedAt.UnixNano(), run.DurationMs,
		run.Scanned, run.Modified, run.Added, run.Deleted, run.Unchanged,
	)
	return err
}

// Recent returns up to limit runs, newest first. limit <= 0 returns all runs.
func (s *EncryptedHistoryStore) Recent(limit int) ([]domain.CheckRun, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, host, root, started_at, duration_ms, scanned, modified, added, deleted, unchanged
		FROM check_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.CheckRun, 0)
	for rows.Next() {
		var run domain.CheckRun
		var startedAt int64
		if err := rows.Scan(&run.ID, &run.Host, &run.Root, &startedAt, &run.DurationMs,
			&run.Scanned, &run.Modified, &run.Added, &run.Deleted, &run.Unchanged); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, startedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Path returns the database file path.
func (s *EncryptedHistoryStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedHistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure EncryptedHistoryStore implements domain.HistoryStore.
var _ domain.HistoryStore = (*EncryptedHistoryStore)(nil)
