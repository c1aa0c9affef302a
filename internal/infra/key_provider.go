package infra

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

const (
	// HistoryKeyFileName holds the check history passphrase inside the data dir.
	HistoryKeyFileName = ".history.key"

	historyKeySize = 32 // SQLCipher raw key
)

// ErrHistoryKeyExists is returned when storing over an existing key.
// Replacing it would leave the history database undecryptable.
var ErrHistoryKeyExists = errors.New("history key already exists")

// HistoryKeyFile implements domain.KeyProvider for the check history
// database. The key is base64 in a single owner-only file next to
// history.db; losing it makes past check runs unreadable, so it is
// written once and never rotated in place.
type HistoryKeyFile struct {
	path string
}

// NewHistoryKeyFile returns the key file for a data directory.
func NewHistoryKeyFile(dataDir string) *HistoryKeyFile {
	return &HistoryKeyFile{path: filepath.Join(dataDir, HistoryKeyFileName)}
}

// Path returns the key file location.
func (k *HistoryKeyFile) Path() string {
	return k.path
}

// GetKey loads the passphrase. A key file that group or others can
// access is refused rather than used.
func (k *HistoryKeyFile) GetKey() ([]byte, error) {
	info, err := os.Stat(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history key: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("history key %s is accessible by other users (mode %04o), chmod 600 it", k.path, perm)
	}

	encoded, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history key: %w", err)
	}
	// Tolerate a trailing newline from hand-restored keys
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("history key %s is not valid base64: %w", k.path, err)
	}
	if len(key) != historyKeySize {
		return nil, fmt.Errorf("history key %s has %d bytes, want %d", k.path, len(key), historyKeySize)
	}
	return key, nil
}

// StoreKey creates the key file with mode 0600. It never overwrites an
// existing key and returns ErrHistoryKeyExists instead.
func (k *HistoryKeyFile) StoreKey(key []byte) error {
	if len(key) != historyKeySize {
		return fmt.Errorf("history key has %d bytes, want %d", len(key), historyKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(k.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrHistoryKeyExists
		}
		return fmt.Errorf("failed to create history key: %w", err)
	}
	if _, err := f.WriteString(base64.StdEncoding.EncodeToString(key)); err != nil {
		f.Close()
		_ = os.Remove(k.path)
		return fmt.Errorf("failed to write history key: %w", err)
	}
	return f.Close()
}

// KeyExists reports whether a key file is present.
func (k *HistoryKeyFile) KeyExists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// GenerateHistoryKey returns a fresh random SQLCipher key.
func GenerateHistoryKey() ([]byte, error) {
	key := make([]byte, historyKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate history key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating and storing one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateHistoryKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		// Another process stored one first
		if errors.Is(err, ErrHistoryKeyExists) {
			return provider.GetKey()
		}
		return nil, err
	}
	return key, nil
}

// Ensure HistoryKeyFile implements domain.KeyProvider.
var _ domain.KeyProvider = (*HistoryKeyFile)(nil)
