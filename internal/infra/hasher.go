// Package infra implements infrastructure concerns (hashing, storage, locking, config).
package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// HashChunkSize is the read size used while hashing.
const HashChunkSize = 4096

// SHA256Hasher implements domain.Hasher.
type SHA256Hasher struct {
	open   func(path string) (io.ReadCloser, error)
	logger *zap.Logger
}

// NewSHA256Hasher creates a hasher that reads files from disk.
func NewSHA256Hasher(logger *zap.Logger) *SHA256Hasher {
	return NewSHA256HasherWithOpener(logger, func(path string) (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// NewSHA256HasherWithOpener creates a hasher that reads through open.
// Used for testing to simulate unreadable files regardless of privileges.
func NewSHA256HasherWithOpener(logger *zap.Logger, open func(path string) (io.ReadCloser, error)) *SHA256Hasher {
	return &SHA256Hasher{open: open, logger: logger}
}

// Hash returns the hex SHA-256 of the file content.
// Permission denied on open is a soft failure: a warning is logged and ok is false.
func (h *SHA256Hasher) Hash(path string) (string, bool, error) {
	f, err := h.open(path)
	if err != nil {
		if os.IsPermission(err) {
			h.logger.Warn("skipping unreadable file due to permission issues",
				zap.String("path", path),
				zap.Error(err))
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sum := sha256.New()
	buf := make([]byte, HashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			sum.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return hex.EncodeToString(sum.Sum(nil)), true, nil
}

// Ensure SHA256Hasher implements domain.Hasher.
var _ domain.Hasher = (*SHA256Hasher)(nil)
