package infra

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
)

// TreeWalker implements domain.TreeWalker on top of filepath.WalkDir.
type TreeWalker struct {
	hasher   domain.Hasher
	logger   *zap.Logger
	excluded map[string]bool
	globs    []string
}

// NewTreeWalker creates a walker that hashes files with the given hasher.
func NewTreeWalker(hasher domain.Hasher, logger *zap.Logger) *TreeWalker {
	return &TreeWalker{hasher: hasher, logger: logger, excluded: make(map[string]bool)}
}

// Exclude skips the given paths during walks. An excluded directory is
// skipped with its whole subtree. Paths outside the walked root are inert.
func (w *TreeWalker) Exclude(paths ...string) *TreeWalker {
	for _, p := range paths {
		if p == "" {
			continue
		}
		w.excluded[filepath.Clean(p)] = true
	}
	return w
}

// ExcludeGlob skips files whose full path matches pattern (filepath.Match syntax).
func (w *TreeWalker) ExcludeGlob(pattern string) *TreeWalker {
	if pattern != "" {
		w.globs = append(w.globs, pattern)
	}
	return w
}

func (w *TreeWalker) isExcluded(path string) bool {
	if w.excluded[path] {
		return true
	}
	for _, g := range w.globs {
		if ok, _ := filepath.Match(g, path); ok {
			return true
		}
	}
	return false
}

// Walk visits every entry under root and yields each hashed regular file.
// Symlinks are never followed; sockets, devices and FIFOs are skipped.
func (w *TreeWalker) Walk(ctx context.Context, root string, fn func(domain.FileRecord) error) error {
	cleanRoot := filepath.Clean(root)
	return filepath.WalkDir(walkStart(root), func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if os.IsPermission(err) {
				w.logger.Warn("skipping unreadable directory entry",
					zap.String("path", path),
					zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			return err
		}

		// The root itself is always walked, even if it doubles as the data dir
		if clean := filepath.Clean(path); clean != cleanRoot && w.isExcluded(clean) {
			w.logger.Debug("skipping integmon state", zap.String("path", path))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Directories only need descending into
		if !d.Type().IsRegular() {
			return nil
		}

		digest, ok, err := w.hasher.Hash(path)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		return fn(domain.FileRecord{Path: path, Digest: digest})
	})
}

// walkStart makes WalkDir descend into root even when root itself is a
// symlink to a directory (e.g. /etc -> /private/etc on macOS), while keeping
// the yielded paths under the root's own name.
func walkStart(root string) string {
	root = filepath.Clean(root)
	info, err := os.Lstat(root)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return root
	}
	return root + string(filepath.Separator)
}

// Ensure TreeWalker implements domain.TreeWalker.
var _ domain.TreeWalker = (*TreeWalker)(nil)
