// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"syscall"
)

// FakeEtcTree creates a directory tree mimicking a small /etc.
type FakeEtcTree struct {
	Root string
}

// NewFakeEtcTree creates a fake tree generator rooted at root.
func NewFakeEtcTree(root string) *FakeEtcTree {
	return &FakeEtcTree{Root: root}
}

// DefaultFiles is the regular-file content created by Create.
var DefaultFiles = map[string]string{
	"hosts":                    "127.0.0.1 localhost\n::1 localhost\n",
	"passwd":                   "root:x:0:0:root:/root:/bin/sh\n",
	"ssh/sshd_config":          "PermitRootLogin no\nPasswordAuthentication no\n",
	"nginx/sites/default.conf": "server { listen 80; }\n",
	"cron.d/backup job":        "0 3 * * * root /usr/local/bin/backup\n",
	"empty.conf":               "",
}

// Create writes DefaultFiles plus entries that must never be hashed:
// a file symlink, a directory symlink and a FIFO.
func (f *FakeEtcTree) Create() error {
	for rel, content := range DefaultFiles {
		if err := f.Write(rel, content); err != nil {
			return err
		}
	}

	if err := os.Symlink(f.Path("hosts"), f.Path("hosts.link")); err != nil {
		return err
	}
	if err := os.Symlink(f.Path("ssh"), f.Path("ssh.link")); err != nil {
		return err
	}
	return syscall.Mkfifo(f.Path("initctl"), 0600)
}

// Path returns the absolute path of rel inside the tree.
func (f *FakeEtcTree) Path(rel string) string {
	return filepath.Join(f.Root, filepath.FromSlash(rel))
}

// Write creates or overwrites a file, creating parent directories.
func (f *FakeEtcTree) Write(rel, content string) error {
	p := f.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

// Delete removes a file from the tree.
func (f *FakeEtcTree) Delete(rel string) error {
	return os.Remove(f.Path(rel))
}

// RegularFileCount is the number of files a walk of a fresh tree yields.
func (f *FakeEtcTree) RegularFileCount() int {
	return len(DefaultFiles)
}
