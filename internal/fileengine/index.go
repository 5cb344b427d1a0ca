package fileengine

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Index is the per-environment listing cache (`file:index:{env}` in spec
// terms), kept up to date incrementally on upload/delete and reconciled
// against the filesystem on a periodic tick (jobs.go).
type Index struct {
	root string

	mu      sync.RWMutex
	entries []string // relative paths, reconciled order
}

func NewIndex(root string) *Index {
	idx := &Index{root: root}
	idx.Reconcile()
	return idx
}

// Reconcile rewalks root and replaces the index wholesale — cheap enough
// to run every 20 minutes even for large file trees, and it's the only
// way to notice files dropped in or removed outside the gateway's own
// upload/delete path.
func (idx *Index) Reconcile() {
	var entries []string
	_ = filepath.Walk(idx.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(idx.root, path)
		if relErr != nil {
			return nil
		}
		entries = append(entries, filepath.ToSlash(rel))
		return nil
	})
	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
}

// Add records a newly uploaded relative path without waiting for the next
// reconciliation tick.
func (idx *Index) Add(relativePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, e := range idx.entries {
		if e == relativePath {
			return
		}
	}
	idx.entries = append(idx.entries, relativePath)
}

// Remove drops a deleted relative path immediately.
func (idx *Index) Remove(relativePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, e := range idx.entries {
		if e == relativePath {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return
		}
	}
}

// List filters the index by prefix, matching either the relative path or
// the file's basename, per §4.7's ListFiles(env, prefix?) contract.
func (idx *Index) List(prefix string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if prefix == "" {
		out := make([]string, len(idx.entries))
		copy(out, idx.entries)
		return out
	}
	var out []string
	for _, e := range idx.entries {
		if strings.HasPrefix(e, prefix) || strings.HasPrefix(filepath.Base(e), prefix) {
			out = append(out, e)
		}
	}
	return out
}
