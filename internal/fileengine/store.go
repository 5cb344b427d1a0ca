package fileengine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/melosso/portway/internal/gwerr"
)

// memoryFile is one file's in-memory representation, tracked for
// flush/eviction decisions.
type memoryFile struct {
	data       []byte
	dirty      bool
	lastAccess time.Time
}

// Store is the hybrid memory+disk file store for one environment's file
// root. Dirty files accumulate in memory and are flushed to disk either on
// a timer tick (see jobs.go) or when the cumulative memory budget is
// exceeded, evicting oldest-access-first.
type Store struct {
	root         string
	maxMemoryMB  int
	memoryOn     bool

	mu      sync.Mutex
	memory  map[string]*memoryFile // relativePath -> entry
	memSize int64
}

func NewStore(root string, maxMemoryMB int, memoryEnabled bool) *Store {
	return &Store{
		root:        root,
		maxMemoryMB: maxMemoryMB,
		memoryOn:    memoryEnabled,
		memory:      map[string]*memoryFile{},
	}
}

// Upload writes data for relativePath, buffering in memory (marked dirty)
// when memory caching is enabled, or writing straight to disk otherwise.
// overwrite=false with an existing file is a FileExists error.
func (s *Store) Upload(ctx context.Context, relativePath string, data []byte, overwrite bool) error {
	diskPath := filepath.Join(s.root, filepath.FromSlash(relativePath))
	if !overwrite {
		s.mu.Lock()
		_, inMemory := s.memory[relativePath]
		s.mu.Unlock()
		if inMemory {
			return gwerr.New(gwerr.CodeFileExists, "fileengine.upload", relativePath, nil)
		}
		if _, err := os.Stat(diskPath); err == nil {
			return gwerr.New(gwerr.CodeFileExists, "fileengine.upload", relativePath, nil)
		}
	}

	if !s.memoryOn {
		return s.writeDisk(diskPath, data)
	}

	s.mu.Lock()
	s.setMemoryLocked(relativePath, data, true)
	s.mu.Unlock()
	s.maybeFlushUnderPressure()
	return nil
}

// Download returns a fresh copy of relativePath's bytes: from memory on
// hit, or from disk (populating memory as a clean entry when enabled and
// under the size cap) on miss.
func (s *Store) Download(ctx context.Context, relativePath string) ([]byte, error) {
	s.mu.Lock()
	if entry, ok := s.memory[relativePath]; ok {
		entry.lastAccess = time.Now()
		out := make([]byte, len(entry.data))
		copy(out, entry.data)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	diskPath := filepath.Join(s.root, filepath.FromSlash(relativePath))
	data, err := os.ReadFile(diskPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gwerr.New(gwerr.CodeFileNotFound, "fileengine.download", relativePath, nil)
		}
		return nil, gwerr.New(gwerr.CodeFileNotFound, "fileengine.download", relativePath, err)
	}

	if s.memoryOn && s.withinMemoryBudget(int64(len(data))) {
		s.mu.Lock()
		s.setMemoryLocked(relativePath, data, false)
		s.mu.Unlock()
	}
	return data, nil
}

// Delete removes relativePath from both memory and disk.
func (s *Store) Delete(ctx context.Context, relativePath string) error {
	s.mu.Lock()
	if entry, ok := s.memory[relativePath]; ok {
		s.memSize -= int64(len(entry.data))
		delete(s.memory, relativePath)
	}
	s.mu.Unlock()

	diskPath := filepath.Join(s.root, filepath.FromSlash(relativePath))
	if err := os.Remove(diskPath); err != nil && !os.IsNotExist(err) {
		return gwerr.New(gwerr.CodeFileNotFound, "fileengine.delete", relativePath, err)
	}
	return nil
}

func (s *Store) setMemoryLocked(relativePath string, data []byte, dirty bool) {
	if old, ok := s.memory[relativePath]; ok {
		s.memSize -= int64(len(old.data))
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.memory[relativePath] = &memoryFile{data: stored, dirty: dirty, lastAccess: time.Now()}
	s.memSize += int64(len(stored))
}

func (s *Store) withinMemoryBudget(additional int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memSize+additional <= int64(s.maxMemoryMB)*1024*1024
}

func (s *Store) writeDisk(diskPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
		return gwerr.New(gwerr.CodeFileExists, "fileengine.upload", diskPath, err)
	}
	return os.WriteFile(diskPath, data, 0o644)
}

// FlushDirty writes every dirty in-memory file to disk and clears its
// dirty flag, without evicting it from memory.
func (s *Store) FlushDirty() error {
	s.mu.Lock()
	dirty := map[string][]byte{}
	for path, entry := range s.memory {
		if entry.dirty {
			dirty[path] = entry.data
		}
	}
	s.mu.Unlock()

	for relPath, data := range dirty {
		diskPath := filepath.Join(s.root, filepath.FromSlash(relPath))
		if err := s.writeDisk(diskPath, data); err != nil {
			return err
		}
		s.mu.Lock()
		if entry, ok := s.memory[relPath]; ok {
			entry.dirty = false
		}
		s.mu.Unlock()
	}
	return nil
}

// maybeFlushUnderPressure flushes dirty files and evicts oldest-access
// entries until memory usage is back under budget. Dirty files are always
// flushed before eviction so no unflushed write is ever lost.
func (s *Store) maybeFlushUnderPressure() {
	s.mu.Lock()
	overBudget := s.memSize > int64(s.maxMemoryMB)*1024*1024
	s.mu.Unlock()
	if !overBudget {
		return
	}
	if err := s.FlushDirty(); err != nil {
		return
	}

	for {
		s.mu.Lock()
		if s.memSize <= int64(s.maxMemoryMB)*1024*1024 || len(s.memory) == 0 {
			s.mu.Unlock()
			break
		}
		oldestPath, oldest := "", time.Now()
		for path, entry := range s.memory {
			if entry.dirty {
				continue
			}
			if entry.lastAccess.Before(oldest) || oldestPath == "" {
				oldest = entry.lastAccess
				oldestPath = path
			}
		}
		if oldestPath == "" {
			s.mu.Unlock()
			break
		}
		if entry, ok := s.memory[oldestPath]; ok {
			s.memSize -= int64(len(entry.data))
			delete(s.memory, oldestPath)
		}
		s.mu.Unlock()
	}
}
