// Package store persists one JSON file per entity under a root directory.
// Writes go through a temp-file-then-rename so readers never observe a
// partially written file. Environment-level failures (missing path, permission
// denied, read-only filesystem) degrade silently so that permission-restricted
// or ephemeral deployments keep working with in-memory-only semantics.
package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"collab-hub/internal/utils"
)

// FileStore reads and writes JSON entity files in a single directory.
// PutAsync is fire-and-forget relative to the caller; Flush waits for all
// pending writes (used on graceful shutdown and in tests).
type FileStore struct {
	dir string
	log *zap.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func New(dir string, log *zap.Logger) *FileStore {
	return &FileStore{dir: dir, log: log}
}

func (s *FileStore) Dir() string {
	return s.dir
}

// SanitizeKey maps an entity key to a safe filename: every character outside
// [a-z0-9-_] is replaced with '-'.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, SanitizeKey(key)+".json")
}

// Put serializes v and atomically writes it under key. Store I/O failures do
// not propagate to callers: environment errors are silenced, anything else is
// logged as an error. The in-memory state owned by the caller stays
// authoritative either way.
func (s *FileStore) Put(key string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.log.Error("store: marshal entity", zap.String("key", key), zap.Error(err))
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.reportWriteError(key, err)
		return
	}
	if err := utils.WriteFileAtomic(s.path(key), data, 0o644); err != nil {
		s.reportWriteError(key, err)
	}
}

// PutAsync writes in the background; the caller's mutation is complete before
// the durable write lands.
func (s *FileStore) PutAsync(key string, v any) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Put(key, v)
	}()
}

// Flush blocks until every pending PutAsync has completed.
func (s *FileStore) Flush() {
	s.wg.Wait()
}

// Get loads the entity stored under key into out. A missing or empty file is
// "not found", not an error.
func (s *FileStore) Get(key string, out any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if isEnvironmentError(err) {
			return false, nil
		}
		s.log.Error("store: read entity", zap.String("key", key), zap.Error(err))
		return false, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the raw contents of every well-formed JSON entity file,
// silently skipping files that cannot be read or parsed.
func (s *FileStore) List() [][]byte {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !isEnvironmentError(err) {
			s.log.Error("store: read dir", zap.String("dir", s.dir), zap.Error(err))
		}
		return nil
	}
	var result [][]byte
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		if !json.Valid(data) {
			continue
		}
		result = append(result, data)
	}
	return result
}

// Delete removes the entity file for key. Missing files are not an error.
func (s *FileStore) Delete(key string) {
	if err := os.Remove(s.path(key)); err != nil && !isEnvironmentError(err) {
		s.log.Error("store: delete entity", zap.String("key", key), zap.Error(err))
	}
}

func (s *FileStore) reportWriteError(key string, err error) {
	if isEnvironmentError(err) {
		s.log.Debug("store: degraded to in-memory", zap.String("key", key), zap.Error(err))
		return
	}
	s.log.Error("store: write entity", zap.String("key", key), zap.Error(err))
}

// isEnvironmentError classifies failures caused by the deployment environment
// rather than by the data: missing paths, permissions, read-only filesystems.
func isEnvironmentError(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EROFS)
}
