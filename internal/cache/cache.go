// Package cache provides the TTL key/value cache behind workspace state,
// session config and hook memory.
//
// FileCache is the on-disk layer shared by separate agentos processes: one
// file per key, freshness judged by mtime. Writes go through a temp file and
// rename, so readers never see a torn value; concurrent writers are not
// locked against each other and the last rename wins.
//
// MemoCache fronts any Cache with an in-process expirable LRU for the
// long-running MCP server.
package cache

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Entry is a cached value with the time it was stored.
type Entry struct {
	Value    []byte
	StoredAt time.Time
}

// Cache is a key/value store whose reads are bounded by a caller-supplied TTL.
type Cache interface {
	// Get returns the entry for key if it was stored less than ttl ago.
	// A ttl <= 0 always misses.
	Get(key string, ttl time.Duration) (Entry, bool)
	// Set stores value under key, stamping it with the current time.
	Set(key string, value []byte) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidKey reports whether key is usable as a cache file name.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// DirKey derives a per-directory key such as "workspace-state-1a2b3c4d.json",
// so one cache directory serves many repositories.
func DirKey(prefix, dir string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(filepath.Clean(dir)))
	return fmt.Sprintf("%s-%08x.json", prefix, h.Sum32())
}

// FileCache stores each key as a file in Dir.
type FileCache struct {
	Dir string
	now func() time.Time
}

// NewFileCache creates a FileCache rooted at dir. The directory is created lazily on Set.
func NewFileCache(dir string) *FileCache {
	return &FileCache{Dir: dir, now: time.Now}
}

// Path returns the file backing key.
func (c *FileCache) Path(key string) string {
	return filepath.Join(c.Dir, key)
}

// Get implements Cache.
func (c *FileCache) Get(key string, ttl time.Duration) (Entry, bool) {
	if ttl <= 0 || !ValidKey(key) {
		return Entry{}, false
	}
	path := c.Path(key)
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, false
	}
	if c.now().Sub(info.ModTime()) >= ttl {
		return Entry{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Value: data, StoredAt: info.ModTime()}, true
}

// Set implements Cache.
func (c *FileCache) Set(key string, value []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := c.Path(key)
	if err := writeFileAtomic(path, value, 0600); err != nil {
		return err
	}
	// Stamp with our clock so tests with a fake clock see consistent ages.
	now := c.now()
	_ = os.Chtimes(path, now, now)
	return nil
}

// writeFileAtomic writes data to path using a temp file + rename in the same directory.
// If the operation fails, the original file (if any) is left unchanged.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".agentos-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	success = true
	return nil
}

// WriteFileAtomic is exported for other packages persisting small state files.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return writeFileAtomic(path, data, perm)
}
