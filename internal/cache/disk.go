package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/newsplaces/internal/fsutil"
)

const entryExt = ".json"

// DiskCache keeps completions across runs, one JSON file per entry spread
// over two-character subdirectories
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

// diskEntry is the on-disk envelope. Payload must be JSON, which keeps
// entries readable with any JSON tool.
type diskEntry struct {
	Key       string          `json:"key"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Get returns the payload stored under key. Expired entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	entry, err := c.read(c.path(key))
	if err != nil || entry.Key != key {
		return nil, false
	}
	if c.now().After(entry.ExpiresAt) {
		_ = os.Remove(c.path(key))
		return nil, false
	}
	return entry.Payload, true
}

// Set stores value, which must be valid JSON. A zero ttl uses the cache default.
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("disk cache %s: payload is not JSON", key)
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	now := c.now().UTC()
	data, err := json.Marshal(diskEntry{
		Key:       key,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Payload:   value,
	})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := fsutil.WriteBytesAtomic(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Delete removes the entry for key; a missing entry is not an error
func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired and unreadable entries and returns how many were
// removed. A missing cache directory prunes nothing.
func (c *DiskCache) Prune() (int, error) {
	now := c.now()
	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, entryExt) {
			return nil
		}
		entry, readErr := c.read(path)
		if readErr == nil && !now.After(entry.ExpiresAt) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *DiskCache) read(path string) (*diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// path places key under a subdirectory named by its last two characters,
// which for hex keys spreads entries evenly
func (c *DiskCache) path(key string) string {
	shard := "_"
	if len(key) >= 2 {
		shard = key[len(key)-2:]
	}
	return filepath.Join(c.dir, shard, key+entryExt)
}
