// Package resultcache memoizes encoded session results by content hash, with
// optional gob persistence between runs.
package resultcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const fileName = "results.gob"

// Entry is one cached result.
type Entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Data      []byte    `json:"data"`
}

// Cache is a bounded, expiring result store. A Cache opened with a directory
// snapshots itself to disk periodically and on Close.
type Cache struct {
	cache      *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

func newCache(dir string, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cache: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:     10_000,
			InitialCapacity: 256,
			// Entries restored from a snapshot keep their original deadline.
			ExpiryCalculator: otter.ExpiryWritingFunc(func(e otter.Entry[string, Entry]) time.Duration {
				return time.Until(e.Value.ExpiresAt)
			}),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}
}

// New returns an in-memory cache.
func New(ttl time.Duration, logger *slog.Logger) *Cache {
	return newCache("", ttl, logger)
}

// Open returns a cache backed by dir. Entries saved by a previous Close are
// loaded; expired ones are dropped. The cache saves itself every interval until
// ctx is done or Close is called.
func Open(ctx context.Context, dir string, ttl, interval time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newCache(dir, ttl, logger)
	restored, err := c.restore()
	if err != nil {
		c.logger.Warn("ignoring unreadable result snapshot", "path", c.path(), "error", err)
	}
	c.logger.Info("result cache opened", "dir", dir, "restored", restored)

	if interval > 0 {
		ctx, c.saveCancel = context.WithCancel(ctx)
		c.saveWg.Add(1)
		go c.saveEvery(ctx, interval)
	}
	return c, nil
}

// Key hashes parts into a cache key.
func Key(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		// Length prefix so that ("ab","c") and ("a","bc") differ.
		fmt.Fprintf(h, "%d:", len(p))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the data stored under key.
func (c *Cache) Get(key string) ([]byte, bool) {
	entry, ok := c.cache.GetIfPresent(key)
	if !ok {
		c.logger.Debug("result cache miss", "key", key)
		return nil, false
	}
	return entry.Data, true
}

// Set stores data under key.
func (c *Cache) Set(key string, data []byte) {
	c.cache.Set(key, Entry{Data: data, ExpiresAt: time.Now().Add(c.ttl)})
}

// Len returns the approximate number of entries.
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

func (c *Cache) path() string {
	return filepath.Join(c.dir, fileName)
}

// restore loads the snapshot in dir, if any, and returns how many live entries
// it contained.
func (c *Cache) restore() (int, error) {
	data, err := os.ReadFile(c.path())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var entries map[string]Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decoding snapshot: %w", err)
	}
	now := time.Now()
	restored := 0
	for key, entry := range entries {
		if entry.ExpiresAt.After(now) {
			c.cache.Set(key, entry)
			restored++
		}
	}
	return restored, nil
}

// snapshot writes the live entries next to the snapshot file and renames it
// into place.
func (c *Cache) snapshot() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make(map[string]Entry, c.cache.EstimatedSize())
	for key, entry := range c.cache.All() {
		entries[key] = entry
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entries); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := c.path() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, c.path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	c.logger.Debug("result snapshot written", "path", c.path(), "entries", len(entries))
	return nil
}

func (c *Cache) saveEvery(ctx context.Context, interval time.Duration) {
	defer c.saveWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.snapshot(); err != nil {
				c.logger.Error("periodic result snapshot failed", "error", err)
			}
		}
	}
}

// Close stops periodic saving and writes a final snapshot. It is a no-op for
// in-memory caches.
func (c *Cache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()

	if c.dir == "" {
		return nil
	}
	if err := c.snapshot(); err != nil {
		return fmt.Errorf("closing result cache: %w", err)
	}
	return nil
}
