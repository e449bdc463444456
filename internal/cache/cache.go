// Package cache provides the incremental symbol cache: an LRU map from
// file path to extraction results, invalidated by file modification time
// and optionally by content hash.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/quarry-dev/quarry/internal/symbols"
)

// Entry is one cached extraction result with its staleness fingerprint
// and access bookkeeping.
type Entry struct {
	Data         *symbols.FileSymbolData `json:"data"`
	ModTime      time.Time               `json:"modTime"`
	ContentHash  string                  `json:"contentHash,omitempty"`
	AccessCount  int                     `json:"accessCount"`
	LastAccessed time.Time               `json:"lastAccessed"`
}

// Statistics is a point-in-time snapshot of cache effectiveness.
type Statistics struct {
	Entries  int     `json:"entries"`
	Capacity int     `json:"capacity"`
	Hits     int     `json:"hits"`
	Misses   int     `json:"misses"`
	HitRate  float64 `json:"hitRate"`
}

// SymbolCache is a capacity-bounded LRU cache of FileSymbolData. All
// methods are safe for concurrent use.
type SymbolCache struct {
	mu           sync.Mutex
	capacity     int
	validateHash bool
	entries      map[string]*list.Element
	order        *list.List // front is most recently used
	hits         int
	misses       int
}

type cacheItem struct {
	path  string
	entry *Entry
}

// New creates a cache holding at most capacity entries. With
// validateHash enabled, a changed modification time falls back to a
// content-hash comparison before declaring an entry stale.
func New(capacity int, validateHash bool) *SymbolCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SymbolCache{
		capacity:     capacity,
		validateHash: validateHash,
		entries:      make(map[string]*list.Element),
		order:        list.New(),
	}
}

// Set stores extraction results for path, capturing the file's current
// modification time (and content hash when enabled) as the staleness
// fingerprint. The least recently used entry is evicted beyond capacity.
func (c *SymbolCache) Set(path string, data *symbols.FileSymbolData) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cache: stat %s: %w", path, err)
	}

	entry := &Entry{
		Data:         data,
		ModTime:      info.ModTime(),
		LastAccessed: time.Now(),
	}
	if c.validateHash {
		hash, err := hashFile(path)
		if err != nil {
			return err
		}
		entry.ContentHash = hash
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[path]; ok {
		elem.Value.(*cacheItem).entry = entry
		c.order.MoveToFront(elem)
		return nil
	}

	c.entries[path] = c.order.PushFront(&cacheItem{path: path, entry: entry})
	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheItem).path)
	}
	return nil
}

// Get returns the cached data for path if it is still valid. A hit bumps
// recency and the entry's access count; a miss (absent or stale) counts
// against the hit rate, and a stale entry is dropped.
func (c *SymbolCache) Get(path string) (*symbols.FileSymbolData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[path]
	if !ok {
		c.misses++
		return nil, false
	}

	item := elem.Value.(*cacheItem)
	if !c.validLocked(path, item.entry) {
		c.order.Remove(elem)
		delete(c.entries, path)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(elem)
	item.entry.AccessCount++
	item.entry.LastAccessed = time.Now()
	c.hits++
	return item.entry.Data, true
}

// IsValid reports whether a cached entry for path exists and is still
// fresh, without touching recency or the hit counters.
func (c *SymbolCache) IsValid(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[path]
	if !ok {
		return false
	}
	return c.validLocked(path, elem.Value.(*cacheItem).entry)
}

// validLocked checks one entry's fingerprint against the file on disk.
// An unchanged mtime is fresh. With hash validation, a changed mtime
// with unchanged content is still fresh and the stored mtime is
// refreshed.
func (c *SymbolCache) validLocked(path string, entry *Entry) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.ModTime().Equal(entry.ModTime) {
		return true
	}
	if !c.validateHash || entry.ContentHash == "" {
		return false
	}
	hash, err := hashFile(path)
	if err != nil || hash != entry.ContentHash {
		return false
	}
	entry.ModTime = info.ModTime()
	return true
}

// Invalidate drops the entry for path if present.
func (c *SymbolCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[path]; ok {
		c.order.Remove(elem)
		delete(c.entries, path)
	}
}

// InvalidateAll empties the cache. Hit counters are kept.
func (c *SymbolCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Statistics returns a snapshot. The hit rate is 0 for an untouched
// cache.
func (c *SymbolCache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Statistics{
		Entries:  len(c.entries),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// persistDoc is the on-disk JSON shape, keyed by file path.
type persistDoc struct {
	Entries map[string]*Entry `json:"entries"`
}

// Persist writes the cache contents to path as one JSON document.
func (c *SymbolCache) Persist(path string) error {
	c.mu.Lock()
	doc := persistDoc{Entries: make(map[string]*Entry, len(c.entries))}
	for p, elem := range c.entries {
		doc.Entries[p] = elem.Value.(*cacheItem).entry
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	return nil
}

// Load merges a persisted document into the cache, ordered so the most
// recently accessed entries are also the most recently evictable-last.
// Entries are validated lazily on Get, not here.
func (c *SymbolCache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cache: read %s: %w", path, err)
	}
	var doc persistDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("cache: unmarshal %s: %w", path, err)
	}

	type pair struct {
		path  string
		entry *Entry
	}
	pairs := make([]pair, 0, len(doc.Entries))
	for p, e := range doc.Entries {
		pairs = append(pairs, pair{p, e})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].entry.LastAccessed.Before(pairs[j].entry.LastAccessed)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pairs {
		if elem, ok := c.entries[p.path]; ok {
			elem.Value.(*cacheItem).entry = p.entry
			c.order.MoveToFront(elem)
			continue
		}
		c.entries[p.path] = c.order.PushFront(&cacheItem{path: p.path, entry: p.entry})
		for len(c.entries) > c.capacity {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheItem).path)
		}
	}
	return nil
}

// hashFile returns the hex sha256 of a file's contents.
func hashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cache: read %s: %w", path, err)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}
