package frame

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mbusgw/mbus-core/internal/mbuserr"
)

// CompactFrameCache is a thread-safe, bounded LRU mapping compact-frame
// signature -> cached device info. Grounded on the teacher's
// lora.DeviceKeyCache (a small mutex-guarded map keyed by a fixed-size
// identity), generalized with container/list for LRU ordering since the
// teacher's key cache is unbounded and never evicts.
type CompactFrameCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint16]*list.Element
	order    *list.List // front = most recently used

	insertions uint64
	lookups    uint64
	hits       uint64
	misses     uint64
	evictions  uint64
}

type cacheNode struct {
	signature uint16
	entry     CompactFrameEntry
}

// NewCompactFrameCache creates a cache with the given bounded capacity
// (spec.md documents 256-1024 as typical; any positive value is accepted).
func NewCompactFrameCache(capacity int) *CompactFrameCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &CompactFrameCache{
		capacity: capacity,
		entries:  make(map[uint16]*list.Element),
		order:    list.New(),
	}
}

// Insert adds or replaces the entry for signature, evicting the least
// recently used entry if the cache is at capacity.
func (c *CompactFrameCache) Insert(signature uint16, entry CompactFrameEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.insertions++
	entry.Signature = signature
	if el, ok := c.entries[signature]; ok {
		el.Value.(*cacheNode).entry = entry
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheNode).signature)
			c.evictions++
		}
	}

	node := &cacheNode{signature: signature, entry: entry}
	el := c.order.PushFront(node)
	c.entries[signature] = el
}

// Get looks up signature, bumping its LRU position, access count, and
// last-seen timestamp on a hit.
func (c *CompactFrameCache) Get(signature uint16) (CompactFrameEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	el, ok := c.entries[signature]
	if !ok {
		c.misses++
		return CompactFrameEntry{}, false
	}
	c.hits++
	c.order.MoveToFront(el)
	node := el.Value.(*cacheNode)
	node.entry.AccessCount++
	node.entry.LastSeen = time.Now()
	return node.entry, true
}

// Remove deletes the entry for signature, if present.
func (c *CompactFrameCache) Remove(signature uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[signature]; ok {
		c.order.Remove(el)
		delete(c.entries, signature)
	}
}

// Clear empties the cache.
func (c *CompactFrameCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint16]*list.Element)
	c.order = list.New()
}

// Len reports the current number of cached entries.
func (c *CompactFrameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// RemoveStale evicts every entry whose LastSeen is older than maxAge.
func (c *CompactFrameCache) RemoveStale(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		node := el.Value.(*cacheNode)
		if node.entry.LastSeen.Before(cutoff) {
			c.order.Remove(el)
			delete(c.entries, node.signature)
			removed++
		}
		el = next
	}
	c.evictions += uint64(removed)
	return removed
}

// Save persists the cache to path as JSON, in the shape documented in
// spec.md §6: a `devices` map keyed by signature, cumulative `stats`, and
// `max_size`. Grounded on the teacher's plain encoding/json file-write
// style (cmd/agsys-controller/main.go's loadConfig counterpart); no
// database engine is used, per Non-goals.
func (c *CompactFrameCache) Save(path string) error {
	c.mu.Lock()
	file := CompactFrameCacheFile{
		Devices: make(map[string]cacheEntryJSON, c.order.Len()),
		Stats: cacheStatsJSON{
			Insertions: c.insertions,
			Lookups:    c.lookups,
			Hits:       c.hits,
			Misses:     c.misses,
			Evictions:  c.evictions,
		},
		MaxSize: c.capacity,
	}
	for el := c.order.Front(); el != nil; el = el.Next() {
		node := el.Value.(*cacheNode)
		key := strconv.FormatUint(uint64(node.signature), 10)
		file.Devices[key] = cacheEntryJSON{
			ManufacturerRaw: node.entry.ManufacturerRaw,
			Address:         node.entry.Address,
			Version:         node.entry.Version,
			DeviceType:      node.entry.DeviceType,
			AccessCount:     node.entry.AccessCount,
			LastSeenUnix:    node.entry.LastSeen.Unix(),
		}
	}
	c.mu.Unlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "marshal compact-frame cache")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "write compact-frame cache file %s", path)
	}
	return nil
}

// Load replaces the cache's contents with entries read from path.
func (c *CompactFrameCache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "read compact-frame cache file %s", path)
	}
	var file CompactFrameCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "unmarshal compact-frame cache file %s", path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint16]*list.Element)
	c.order = list.New()
	c.insertions, c.lookups, c.hits, c.misses, c.evictions = file.Stats.Insertions, file.Stats.Lookups, file.Stats.Hits, file.Stats.Misses, file.Stats.Evictions
	if file.MaxSize > 0 {
		c.capacity = file.MaxSize
	}
	for key, e := range file.Devices {
		sig, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return mbuserr.Wrap(mbuserr.Other, err, "invalid signature key %q in cache file", key)
		}
		entry := CompactFrameEntry{
			Signature:       uint16(sig),
			ManufacturerRaw: e.ManufacturerRaw,
			Address:         e.Address,
			Version:         e.Version,
			DeviceType:      e.DeviceType,
			AccessCount:     e.AccessCount,
			LastSeen:        time.Unix(e.LastSeenUnix, 0),
		}
		node := &cacheNode{signature: entry.Signature, entry: entry}
		el := c.order.PushBack(node)
		c.entries[entry.Signature] = el
	}
	return nil
}

// Stats returns a human-readable summary of cumulative cache counters,
// useful for diagnostics logging.
func (c *CompactFrameCache) Stats() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("insertions=%d lookups=%d hits=%d misses=%d evictions=%d",
		c.insertions, c.lookups, c.hits, c.misses, c.evictions)
}
