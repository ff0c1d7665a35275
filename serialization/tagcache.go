package serialization

import "sync"

// TagCache is a read-mostly cache of the tag keys (and optionally their
// known values) of each measurement. It is the optional enrichment source
// used by ResponseTables to recognize tag columns in reconstructed tables.
// Writers replace whole per-measurement entries, never mutate them in
// place, so readers are safe under the embedded lock.
type TagCache struct {
	mu   sync.RWMutex
	tags map[string]map[string][]string // measurement -> tag key -> values
}

// NewTagCache returns an empty cache.
func NewTagCache() *TagCache {
	return &TagCache{tags: map[string]map[string][]string{}}
}

// Replace swaps the entire entry for a measurement.
func (c *TagCache) Replace(measurement string, tagValues map[string][]string) {
	c.mu.Lock()
	c.tags[measurement] = tagValues
	c.mu.Unlock()
}

// IsTagKey reports whether key is a known tag key of measurement.
func (c *TagCache) IsTagKey(measurement, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.tags[measurement]
	if !ok {
		return false
	}
	_, ok = entry[key]
	return ok
}

// TagKeys returns the known tag keys of a measurement.
func (c *TagCache) TagKeys(measurement string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.tags[measurement]
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	return keys
}

// TagValues returns the known values of one tag key of a measurement.
func (c *TagCache) TagValues(measurement, key string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tags[measurement][key]
}
