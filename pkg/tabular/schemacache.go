package tabular

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultSchemaCacheSize bounds how many probed schemas the engine keeps
// around across repeated runs against the same sources.
const defaultSchemaCacheSize = 256

// SchemaCache memoizes GetSchema/GetHeaders probes keyed by source id
// (path or path::sheet), so the processing engine's header probe doesn't
// re-sniff a dialect or re-walk a workbook it has already probed this
// process.
type SchemaCache struct {
	cache *lru.Cache[string, map[string]string]
}

// NewSchemaCache returns a cache bounded to size entries.
func NewSchemaCache(size int) (*SchemaCache, error) {
	if size <= 0 {
		size = defaultSchemaCacheSize
	}
	c, err := lru.New[string, map[string]string](size)
	if err != nil {
		return nil, err
	}
	return &SchemaCache{cache: c}, nil
}

// GetOrProbe returns the cached schema for sourceID, or calls probe and
// caches its result.
func (c *SchemaCache) GetOrProbe(sourceID string, probe func() (map[string]string, error)) (map[string]string, error) {
	if schema, ok := c.cache.Get(sourceID); ok {
		return schema, nil
	}
	schema, err := probe()
	if err != nil {
		return nil, err
	}
	c.cache.Add(sourceID, schema)
	return schema, nil
}

// Invalidate drops any cached schema for sourceID, e.g. after it has been
// rewritten.
func (c *SchemaCache) Invalidate(sourceID string) {
	c.cache.Remove(sourceID)
}

var defaultSchemaCache *SchemaCache

func init() {
	c, err := NewSchemaCache(defaultSchemaCacheSize)
	if err != nil {
		panic(err)
	}
	defaultSchemaCache = c
}

// DefaultSchemaCache returns the process-wide singleton schema cache.
func DefaultSchemaCache() *SchemaCache {
	return defaultSchemaCache
}
