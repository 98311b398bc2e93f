package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMetadataCacheSize bounds the cached document view. Grant corpora
// are small (hundreds of documents), so this rarely evicts.
const DefaultMetadataCacheSize = 4096

// CachedMetadata wraps a MetadataReader with an LRU cache keyed by document
// ID. The retrieval pipeline reads document metadata once per candidate per
// request; the cache keeps that off the database hot path. Misses are cached
// too, so repeated lookups of unknown documents stay cheap.
type CachedMetadata struct {
	inner MetadataReader
	cache *lru.Cache[string, *Document]
}

var _ MetadataReader = (*CachedMetadata)(nil)

// NewCachedMetadata wraps reader with a cache of the given size.
// A size <= 0 uses DefaultMetadataCacheSize.
func NewCachedMetadata(reader MetadataReader, size int) (*CachedMetadata, error) {
	if size <= 0 {
		size = DefaultMetadataCacheSize
	}
	cache, err := lru.New[string, *Document](size)
	if err != nil {
		return nil, err
	}
	return &CachedMetadata{inner: reader, cache: cache}, nil
}

// GetDocument returns the cached document, falling through to the inner
// reader on a cache miss. A store miss is cached as nil.
func (c *CachedMetadata) GetDocument(ctx context.Context, id string) (*Document, error) {
	if doc, ok := c.cache.Get(id); ok {
		return doc, nil
	}
	doc, err := c.inner.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, doc)
	return doc, nil
}

// GetDocuments batch-resolves IDs, fetching only uncached ones from the
// inner reader. Missing documents are absent from the returned map.
func (c *CachedMetadata) GetDocuments(ctx context.Context, ids []string) (map[string]*Document, error) {
	result := make(map[string]*Document, len(ids))
	var missing []string
	for _, id := range ids {
		if doc, ok := c.cache.Get(id); ok {
			if doc != nil {
				result[id] = doc
			}
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fetched, err := c.inner.GetDocuments(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, id := range missing {
			doc := fetched[id] // nil on store miss
			c.cache.Add(id, doc)
			if doc != nil {
				result[id] = doc
			}
		}
	}

	return result, nil
}

// Invalidate drops cached entries for the given document IDs.
// Called on corpus mutation so the view never serves stale metadata.
func (c *CachedMetadata) Invalidate(ids ...string) {
	for _, id := range ids {
		c.cache.Remove(id)
	}
}

// Purge drops the whole cache.
func (c *CachedMetadata) Purge() {
	c.cache.Purge()
}
