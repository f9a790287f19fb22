package tilestore

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// LayerCache keeps decoded tile layers with least-recently-used eviction.
//
// The cache is bounded by the total number of features held, which tracks
// memory use closely enough for GeoJSON tiles.
//
// Example:
//
//	cache := tilestore.NewLayerCache(100000, logger)
//	layer, err := cache.Get(key, func() (*model.TileFeatureLayer, error) {
//	    return loadTile(path)
//	})
type LayerCache struct {
	maxFeatures  int64
	usedFeatures int64
	layers       map[string]*cacheEntry
	lru          *list.List // most recent at front
	hits, misses int
	logger       *zap.Logger
	mu           sync.Mutex
}

type cacheEntry struct {
	key     string
	layer   *model.TileFeatureLayer
	size    int64
	element *list.Element
}

// NewLayerCache creates a cache holding at most maxFeatures features.
// 0 means unlimited. logger may be nil.
func NewLayerCache(maxFeatures int64, logger *zap.Logger) *LayerCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LayerCache{
		maxFeatures: maxFeatures,
		layers:      make(map[string]*cacheEntry),
		lru:         list.New(),
		logger:      logger,
	}
}

// Get returns the cached layer for key or loads it with loader. A layer
// too large for the cache is returned without being cached.
func (c *LayerCache) Get(key string, loader func() (*model.TileFeatureLayer, error)) (*model.TileFeatureLayer, error) {
	c.mu.Lock()
	if e, ok := c.layers[key]; ok {
		c.hits++
		c.lru.MoveToFront(e.element)
		c.mu.Unlock()
		return e.layer, nil
	}
	c.misses++
	c.mu.Unlock()

	layer, err := loader()
	if err != nil {
		return nil, errors.Wrapf(err, "load tile %s", key)
	}
	c.addOrLog(key, layer)
	return layer, nil
}

// Add inserts or replaces a layer, evicting least recently used layers
// until it fits.
func (c *LayerCache) Add(key string, layer *model.TileFeatureLayer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(layer.Len())
	if e, ok := c.layers[key]; ok {
		c.usedFeatures += size - e.size
		e.layer, e.size = layer, size
		c.lru.MoveToFront(e.element)
		return nil
	}

	if c.maxFeatures > 0 && size > c.maxFeatures {
		return errors.Errorf("tile %s too large for cache (%d features > %d max)", key, size, c.maxFeatures)
	}
	if c.maxFeatures > 0 {
		for c.usedFeatures+size > c.maxFeatures && c.lru.Len() > 0 {
			c.evictLRU()
		}
	}

	e := &cacheEntry{key: key, layer: layer, size: size}
	e.element = c.lru.PushFront(e)
	c.layers[key] = e
	c.usedFeatures += size
	return nil
}

// evictLRU must be called with c.mu held.
func (c *LayerCache) evictLRU() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	e := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.layers, e.key)
	c.usedFeatures -= e.size
}

// addOrLog adds a layer, logging when it does not fit.
func (c *LayerCache) addOrLog(key string, layer *model.TileFeatureLayer) {
	if err := c.Add(key, layer); err != nil {
		c.logger.Debug("layer not cached", zap.String("tile", key), zap.Error(err))
	}
}

// Stats returns cache statistics.
func (c *LayerCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Layers:       len(c.layers),
		UsedFeatures: c.usedFeatures,
		MaxFeatures:  c.maxFeatures,
		Hits:         c.hits,
		Misses:       c.misses,
	}
}

// CacheStats holds cache usage counters.
type CacheStats struct {
	Layers       int
	UsedFeatures int64
	MaxFeatures  int64
	Hits         int
	Misses       int
}

// HitRate returns the cache hit rate (0.0 to 1.0).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
