// Package tilestore is the caller side of the external reference
// protocol: it indexes a set of GeoJSON tile files, answers which tiles
// hold a given feature, and hands out decoded layers through a cache.
package tilestore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// Store indexes tile files and loads their layers on demand.
type Store struct {
	index   *TileIndex
	cache   *LayerCache
	logger  *zap.Logger
	locator map[string][]string // feature id -> tile keys
	errs    []error
}

// DiscoverTiles returns the .geojson and .json files below root in
// lexical order.
func DiscoverTiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".geojson", ".json":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk tile directory")
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no tiles found in %s", root)
	}
	return paths, nil
}

// OpenDir opens every tile found below root.
func OpenDir(ctx context.Context, root string, opts LoadOptions) (*Store, error) {
	paths, err := DiscoverTiles(root)
	if err != nil {
		return nil, err
	}
	return Open(ctx, paths, opts)
}

// LoadTile reads and decodes one tile file.
func LoadTile(path string) (*model.TileFeatureLayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read tile")
	}
	layer, err := model.DecodeGeoJSONTile(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode tile %s", path)
	}
	return layer, nil
}

// Open loads paths in parallel, indexes their tiles and features, and
// keeps the decoded layers in the cache as far as it allows.
//
// With opts.SkipErrors, tiles that fail to load are skipped and reported
// by Errors; otherwise the first failure is returned.
func Open(ctx context.Context, paths []string, opts LoadOptions) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultLoadOptions().Workers
	}

	layers := make([]*model.TileFeatureLayer, len(paths))
	errs := make([]error, len(paths))
	var (
		mu     sync.Mutex
		loaded int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			layer, err := LoadTile(path)

			mu.Lock()
			loaded++
			if opts.Progress != nil {
				opts.Progress(loaded, len(paths))
			}
			mu.Unlock()

			if err != nil {
				if !opts.SkipErrors {
					return err
				}
				opts.Logger.Warn("skipping tile", zap.String("path", path), zap.Error(err))
				errs[i] = err
				return nil
			}
			layers[i] = layer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &Store{
		cache:   NewLayerCache(opts.CacheSize, opts.Logger),
		logger:  opts.Logger,
		locator: make(map[string][]string),
	}
	var entries []*TileEntry
	for i, layer := range layers {
		if errs[i] != nil {
			s.errs = append(s.errs, errs[i])
			continue
		}
		key := layer.Key().String()
		entries = append(entries, &TileEntry{Path: paths[i], Key: layer.Key(), Features: layer.Len()})
		for _, f := range layer.Features() {
			id := f.ID.String()
			s.locator[id] = appendUnique(s.locator[id], key)
		}
		s.cache.addOrLog(key, layer)
	}
	s.index = NewTileIndex(entries)

	s.logger.Info("opened tile store",
		zap.Int("tiles", s.index.Count()),
		zap.Int("features", len(s.locator)),
		zap.Int("errors", len(s.errs)))
	return s, nil
}

func appendUnique(keys []string, key string) []string {
	for _, k := range keys {
		if k == key {
			return keys
		}
	}
	return append(keys, key)
}

// Errors returns the load errors that were skipped.
func (s *Store) Errors() []error {
	return s.errs
}

// Index returns the spatial tile index.
func (s *Store) Index() *TileIndex {
	return s.index
}

// CacheStats returns layer cache statistics.
func (s *Store) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Layer returns the decoded layer for a tile key string, reloading it from
// disk when it was evicted.
func (s *Store) Layer(key string) (*model.TileFeatureLayer, error) {
	e, ok := s.index.Entry(key)
	if !ok {
		return nil, errors.Errorf("unknown tile %s", key)
	}
	return s.cache.Get(key, func() (*model.TileFeatureLayer, error) {
		return LoadTile(e.Path)
	})
}

// Locate returns, for each id, the keys of the tiles containing that
// feature, in load order. Features found nowhere get an empty list.
func (s *Store) Locate(ids []model.FeatureID) [][]string {
	out := make([][]string, len(ids))
	for i, id := range ids {
		out[i] = append([]string{}, s.locator[id.String()]...)
	}
	return out
}
