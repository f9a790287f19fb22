package main

import (
	"context"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
	"github.com/beetlebugorg/featureviz/internal/tilestore"
	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

var (
	renderStyle     string
	renderTiles     string
	renderPrimary   string
	renderBBox      string
	renderOptions   []string
	renderMode      string
	renderMaxRounds int
	renderWorkers   int
	renderMercator  bool

	renderCmd = &cobra.Command{
		Use:   "render",
		Short: "Visualize one tile and print a summary of the produced batches",
		Long: `Runs a visualization session on the primary tile, resolving relation
targets against the other tiles in the directory, and prints a JSON summary.

The primary tile is --primary if given, otherwise the most detailed tile
intersecting --bbox, otherwise the tile with the smallest key.`,
		RunE: runRender,
	}
)

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderStyle, "style", "", "YAML style document")
	f.StringVar(&renderTiles, "tiles", "", "directory of GeoJSON tiles")
	f.StringVar(&renderPrimary, "primary", "", "tile key of the tile to visualize")
	f.StringVar(&renderBBox, "bbox", "", "restrict to minLon,minLat,maxLon,maxLat")
	f.StringSliceVar(&renderOptions, "option", nil, "override a style option, e.g. showLanes=false")
	f.StringVar(&renderMode, "mode", "none", "highlight mode: none, hover or selection")
	f.IntVar(&renderMaxRounds, "max-rounds", 8, "maximum external reference rounds")
	f.IntVar(&renderWorkers, "workers", 0, "parallel tile decoders (0: one per CPU)")
	f.BoolVar(&renderMercator, "mercator", false, "emit Web-Mercator instead of ECEF coordinates")
	_ = renderCmd.MarkFlagRequired("style")
	_ = renderCmd.MarkFlagRequired("tiles")
}

type summary struct {
	Session           string                                `json:"session"`
	Style             string                                `json:"style"`
	Primary           string                                `json:"primary"`
	Rounds            int                                   `json:"rounds"`
	Items             map[string]int                        `json:"items"`
	Primitives        map[string]int                        `json:"primitives"`
	MergeCells        map[string]int                        `json:"mergeCells"`
	RelationsRendered int                                   `json:"relationsRendered"`
	RelationsPending  int                                   `json:"relationsPending"`
	Unresolved        []featureviz.ExternalReferenceRequest `json:"unresolved,omitempty"`
	Warnings          []string                              `json:"warnings,omitempty"`
}

func runRender(cmd *cobra.Command, args []string) error {
	rules, err := featureviz.LoadStyle(renderStyle, logger)
	if err != nil {
		return err
	}

	opts, err := sessionOptions()
	if err != nil {
		return err
	}

	loadOpts := tilestore.DefaultLoadOptions()
	loadOpts.Logger = logger
	if renderWorkers > 0 {
		loadOpts.Workers = renderWorkers
	}
	store, primaryKey, err := openTiles(loadOpts, opts.Bounds)
	if err != nil {
		return err
	}
	primary, err := store.Layer(primaryKey)
	if err != nil {
		return err
	}

	recorder := featureviz.NewRecorder()
	opts.Backend = recorder
	session := featureviz.NewSession(rules, opts)
	session.AddTileFeatureLayer(primary)
	if err := session.Run(); err != nil {
		return err
	}

	rounds, unresolved := resolveRounds(session, store)

	out := session.CollectOutputs()
	sum := summary{
		Session:           session.ID(),
		Style:             rules.Name(),
		Primary:           primaryKey,
		Rounds:            rounds,
		Items:             map[string]int{},
		Primitives:        map[string]int{},
		MergeCells:        map[string]int{},
		RelationsRendered: out.RelationsRendered,
		RelationsPending:  out.RelationsPending,
		Unresolved:        unresolved,
	}
	for name, prims := range out.Categories() {
		sum.Primitives[name] = len(prims)
		for _, p := range prims {
			sum.Items[name] += p.Len()
		}
	}
	for bucket, cells := range out.MergedPoints {
		sum.MergeCells[bucket] = len(cells)
	}
	for _, w := range rules.Warnings() {
		sum.Warnings = append(sum.Warnings, w.Error())
	}
	logger.Debug("recorded primitives", zap.Int("count", len(recorder.Primitives())))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// resolveRounds runs the external reference protocol against the store
// until no new requests come up or the round limit is reached. It returns
// the number of rounds and the requests no tile could answer.
func resolveRounds(session *featureviz.Session, store *tilestore.Store) (int, []featureviz.ExternalReferenceRequest) {
	var unresolved []featureviz.ExternalReferenceRequest
	rounds := 0
	for ; rounds < renderMaxRounds; rounds++ {
		requests := session.ExternalReferences()
		if len(requests) == 0 {
			break
		}
		resolutions := locate(store, requests)
		for i, candidates := range resolutions {
			if len(candidates) == 0 {
				unresolved = append(unresolved, requests[i])
			}
			for _, c := range candidates {
				layer, err := store.Layer(c.Tile)
				if err != nil {
					logger.Warn("cannot load tile for external reference", zap.String("tile", c.Tile), zap.Error(err))
					continue
				}
				session.AddTileFeatureLayer(layer)
			}
		}
		if err := session.ProcessResolvedExternalReferences(resolutions); err != nil {
			logger.Warn("processing resolutions", zap.Error(err))
		}
	}
	return rounds, unresolved
}

func sessionOptions() (featureviz.SessionOptions, error) {
	opts := featureviz.DefaultSessionOptions()
	opts.Logger = logger
	opts.Metrics = featureviz.NewMetrics(prometheus.NewRegistry())
	if renderMercator {
		opts.Converter = render.WebMercator{}
	}

	mode, ok := style.ParseHighlightMode(renderMode)
	if !ok {
		return opts, errors.Errorf("unknown highlight mode %q", renderMode)
	}
	opts.HighlightMode = mode

	if len(renderOptions) > 0 {
		opts.Options = make(map[string]bool, len(renderOptions))
		for _, o := range renderOptions {
			id, value, found := strings.Cut(o, "=")
			if !found {
				value = "true"
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return opts, errors.Wrapf(err, "option %s", id)
			}
			opts.Options[id] = b
		}
	}

	if renderBBox != "" {
		b, err := parseBBox(renderBBox)
		if err != nil {
			return opts, err
		}
		opts.Bounds = &b
	}
	return opts, nil
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, errors.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, errors.Wrapf(err, "bbox %q", s)
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// openTiles indexes the tile directory and picks the primary tile key.
func openTiles(loadOpts tilestore.LoadOptions, bounds *orb.Bound) (*tilestore.Store, string, error) {
	ctx := context.Background()
	if bounds != nil && renderPrimary == "" {
		store, entries, err := tilestore.LoadRegion(ctx, renderTiles, tilestore.Region{Bounds: *bounds}, loadOpts)
		if err != nil {
			return nil, "", err
		}
		return store, entries[0].Key.String(), nil
	}
	store, err := tilestore.OpenDir(ctx, renderTiles, loadOpts)
	if err != nil {
		return nil, "", err
	}
	key, err := pickPrimary(store)
	if err != nil {
		return nil, "", err
	}
	return store, key, nil
}

func pickPrimary(store *tilestore.Store) (string, error) {
	if renderPrimary != "" {
		return renderPrimary, nil
	}
	all := store.Index().All()
	if len(all) == 0 {
		return "", errors.New("tile directory holds no loadable tiles")
	}
	keys := make([]string, len(all))
	for i, e := range all {
		keys[i] = e.Key.String()
	}
	sort.Strings(keys)
	return keys[0], nil
}
