package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

// loadTiles decodes tile files and indexes which tile holds which feature.
// It also returns the key of the first tile.
func loadTiles(paths ...string) (map[string]*featureviz.TileFeatureLayer, map[string]string, string) {
	var first string
	tiles := make(map[string]*featureviz.TileFeatureLayer)
	where := make(map[string]string)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal(err)
		}
		tile, err := featureviz.DecodeGeoJSONTile(data)
		if err != nil {
			log.Fatal(err)
		}
		key := tile.Key().String()
		if first == "" {
			first = key
		}
		tiles[key] = tile
		for _, f := range tile.Features() {
			if _, seen := where[f.ID.String()]; !seen {
				where[f.ID.String()] = key
			}
		}
	}
	return tiles, where, first
}

func main() {
	rules, err := featureviz.LoadStyle("style.yaml", nil)
	if err != nil {
		log.Fatal(err)
	}
	tiles, where, primary := loadTiles("primary.geojson", "neighbour.geojson")

	session := featureviz.NewSession(rules, featureviz.DefaultSessionOptions())
	session.AddTileFeatureLayer(tiles[primary])
	if err := session.Run(); err != nil {
		log.Fatal(err)
	}

	// Answer requests until the session stops asking.
	for round := 1; ; round++ {
		requests := session.ExternalReferences()
		if len(requests) == 0 {
			break
		}
		resolutions := make([][]featureviz.Resolution, len(requests))
		for i, req := range requests {
			key, ok := where[req.FeatureID().String()]
			if !ok {
				continue
			}
			session.AddTileFeatureLayer(tiles[key])
			resolutions[i] = []featureviz.Resolution{{Tile: key, Type: req.Type, Key: req.Key}}
		}
		if err := session.ProcessResolvedExternalReferences(resolutions); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("round %d: %d requests\n", round, len(requests))
	}

	out := session.CollectOutputs()
	fmt.Printf("relations rendered: %d, pending: %d\n", out.RelationsRendered, out.RelationsPending)
}
