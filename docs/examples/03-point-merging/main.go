package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

// A style rule opts into merging with point-merge-grid-cell:
//
//	rules:
//	  - type: TrafficSign
//	    geometry: point
//	    point-merge-grid-cell: [0.0001, 0.0001, 1]

type signGroup struct {
	features []string
}

type mergeService struct{}

func (mergeService) NewAggregate(c *featureviz.MergeCell) interface{} {
	return &signGroup{features: c.FeatureIDs}
}

func main() {
	rules, err := featureviz.LoadStyle("signs.yaml", nil)
	if err != nil {
		log.Fatal(err)
	}
	data, err := os.ReadFile("signs.geojson")
	if err != nil {
		log.Fatal(err)
	}
	tile, err := featureviz.DecodeGeoJSONTile(data)
	if err != nil {
		log.Fatal(err)
	}

	opts := featureviz.DefaultSessionOptions()
	opts.MergeService = mergeService{}
	session := featureviz.NewSession(rules, opts)
	session.AddTileFeatureLayer(tile)
	if err := session.Run(); err != nil {
		log.Fatal(err)
	}

	for bucket, cells := range session.CollectOutputs().MergedPoints {
		for hash, cell := range cells {
			fmt.Printf("%s %s: %d signs\n", bucket, hash, cell.Len())
		}
	}
}
