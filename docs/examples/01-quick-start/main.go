package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

func main() {
	rules, err := featureviz.LoadStyle("style.yaml", nil)
	if err != nil {
		log.Fatal(err)
	}

	data, err := os.ReadFile("tile.geojson")
	if err != nil {
		log.Fatal(err)
	}
	tile, err := featureviz.DecodeGeoJSONTile(data)
	if err != nil {
		log.Fatal(err)
	}

	session := featureviz.NewSession(rules, featureviz.DefaultSessionOptions())
	session.AddTileFeatureLayer(tile)
	if err := session.Run(); err != nil {
		log.Fatal(err)
	}

	out := session.CollectOutputs()
	for category, prims := range out.Categories() {
		items := 0
		for _, p := range prims {
			items += p.Len()
		}
		fmt.Printf("%-16s %d primitives, %d items\n", category, len(prims), items)
	}
}
