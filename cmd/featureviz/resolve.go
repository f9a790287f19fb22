package main

import (
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/tilestore"
	"github.com/beetlebugorg/featureviz/pkg/featureviz"
)

// locate answers external reference requests from the store. Each request
// gets one resolution per tile holding the feature.
func locate(store *tilestore.Store, requests []featureviz.ExternalReferenceRequest) [][]featureviz.Resolution {
	ids := make([]model.FeatureID, len(requests))
	for i, r := range requests {
		ids[i] = r.FeatureID()
	}
	out := make([][]featureviz.Resolution, len(requests))
	for i, keys := range store.Locate(ids) {
		out[i] = []featureviz.Resolution{}
		for _, key := range keys {
			out[i] = append(out[i], featureviz.Resolution{
				Tile: key,
				Type: requests[i].Type,
				Key:  requests[i].Key,
			})
		}
	}
	return out
}
