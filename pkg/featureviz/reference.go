package featureviz

import (
	"fmt"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// ExternalReferenceRequest asks the caller for the location of a feature
// that is not in any registered tile. Key alternates id-part names and
// values.
type ExternalReferenceRequest struct {
	Type string        `json:"type"`
	Key  []interface{} `json:"key"`
}

// FeatureID returns the identifier of the requested feature.
func (r ExternalReferenceRequest) FeatureID() FeatureID {
	return model.NewFeatureID(r.Type, r.Key...)
}

func newRequest(id FeatureID) ExternalReferenceRequest {
	key := make([]interface{}, 0, 2*len(id.Parts))
	for _, p := range id.Parts {
		key = append(key, p.Name, p.Value)
	}
	return ExternalReferenceRequest{Type: id.Type, Key: key}
}

// Resolution names the tile a requested feature lives in. Tile is the
// TileKey.String() of a layer registered with AddTileFeatureLayer.
type Resolution struct {
	Tile string        `json:"tile"`
	Type string        `json:"type"`
	Key  []interface{} `json:"key"`
}

// FeatureID returns the identifier of the resolved feature.
func (r Resolution) FeatureID() FeatureID {
	return model.NewFeatureID(r.Type, r.Key...)
}

// ErrResolutionMismatch is returned when the resolution list does not
// line up with the last request list.
type ErrResolutionMismatch struct {
	Requests    int
	Resolutions int
}

func (e *ErrResolutionMismatch) Error() string {
	return fmt.Sprintf("got %d resolutions for %d external reference requests", e.Resolutions, e.Requests)
}

// ErrNoPrimaryTile is returned by Run before any tile has been added.
type ErrNoPrimaryTile struct{}

func (e *ErrNoPrimaryTile) Error() string {
	return "no tile feature layer added to session"
}
