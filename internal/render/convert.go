package render

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Converter maps a WGS-84 position ([lon, lat], height in meters) into
// renderer space. It must be a pure function.
type Converter interface {
	ToCartesian(p orb.Point, height float64) Cartesian3
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(p orb.Point, height float64) Cartesian3

// ToCartesian calls f.
func (f ConverterFunc) ToCartesian(p orb.Point, height float64) Cartesian3 {
	return f(p, height)
}

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// ECEF converts to earth-centered, earth-fixed coordinates, the space a
// globe renderer works in.
type ECEF struct{}

// ToCartesian implements Converter.
func (ECEF) ToCartesian(p orb.Point, height float64) Cartesian3 {
	lon := p[0] * math.Pi / 180
	lat := p[1] * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return Cartesian3{
		X: (n + height) * cosLat * cosLon,
		Y: (n + height) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + height) * sinLat,
	}
}

// WebMercator converts to EPSG:3857 meters with the height as Z, for flat
// map renderers.
type WebMercator struct{}

// ToCartesian implements Converter.
func (WebMercator) ToCartesian(p orb.Point, height float64) Cartesian3 {
	m := project.Point(p, project.WGS84.ToMercator)
	return Cartesian3{X: m[0], Y: m[1], Z: height}
}
