// Package geo computes and caches great-circle distances between the
// stops, depots, and chargers referenced by the space-time graph.
package geo

import (
	"math"

	"efleetsim/model"
)

const earthRadiusKm = 6371.0088

// HaversineKM returns the great-circle distance between a and b in
// kilometers.
func HaversineKM(a, b model.Location) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	h := sinDLat*sinDLat + math.Cos(la1)*math.Cos(la2)*sinDLon*sinDLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}
