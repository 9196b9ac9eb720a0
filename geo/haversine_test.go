package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"efleetsim/model"
)

func TestHaversineKMZeroDistance(t *testing.T) {
	a := model.Location{Lat: 40.0, Lon: -75.0}
	assert.InDelta(t, 0.0, HaversineKM(a, a), 1e-9)
}

func TestHaversineKMSymmetric(t *testing.T) {
	a := model.Location{Lat: 40.0, Lon: -75.0}
	b := model.Location{Lat: 40.5, Lon: -74.5}
	assert.Equal(t, HaversineKM(a, b), HaversineKM(b, a))
}

func TestHaversineKMKnownDistance(t *testing.T) {
	// New York City to Philadelphia, roughly 130km apart.
	nyc := model.Location{Lat: 40.7128, Lon: -74.0060}
	philly := model.Location{Lat: 39.9526, Lon: -75.1652}
	km := HaversineKM(nyc, philly)
	assert.InDelta(t, 130, km, 10)
}
