package disruption

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"efleetsim/flood"
	"efleetsim/model"
)

// testRasterForStrandedBusTest writes a one-cell raster deep enough to
// flood anything located at (40.0, -75.0), the location every test bus,
// depot, and charger in testState shares.
func testRasterForStrandedBusTest(t *testing.T) string {
	t.Helper()
	r := flood.Raster{
		Transform: flood.AffineTransform{OriginLon: -75.01, OriginLat: 40.01, PixelWidth: 0.02, PixelHeight: -0.02},
		Rows:      1,
		Cols:      1,
		DepthCM:   []float64{50},
	}
	path := filepath.Join(t.TempDir(), "raster.json")
	b, err := json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func testState() *model.State {
	s := model.NewState()
	route := &model.Route{ID: "R1", Name: "Loop", StopIDs: []string{"S1", "S2", "S3"}}
	_ = route.Rebuild()
	s.Routes["R1"] = route
	s.Stops["S1"] = &model.Stop{ID: "S1", Location: model.Location{Lat: 40.0, Lon: -75.0}}
	s.Stops["S2"] = &model.Stop{ID: "S2", Location: model.Location{Lat: 40.01, Lon: -75.01}}
	s.Stops["S3"] = &model.Stop{ID: "S3", Location: model.Location{Lat: 40.02, Lon: -75.02}}
	s.Stations["C1"] = &model.ChargingStation{ID: "C1", Location: model.Location{Lat: 40.0, Lon: -75.0}, Slots: 1}
	s.Depots["D1"] = &model.Depot{ID: "D1", Location: model.Location{Lat: 40.0, Lon: -75.0}}
	s.Buses = []*model.Bus{{ID: "B1", Location: model.Location{Lat: 40.0, Lon: -75.0}, Status: model.OnRoute}}
	s.IndexBuses()
	return s
}

func TestManagerExpiresStaleDisruptions(t *testing.T) {
	m := New(Config{}, flood.New(flood.Config{}, "", zap.NewNop()), rand.New(rand.NewSource(1)), zap.NewNop())
	state := testState()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	state.SetActiveDisruptions([]*model.DisruptionEvent{
		{ID: "expired", EndTime: now.Add(-time.Minute)},
		{ID: "live", EndTime: now.Add(time.Minute)},
	})

	m.Update(now, state)

	ids := make([]string, 0)
	for _, d := range state.Disruptions() {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, "live")
	assert.NotContains(t, ids, "expired")
}

func TestManagerGeneratesRandomDisruptionWhenForced(t *testing.T) {
	cfg := Config{Probability: 1.0, MinStops: 1, MaxStops: 2, MinMinutes: 5, MaxMinutes: 5}
	m := New(cfg, flood.New(flood.Config{}, "", zap.NewNop()), rand.New(rand.NewSource(1)), zap.NewNop())
	state := testState()

	m.Update(time.Now(), state)

	found := false
	for _, d := range state.Disruptions() {
		if d.Source == model.SourceRandom {
			found = true
			assert.Equal(t, model.DisruptionRoute, d.Category)
		}
	}
	assert.True(t, found, "probability 1.0 should always generate a random disruption")
}

func TestManagerNeverGeneratesRandomDisruptionWhenProbabilityZero(t *testing.T) {
	cfg := Config{Probability: 0}
	m := New(cfg, flood.New(flood.Config{}, "", zap.NewNop()), rand.New(rand.NewSource(1)), zap.NewNop())
	state := testState()

	for i := 0; i < 20; i++ {
		m.Update(time.Now().Add(time.Duration(i)*time.Minute), state)
	}
	for _, d := range state.Disruptions() {
		assert.NotEqual(t, model.SourceRandom, d.Source)
	}
}

func TestManagerDoesNotStackDuplicateFloodEvents(t *testing.T) {
	path := testRasterForStrandedBusTest(t)
	floodMap := flood.New(flood.Config{
		Enabled:         true,
		ThresholdM:      0.1,
		DisruptStops:    true,
		DisruptRoutes:   true,
		DurationMinutes: 120,
	}, path, zap.NewNop())
	require.True(t, floodMap.Enabled())

	m := New(Config{}, floodMap, rand.New(rand.NewSource(1)), zap.NewNop())
	state := testState()

	now := time.Now()
	for i := 0; i < 5; i++ {
		m.Update(now.Add(time.Duration(i)*time.Minute), state)
	}

	floodEvents := 0
	for _, d := range state.Disruptions() {
		if d.Source == model.SourceFlood && d.Category == model.DisruptionRoute {
			floodEvents++
		}
	}
	assert.Equal(t, 1, floodEvents, "a still-flooded route keeps its one live event")
}

func TestManagerStrandsFloodedBuses(t *testing.T) {
	path := testRasterForStrandedBusTest(t)
	floodMap := flood.New(flood.Config{
		Enabled:         true,
		ThresholdM:      0.1,
		DisruptBuses:    true,
		DurationMinutes: 30,
	}, path, zap.NewNop())
	require.True(t, floodMap.Enabled())

	m := New(Config{}, floodMap, rand.New(rand.NewSource(1)), zap.NewNop())
	state := testState()

	m.Update(time.Now(), state)

	bus := state.BusByID("B1")
	require.NotNil(t, bus)
	assert.Equal(t, model.Stranded, bus.Status)
}
