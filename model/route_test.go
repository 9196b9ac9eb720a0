package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteNavigation(t *testing.T) {
	r := &Route{
		ID:      "R1",
		StopIDs: []string{"A", "B", "C"},
	}
	require.NoError(t, r.Rebuild())

	assert.Equal(t, 0, r.IndexOf("A"))
	assert.Equal(t, -1, r.IndexOf("Z"))
	assert.Equal(t, "B", r.NextStopID("A"))
	assert.Equal(t, "C", r.NextStopID("B"))
	assert.Equal(t, "", r.NextStopID("C"))
	assert.Equal(t, "", r.PreviousStopID("A"))
	assert.Equal(t, "A", r.PreviousStopID("B"))
}

func TestRouteRebuildRequiresTwoStops(t *testing.T) {
	r := &Route{ID: "R1", StopIDs: []string{"A"}}
	err := r.Rebuild()
	assert.Error(t, err)
}

func TestRouteRebuildPreservesResolvedDistances(t *testing.T) {
	r := &Route{
		ID:      "R1",
		StopIDs: []string{"A", "B"},
		Segments: []RouteSegment{
			{From: "A", To: "B", DistanceMeters: 1200, HasDistance: true},
		},
	}
	r.StopIDs = append(r.StopIDs, "C")
	require.NoError(t, r.Rebuild())

	dist, ok := r.SegmentDistance("A")
	require.True(t, ok)
	assert.Equal(t, 1200.0, dist)

	_, ok = r.SegmentDistance("B")
	assert.False(t, ok, "newly introduced B->C segment should be unresolved")
}

func TestRouteTotalDistanceMeters(t *testing.T) {
	r := &Route{
		ID:      "R1",
		StopIDs: []string{"A", "B", "C"},
		Segments: []RouteSegment{
			{From: "A", To: "B", DistanceMeters: 500, HasDistance: true},
			{From: "B", To: "C", DistanceMeters: 300, HasDistance: true},
		},
	}
	total, ok := r.TotalDistanceMeters()
	require.True(t, ok)
	assert.Equal(t, 800.0, total)

	r.Segments[1].HasDistance = false
	_, ok = r.TotalDistanceMeters()
	assert.False(t, ok)
}
