package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRoutesJSON = `[
  {
    "route_id": "R1",
    "name": "Downtown Loop",
    "stops": [
      {"stop_id": "S1", "name": "Main St", "lat": 40.0, "lon": -75.0, "demand": 5},
      {"stop_id": "S2", "name": "2nd Ave", "lat": 40.01, "lon": -75.01, "demand": 3},
      {"stop_id": "S3", "name": "Depot Ave", "lat": 40.02, "lon": -75.02, "is_stage": true}
    ]
  }
]`

func TestLoadRoutesFromReader(t *testing.T) {
	stops, routes, err := LoadRoutesFromReader(strings.NewReader(sampleRoutesJSON))
	require.NoError(t, err)

	require.Len(t, stops, 3)
	assert.Equal(t, "Main St", stops["S1"].Name)
	assert.True(t, stops["S3"].IsStage)

	route, ok := routes["R1"]
	require.True(t, ok)
	assert.Equal(t, []string{"S1", "S2", "S3"}, route.StopIDs)
	require.Len(t, route.Segments, 2)
	assert.False(t, route.Segments[0].HasDistance, "distances are left unresolved by the loader")
}

func TestLoadRoutesFromReaderRejectsSingleStopRoute(t *testing.T) {
	const badJSON = `[{"route_id":"R1","stops":[{"stop_id":"S1","lat":1,"lon":1}]}]`
	_, _, err := LoadRoutesFromReader(strings.NewReader(badJSON))
	assert.Error(t, err)
}

func TestLoadDepotsFromReader(t *testing.T) {
	const raw = `[{"depot_id":"D1","name":"Main Depot","lat":40.0,"lon":-75.0,"charger_id":"C1"}]`
	depots, err := LoadDepotsFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	require.Contains(t, depots, "D1")
	assert.Equal(t, "C1", depots["D1"].ChargerID)
}

func TestLoadStationsFromReaderDefaultsSlots(t *testing.T) {
	const raw = `[{"charger_id":"C1","slots":0,"kw":150},{"charger_id":"C2","slots":4,"kw":50}]`
	stations, err := LoadStationsFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, stations["C1"].Slots, "zero slots should default to 1")
	assert.Equal(t, 4, stations["C2"].Slots)
}

func TestLoadSchedulesFromReaderAttachesSortedTrips(t *testing.T) {
	const raw = `[
	  {"bus_id":"B1","route_id":"R1","depot_id":"D1","departure":"14:00","arrival":"15:30"},
	  {"bus_id":"B1","route_id":"R1","depot_id":"D1","departure":"06:15","arrival":"07:45"},
	  {"bus_id":"ghost","route_id":"R1","depot_id":"D1","departure":"08:00","arrival":"09:00"},
	  {"bus_id":"B1","route_id":"R1","depot_id":"D1","departure":"nope","arrival":"09:00"}
	]`
	bus := &Bus{ID: "B1"}
	day := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

	skipped, err := LoadSchedulesFromReader(strings.NewReader(raw), day, []*Bus{bus})
	require.NoError(t, err)
	assert.Equal(t, 2, skipped, "unknown bus and malformed time rows are skipped")

	require.Len(t, bus.Schedule.Trips, 2)
	assert.True(t, bus.Schedule.Trips[0].StartTime.Before(bus.Schedule.Trips[1].StartTime), "trips sort by departure")
	assert.Equal(t, 6, bus.Schedule.Trips[0].StartTime.Hour())
	assert.Equal(t, day.Day(), bus.Schedule.Trips[0].StartTime.Day(), "trips anchor to the service day, not the load time")
}

func TestLoadSchedulesFromReaderRollsOvernightArrivalsForward(t *testing.T) {
	const raw = `[{"bus_id":"B1","route_id":"R1","depot_id":"D1","departure":"23:30","arrival":"01:10"}]`
	bus := &Bus{ID: "B1"}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	skipped, err := LoadSchedulesFromReader(strings.NewReader(raw), day, []*Bus{bus})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	trip := bus.Schedule.Trips[0]
	assert.True(t, trip.EndTime.After(trip.StartTime))
	assert.Equal(t, 3, trip.EndTime.Day(), "an arrival before its departure crosses midnight")
	require.NoError(t, trip.Validate())
}

func TestLoadFleetFromReaderDefaultsSoC(t *testing.T) {
	const raw = `[{"bus_id":"B1","battery_capacity_kwh":250,"initial_soc_percent":0,"depot_id":"D1","cost_per_km":1.2},
	             {"bus_id":"B2","battery_capacity_kwh":250,"initial_soc_percent":55,"depot_id":"D1"}]`
	buses, err := LoadFleetFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, buses, 2)
	assert.Equal(t, 100.0, buses[0].SoCPercent, "non-positive initial SoC should default to full charge")
	assert.Equal(t, 55.0, buses[1].SoCPercent)
	assert.Equal(t, InDepot, buses[0].Status)
	assert.Equal(t, "D1", buses[0].HomeDepotID, "home depot starts as the loaded depot")
	assert.Equal(t, "D1", buses[0].DepotID)
	assert.Equal(t, 1.2, buses[0].CostPerKm)
}
