package agent

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efleetsim/config"
	"efleetsim/geo"
	"efleetsim/model"
)

func testAgentState() *model.State {
	s := model.NewState()
	route := &model.Route{ID: "R1", StopIDs: []string{"S1", "S2"}}
	_ = route.Rebuild()
	route.Segments[0] = model.RouteSegment{From: "S1", To: "S2", DistanceMeters: 1000, HasDistance: true}
	s.Routes["R1"] = route
	s.Stops["S1"] = &model.Stop{ID: "S1", Location: model.Location{Lat: 40.0, Lon: -75.0}, Demand: 4}
	s.Stops["S2"] = &model.Stop{ID: "S2", Location: model.Location{Lat: 40.01, Lon: -75.01}, Demand: 2}
	s.Depots["D1"] = &model.Depot{ID: "D1", Location: model.Location{Lat: 40.0, Lon: -75.0}}
	s.Stations["C1"] = &model.ChargingStation{ID: "C1", Slots: 1, KW: 150, Operational: true, Location: model.Location{Lat: 40.005, Lon: -75.005}}
	return s
}

func testContext(state *model.State) Context {
	cfg := config.Default()
	return Context{
		Now:       time.Now(),
		State:     state,
		Distances: geo.NewCache(filepath.Join("", "unused.json")),
		Config:    cfg,
		Rand:      rand.New(rand.NewSource(1)),
	}
}

func TestStepDispatchesWhenTripDue(t *testing.T) {
	state := testAgentState()
	now := time.Now()
	bus := &model.Bus{ID: "B1", Status: model.InDepot, DepotID: "D1", SoCPercent: 100,
		Schedule: model.DailySchedule{Trips: []model.Trip{
			{RouteID: "R1", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
		}}}

	ctx := testContext(state)
	ctx.Now = now
	Step(bus, ctx)

	assert.Equal(t, model.OnRoute, bus.Status)
	assert.Equal(t, "R1", bus.CurrentRouteID)
	assert.Equal(t, 1, bus.NextTripIndex, "dispatch consumes the trip")
}

func TestStepNeverRedispatchesAConsumedTrip(t *testing.T) {
	state := testAgentState()
	now := time.Now()
	bus := &model.Bus{ID: "B1", Status: model.InDepot, DepotID: "D1", SoCPercent: 100, BatteryCapacityKWh: 250,
		Location: state.Depots["D1"].Location,
		Schedule: model.DailySchedule{Trips: []model.Trip{
			{RouteID: "R1", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
		}}}

	ctx := testContext(state)
	// Walk the full lifecycle: dispatch, two hops, return to depot — all
	// well inside the trip's scheduled window.
	for i := 0; i < 4; i++ {
		ctx.Now = now.Add(time.Duration(i) * time.Minute)
		Step(bus, ctx)
	}
	require.Equal(t, model.InDepot, bus.Status, "route finished ahead of schedule")
	distance := bus.DistanceTraveledMeters

	ctx.Now = now.Add(5 * time.Minute)
	Step(bus, ctx)

	assert.Equal(t, model.InDepot, bus.Status, "the consumed trip must not fire again")
	assert.Equal(t, 1, bus.NextTripIndex)
	assert.Equal(t, distance, bus.DistanceTraveledMeters, "no further movement after the schedule is exhausted")
}

func TestStepFinishesChargingWhenDue(t *testing.T) {
	state := testAgentState()
	require.True(t, state.Stations["C1"].Occupy())
	now := time.Now()
	bus := &model.Bus{ID: "B1", Status: model.Charging, SoCPercent: 40,
		Charge: &model.ChargingState{StationID: "C1", MinEndAt: now.Add(-time.Second)}}

	ctx := testContext(state)
	ctx.Now = now
	Step(bus, ctx)

	assert.Equal(t, model.InDepot, bus.Status)
	assert.Equal(t, 100.0, bus.SoCPercent)
	assert.Nil(t, bus.Charge)
	assert.True(t, state.Stations["C1"].IsAvailable(), "finishing a session must release the slot")
}

func TestStepStillChargingDoesNothing(t *testing.T) {
	state := testAgentState()
	now := time.Now()
	bus := &model.Bus{ID: "B1", Status: model.Charging, SoCPercent: 40,
		Charge: &model.ChargingState{StationID: "C1", MinEndAt: now.Add(time.Minute)}}

	ctx := testContext(state)
	ctx.Now = now
	Step(bus, ctx)

	assert.Equal(t, model.Charging, bus.Status)
	assert.Equal(t, 40.0, bus.SoCPercent)
}

func TestOnRouteStepSkipsDisruptedStopAndAccumulatesUnservedDemand(t *testing.T) {
	state := testAgentState()
	now := time.Now()
	state.SetActiveDisruptions([]*model.DisruptionEvent{
		{Category: model.DisruptionStop, TargetID: "S2", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Hour)},
	})
	bus := &model.Bus{ID: "B1", Status: model.OnRoute, CurrentRouteID: "R1", CurrentStopID: "S1", SoCPercent: 90, BatteryCapacityKWh: 250}

	ctx := testContext(state)
	ctx.Now = now
	Step(bus, ctx)

	assert.Equal(t, "S2", bus.CurrentStopID)
	assert.Equal(t, 2.0, bus.UnservedDemand)
	assert.Equal(t, 90.0, bus.SoCPercent, "SoC should not change on a skipped stop")
}

func TestOnRouteStepNormalHopConsumesSoCAndAdvances(t *testing.T) {
	state := testAgentState()
	bus := &model.Bus{ID: "B1", Status: model.OnRoute, CurrentRouteID: "R1", CurrentStopID: "S1",
		SoCPercent: 90, BatteryCapacityKWh: 250}

	ctx := testContext(state)
	Step(bus, ctx)

	assert.Equal(t, "S2", bus.CurrentStopID)
	assert.Less(t, bus.SoCPercent, 90.0)
	assert.Equal(t, 1000.0, bus.DistanceTraveledMeters)
	assert.Equal(t, state.Stops["S2"].Location, bus.Location)
}

func TestOnRouteStepReturnsToDepotWhenRouteExhausted(t *testing.T) {
	state := testAgentState()
	bus := &model.Bus{ID: "B1", Status: model.OnRoute, CurrentRouteID: "R1", CurrentStopID: "S2",
		DepotID: "D1", SoCPercent: 90, BatteryCapacityKWh: 250, Location: state.Stops["S2"].Location}

	ctx := testContext(state)
	Step(bus, ctx)

	assert.Equal(t, model.InDepot, bus.Status)
	assert.Equal(t, "", bus.CurrentRouteID)
}

func TestOnRouteStepDivertsToChargerWhenProjectedCritical(t *testing.T) {
	state := testAgentState()
	bus := &model.Bus{ID: "B1", Status: model.OnRoute, CurrentRouteID: "R1", CurrentStopID: "S1",
		DepotID: "D1", SoCPercent: 22.1, BatteryCapacityKWh: 250, Location: state.Stops["S1"].Location}

	ctx := testContext(state)
	Step(bus, ctx)

	assert.Equal(t, model.Charging, bus.Status)
	require.NotNil(t, bus.Charge)
	assert.Equal(t, "C1", bus.Charge.StationID)
}

func TestStepCompletesAReturningToDepotTransition(t *testing.T) {
	state := testAgentState()
	bus := &model.Bus{ID: "B1", Status: model.ReturningToDepot, DepotID: "D1",
		SoCPercent: 80, BatteryCapacityKWh: 250, Location: state.Stops["S2"].Location}

	ctx := testContext(state)
	Step(bus, ctx)

	assert.Equal(t, model.InDepot, bus.Status)
	assert.Equal(t, state.Depots["D1"].Location, bus.Location)
}

func TestOnRouteStepIgnoresIncompatibleChargerWhenCritical(t *testing.T) {
	state := testAgentState()
	state.Stations["C1"].CompatibleCompanies = []string{"metro"}
	bus := &model.Bus{ID: "B1", Company: "rival", Status: model.OnRoute, CurrentRouteID: "R1", CurrentStopID: "S1",
		DepotID: "D1", SoCPercent: 22.1, BatteryCapacityKWh: 250, Location: state.Stops["S1"].Location}

	ctx := testContext(state)
	Step(bus, ctx)

	assert.Equal(t, model.InDepot, bus.Status, "with no compatible charger the bus should head home instead")
	assert.Nil(t, bus.Charge)
}

func TestReturnToDepotStrandsWhenInsufficientCharge(t *testing.T) {
	state := testAgentState()
	bus := &model.Bus{ID: "B1", DepotID: "D1", SoCPercent: 0.001, BatteryCapacityKWh: 250,
		Location: model.Location{Lat: 41.0, Lon: -76.0}}

	ctx := testContext(state)
	ReturnToDepot(bus, ctx)

	assert.Equal(t, model.Stranded, bus.Status)
	require.NotNil(t, bus.StrandedAt)
}

func TestStartChargingFallsBackToReturnDepotWhenStationFull(t *testing.T) {
	state := testAgentState()
	state.Stations["C1"].Occupy()
	bus := &model.Bus{ID: "B1", DepotID: "D1", SoCPercent: 50, BatteryCapacityKWh: 250, Location: state.Depots["D1"].Location}

	ctx := testContext(state)
	StartCharging(bus, state.Stations["C1"], ctx)

	assert.Equal(t, model.InDepot, bus.Status, "a full station should fall back to returning to depot")
}
