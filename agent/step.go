// Package agent implements the per-tick local behavior of a single bus:
// finishing a charge session, applying a pending optimizer decision,
// dispatching against its schedule, and advancing along its route.
package agent

import (
	"math/rand"
	"time"

	"efleetsim/config"
	"efleetsim/geo"
	"efleetsim/model"
)

// Context bundles the read-only simulation state a bus step consults.
// State.Stations is keyed by id for O(1) lookup during charger search.
type Context struct {
	Now       time.Time
	State     *model.State
	Distances *geo.Cache
	Config    config.Config
	Rand      *rand.Rand
}

// Step advances bus b by one tick. It mutates only b and, when occupying
// or releasing a charging slot, the target ChargingStation's own guarded
// counter — never another bus.
func Step(b *model.Bus, ctx Context) {
	if b.Status == model.Charging {
		if !ctx.Now.Before(chargingEndTime(b)) {
			finishCharging(b, ctx)
		}
		return
	}

	// Pending decisions are reconciled by the apply package before the
	// engine invokes Step; by the time we get here b.Decision is clear
	// and status already reflects a committed charge/return_depot/move.

	if b.Status == model.ReturningToDepot {
		ReturnToDepot(b, ctx)
		return
	}

	if b.Status == model.InDepot || b.Status == model.Idle {
		if trip := b.Schedule.TripAt(b.NextTripIndex); trip != nil && !ctx.Now.Before(trip.StartTime) {
			dispatch(b, trip)
			return
		}
	}

	if b.Status == model.OnRoute {
		onRouteStep(b, ctx)
	}
}

func chargingEndTime(b *model.Bus) time.Time {
	if b.Charge == nil {
		return time.Time{}
	}
	return b.Charge.MinEndAt
}

func finishCharging(b *model.Bus, ctx Context) {
	if b.Charge != nil {
		if station, ok := ctx.State.Stations[b.Charge.StationID]; ok {
			station.Release()
		}
	}
	b.Charge = nil
	b.SoCPercent = 100
	b.Status = model.InDepot
}

// dispatch starts the given trip and consumes it: advancing NextTripIndex
// here is what guarantees a trip fires exactly once even when the bus
// finishes its route well inside the scheduled window.
func dispatch(b *model.Bus, trip *model.Trip) {
	b.CurrentRouteID = trip.RouteID
	b.CurrentStopID = ""
	b.Status = model.OnRoute
	b.NextTripIndex++
}

// onRouteStep mirrors the bus agent's on-route branch: skip disrupted
// stops, complete the trip by returning to depot, divert to a charger
// when projected SoC would go critical, or make a normal hop.
func onRouteStep(b *model.Bus, ctx Context) {
	route := ctx.State.Routes[b.CurrentRouteID]
	if route == nil {
		ReturnToDepot(b, ctx)
		return
	}

	nextStopID := route.StopIDs[0]
	if b.CurrentStopID != "" {
		nextStopID = route.NextStopID(b.CurrentStopID)
	}
	if nextStopID == "" {
		b.CurrentRouteID = ""
		ReturnToDepot(b, ctx)
		return
	}

	if ctx.State.StopDisrupted(nextStopID, route.ID) {
		if stop, ok := ctx.State.Stops[nextStopID]; ok {
			b.UnservedDemand += stop.Demand
		}
		b.CurrentStopID = nextStopID
		return
	}

	distanceKM := segmentDistanceKM(b, route, nextStopID, ctx)
	socPerKM := ctx.Config.SoCPercentPerKM()
	projected := b.SoCPercent - distanceKM*socPerKM

	if projected < ctx.Config.CriticalSoCPercent {
		if charger := findNearestCharger(b, ctx); charger != nil {
			StartCharging(b, charger, ctx)
		} else {
			ReturnToDepot(b, ctx)
		}
		return
	}

	b.SoCPercent = projected
	b.DistanceTraveledMeters += distanceKM * 1000
	b.EnergyConsumedKWh += distanceKM * ctx.Config.EnergyKWhPerKm
	if stop, ok := ctx.State.Stops[nextStopID]; ok {
		b.Location = stop.Location
	}
	b.CurrentStopID = nextStopID
	b.DelaySeconds += float64(5 + ctx.Rand.Intn(26)) // uniform [5,30] seconds of traffic
}

func segmentDistanceKM(b *model.Bus, route *model.Route, nextStopID string, ctx Context) float64 {
	if b.CurrentStopID != "" {
		if m, ok := route.SegmentDistance(b.CurrentStopID); ok {
			return m / 1000
		}
	}
	nextStop, ok := ctx.State.Stops[nextStopID]
	if !ok {
		return 0
	}
	return geo.HaversineKM(b.Location, nextStop.Location)
}

// findNearestCharger returns the nearest operational, compatible, available
// charging station to b, or nil if none qualify.
func findNearestCharger(b *model.Bus, ctx Context) *model.ChargingStation {
	var best *model.ChargingStation
	bestKM := 0.0
	for id, st := range ctx.State.Stations {
		if !st.Operational || ctx.State.ChargerDisrupted(id) {
			continue
		}
		if !st.AcceptsCompany(b.Company) || !st.IsAvailable() {
			continue
		}
		km := geo.HaversineKM(b.Location, st.Location)
		if best == nil || km < bestKM {
			best, bestKM = st, km
		}
	}
	return best
}

// StartCharging transitions b into the Charging status, occupying a slot
// on station. Charging dwell time is the greater of the configured
// minimum and the time implied by the station's rated power.
func StartCharging(b *model.Bus, station *model.ChargingStation, ctx Context) {
	if !station.Occupy() {
		ReturnToDepot(b, ctx)
		return
	}
	requiredKWh := (100 - b.SoCPercent) / 100 * b.BatteryCapacityKWh
	seconds := float64(ctx.Config.ChargingMinTimeSeconds)
	if station.KW > 0 {
		bySpeed := requiredKWh / station.KW * 3600
		if bySpeed > seconds {
			seconds = bySpeed
		}
	}
	b.Charge = &model.ChargingState{
		StationID: station.ID,
		StartedAt: ctx.Now,
		MinEndAt:  ctx.Now.Add(time.Duration(seconds) * time.Second),
	}
	b.Location = station.Location
	b.Status = model.Charging
}

// ReturnToDepot attempts to send b back to its home depot, stranding it if
// the remaining charge cannot cover the distance.
func ReturnToDepot(b *model.Bus, ctx Context) {
	depot, ok := ctx.State.Depots[b.ReturnDepotID()]
	if !ok {
		b.Status = model.Stranded
		strand(b, ctx)
		return
	}
	km := geo.HaversineKM(b.Location, depot.Location)
	availableKWh := b.SoCPercent / 100 * b.BatteryCapacityKWh
	if availableKWh < km*ctx.Config.EnergyKWhPerKm {
		strand(b, ctx)
		return
	}
	b.SoCPercent -= km * ctx.Config.SoCPercentPerKM()
	b.EnergyConsumedKWh += km * ctx.Config.EnergyKWhPerKm
	b.DistanceTraveledMeters += km * 1000
	b.Location = depot.Location
	b.DepotID = depot.ID
	b.Status = model.InDepot
}

func strand(b *model.Bus, ctx Context) {
	b.Status = model.Stranded
	if b.StrandedAt == nil {
		t := ctx.Now
		b.StrandedAt = &t
	}
}
