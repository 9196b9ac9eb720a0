// Package apply reconciles MIP decisions against live bus and station
// state before each tick's agent steps run, dropping any decision that has
// gone stale (station filled, target vanished) since the optimizer solved.
package apply

import (
	"time"

	"github.com/samber/lo"

	"efleetsim/config"
	"efleetsim/model"
)

// Apply reconciles each bus's PendingDecision against current state,
// mutating bus status directly (charge/return_depot/move cascades) and
// clearing the decision whether or not it could be honored.
func Apply(state *model.State, now time.Time, cfg config.Config) {
	decided := lo.Filter(state.Buses, func(b *model.Bus, _ int) bool {
		return b.Decision.Action != model.ActionNone
	})
	for _, bus := range decided {
		d := bus.Decision
		bus.Decision = model.PendingDecision{}

		switch d.Action {
		case model.ActionCharge:
			applyCharge(bus, d.TargetNodeID, state.Stations, now, cfg)
		case model.ActionReturnDepot:
			applyReturnDepot(bus)
		case model.ActionMove:
			applyMove(bus, d.TargetNodeID, state, now, cfg)
		}
	}
}

func applyCharge(bus *model.Bus, stationID string, stations map[string]*model.ChargingStation, now time.Time, cfg config.Config) {
	station, ok := stations[stationID]
	if !ok {
		return
	}
	if !station.Operational || !station.AcceptsCompany(bus.Company) {
		return
	}
	if !station.Occupy() {
		return
	}
	neededKWh := (100 - bus.SoCPercent) / 100 * bus.BatteryCapacityKWh
	seconds := 3600.0
	if station.KW > 0 {
		bySpeed := neededKWh / station.KW * 3600
		if bySpeed < seconds {
			seconds = bySpeed
		}
	}
	if seconds < float64(cfg.ChargingMinTimeSeconds) {
		seconds = float64(cfg.ChargingMinTimeSeconds)
	}
	bus.Charge = &model.ChargingState{
		StationID: station.ID,
		StartedAt: now,
		MinEndAt:  now.Add(time.Duration(seconds) * time.Second),
	}
	bus.Location = station.Location
	bus.Status = model.Charging
}

func applyReturnDepot(bus *model.Bus) {
	bus.Status = model.ReturningToDepot
}

// applyMove dispatches a generic "move" decision to whichever concrete
// action its target resolves to: a stop on the bus's current route, a
// depot, or a charger.
func applyMove(bus *model.Bus, targetID string, state *model.State, now time.Time, cfg config.Config) {
	if route := state.Routes[bus.CurrentRouteID]; route != nil {
		if idx := route.IndexOf(targetID); idx >= 0 {
			if stop, ok := state.Stops[targetID]; ok {
				bus.CurrentStopID = targetID
				bus.Location = stop.Location
				bus.Status = model.OnRoute
				return
			}
		}
	}
	if _, ok := state.Depots[targetID]; ok {
		// never reassign the bus's depot identity; the return path always
		// targets its home depot
		applyReturnDepot(bus)
		return
	}
	if _, ok := state.Stations[targetID]; ok {
		applyCharge(bus, targetID, state.Stations, now, cfg)
		return
	}
	// Unknown target: drop, bus continues on its own step logic.
}
