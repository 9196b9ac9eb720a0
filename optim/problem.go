package optim

import (
	"time"

	"efleetsim/config"
	"efleetsim/geo"
	"efleetsim/model"
)

// BusState is the subset of a bus's state the optimizer needs, captured at
// solve time so bus agents can keep stepping concurrently once the
// optimizer starts (and possibly retries) its solve.
type BusState struct {
	ID                 string
	Company            string
	CurrentNodeID      string
	SoCPercent         float64
	BatteryCapacityKWh float64
	Status             model.BusStatus
	CurrentRouteID     string
	// DepotID is the depot the bus currently occupies (its position
	// node); HomeDepotID is where a return-to-depot action sends it.
	DepotID     string
	HomeDepotID string
}

// Problem is one rolling-horizon optimization instance: the feasible
// graph, the per-bus state snapshot, distances, and the tunables the
// objective (unserved demand cost, battery drain penalty) is built from.
type Problem struct {
	Graph     *Graph
	Buses     []BusState
	Distances *geo.Cache
	Config    config.Config
	Now       time.Time

	// RouteStops snapshots each route's full stop sequence, for the
	// heuristic backend's route-following rollout.
	RouteStops map[string][]string

	// AnyDisruptionActive doubles the unserved-demand cost in the
	// objective while the network is impaired.
	AnyDisruptionActive bool
}

// EdgeKM returns the great-circle distance between two graph nodes via the
// distance cache, or 0 if either id is not a node.
func (p *Problem) EdgeKM(fromID, toID string) float64 {
	from, okF := p.Graph.Nodes[fromID]
	to, okT := p.Graph.Nodes[toID]
	if !okF || !okT {
		return 0
	}
	return p.Distances.DistanceKM(fromID, toID, from.Location, to.Location)
}

// Decision is the immediate (myopic) action extracted for one bus: the
// t=0 charge assignment or the t=0->t=1 move, matching the MIP's
// decision-extraction step.
type Decision struct {
	BusID  string
	Action model.DecisionAction
	Target string
}

// BuildProblem snapshots state into a Problem for the given graph.
func BuildProblem(g *Graph, state *model.State, distances *geo.Cache, cfg config.Config, now time.Time) *Problem {
	buses := make([]BusState, 0, len(state.Buses))
	for _, b := range state.Buses {
		buses = append(buses, BusState{
			ID:                 b.ID,
			Company:            b.Company,
			CurrentNodeID:      currentNode(b, state),
			SoCPercent:         b.SoCPercent,
			BatteryCapacityKWh: b.BatteryCapacityKWh,
			Status:             b.Status,
			CurrentRouteID:     b.CurrentRouteID,
			DepotID:            b.DepotID,
			HomeDepotID:        b.ReturnDepotID(),
		})
	}
	routeStops := make(map[string][]string, len(state.Routes))
	for id, r := range state.Routes {
		routeStops[id] = append([]string(nil), r.StopIDs...)
	}
	anyActive := false
	for _, d := range state.Disruptions() {
		if d.Active(now) {
			anyActive = true
			break
		}
	}
	return &Problem{
		Graph:               g,
		Buses:               buses,
		Distances:           distances,
		Config:              cfg,
		Now:                 now,
		RouteStops:          routeStops,
		AnyDisruptionActive: anyActive,
	}
}

// currentNode derives a bus's node in the space-time graph from its
// status, matching the MIP's initial-position rule.
func currentNode(b *model.Bus, state *model.State) string {
	switch b.Status {
	case model.OnRoute:
		if route := state.Routes[b.CurrentRouteID]; route != nil && b.CurrentStopID != "" {
			if prev := route.PreviousStopID(b.CurrentStopID); prev != "" {
				return prev
			}
		}
		return b.DepotID
	case model.Charging:
		if b.Charge != nil {
			return b.Charge.StationID
		}
		return b.DepotID
	default: // InDepot, Idle, ReturningToDepot, Stranded
		return b.DepotID
	}
}
