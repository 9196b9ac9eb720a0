// Package optim formulates the rolling-horizon network-flow MIP over
// stops, depots, and chargers — feasible graph, decision variables,
// constraints, objective — behind a minimal pluggable Solver interface,
// and extracts one immediate action per bus from each solve.
package optim

import (
	"sort"

	"github.com/samber/lo"

	"efleetsim/model"
)

// Graph is the feasible space-time graph for one optimization pass: nodes
// with disrupted stops already excluded, and the directed edges a bus may
// traverse between them.
type Graph struct {
	Nodes map[string]model.Node

	StopIDs    []string
	DepotIDs   []string
	ChargerIDs []string

	// ChargerCapacity is each charger's free-slot count at solve time;
	// ChargerKW its rated power and ChargerCompanies its compatibility
	// list (empty means any operator).
	ChargerCapacity  map[string]int
	ChargerKW        map[string]float64
	ChargerCompanies map[string][]string

	// Edges maps a source node id to every feasible destination.
	Edges map[string][]string

	RouteFirstStop map[string]string // route id -> first non-disrupted stop id
	DisruptedStops map[string]bool
	DisruptedDepots map[string]bool

	// StopDemand is each included stop's passenger demand, for the
	// solver's unserved-demand objective term.
	StopDemand map[string]float64
}

// BuildGraph constructs the feasible node and edge set from current state,
// excluding stops named by an active stop/route disruption and chargers
// named by an active charger disruption.
func BuildGraph(state *model.State) *Graph {
	g := &Graph{
		Nodes:            make(map[string]model.Node),
		Edges:            make(map[string][]string),
		RouteFirstStop:   make(map[string]string),
		DisruptedStops:   make(map[string]bool),
		DisruptedDepots:  make(map[string]bool),
		ChargerCapacity:  make(map[string]int),
		ChargerKW:        make(map[string]float64),
		ChargerCompanies: make(map[string][]string),
		StopDemand:       make(map[string]float64),
	}

	for _, d := range state.Disruptions() {
		switch d.Category {
		case model.DisruptionStop:
			g.DisruptedStops[d.TargetID] = true
		case model.DisruptionRoute:
			// only the stops this event actually names are unusable; the
			// rest of the route stays serviceable
			for _, id := range d.AffectedStopIDs {
				g.DisruptedStops[id] = true
			}
		case model.DisruptionDepot:
			g.DisruptedDepots[d.TargetID] = true
		}
	}

	for id, s := range state.Stops {
		if g.DisruptedStops[id] {
			continue
		}
		g.Nodes[id] = model.StopNode(s)
		g.StopIDs = append(g.StopIDs, id)
		g.StopDemand[id] = s.Demand
	}

	for id, d := range state.Depots {
		if g.DisruptedDepots[id] {
			continue
		}
		g.Nodes[id] = model.DepotNode(d)
		g.DepotIDs = append(g.DepotIDs, id)
	}

	for id, c := range state.Stations {
		if !c.Operational || state.ChargerDisrupted(id) {
			continue
		}
		g.Nodes[id] = model.ChargerNode(c)
		g.ChargerIDs = append(g.ChargerIDs, id)
		g.ChargerCapacity[id] = c.Slots - c.OccupiedSlots()
		g.ChargerKW[id] = c.KW
		g.ChargerCompanies[id] = c.CompatibleCompanies
	}

	sort.Strings(g.StopIDs)
	sort.Strings(g.DepotIDs)
	sort.Strings(g.ChargerIDs)

	for _, route := range state.Routes {
		for _, id := range route.StopIDs {
			if !g.DisruptedStops[id] {
				g.RouteFirstStop[route.ID] = id
				break
			}
		}
	}

	g.buildEdges(state)
	for from := range g.Edges {
		g.Edges[from] = lo.Uniq(g.Edges[from])
		sort.Strings(g.Edges[from])
	}
	return g
}

// NodeIDs returns every node id in deterministic (sorted) order, so model
// construction and decision extraction are reproducible across runs.
func (g *Graph) NodeIDs() []string {
	ids := nodeIDs(g.Nodes)
	sort.Strings(ids)
	return ids
}

// ChargerAccepts reports whether the charger admits buses of the given
// company; an empty compatibility list admits every operator.
func (g *Graph) ChargerAccepts(chargerID, company string) bool {
	companies := g.ChargerCompanies[chargerID]
	if len(companies) == 0 {
		return true
	}
	return lo.Contains(companies, company)
}

func (g *Graph) addEdge(from, to string) {
	if from == to {
		return
	}
	g.Edges[from] = append(g.Edges[from], to)
}

func (g *Graph) buildEdges(state *model.State) {
	for _, route := range state.Routes {
		for i := 0; i < len(route.StopIDs)-1; i++ {
			s1, s2 := route.StopIDs[i], route.StopIDs[i+1]
			if g.DisruptedStops[s1] || g.DisruptedStops[s2] {
				continue
			}
			g.addEdge(s1, s2)
		}
	}

	nonChargerNodes := lo.Filter(nodeIDs(g.Nodes), func(id string, _ int) bool {
		return !lo.Contains(g.ChargerIDs, id)
	})
	for _, s := range nonChargerNodes {
		for _, c := range g.ChargerIDs {
			g.addEdge(s, c)
		}
	}

	for _, c := range g.ChargerIDs {
		for _, d := range g.DepotIDs {
			g.addEdge(c, d)
		}
	}

	for _, d := range g.DepotIDs {
		for _, firstStop := range g.RouteFirstStop {
			g.addEdge(d, firstStop)
		}
	}

	for _, s := range g.StopIDs {
		for _, d := range g.DepotIDs {
			g.addEdge(s, d)
		}
	}
}

func nodeIDs(nodes map[string]model.Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	return ids
}
