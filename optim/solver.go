package optim

import (
	"context"
	"fmt"
	"sort"
	"time"

	"efleetsim/model"
)

type varDef struct {
	lower, upper float64
	integer      bool
}

// HeuristicSolver is the shipped Solver backend. No exact MILP library is
// available to this module, so instead of branch-and-bound it constructs a
// candidate assignment by rolling each bus forward through the space-time
// graph minute by minute (charging the most depleted buses first, within
// slot capacity), then verifies that candidate against every constraint
// the model generated before reporting it Feasible. An exact backend
// implementing the same interface drops in without touching the model.
type HeuristicSolver struct {
	problem *Problem

	vars        map[string]varDef
	constraints []Constraint
	objective   Expr

	values map[string]float64
	status Status
}

// NewHeuristicSolver returns a backend that rolls out candidates against p.
func NewHeuristicSolver(p *Problem) *HeuristicSolver {
	return &HeuristicSolver{
		problem: p,
		vars:    make(map[string]varDef),
		values:  make(map[string]float64),
		status:  StatusNoSolution,
	}
}

// AddVar implements Solver.
func (h *HeuristicSolver) AddVar(name string, lower, upper float64, integer bool) {
	h.vars[name] = varDef{lower: lower, upper: upper, integer: integer}
}

// AddConstraint implements Solver.
func (h *HeuristicSolver) AddConstraint(c Constraint) {
	h.constraints = append(h.constraints, c)
}

// SetObjective implements Solver.
func (h *HeuristicSolver) SetObjective(e Expr) {
	h.objective = e
}

// Value implements Solver; undeclared or unassigned variables read as 0.
func (h *HeuristicSolver) Value(name string) float64 {
	return h.values[name]
}

// ObjectiveValue returns the candidate's objective under the model's cost
// expression. Meaningful only after a successful Solve.
func (h *HeuristicSolver) ObjectiveValue() float64 {
	return h.objective.Eval(h.Value)
}

// Solve implements Solver. gapRel is advisory for exact backends; the
// rollout produces a single candidate, so the gap is whatever it is.
func (h *HeuristicSolver) Solve(ctx context.Context, timeLimit time.Duration, gapRel float64) (Status, error) {
	_ = gapRel
	deadline := time.Now().Add(timeLimit)

	h.values = make(map[string]float64)
	p := h.problem
	g := p.Graph
	horizon := p.Config.MIPHorizonMinutes

	remaining := make(map[string]int, len(g.ChargerIDs))
	for id, free := range g.ChargerCapacity {
		remaining[id] = free
	}

	ordered := make([]BusState, 0, len(p.Buses))
	for _, b := range p.Buses {
		if b.Status == model.Stranded {
			continue
		}
		if _, ok := g.Nodes[b.CurrentNodeID]; !ok {
			continue
		}
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].SoCPercent != ordered[j].SoCPercent {
			return ordered[i].SoCPercent < ordered[j].SoCPercent
		}
		return ordered[i].ID < ordered[j].ID
	})

	for _, bus := range ordered {
		select {
		case <-ctx.Done():
			return StatusNoSolution, ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return StatusNoSolution, fmt.Errorf("solve time limit %s exceeded", timeLimit)
		}
		h.rolloutBus(bus, horizon, remaining)
	}

	h.markServed(ordered, horizon)

	if viol := h.findViolation(); viol != "" {
		h.status = StatusInfeasible
		return StatusInfeasible, nil
	}
	h.status = StatusFeasible
	return StatusFeasible, nil
}

// rolloutBus simulates one bus across the horizon and records its x, y,
// chg, and soc variable values.
func (h *HeuristicSolver) rolloutBus(bus BusState, horizon int, remaining map[string]int) {
	p := h.problem
	g := p.Graph
	socPerKM := p.Config.SoCPercentPerKM()

	pos := bus.CurrentNodeID
	soc := bus.SoCPercent
	h.values[xVar(bus.ID, pos, 0)] = 1
	h.values[socVar(bus.ID, 0)] = soc

	critical := bus.Status != model.Charging && h.projectedCritical(bus)
	chargeAt := ""
	if critical {
		chargeAt = h.claimCharger(bus, remaining)
	}
	headHome := critical && chargeAt == "" || bus.Status == model.ReturningToDepot
	routeAhead := h.routeAhead(bus)

	for t := 0; t < horizon; t++ {
		next := pos
		charging := false
		var hopKM float64

		switch {
		case chargeAt != "" && pos == chargeAt:
			gain := g.ChargerKW[chargeAt] * 100.0 / bus.BatteryCapacityKWh / 60.0
			if soc+gain <= 100 {
				charging = true
				soc += gain
			}
		case chargeAt != "" && h.hasEdge(pos, chargeAt):
			if km := p.EdgeKM(pos, chargeAt); soc-km*socPerKM >= 0 {
				next, hopKM = chargeAt, km
			}
		case headHome && pos != bus.HomeDepotID && h.hasEdge(pos, bus.HomeDepotID):
			if km := p.EdgeKM(pos, bus.HomeDepotID); soc-km*socPerKM >= 0 {
				next, hopKM = bus.HomeDepotID, km
			}
		case !headHome && len(routeAhead) > 0 && h.hasEdge(pos, routeAhead[0]):
			if km := p.EdgeKM(pos, routeAhead[0]); soc-km*socPerKM >= 0 {
				next, hopKM = routeAhead[0], km
				routeAhead = routeAhead[1:]
			} else {
				routeAhead = nil
			}
		}

		if charging {
			h.values[chgVar(bus.ID, pos, t)] = 1
		} else {
			soc -= hopKM * socPerKM
			h.values[yVar(bus.ID, pos, next, t)] = 1
		}
		pos = next
		h.values[xVar(bus.ID, pos, t+1)] = 1
		h.values[socVar(bus.ID, t+1)] = soc
	}
}

// claimCharger reserves the nearest compatible charger with a free slot
// for the bus, returning its id or "" when none qualifies.
func (h *HeuristicSolver) claimCharger(bus BusState, remaining map[string]int) string {
	p := h.problem
	best := ""
	bestKM := 0.0
	for _, cid := range p.Graph.ChargerIDs {
		if remaining[cid] <= 0 || !p.Graph.ChargerAccepts(cid, bus.Company) {
			continue
		}
		if cid != bus.CurrentNodeID && !h.hasEdge(bus.CurrentNodeID, cid) {
			continue
		}
		km := p.EdgeKM(bus.CurrentNodeID, cid)
		if best == "" || km < bestKM {
			best, bestKM = cid, km
		}
	}
	if best != "" {
		remaining[best]--
	}
	return best
}

// projectedCritical reports whether the bus's charge would fall below the
// critical threshold after its cheapest next traversal.
func (h *HeuristicSolver) projectedCritical(bus BusState) bool {
	p := h.problem
	if bus.SoCPercent < p.Config.CriticalSoCPercent {
		return true
	}
	neighbors := p.Graph.Edges[bus.CurrentNodeID]
	if len(neighbors) == 0 {
		return false
	}
	best := -1.0
	for _, n := range neighbors {
		km := p.EdgeKM(bus.CurrentNodeID, n)
		if best < 0 || km < best {
			best = km
		}
	}
	return bus.SoCPercent-best*p.Config.SoCPercentPerKM() < p.Config.CriticalSoCPercent
}

// routeAhead returns the remaining stop sequence for an on-route bus,
// starting after its current node. A bus whose derived node is not on the
// route (depot start) begins at the route's first stop.
func (h *HeuristicSolver) routeAhead(bus BusState) []string {
	if bus.Status != model.OnRoute {
		return nil
	}
	stops := h.problem.RouteStops[bus.CurrentRouteID]
	for i, id := range stops {
		if id == bus.CurrentNodeID {
			return stops[i+1:]
		}
	}
	return stops
}

func (h *HeuristicSolver) hasEdge(from, to string) bool {
	for _, n := range h.problem.Graph.Edges[from] {
		if n == to {
			return true
		}
	}
	return false
}

// markServed sets each stop's served indicator from the candidate's
// presence variables.
func (h *HeuristicSolver) markServed(buses []BusState, horizon int) {
	for _, stop := range h.problem.Graph.StopIDs {
		for _, b := range buses {
			visited := false
			for t := 0; t <= horizon; t++ {
				if h.values[xVar(b.ID, stop, t)] > 0.5 {
					visited = true
					break
				}
			}
			if visited {
				h.values[servedVar(stop)] = 1
				break
			}
		}
	}
}

// findViolation checks the candidate against every generated constraint
// and variable bound, returning the first violated name or "".
func (h *HeuristicSolver) findViolation() string {
	const tol = 1e-6
	for name, v := range h.values {
		def, ok := h.vars[name]
		if !ok {
			continue
		}
		if v < def.lower-tol || v > def.upper+tol {
			return "bound:" + name
		}
	}
	for _, c := range h.constraints {
		if !c.Satisfied(h.Value, tol) {
			return c.Name
		}
	}
	return ""
}
