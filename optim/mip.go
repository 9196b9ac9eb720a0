package optim

import (
	"context"
	"fmt"
	"time"

	"efleetsim/model"
)

// Status is a solver outcome. Optimal and Feasible solutions are accepted
// by the optimizer; anything else yields an empty decision map and the
// fleet continues on autonomous step logic for the tick.
type Status string

const (
	StatusOptimal    Status = "Optimal"
	StatusFeasible   Status = "Feasible"
	StatusInfeasible Status = "Infeasible"
	StatusNoSolution Status = "NoSolution"
)

// Accepted reports whether a solve outcome carries a usable assignment.
func (s Status) Accepted() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Sense is a linear constraint's relation to its right-hand side.
type Sense int

const (
	SenseEQ Sense = iota
	SenseLE
	SenseGE
)

// Expr is a linear expression over named variables plus a constant.
type Expr struct {
	Terms map[string]float64
	Const float64
}

// NewExpr returns an empty linear expression.
func NewExpr() Expr {
	return Expr{Terms: make(map[string]float64)}
}

// Add accumulates coeff onto the named variable's coefficient.
func (e Expr) Add(name string, coeff float64) Expr {
	e.Terms[name] += coeff
	return e
}

// Eval computes the expression's value under the given assignment; absent
// variables evaluate to 0.
func (e Expr) Eval(value func(string) float64) float64 {
	total := e.Const
	for name, coeff := range e.Terms {
		total += coeff * value(name)
	}
	return total
}

// Constraint is one linear constraint of the model.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Satisfied evaluates the constraint under an assignment, with tolerance
// for float accumulation.
func (c Constraint) Satisfied(value func(string) float64, tol float64) bool {
	lhs := c.Expr.Eval(value)
	switch c.Sense {
	case SenseEQ:
		return lhs >= c.RHS-tol && lhs <= c.RHS+tol
	case SenseLE:
		return lhs <= c.RHS+tol
	default:
		return lhs >= c.RHS-tol
	}
}

// Solver is the minimal MILP backend interface the model is built against:
// declare variables and constraints, set an objective, solve under a time
// limit and relative gap, and read back values. HeuristicSolver is the
// shipped backend; an exact branch-and-bound backend slots in without any
// change to the model construction or decision extraction.
type Solver interface {
	AddVar(name string, lower, upper float64, integer bool)
	AddConstraint(c Constraint)
	SetObjective(e Expr)
	Solve(ctx context.Context, timeLimit time.Duration, gapRel float64) (Status, error)
	Value(name string) float64
}

func xVar(busID, nodeID string, t int) string {
	return fmt.Sprintf("x|%s|%s|%d", busID, nodeID, t)
}

func yVar(busID, from, to string, t int) string {
	return fmt.Sprintf("y|%s|%s|%s|%d", busID, from, to, t)
}

func chgVar(busID, chargerID string, t int) string {
	return fmt.Sprintf("chg|%s|%s|%d", busID, chargerID, t)
}

func socVar(busID string, t int) string {
	return fmt.Sprintf("soc|%s|%d", busID, t)
}

func servedVar(stopID string) string {
	return fmt.Sprintf("served|%s", stopID)
}

// Model is one built rolling-horizon instance: the modeled bus subset, the
// traversal arcs (feasible edges plus a dwell arc per node, which keeps a
// parked or charging bus present in the flow balance), and the horizon.
type Model struct {
	p     *Problem
	buses []BusState
	arcs  map[string][]string
	H     int
}

// BuildModel generates the instance's variables, constraints, and
// objective into s. Buses whose derived position is not a node of the
// feasible graph (stranded, or standing on a disrupted asset) are left out
// of the model; they keep running on their own step logic.
func BuildModel(p *Problem, s Solver) *Model {
	m := &Model{p: p, H: p.Config.MIPHorizonMinutes}
	g := p.Graph

	for _, b := range p.Buses {
		if b.Status == model.Stranded {
			continue
		}
		if _, ok := g.Nodes[b.CurrentNodeID]; !ok {
			continue
		}
		m.buses = append(m.buses, b)
	}

	m.arcs = make(map[string][]string, len(g.Nodes))
	for _, id := range g.NodeIDs() {
		m.arcs[id] = append([]string{id}, g.Edges[id]...)
	}

	m.addVars(s)
	m.addConstraints(s)
	s.SetObjective(m.objective())
	return m
}

func (m *Model) addVars(s Solver) {
	g := m.p.Graph
	for _, b := range m.buses {
		for _, n := range g.NodeIDs() {
			for t := 0; t <= m.H; t++ {
				s.AddVar(xVar(b.ID, n, t), 0, 1, true)
			}
			for _, n2 := range m.arcs[n] {
				for t := 0; t < m.H; t++ {
					s.AddVar(yVar(b.ID, n, n2, t), 0, 1, true)
				}
			}
		}
		for _, c := range g.ChargerIDs {
			for t := 0; t < m.H; t++ {
				s.AddVar(chgVar(b.ID, c, t), 0, 1, true)
			}
		}
		for t := 0; t <= m.H; t++ {
			s.AddVar(socVar(b.ID, t), 0, 100, false)
		}
	}
	for _, stop := range g.StopIDs {
		s.AddVar(servedVar(stop), 0, 1, true)
	}
}

func (m *Model) addConstraints(s Solver) {
	g := m.p.Graph
	socPerKM := m.p.Config.SoCPercentPerKM()
	chargerSet := make(map[string]bool, len(g.ChargerIDs))
	for _, c := range g.ChargerIDs {
		chargerSet[c] = true
	}

	for _, b := range m.buses {
		// Initial position and state of charge.
		for _, n := range g.NodeIDs() {
			rhs := 0.0
			if n == b.CurrentNodeID {
				rhs = 1.0
			}
			s.AddConstraint(Constraint{
				Name: fmt.Sprintf("init_pos|%s|%s", b.ID, n),
				Expr: NewExpr().Add(xVar(b.ID, n, 0), 1),
				Sense: SenseEQ, RHS: rhs,
			})
		}
		s.AddConstraint(Constraint{
			Name: fmt.Sprintf("init_soc|%s", b.ID),
			Expr: NewExpr().Add(socVar(b.ID, 0), 1),
			Sense: SenseEQ, RHS: b.SoCPercent,
		})

		// Flow conservation. Outflow: a bus present at n either traverses
		// an arc (dwell included) or charges there. Inflow: presence at
		// t+1 comes from an arriving arc or an ongoing charge.
		for t := 0; t < m.H; t++ {
			for _, n := range g.NodeIDs() {
				out := NewExpr()
				for _, n2 := range m.arcs[n] {
					out = out.Add(yVar(b.ID, n, n2, t), 1)
				}
				if chargerSet[n] {
					out = out.Add(chgVar(b.ID, n, t), 1)
				}
				out = out.Add(xVar(b.ID, n, t), -1)
				s.AddConstraint(Constraint{
					Name: fmt.Sprintf("flow_out|%s|%s|%d", b.ID, n, t),
					Expr: out, Sense: SenseEQ, RHS: 0,
				})

				in := NewExpr()
				for _, n1 := range g.NodeIDs() {
					for _, n2 := range m.arcs[n1] {
						if n2 == n {
							in = in.Add(yVar(b.ID, n1, n, t), 1)
						}
					}
				}
				if chargerSet[n] {
					in = in.Add(chgVar(b.ID, n, t), 1)
				}
				in = in.Add(xVar(b.ID, n, t+1), -1)
				s.AddConstraint(Constraint{
					Name: fmt.Sprintf("flow_in|%s|%s|%d", b.ID, n, t+1),
					Expr: in, Sense: SenseEQ, RHS: 0,
				})
			}
		}

		// State-of-charge dynamics, per minute.
		for t := 0; t < m.H; t++ {
			dyn := NewExpr().Add(socVar(b.ID, t+1), 1).Add(socVar(b.ID, t), -1)
			for _, n1 := range g.NodeIDs() {
				for _, n2 := range m.arcs[n1] {
					if n1 == n2 {
						continue // dwell consumes nothing
					}
					km := m.p.EdgeKM(n1, n2)
					dyn = dyn.Add(yVar(b.ID, n1, n2, t), km*socPerKM)
				}
			}
			gain := 100.0 / b.BatteryCapacityKWh / 60.0
			for _, c := range g.ChargerIDs {
				dyn = dyn.Add(chgVar(b.ID, c, t), -g.ChargerKW[c]*gain)
			}
			s.AddConstraint(Constraint{
				Name: fmt.Sprintf("soc_dyn|%s|%d", b.ID, t+1),
				Expr: dyn, Sense: SenseEQ, RHS: 0,
			})
		}
	}

	// Demand-served linearization, M = sum over buses of (H+1) presences.
	bigM := float64(len(m.buses) * (m.H + 1))
	if bigM == 0 {
		bigM = 1
	}
	for _, stop := range g.StopIDs {
		upper := NewExpr().Add(servedVar(stop), -bigM)
		lower := NewExpr().Add(servedVar(stop), -1)
		for _, b := range m.buses {
			for t := 0; t <= m.H; t++ {
				upper = upper.Add(xVar(b.ID, stop, t), 1)
				lower = lower.Add(xVar(b.ID, stop, t), 1)
			}
		}
		s.AddConstraint(Constraint{
			Name: fmt.Sprintf("served_ub|%s", stop),
			Expr: upper, Sense: SenseLE, RHS: 0,
		})
		s.AddConstraint(Constraint{
			Name: fmt.Sprintf("served_lb|%s", stop),
			Expr: lower, Sense: SenseGE, RHS: 0,
		})
	}

	// Charger slot capacity per minute.
	for _, c := range g.ChargerIDs {
		for t := 0; t < m.H; t++ {
			use := NewExpr()
			for _, b := range m.buses {
				use = use.Add(chgVar(b.ID, c, t), 1)
			}
			s.AddConstraint(Constraint{
				Name: fmt.Sprintf("charger_cap|%s|%d", c, t),
				Expr: use, Sense: SenseLE, RHS: float64(g.ChargerCapacity[c]),
			})
		}
	}
}

// objective builds the minimized cost: unserved demand (doubled while any
// disruption is active), mid-horizon battery drain below 50%, and
// end-of-horizon distance from full charge.
func (m *Model) objective() Expr {
	g := m.p.Graph
	alpha := m.p.Config.MIPUnservedDemandCost
	if m.p.AnyDisruptionActive {
		alpha *= 2
	}
	beta := m.p.Config.MIPBatteryDrainPenalty

	obj := NewExpr()
	for _, stop := range g.StopIDs {
		demand := g.StopDemand[stop]
		obj.Const += demand * alpha
		obj = obj.Add(servedVar(stop), -demand*alpha)
	}
	for _, b := range m.buses {
		for t := (m.H + 1) / 2; t <= m.H; t++ {
			obj.Const += 50 * beta * 0.5
			obj = obj.Add(socVar(b.ID, t), -beta*0.5)
		}
		obj.Const += 100 * beta
		obj = obj.Add(socVar(b.ID, m.H), -beta)
	}
	return obj
}

// ExtractDecisions reads the t=0 assignment back out of the solver and
// maps it to one immediate action per bus: an active charge wins, then the
// first traversal arc (dwell excluded) classified by its destination kind.
func (m *Model) ExtractDecisions(s Solver) map[string]Decision {
	g := m.p.Graph
	decisions := make(map[string]Decision)

	for _, b := range m.buses {
		if target, ok := m.activeCharge(s, b); ok {
			decisions[b.ID] = Decision{BusID: b.ID, Action: model.ActionCharge, Target: target}
			continue
		}

		to, ok := m.firstMove(s, b)
		if !ok {
			continue // dwelling: no decision, the bus keeps its own plan
		}
		switch g.Nodes[to].Kind {
		case model.NodeDepot:
			decisions[b.ID] = Decision{BusID: b.ID, Action: model.ActionReturnDepot, Target: to}
		case model.NodeCharger:
			decisions[b.ID] = Decision{BusID: b.ID, Action: model.ActionCharge, Target: to}
		default:
			decisions[b.ID] = Decision{BusID: b.ID, Action: model.ActionMove, Target: to}
		}
	}
	return decisions
}

func (m *Model) activeCharge(s Solver, b BusState) (string, bool) {
	for _, c := range m.p.Graph.ChargerIDs {
		if s.Value(chgVar(b.ID, c, 0)) > 0.5 {
			return c, true
		}
	}
	return "", false
}

func (m *Model) firstMove(s Solver, b BusState) (string, bool) {
	for _, n1 := range m.p.Graph.NodeIDs() {
		for _, n2 := range m.arcs[n1] {
			if n1 == n2 {
				continue
			}
			if s.Value(yVar(b.ID, n1, n2, 0)) > 0.5 {
				return n2, true
			}
		}
	}
	return "", false
}
