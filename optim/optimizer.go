package optim

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"efleetsim/config"
	"efleetsim/geo"
	"efleetsim/model"
)

// defaultGapRel is the relative optimality gap passed to exact backends.
const defaultGapRel = 0.20

// Optimizer drives one rolling-horizon solve per invocation: build the
// feasible graph, snapshot bus state into a Problem, generate the model
// into a fresh Solver, solve, and write the extracted immediate decisions
// back onto each bus. The solve is retried a bounded number of times
// (standing in for a primary-to-fallback backend switch) before giving up
// and leaving buses on their own step logic for the tick.
type Optimizer struct {
	NewSolver func(*Problem) Solver
	Distances *geo.Cache
	Config    config.Config
	Log       *zap.Logger
}

// New returns an Optimizer backed by HeuristicSolver.
func New(distances *geo.Cache, cfg config.Config, log *zap.Logger) *Optimizer {
	return &Optimizer{
		NewSolver: func(p *Problem) Solver { return NewHeuristicSolver(p) },
		Distances: distances,
		Config:    cfg,
		Log:       log,
	}
}

// Run solves one rolling-horizon instance against state at time now and
// commits the resulting immediate decisions onto each bus's
// PendingDecision field for the apply package to reconcile. An infeasible
// or unsolved instance is not an error: the decision map stays empty and
// the fleet continues autonomously.
func (o *Optimizer) Run(ctx context.Context, state *model.State, now time.Time) error {
	graph := BuildGraph(state)
	problem := BuildProblem(graph, state, o.Distances, o.Config, now)

	timeLimit := time.Duration(o.Config.MIPTimeLimitSeconds) * time.Second
	start := time.Now()

	var (
		solver Solver
		m      *Model
		status Status
	)
	err := retry.Do(
		func() error {
			solver = o.NewSolver(problem)
			m = BuildModel(problem, solver)
			st, err := solver.Solve(ctx, timeLimit, defaultGapRel)
			if err != nil {
				return err
			}
			status = st
			return nil
		},
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			o.Log.Warn("optimizer solve attempt failed, retrying", zap.Uint("attempt", n), zap.Error(err))
		}),
	)
	if err != nil {
		o.Log.Error("optimizer solve exhausted retries, leaving buses on autonomous step logic", zap.Error(err))
		return err
	}

	solveTime := time.Since(start)
	if !status.Accepted() {
		o.Log.Warn("optimizer produced no usable solution",
			zap.String("status", string(status)), zap.Duration("solve_time", solveTime))
		return nil
	}

	decisions := m.ExtractDecisions(solver)
	o.Log.Info("optimizer solved",
		zap.String("status", string(status)),
		zap.Int("decisions", len(decisions)),
		zap.Duration("solve_time", solveTime),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("buses", len(problem.Buses)))

	for _, bus := range state.Buses {
		d, ok := decisions[bus.ID]
		if !ok {
			continue
		}
		bus.Decision = model.PendingDecision{Action: d.Action, TargetNodeID: d.Target}
	}
	return nil
}
