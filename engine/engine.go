// Package engine orchestrates one simulation run: per tick, it refreshes
// disruptions, periodically reruns the rolling-horizon optimizer,
// reconciles its decisions, fans out bus agent steps in bounded parallel,
// and logs the resulting state.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"efleetsim/agent"
	"efleetsim/apply"
	"efleetsim/config"
	"efleetsim/disruption"
	"efleetsim/geo"
	"efleetsim/logsink"
	"efleetsim/metrics"
	"efleetsim/model"
	"efleetsim/optim"
	"efleetsim/sched"
)

const maxParallelBusWorkers = 8

// Engine bundles every component a run needs and owns the tick loop.
type Engine struct {
	State      *model.State
	Config     config.Config
	Distances  *geo.Cache
	Disruption *disruption.Manager
	Optimizer  *optim.Optimizer
	Log        *zap.Logger
	Metrics    *metrics.Registry
	Sink       *logsink.Sink

	rng *rand.Rand

	// seenDisruptions tracks event ids already counted toward the run
	// summary, so a long-lived event counts once, not once per tick.
	seenDisruptions map[string]bool
}

// New wires the engine's components together. distances should already be
// loaded and validated (EnsureAll) against the node set this run uses.
func New(state *model.State, cfg config.Config, distances *geo.Cache, log *zap.Logger, reg *metrics.Registry, sink *logsink.Sink) *Engine {
	rng := rand.New(rand.NewSource(cfg.Seed))
	floodMap := newFloodMap(cfg, log)
	dm := disruption.New(disruption.Config{
		Probability: cfg.RandomDisruptionProb,
		MinStops:    cfg.RandomDisruptionMinStops,
		MaxStops:    cfg.RandomDisruptionMaxStops,
		MinMinutes:  cfg.RandomDisruptionMinMinutes,
		MaxMinutes:  cfg.RandomDisruptionMaxMinutes,
	}, floodMap, rng, log)

	return &Engine{
		State:           state,
		Config:          cfg,
		Distances:       distances,
		Disruption:      dm,
		Optimizer:       optim.New(distances, cfg, log),
		Log:             log,
		Metrics:         reg,
		Sink:            sink,
		rng:             rng,
		seenDisruptions: make(map[string]bool),
	}
}

// RunFixedInterval advances the simulation in fixed timesteps from start to
// end, matching the fixed_interval mode's exact step ordering: hazards,
// then optimizer (every MIPIntervalTicks ticks), then decision apply, then
// parallel bus steps, then log. Returns the run summary for the console
// report.
func (e *Engine) RunFixedInterval(ctx context.Context, start, end time.Time) (logsink.Summary, error) {
	step := time.Duration(e.Config.FixedStepSeconds) * time.Second
	now := start
	tickCount := 0

	for now.Before(end) {
		tickCount++
		runMIP := e.Config.MIPIntervalTicks > 0 && (tickCount-1)%e.Config.MIPIntervalTicks == 0
		if err := e.tick(ctx, now, tickCount, runMIP); err != nil {
			return e.summary(tickCount), fmt.Errorf("tick %d at %s: %w", tickCount, now, err)
		}
		now = now.Add(step)
	}
	return e.summary(tickCount), nil
}

// RunHybridAdaptive advances the simulation using a prebuilt hybrid
// schedule, driving the same per-tick ordering at each scheduled step. The
// optimizer runs only on batch steps; fine and coarse steps just advance
// the fleet.
func (e *Engine) RunHybridAdaptive(ctx context.Context, scheduler *sched.HybridScheduler) (logsink.Summary, error) {
	tickCount := 0
	for {
		step, ok := scheduler.NextStep()
		if !ok {
			return e.summary(tickCount), nil
		}
		tickCount++
		if err := e.tick(ctx, step.Time, tickCount, step.Type == sched.StepBatch); err != nil {
			return e.summary(tickCount), fmt.Errorf("tick %d (%s) at %s: %w", tickCount, step.Type, step.Time, err)
		}
	}
}

// summary snapshots the run counters into the report struct.
func (e *Engine) summary(ticks int) logsink.Summary {
	stranded := 0
	for _, b := range e.State.Buses {
		if b.Status == model.Stranded {
			stranded++
		}
	}
	return logsink.Summary{
		Ticks:            ticks,
		DisruptionsTotal: len(e.seenDisruptions),
		StrandedBuses:    stranded,
	}
}

func (e *Engine) tick(ctx context.Context, now time.Time, tickCount int, runMIP bool) error {
	e.Disruption.Update(now, e.State)
	for _, d := range e.State.Disruptions() {
		e.seenDisruptions[d.ID] = true
	}
	if e.Metrics != nil {
		e.Metrics.ActiveDisruptions.Set(float64(len(e.State.Disruptions())))
	}

	if runMIP {
		solveStart := time.Now()
		if err := e.Optimizer.Run(ctx, e.State, now); err != nil {
			e.Log.Warn("optimizer solve failed for this tick, buses continue autonomously", zap.Error(err))
		}
		if e.Metrics != nil {
			e.Metrics.SolveCount.Inc()
			e.Metrics.SolveSeconds.Observe(time.Since(solveStart).Seconds())
		}
	}

	apply.Apply(e.State, now, e.Config)

	if err := e.stepBusesParallel(ctx, now); err != nil {
		return err
	}

	stranded := 0
	for _, b := range e.State.Buses {
		if b.Status == model.Stranded {
			stranded++
		}
	}
	if e.Metrics != nil {
		e.Metrics.Ticks.Inc()
		e.Metrics.StrandedBuses.Set(float64(stranded))
	}

	if e.Sink != nil {
		if err := e.Sink.LogStep(now, e.State); err != nil {
			return fmt.Errorf("log step: %w", err)
		}
	}
	return nil
}

// stepBusesParallel fans out one agent.Step per bus across a bounded
// worker pool, joining on a tick barrier before returning so the next
// tick never observes a partially advanced fleet. Each bus gets its own
// deterministically-seeded RNG (derived from the run seed, bus id, and
// tick) rather than sharing e.rng, since *rand.Rand is not safe for
// concurrent use across goroutines.
func (e *Engine) stepBusesParallel(ctx context.Context, now time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBusWorkers)

	tick := now.Unix()
	for _, b := range e.State.Buses {
		b := b
		busRng := rand.New(rand.NewSource(busSeed(e.Config.Seed, b.ID, tick)))
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			agent.Step(b, agent.Context{
				Now:       now,
				State:     e.State,
				Distances: e.Distances,
				Config:    e.Config,
				Rand:      busRng,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("parallel bus step: %w", err)
	}
	return nil
}

func busSeed(runSeed int64, busID string, tick int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(busID))
	return runSeed ^ int64(h.Sum64()) ^ tick
}
