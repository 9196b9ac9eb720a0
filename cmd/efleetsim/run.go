package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"efleetsim/config"
	"efleetsim/engine"
	"efleetsim/geo"
	"efleetsim/logsink"
	"efleetsim/metrics"
	"efleetsim/model"
	"efleetsim/sched"
)

func newRunCmd() *cobra.Command {
	var (
		durationHours float64
		startAt       string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a loaded fleet/route/config dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(durationHours, startAt)
		},
	}
	cmd.Flags().Float64Var(&durationHours, "hours", 8.0, "simulated duration in hours")
	cmd.Flags().StringVar(&startAt, "start", "", "simulation start time (RFC3339); defaults to now")
	return cmd
}

func runSimulation(durationHours float64, startAt string) (retErr error) {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { retErr = multierr.Append(retErr, log.Sync()) }()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	state, err := loadState(cfg)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	distances := geo.NewCache(cfg.DistanceCachePath)
	if err := distances.Load(); err != nil {
		return fmt.Errorf("load distance cache: %w", err)
	}

	sink, err := logsink.Open(cfg.LogOutputPath)
	if err != nil {
		return fmt.Errorf("open log sink: %w", err)
	}
	defer func() { retErr = multierr.Append(retErr, sink.Close()) }()

	reg := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: reg.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	start := time.Now()
	if startAt != "" {
		start, err = time.Parse(time.RFC3339, startAt)
		if err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
	}
	end := start.Add(time.Duration(durationHours * float64(time.Hour)))

	eng := engine.New(state, cfg, distances, log, reg, sink)

	ctx := context.Background()
	var sum logsink.Summary
	if cfg.SimulationMode == "hybrid_adaptive" {
		scheduler := sched.NewHybridScheduler(
			time.Duration(cfg.BatchThresholdSeconds*float64(time.Second)),
			time.Duration(cfg.FineStepSeconds)*time.Second,
			time.Duration(cfg.CoarseStepSeconds)*time.Second,
			time.Duration(cfg.GapThresholdSeconds*float64(time.Second)),
		)
		scheduler.Build(engine.BuildEventList(state), start, end)
		sum, err = eng.RunHybridAdaptive(ctx, scheduler)
		if err != nil {
			return fmt.Errorf("run hybrid adaptive: %w", err)
		}
	} else {
		sum, err = eng.RunFixedInterval(ctx, start, end)
		if err != nil {
			return fmt.Errorf("run fixed interval: %w", err)
		}
	}

	logsink.PrintConsoleReport(state, sum)
	return nil
}

func loadState(cfg config.Config) (*model.State, error) {
	state := model.NewState()

	if cfg.RoutesPath != "" {
		f, err := os.Open(cfg.RoutesPath)
		if err != nil {
			return nil, fmt.Errorf("open routes: %w", err)
		}
		defer f.Close()
		stops, routes, err := model.LoadRoutesFromReader(f)
		if err != nil {
			return nil, err
		}
		state.Stops, state.Routes = stops, routes
	}

	if cfg.DepotsPath != "" {
		f, err := os.Open(cfg.DepotsPath)
		if err != nil {
			return nil, fmt.Errorf("open depots: %w", err)
		}
		defer f.Close()
		depots, err := model.LoadDepotsFromReader(f)
		if err != nil {
			return nil, err
		}
		state.Depots = depots
	}

	if cfg.StationsPath != "" {
		f, err := os.Open(cfg.StationsPath)
		if err != nil {
			return nil, fmt.Errorf("open stations: %w", err)
		}
		defer f.Close()
		stations, err := model.LoadStationsFromReader(f)
		if err != nil {
			return nil, err
		}
		state.Stations = stations
	}

	if cfg.FleetPath != "" {
		f, err := os.Open(cfg.FleetPath)
		if err != nil {
			return nil, fmt.Errorf("open fleet: %w", err)
		}
		defer f.Close()
		buses, err := model.LoadFleetFromReader(f)
		if err != nil {
			return nil, err
		}
		state.Buses = buses
	}

	if cfg.SchedulePath != "" {
		f, err := os.Open(cfg.SchedulePath)
		if err != nil {
			return nil, fmt.Errorf("open schedule: %w", err)
		}
		defer f.Close()
		skipped, err := model.LoadSchedulesFromReader(f, time.Now(), state.Buses)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			fmt.Fprintf(os.Stderr, "schedule: skipped %d unparseable or unmatched duties\n", skipped)
		}
	}

	for _, b := range state.Buses {
		if d, ok := state.Depots[b.DepotID]; ok {
			b.Location = d.Location
		}
	}

	state.IndexBuses()
	return state, nil
}
