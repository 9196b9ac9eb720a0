// Package config loads and validates the typed simulation configuration,
// merging file, environment, and default values the way a long-running
// service config layer would.
package config

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable knob the simulation exposes. Field names
// mirror the settings dataclasses the Python original split across
// SimulationSettings and HybridSimulationSettings; they are flattened into
// one struct here since this module has no reason to keep them apart.
type Config struct {
	// Energy and vehicle.
	EnergyKWhPerKm         float64 `mapstructure:"energy_kwh_per_km" yaml:"energy_kwh_per_km"`
	BatteryCapacityKWh     float64 `mapstructure:"battery_capacity_kwh" yaml:"battery_capacity_kwh"`
	CriticalSoCPercent     float64 `mapstructure:"critical_soc_percent" yaml:"critical_soc_percent"`
	ChargingMinTimeSeconds int     `mapstructure:"charging_min_time_seconds" yaml:"charging_min_time_seconds"`

	// Random disruption generator.
	RandomDisruptionProb       float64 `mapstructure:"random_disruption_prob" yaml:"random_disruption_prob"`
	RandomDisruptionMinStops   int     `mapstructure:"random_disruption_min_stops" yaml:"random_disruption_min_stops"`
	RandomDisruptionMaxStops   int     `mapstructure:"random_disruption_max_stops" yaml:"random_disruption_max_stops"`
	RandomDisruptionMinMinutes int     `mapstructure:"random_disruption_min_minutes" yaml:"random_disruption_min_minutes"`
	RandomDisruptionMaxMinutes int     `mapstructure:"random_disruption_max_minutes" yaml:"random_disruption_max_minutes"`

	// Flood hazard.
	FloodEnabled              bool    `mapstructure:"flood_enabled" yaml:"flood_enabled"`
	FloodRasterPath           string  `mapstructure:"flood_raster_path" yaml:"flood_raster_path"`
	FloodThresholdM           float64 `mapstructure:"flood_threshold_m" yaml:"flood_threshold_m"`
	FloodPrecipitationCMPerHr float64 `mapstructure:"flood_precipitation_cm_per_hr" yaml:"flood_precipitation_cm_per_hr"`
	FloodRecessionCMPerHr     float64 `mapstructure:"flood_recession_cm_per_hr" yaml:"flood_recession_cm_per_hr"`
	FloodDurationMinutes      int     `mapstructure:"flood_duration_minutes" yaml:"flood_duration_minutes"`
	FloodDisruptRoutes        bool    `mapstructure:"flood_disrupt_routes" yaml:"flood_disrupt_routes"`
	FloodDisruptStops         bool    `mapstructure:"flood_disrupt_stops" yaml:"flood_disrupt_stops"`
	FloodDisruptChargers      bool    `mapstructure:"flood_disrupt_chargers" yaml:"flood_disrupt_chargers"`
	FloodDisruptDepots        bool    `mapstructure:"flood_disrupt_depots" yaml:"flood_disrupt_depots"`
	FloodDisruptBuses         bool    `mapstructure:"flood_disrupt_buses" yaml:"flood_disrupt_buses"`

	// MIP optimizer.
	MIPHorizonMinutes      int     `mapstructure:"mip_horizon_minutes" yaml:"mip_horizon_minutes"`
	MIPTimeLimitSeconds    int     `mapstructure:"mip_time_limit_seconds" yaml:"mip_time_limit_seconds"`
	MIPIntervalTicks       int     `mapstructure:"mip_interval_ticks" yaml:"mip_interval_ticks"`
	MIPUnservedDemandCost  float64 `mapstructure:"mip_unserved_demand_cost" yaml:"mip_unserved_demand_cost"`
	MIPBatteryDrainPenalty float64 `mapstructure:"mip_battery_drain_penalty" yaml:"mip_battery_drain_penalty"`

	// Simulation mode and timestep.
	SimulationMode        string  `mapstructure:"simulation_mode" yaml:"simulation_mode"` // "fixed_interval" | "hybrid_adaptive"
	FixedStepSeconds      int     `mapstructure:"fixed_step_seconds" yaml:"fixed_step_seconds"`
	BatchThresholdSeconds float64 `mapstructure:"batch_threshold_seconds" yaml:"batch_threshold_seconds"`
	FineStepSeconds       int     `mapstructure:"fine_step_seconds" yaml:"fine_step_seconds"`
	CoarseStepSeconds     int     `mapstructure:"coarse_step_seconds" yaml:"coarse_step_seconds"`
	GapThresholdSeconds   float64 `mapstructure:"gap_threshold_seconds" yaml:"gap_threshold_seconds"`

	// Reproducibility.
	Seed int64 `mapstructure:"seed" yaml:"seed"`

	// Paths and external interfaces.
	RoutesPath        string `mapstructure:"routes_path" yaml:"routes_path"`
	DepotsPath        string `mapstructure:"depots_path" yaml:"depots_path"`
	StationsPath      string `mapstructure:"stations_path" yaml:"stations_path"`
	FleetPath         string `mapstructure:"fleet_path" yaml:"fleet_path"`
	SchedulePath      string `mapstructure:"schedule_path" yaml:"schedule_path"`
	DistanceCachePath string `mapstructure:"distance_cache_path" yaml:"distance_cache_path"`
	LogOutputPath     string `mapstructure:"log_output_path" yaml:"log_output_path"`
	MetricsAddr       string `mapstructure:"metrics_addr" yaml:"metrics_addr"`
}

// SoCPercentPerKM derives the percentage-of-battery consumed per
// kilometer travelled from the configured energy consumption and battery
// capacity, so every consumer (agent step, MIP SoC dynamics) uses the same
// derived constant instead of a hardcoded figure.
func (c Config) SoCPercentPerKM() float64 {
	if c.BatteryCapacityKWh <= 0 {
		return 0
	}
	return c.EnergyKWhPerKm / c.BatteryCapacityKWh * 100
}

// Default returns the baseline configuration, matching the original
// simulation's documented defaults.
func Default() Config {
	return Config{
		EnergyKWhPerKm:         1.4,
		BatteryCapacityKWh:     250.0,
		CriticalSoCPercent:     22.0,
		ChargingMinTimeSeconds: 120,

		RandomDisruptionProb:       0.05,
		RandomDisruptionMinStops:   1,
		RandomDisruptionMaxStops:   3,
		RandomDisruptionMinMinutes: 5,
		RandomDisruptionMaxMinutes: 15,

		FloodEnabled:              false,
		FloodThresholdM:           0.5,
		FloodPrecipitationCMPerHr: 0,
		FloodRecessionCMPerHr:     0,
		FloodDurationMinutes:      120,
		FloodDisruptRoutes:        true,
		FloodDisruptStops:         true,
		FloodDisruptChargers:      true,
		FloodDisruptDepots:        true,
		FloodDisruptBuses:         true,

		MIPHorizonMinutes:      5,
		MIPTimeLimitSeconds:    10,
		MIPIntervalTicks:       5,
		MIPUnservedDemandCost:  10.0,
		MIPBatteryDrainPenalty: 0.2,

		SimulationMode:        "fixed_interval",
		FixedStepSeconds:      60,
		BatchThresholdSeconds: 30.0,
		FineStepSeconds:       60,
		CoarseStepSeconds:     300,
		GapThresholdSeconds:   300.0,

		Seed: 42,

		DistanceCachePath: "distance_cache.json",
		LogOutputPath:     "simulation_log.csv",
		MetricsAddr:       "",
	}
}

// Load reads configuration from path (YAML), overlaying it onto the
// defaults, then lets EFLEETSIM_-prefixed environment variables override
// individual keys.
func Load(path string) (Config, error) {
	defaults := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EFLEETSIM")
	v.AutomaticEnv()
	setDefaults(v, defaults)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return defaults, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := defaults
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every field's default with viper under its
// mapstructure key, so MergeInConfig and AutomaticEnv only need to
// override, never populate from scratch.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("energy_kwh_per_km", d.EnergyKWhPerKm)
	v.SetDefault("battery_capacity_kwh", d.BatteryCapacityKWh)
	v.SetDefault("critical_soc_percent", d.CriticalSoCPercent)
	v.SetDefault("charging_min_time_seconds", d.ChargingMinTimeSeconds)
	v.SetDefault("random_disruption_prob", d.RandomDisruptionProb)
	v.SetDefault("random_disruption_min_stops", d.RandomDisruptionMinStops)
	v.SetDefault("random_disruption_max_stops", d.RandomDisruptionMaxStops)
	v.SetDefault("random_disruption_min_minutes", d.RandomDisruptionMinMinutes)
	v.SetDefault("random_disruption_max_minutes", d.RandomDisruptionMaxMinutes)
	v.SetDefault("flood_enabled", d.FloodEnabled)
	v.SetDefault("flood_raster_path", d.FloodRasterPath)
	v.SetDefault("flood_threshold_m", d.FloodThresholdM)
	v.SetDefault("flood_precipitation_cm_per_hr", d.FloodPrecipitationCMPerHr)
	v.SetDefault("flood_recession_cm_per_hr", d.FloodRecessionCMPerHr)
	v.SetDefault("flood_duration_minutes", d.FloodDurationMinutes)
	v.SetDefault("flood_disrupt_routes", d.FloodDisruptRoutes)
	v.SetDefault("flood_disrupt_stops", d.FloodDisruptStops)
	v.SetDefault("flood_disrupt_chargers", d.FloodDisruptChargers)
	v.SetDefault("flood_disrupt_depots", d.FloodDisruptDepots)
	v.SetDefault("flood_disrupt_buses", d.FloodDisruptBuses)
	v.SetDefault("mip_horizon_minutes", d.MIPHorizonMinutes)
	v.SetDefault("mip_time_limit_seconds", d.MIPTimeLimitSeconds)
	v.SetDefault("mip_interval_ticks", d.MIPIntervalTicks)
	v.SetDefault("mip_unserved_demand_cost", d.MIPUnservedDemandCost)
	v.SetDefault("mip_battery_drain_penalty", d.MIPBatteryDrainPenalty)
	v.SetDefault("simulation_mode", d.SimulationMode)
	v.SetDefault("fixed_step_seconds", d.FixedStepSeconds)
	v.SetDefault("batch_threshold_seconds", d.BatchThresholdSeconds)
	v.SetDefault("fine_step_seconds", d.FineStepSeconds)
	v.SetDefault("coarse_step_seconds", d.CoarseStepSeconds)
	v.SetDefault("gap_threshold_seconds", d.GapThresholdSeconds)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("routes_path", d.RoutesPath)
	v.SetDefault("depots_path", d.DepotsPath)
	v.SetDefault("stations_path", d.StationsPath)
	v.SetDefault("fleet_path", d.FleetPath)
	v.SetDefault("schedule_path", d.SchedulePath)
	v.SetDefault("distance_cache_path", d.DistanceCachePath)
	v.SetDefault("log_output_path", d.LogOutputPath)
	v.SetDefault("metrics_addr", d.MetricsAddr)
}

// Dump renders the effective configuration as YAML, the same format it
// is loaded from, so operators can diff a resolved config (defaults +
// file + env overrides) against the file they started from.
func (c Config) Dump() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(out), nil
}

// Validate checks invariants that would otherwise surface as confusing
// downstream failures deep in the optimizer or scheduler.
func (c Config) Validate() error {
	if c.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("battery_capacity_kwh must be positive")
	}
	if c.CriticalSoCPercent < 0 || c.CriticalSoCPercent > 100 {
		return fmt.Errorf("critical_soc_percent must be in [0,100]")
	}
	if c.MIPHorizonMinutes <= 0 {
		return fmt.Errorf("mip_horizon_minutes must be positive")
	}
	if c.FloodEnabled && c.FloodThresholdM <= 0 {
		return fmt.Errorf("flood_threshold_m must be positive when flood_enabled")
	}
	if c.SimulationMode != "fixed_interval" && c.SimulationMode != "hybrid_adaptive" {
		return fmt.Errorf("simulation_mode must be fixed_interval or hybrid_adaptive, got %q", c.SimulationMode)
	}
	return nil
}
