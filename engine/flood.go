package engine

import (
	"go.uber.org/zap"

	"efleetsim/config"
	"efleetsim/flood"
)

func newFloodMap(cfg config.Config, log *zap.Logger) *flood.Map {
	return flood.New(flood.Config{
		Enabled:              cfg.FloodEnabled,
		ThresholdM:           cfg.FloodThresholdM,
		PrecipitationCMPerHr: cfg.FloodPrecipitationCMPerHr,
		RecessionCMPerHr:     cfg.FloodRecessionCMPerHr,
		DurationMinutes:      cfg.FloodDurationMinutes,
		DisruptRoutes:        cfg.FloodDisruptRoutes,
		DisruptStops:         cfg.FloodDisruptStops,
		DisruptChargers:      cfg.FloodDisruptChargers,
		DisruptDepots:        cfg.FloodDisruptDepots,
		DisruptBuses:         cfg.FloodDisruptBuses,
	}, cfg.FloodRasterPath, log)
}
