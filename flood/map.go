package flood

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"efleetsim/model"
)

// Config controls whether the flood map is active and how depth evolves
// over the run.
type Config struct {
	Enabled            bool
	ThresholdM         float64
	PrecipitationCMPerHr float64
	RecessionCMPerHr     float64
	DurationMinutes      int
	DisruptRoutes        bool
	DisruptStops         bool
	DisruptChargers      bool
	DisruptDepots        bool
	DisruptBuses         bool
}

// Map is the flood hazard query surface used by the disruption manager. A
// load failure (bad path, malformed raster) disables the map rather than
// failing the run: every query then returns 0 depth, matching the load
// module's silent-disable contract.
type Map struct {
	cfg    Config
	raster *Raster
	log    *zap.Logger

	mu sync.Mutex
	t0 *time.Time
}

// New constructs a Map. If path is empty or the raster fails to load, the
// map is disabled and every query returns 0.
func New(cfg Config, path string, log *zap.Logger) *Map {
	m := &Map{cfg: cfg, log: log}
	if !cfg.Enabled || path == "" {
		return m
	}
	raster, err := LoadRaster(path)
	if err != nil {
		log.Warn("flood raster load failed, disabling flood hazard", zap.String("path", path), zap.Error(err))
		return m
	}
	m.raster = raster
	return m
}

// Enabled reports whether the map has a loaded raster backing queries.
func (m *Map) Enabled() bool {
	return m.cfg.Enabled && m.raster != nil
}

// EffectiveDepthM returns the depth in meters at loc at time now, applying
// the precipitation/recession dynamics since the first query.
func (m *Map) EffectiveDepthM(loc model.Location, now time.Time) float64 {
	if !m.Enabled() {
		return 0
	}
	m.mu.Lock()
	if m.t0 == nil {
		t0 := now
		m.t0 = &t0
	}
	hours := now.Sub(*m.t0).Hours()
	m.mu.Unlock()
	if hours < 0 {
		hours = 0
	}
	baseCM := m.raster.baseDepthCM(loc.Lon, loc.Lat)
	effectiveCM := baseCM + (m.cfg.PrecipitationCMPerHr-m.cfg.RecessionCMPerHr)*hours
	if effectiveCM < 0 {
		effectiveCM = 0
	}
	return effectiveCM / 100.0
}

// Flooded reports whether the depth at loc at time now meets the
// configured threshold.
func (m *Map) Flooded(loc model.Location, now time.Time) bool {
	if !m.Enabled() {
		return false
	}
	return m.EffectiveDepthM(loc, now) >= m.cfg.ThresholdM
}

// Config returns the map's configuration, for the disruption manager to
// read category toggles.
func (m *Map) Config() Config {
	return m.cfg
}
