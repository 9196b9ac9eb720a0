package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestSoCPercentPerKM(t *testing.T) {
	cfg := Config{EnergyKWhPerKm: 1.4, BatteryCapacityKWh: 250}
	assert.InDelta(t, 0.56, cfg.SoCPercentPerKM(), 1e-9)

	zeroBattery := Config{EnergyKWhPerKm: 1.4, BatteryCapacityKWh: 0}
	assert.Equal(t, 0.0, zeroBattery.SoCPercentPerKM())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"non-positive battery", func(c *Config) { c.BatteryCapacityKWh = 0 }},
		{"critical soc out of range", func(c *Config) { c.CriticalSoCPercent = 150 }},
		{"non-positive mip horizon", func(c *Config) { c.MIPHorizonMinutes = 0 }},
		{"flood enabled with zero threshold", func(c *Config) { c.FloodEnabled = true; c.FloodThresholdM = 0 }},
		{"unknown simulation mode", func(c *Config) { c.SimulationMode = "bogus" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mut(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\ncritical_soc_percent: 30\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 30.0, cfg.CriticalSoCPercent)
	assert.Equal(t, Default().BatteryCapacityKWh, cfg.BatteryCapacityKWh, "unset fields keep their default")
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), 0o644))

	t.Setenv("EFLEETSIM_SEED", "99")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Seed)
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().SimulationMode, cfg.SimulationMode)
}

func TestDumpRoundTripsThroughYAML(t *testing.T) {
	cfg := Default()
	cfg.Seed = 7

	rendered, err := cfg.Dump()
	require.NoError(t, err)
	assert.Contains(t, rendered, "seed: 7")
	assert.Contains(t, rendered, "simulation_mode: fixed_interval")

	path := filepath.Join(t.TempDir(), "dumped.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rendered), 0o644))
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}
