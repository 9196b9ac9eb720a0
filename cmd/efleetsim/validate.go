package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"efleetsim/config"
)

// newValidateConfigCmd loads a config file and reports whether it passes
// the invariant checks, without starting a run.
func newValidateConfigCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate a config file without running a simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Printf("invalid: %v\n", err)
				return err
			}
			fmt.Printf("config at %q is valid\n", configPath)
			fmt.Printf("simulation_mode=%s seed=%d critical_soc_percent=%.1f soc_percent_per_km=%.4f\n",
				cfg.SimulationMode, cfg.Seed, cfg.CriticalSoCPercent, cfg.SoCPercentPerKM())
			if dump {
				rendered, err := cfg.Dump()
				if err != nil {
					return err
				}
				fmt.Print(rendered)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "print the fully resolved configuration as YAML")
	return cmd
}
