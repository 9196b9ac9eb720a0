package main

import (
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "efleetsim",
		Short: "Resilient electric-bus fleet simulator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCmd())
	root.AddCommand(newRecomputeDistancesCmd())
	root.AddCommand(newValidateConfigCmd())
	return root
}
