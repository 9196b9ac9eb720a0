package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"efleetsim/config"
	"efleetsim/geo"
	"efleetsim/model"
)

// newRecomputeDistancesCmd rebuilds the on-disk distance cache from scratch
// for the full node set a dataset's routes, depots, and stations describe,
// so a long run never pays for pairwise haversine computation mid-tick.
func newRecomputeDistancesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-distances",
		Short: "Recompute and persist the pairwise distance cache for a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			state, err := loadState(cfg)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			nodes := collectNodes(state)
			if len(nodes) < 2 {
				return fmt.Errorf("need at least 2 nodes to compute distances, found %d", len(nodes))
			}

			cache := geo.NewCache(cfg.DistanceCachePath)
			if err := cache.EnsureAll(nodes); err != nil {
				return fmt.Errorf("recompute distances: %w", err)
			}

			fmt.Printf("recomputed distances for %d nodes, wrote %s\n", len(nodes), cfg.DistanceCachePath)
			return nil
		},
	}
}

func collectNodes(state *model.State) []model.Node {
	var nodes []model.Node
	for _, s := range state.Stops {
		nodes = append(nodes, model.StopNode(s))
	}
	for _, d := range state.Depots {
		nodes = append(nodes, model.DepotNode(d))
	}
	for _, c := range state.Stations {
		nodes = append(nodes, model.ChargerNode(c))
	}
	return nodes
}
