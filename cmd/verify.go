package cmd

import (
	"fmt"

	"github.com/encodeous/bgpsim/core"
	"github.com/encodeous/bgpsim/state"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the topology config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.ReadSimConfig(state.ConfigPath)
		if err != nil {
			return err
		}
		topo, err := state.BuildTopology(cfg)
		if err != nil {
			return err
		}
		disabled := 0
		links := topo.Links()
		for _, l := range links {
			if !l.Enabled {
				disabled++
			}
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "config is valid: %d nodes, %d links (%d disabled), %s originates, %s observes\n",
			len(topo.Nodes()), len(links), disabled, topo.Label(cfg.Origin), topo.Label(cfg.Observer))
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
