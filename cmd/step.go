package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/encodeous/bgpsim/core"
	"github.com/encodeous/bgpsim/state"
	"github.com/spf13/cobra"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Compute a run and print every step",
	Long: `Propagates the origin's prefix once and prints each event, followed by the
final routing tables. Nothing is interactive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.ReadSimConfig(state.ConfigPath)
		if err != nil {
			return err
		}
		topo, err := state.BuildTopology(cfg)
		if err != nil {
			return err
		}
		log, err := core.NewLogger(logLevel(), "bgpsim", cfg.LogPath, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		origin, observer := cfg.Origin, cfg.Observer
		if cmd.Flags().Changed("origin") {
			v, _ := cmd.Flags().GetInt("origin")
			origin = state.NodeId(v)
		}
		if cmd.Flags().Changed("observer") {
			v, _ := cmd.Flags().GetInt("observer")
			observer = state.NodeId(v)
		}
		seed := cfg.Seed
		if cmd.Flags().Changed("seed") {
			seed, _ = cmd.Flags().GetUint64("seed")
		}
		masks, _ := cmd.Flags().GetStringSlice("mask")
		disabled, err := parseMask(masks)
		if err != nil {
			return err
		}

		run, err := core.Propagate(topo, disabled, origin, observer, core.WithSeed(seed), core.WithLogger(log))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		asYaml, _ := cmd.Flags().GetBool("yaml")
		withTables, _ := cmd.Flags().GetBool("tables")
		interval, _ := cmd.Flags().GetDuration("interval")
		for i, e := range run.Events {
			if i > 0 && interval > 0 {
				time.Sleep(interval)
			}
			if asYaml {
				if err = core.WriteEvent(out, i+1, e, withTables); err != nil {
					return err
				}
				continue
			}
			_, _ = fmt.Fprintln(out, core.DescribeEvent(topo, i+1, len(run.Events), e))
		}
		if !asYaml {
			_, _ = fmt.Fprintln(out)
			core.RenderTables(out, topo, run.Tables)
		}
		return nil
	},
	GroupID: "sim",
}

// parseMask reads links given as "a-b".
func parseMask(masks []string) (state.LinkSet, error) {
	set := make(state.LinkSet)
	for _, m := range masks {
		a, b, ok := strings.Cut(m, "-")
		if !ok {
			return nil, fmt.Errorf("invalid link %q, expected a-b", m)
		}
		var x, y int
		if _, err := fmt.Sscanf(a+" "+b, "%d %d", &x, &y); err != nil {
			return nil, fmt.Errorf("invalid link %q: %w", m, err)
		}
		set.Add(state.NodeId(x), state.NodeId(y))
	}
	return set, nil
}

func init() {
	rootCmd.AddCommand(stepCmd)

	stepCmd.Flags().Int("origin", 0, "originating node, defaults to the config")
	stepCmd.Flags().Int("observer", 0, "observing node, defaults to the config")
	stepCmd.Flags().Uint64("seed", 0, "local preference seed, 0 for random")
	stepCmd.Flags().StringSliceP("mask", "m", nil, "links to disable for this run only, e.g. 1-2")
	stepCmd.Flags().Bool("yaml", false, "print events as YAML documents")
	stepCmd.Flags().Bool("tables", false, "include table snapshots in YAML output")
	stepCmd.Flags().Duration("interval", 0, "pause between events")
	stepCmd.Flags().BoolVarP(&state.DBG_log_events, "levents", "e", false, "Log every advertisement")
	stepCmd.Flags().BoolVarP(&state.DBG_log_tables, "ltables", "t", false, "Log the final tables")
}
