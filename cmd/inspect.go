package cmd

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/encodeous/bgpsim/core"
	"github.com/encodeous/bgpsim/state"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Show the nodes and links of the topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.ReadSimConfig(state.ConfigPath)
		if err != nil {
			return err
		}
		topo, err := state.BuildTopology(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if addr, _ := cmd.Flags().GetString("owner"); addr != "" {
			a, err := netip.ParseAddr(addr)
			if err != nil {
				return err
			}
			n, ok := topo.Owner(a)
			if !ok {
				_, _ = fmt.Fprintf(out, "no node owns %s\n", a)
				return nil
			}
			_, _ = fmt.Fprintf(out, "%s is in %s, owned by %s (%s)\n", a, n.Prefix, n.Label, n.Id)
			return nil
		}

		tw := tablewriter.NewWriter(out)
		tw.SetHeader([]string{"Id", "Label", "Prefix", "Position", "Neighbours"})
		tw.SetAutoFormatHeaders(false)
		tw.SetAutoWrapText(false)
		for _, n := range topo.Nodes() {
			nbs := make([]string, 0, len(n.Neighbours))
			for _, nb := range n.Neighbours {
				if topo.IsLinkEnabled(n.Id, nb) {
					nbs = append(nbs, topo.Label(nb))
				} else {
					nbs = append(nbs, topo.Label(nb)+" (off)")
				}
			}
			tw.Append([]string{
				n.Id.String(),
				n.Label,
				n.Prefix.String(),
				fmt.Sprintf("%g,%g", n.Position.X, n.Position.Y),
				strings.Join(nbs, ", "),
			})
		}
		tw.Render()
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("owner", "", "print the node whose prefix contains this address")
}
