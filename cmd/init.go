package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/bgpsim/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default topology",
	Long:  `Writes six autonomous systems linked as a ring with three chords to the config path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(state.ConfigPath); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", state.ConfigPath)
		}
		cfg := state.DefaultSimCfg()
		out, err := yaml.Marshal(&cfg)
		if err != nil {
			return err
		}
		err = os.WriteFile(state.ConfigPath, out, 0600)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", state.ConfigPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing config")
}
