package cmd

import (
	"io"
	"os"

	"github.com/encodeous/bgpsim/core"
	"github.com/encodeous/bgpsim/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive simulator",
	Long: `Starts the simulator with a console on stdin. Type "help" for the list of
commands. With --script, commands are read from a file and the simulator exits
once they are done.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.ReadSimConfig(state.ConfigPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed, _ = cmd.Flags().GetUint64("seed")
		}

		var in io.Reader = os.Stdin
		if script, _ := cmd.Flags().GetString("script"); script != "" {
			f, err := os.Open(script)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		opts := core.Options{
			In:       in,
			Out:      cmd.OutOrStdout(),
			LogLevel: logLevel(),
			LogOut:   cmd.ErrOrStderr(),
		}
		opts.DebugAddr, _ = cmd.Flags().GetString("debug-addr")
		opts.TraceTables, _ = cmd.Flags().GetBool("trace-tables")
		if tracePath, _ := cmd.Flags().GetString("trace"); tracePath != "" {
			if err = state.PathValidator(tracePath); err != nil {
				return err
			}
			f, err := os.Create(tracePath)
			if err != nil {
				return err
			}
			defer f.Close()
			opts.Trace = f
		}
		return core.Start(*cfg, opts, nil)
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("script", "s", "", "read console commands from a file")
	runCmd.Flags().StringP("trace", "o", "", "write every played event to a YAML file")
	runCmd.Flags().Bool("trace-tables", false, "include table snapshots in the trace")
	runCmd.Flags().Uint64("seed", 0, "local preference seed, 0 for random")
	runCmd.Flags().String("debug-addr", "", "serve /debug/metrics and /debug/vars on this address")
	runCmd.Flags().BoolVarP(&state.DBG_log_events, "levents", "e", false, "Log every advertisement")
	runCmd.Flags().BoolVarP(&state.DBG_log_tables, "ltables", "t", false, "Log the final tables of every run")
}
