package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "migsim",
		Short: "Yule branching simulation with site migration",
		Long: `migsim grows a binary lineage tree for a fixed number of synchronized
generations. Every child is placed at a site drawn from a migration matrix
that is rebalanced each generation toward under-occupied sites.

Running migsim without a subcommand runs a simulation.

Examples:
  migsim                          # 10 generations over 6 sites, seed 42
  migsim -g 12 -s 4 -m 0.05 -o run1
  migsim --db ~/.migsim/runs.db   # also archive the run
  migsim runs list`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.migsim/config.yaml)")

	addSimulateFlags(rootCmd)

	rootCmd.AddCommand(
		newSimulateCmd(),
		newVersionCmd(),
		newConfigCmd(),
		newRunsCmd(),
	)
	return rootCmd
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	notifySignals(sigs)
	go func() {
		<-sigs
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
