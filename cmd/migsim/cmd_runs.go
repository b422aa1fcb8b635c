package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nvandessel/migsim/internal/config"
	"github.com/nvandessel/migsim/internal/constants"
	"github.com/nvandessel/migsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived simulation runs",
		Long: `List and show runs archived with --db or store.path.

The archive defaults to store.path from the config file, falling back to
~/.migsim/runs.db.

Examples:
  migsim runs list
  migsim runs list --limit 5 --json
  migsim runs show 3
  migsim runs show 3 --edges`,
	}
	cmd.PersistentFlags().String("db", "", "SQLite run archive")

	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
	)
	return cmd
}

// runsDBPath picks the archive: --db, then store.path, then the default.
func runsDBPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("db"); path != "" {
		return path, nil
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithFile(cfgPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Path != "" {
		return cfg.Store.Path, nil
	}
	path, err := store.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("failed to get run archive path: %w", err)
	}
	return path, nil
}

func openRunStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	path, err := runsDBPath(cmd)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	return s, nil
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"runs":     runs,
					"count":    len(runs),
					"database": s.Path(),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs archived in %s\n", s.Path())
				return nil
			}

			fmt.Fprintf(out, "Runs in %s:\n", s.Path())
			for _, r := range runs {
				fmt.Fprintf(out, "  #%-4d %s  g=%d s=%d b=%g m=%g seed=%d  %d nodes  %d leaves  %d migrations\n",
					r.ID,
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Generations,
					r.Sites,
					r.BirthRate,
					r.MigrationProbability,
					r.Seed,
					r.Nodes,
					r.Leaves,
					r.Migrations,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", constants.DefaultRunsListLimit, "Maximum runs to list (0 for all)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived run with its migration tally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			withEdges, _ := cmd.Flags().GetBool("edges")
			out := cmd.OutOrStdout()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id: %s", args[0])
			}

			s, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.GetRun(cmd.Context(), id)
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run %d not found in %s", id, s.Path())
			}
			if err != nil {
				return fmt.Errorf("failed to load run: %w", err)
			}
			run.Labels = nil
			if !withEdges {
				run.Edges = nil
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(run)
			}

			fmt.Fprintf(out, "Run #%d (%s)\n", run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  birth rate:            %g\n", run.BirthRate)
			fmt.Fprintf(out, "  migration probability: %g\n", run.MigrationProbability)
			fmt.Fprintf(out, "  generations:           %d\n", run.Generations)
			fmt.Fprintf(out, "  sites:                 %d\n", run.Sites)
			fmt.Fprintf(out, "  seed:                  %d\n", run.Seed)
			fmt.Fprintf(out, "  rescale iterations:    %d\n", run.RescaleIterations)
			fmt.Fprintf(out, "  root length:           %g\n", run.RootLength)
			fmt.Fprintf(out, "  nodes / leaves:        %d / %d\n", run.Nodes, run.Leaves)
			fmt.Fprintf(out, "  migrations:            %d\n", run.Migrations)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Migration tally (origin -> destination):")
			for i, row := range run.Tally {
				for j, c := range row {
					if i != j && c > 0 {
						fmt.Fprintf(out, "  %d -> %d: %d\n", i, j, c)
					}
				}
			}
			if withEdges {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Edges (parent,child,length):")
				for _, e := range run.Edges {
					fmt.Fprintf(out, "  %d,%d,%g\n", e.Parent, e.Child, e.Length)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("edges", false, "Include the tree's edge list")
	return cmd
}
