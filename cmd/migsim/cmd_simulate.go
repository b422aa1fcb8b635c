package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvandessel/migsim/internal/config"
	"github.com/nvandessel/migsim/internal/constants"
	"github.com/nvandessel/migsim/internal/export"
	"github.com/nvandessel/migsim/internal/logging"
	"github.com/nvandessel/migsim/internal/metrics"
	"github.com/nvandessel/migsim/internal/simulation"
	"github.com/nvandessel/migsim/internal/store"
	"github.com/nvandessel/migsim/internal/visualization"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulation and write its output files",
		Long: `Run a Yule/migration simulation and write, for output prefix OUT:

  OUT_edgelist.csv          parent,child,length
  OUT_vertex_labeling.csv   vertex,label
  OUT_leaf_labeling.csv     leaf,label
  OUT_migration_tally.csv   origin,destination,count
  OUT_mig_graph.dot         migration graph (unless --no-graph)
  OUT_migration_graph.png   rendered with Graphviz (unless --no-graph)

Flags override ~/.migsim/config.yaml and MIGSIM_* environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd)
		},
	}
	addSimulateFlags(cmd)
	return cmd
}

func addSimulateFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64P("birth-rate", "b", constants.DefaultBirthRate, "Birth rate for the Yule model")
	f.Float64P("migration-probability", "m", constants.DefaultMigrationProbability, "Migration probability between sites")
	f.IntP("generations", "g", constants.DefaultGenerations, "Generations to simulate")
	f.IntP("sites", "s", constants.DefaultSites, "Number of sites to migrate between")
	f.Uint64P("seed", "r", constants.DefaultSeed, "Seed for a reproducible simulation")
	f.StringP("out", "o", constants.DefaultOutputPrefix, "Output file prefix (no file type)")
	f.Int("rescale-iterations", constants.DefaultRescaleIterations, "Sinkhorn-Knopp passes per generation")
	f.Bool("tsv", false, "Also write a tab-separated edge list")
	f.Bool("json-tree", false, "Also write the nested tree as JSON")
	f.Bool("no-graph", false, "Skip the DOT migration graph and PNG rendering")
	f.String("dot-path", constants.DefaultDotPath, "Graphviz dot executable")
	f.Bool("open", false, "Open the rendered PNG in the default viewer")
	f.String("db", "", "Archive the run in this SQLite database")
	f.String("metrics-file", "", "Write run metrics in Prometheus textfile format")
	f.String("log-level", constants.DefaultLogLevel, "Log level: info, debug or trace")
}

// resolveConfig loads the configuration and applies every flag the user set.
func resolveConfig(cmd *cobra.Command) (*config.MigsimConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("birth-rate") {
		cfg.Simulation.BirthRate, _ = f.GetFloat64("birth-rate")
	}
	if f.Changed("migration-probability") {
		cfg.Simulation.MigrationProbability, _ = f.GetFloat64("migration-probability")
	}
	if f.Changed("generations") {
		cfg.Simulation.Generations, _ = f.GetInt("generations")
	}
	if f.Changed("sites") {
		cfg.Simulation.Sites, _ = f.GetInt("sites")
	}
	if f.Changed("seed") {
		cfg.Simulation.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("rescale-iterations") {
		cfg.Simulation.RescaleIterations, _ = f.GetInt("rescale-iterations")
	}
	if f.Changed("out") {
		cfg.Output.Prefix, _ = f.GetString("out")
	}
	if f.Changed("tsv") {
		cfg.Output.TSV, _ = f.GetBool("tsv")
	}
	if f.Changed("json-tree") {
		cfg.Output.JSONTree, _ = f.GetBool("json-tree")
	}
	if f.Changed("no-graph") {
		noGraph, _ := f.GetBool("no-graph")
		cfg.Output.Graph = !noGraph
	}
	if f.Changed("dot-path") {
		cfg.Output.DotPath, _ = f.GetString("dot-path")
	}
	if f.Changed("db") {
		cfg.Store.Path, _ = f.GetString("db")
	}
	if f.Changed("metrics-file") {
		cfg.Output.MetricsFile, _ = f.GetString("metrics-file")
	}
	if f.Changed("log-level") {
		level, _ := f.GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// artifact is one output file of a run.
type artifact struct {
	name  string
	path  string
	write func(io.Writer) error
}

// simulateReport is the JSON summary of a run.
type simulateReport struct {
	RunID       int64    `json:"run_id,omitempty"`
	Generations int      `json:"generations"`
	Sites       int      `json:"sites"`
	Seed        uint64   `json:"seed"`
	Nodes       int      `json:"nodes"`
	Leaves      int      `json:"leaves"`
	Migrations  int      `json:"migrations"`
	RootLength  float64  `json:"root_length"`
	Files       []string `json:"files"`
	Warnings    []string `json:"warnings,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

func runSimulate(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	jsonOut, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	prefix := cfg.Output.Prefix
	traceDir := cfg.Logging.TraceDir
	if traceDir == "" {
		traceDir = filepath.Dir(prefix)
	}
	trace := logging.NewTraceLogger(traceDir, cfg.Logging.Level)
	defer trace.Close()

	var recorder *metrics.Recorder
	if cfg.Output.MetricsFile != "" {
		recorder = metrics.NewRecorder()
	}

	params := cfg.Simulation.Params()
	params.Observer = func(r simulation.GenerationReport) {
		logger.Debug("generation complete",
			"generation", r.Generation,
			"leaves", r.Leaves,
			"migrations", r.Migrations)
		if logger.Enabled(ctx, logging.LevelTrace) {
			logger.Log(ctx, logging.LevelTrace, "migration matrix",
				"generation", r.Generation,
				"matrix", r.Matrix.String())
		}
		trace.LogGeneration(r)
		recorder.ObserveGeneration(r)
	}

	logger.Debug("starting simulation",
		"birth_rate", params.BirthRate,
		"migration_probability", params.MigrationProbability,
		"generations", params.Generations,
		"sites", params.Sites,
		"seed", params.Seed,
		"rescale_iterations", params.EffectiveRescaleIterations())

	start := time.Now()
	res, err := simulation.YuleMigrations(params)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	elapsed := time.Since(start)
	recorder.ObserveResult(res, elapsed)

	report := simulateReport{
		Generations: params.Generations,
		Sites:       params.Sites,
		Seed:        params.Seed,
		Nodes:       res.Tree.Len(),
		Leaves:      res.Tree.LeafCount(),
		Migrations:  res.Tally.Migrations(),
		RootLength:  res.Tree.RootLength(),
		Files:       []string{},
	}
	if !jsonOut {
		fmt.Fprintf(out, "Simulated %d generations over %d sites: %d nodes, %d leaves, %d migrations (%s)\n",
			report.Generations, report.Sites, report.Nodes, report.Leaves, report.Migrations, elapsed.Round(time.Microsecond))
	}

	var failures []error
	for _, a := range artifactsFor(cfg, res) {
		if err := export.ToFile(a.path, a.write); err != nil {
			err = fmt.Errorf("%w: while writing %s", err, a.name)
			failures = append(failures, err)
			report.Errors = append(report.Errors, err.Error())
			if !jsonOut {
				fmt.Fprintln(out, err)
			}
			continue
		}
		report.Files = append(report.Files, a.path)
		if !jsonOut {
			fmt.Fprintf(out, "Wrote %s to %s\n", a.name, a.path)
		}
	}

	if cfg.Output.Graph {
		dotFile, png, err := renderGraph(ctx, cfg, res)
		if dotFile != "" {
			report.Files = append(report.Files, dotFile)
		}
		switch {
		case err != nil && errors.Is(err, visualization.ErrExternalToolFailure):
			logger.Warn("graphviz rendering failed", "error", err)
			report.Warnings = append(report.Warnings, err.Error())
			if !jsonOut {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
		case err != nil:
			err = fmt.Errorf("%w: while writing migration graph", err)
			failures = append(failures, err)
			report.Errors = append(report.Errors, err.Error())
			if !jsonOut {
				fmt.Fprintln(out, err)
			}
		default:
			report.Files = append(report.Files, png)
			if !jsonOut {
				fmt.Fprintf(out, "Saved migration graph to %s\n", png)
			}
			if open, _ := cmd.Flags().GetBool("open"); open {
				if err := visualization.OpenFile(png); err != nil {
					logger.Warn("failed to open graph", "error", err)
				}
			}
		}
	}

	if cfg.Output.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			err = fmt.Errorf("%w: while writing metrics", err)
			failures = append(failures, err)
			report.Errors = append(report.Errors, err.Error())
		} else {
			report.Files = append(report.Files, cfg.Output.MetricsFile)
		}
	}

	if cfg.Store.Path != "" {
		id, err := archiveRun(ctx, cfg.Store.Path, res)
		if err != nil {
			err = fmt.Errorf("%w: while archiving run", err)
			failures = append(failures, err)
			report.Errors = append(report.Errors, err.Error())
		} else {
			report.RunID = id
			logger.Debug("archived run", "id", id, "db", cfg.Store.Path)
			if !jsonOut {
				fmt.Fprintf(out, "Archived run %d in %s\n", id, cfg.Store.Path)
			}
		}
	}

	if jsonOut {
		if err := json.NewEncoder(out).Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	}
	return errors.Join(failures...)
}

// artifactsFor lists the tabular outputs enabled by cfg.
func artifactsFor(cfg *config.MigsimConfig, res *simulation.Result) []artifact {
	prefix := cfg.Output.Prefix
	tree := res.Tree
	items := []artifact{
		{"edgelist", prefix + constants.EdgeListSuffix, func(w io.Writer) error { return export.WriteEdgesCSV(w, tree) }},
		{"vertex labeling", prefix + constants.VertexLabelSuffix, func(w io.Writer) error { return export.WriteVertexLabels(w, tree) }},
		{"leaf labeling", prefix + constants.LeafLabelSuffix, func(w io.Writer) error { return export.WriteLeafLabels(w, tree) }},
		{"migration tally", prefix + constants.TallySuffix, func(w io.Writer) error { return export.WriteTallyCSV(w, res.Tally.Rows()) }},
	}
	if cfg.Output.TSV {
		items = append(items, artifact{"tab-separated edgelist", prefix + constants.EdgeListTSVSuffix,
			func(w io.Writer) error { return export.WriteEdgesTSV(w, tree) }})
	}
	if cfg.Output.JSONTree {
		items = append(items, artifact{"tree", prefix + constants.TreeJSONSuffix,
			func(w io.Writer) error { return export.WriteTreeJSON(w, tree) }})
	}
	return items
}

// renderGraph writes the DOT file and renders the PNG. The DOT path is
// returned whenever the DOT file was written.
func renderGraph(ctx context.Context, cfg *config.MigsimConfig, res *simulation.Result) (string, string, error) {
	g, err := visualization.GraphFromTally(res.Tally.Rows())
	if err != nil {
		return "", "", err
	}
	r := visualization.Renderer{DotPath: cfg.Output.DotPath}
	dotFile, err := r.WriteDOT(g, cfg.Output.Prefix)
	if err != nil {
		return "", "", err
	}
	png, err := r.Render(ctx, dotFile, cfg.Output.Prefix)
	return dotFile, png, err
}

func archiveRun(ctx context.Context, path string, res *simulation.Result) (int64, error) {
	s, err := store.NewSQLiteRunStore(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.SaveRun(ctx, store.RunFromResult(res))
}
