// Package constants provides named defaults shared by the CLI, the
// configuration layer and the simulation.
package constants

// Simulation defaults
const (
	// DefaultBirthRate is the rate of the exponential branch-length
	// distribution.
	DefaultBirthRate = 0.2

	// DefaultMigrationProbability is the baseline probability that a child
	// leaves its parent's site.
	DefaultMigrationProbability = 0.01

	// DefaultGenerations is the number of synchronized splitting rounds.
	DefaultGenerations = 10

	// DefaultSites is the number of sites.
	DefaultSites = 6

	// DefaultSeed seeds the random source.
	DefaultSeed uint64 = 42

	// DefaultRescaleIterations is the number of Sinkhorn-Knopp passes applied
	// per generation.
	DefaultRescaleIterations = 3
)

// Output defaults
const (
	// DefaultOutputPrefix prefixes every file a run writes.
	DefaultOutputPrefix = "out"

	// DefaultDotPath is the Graphviz executable.
	DefaultDotPath = "dot"
)

// Output file suffixes, appended to the output prefix.
const (
	EdgeListSuffix    = "_edgelist.csv"
	EdgeListTSVSuffix = "_edgelist.tsv"
	VertexLabelSuffix = "_vertex_labeling.csv"
	LeafLabelSuffix   = "_leaf_labeling.csv"
	TallySuffix       = "_migration_tally.csv"
	TreeJSONSuffix    = "_tree.json"
)

// DefaultLogLevel is the operational log level.
const DefaultLogLevel = "info"

// DefaultRunsListLimit caps `runs list` output.
const DefaultRunsListLimit = 20
