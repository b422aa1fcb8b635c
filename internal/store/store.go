// Package store archives simulation runs so they can be listed and
// inspected after the output files are gone.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/migsim/internal/phylogeny"
	"github.com/nvandessel/migsim/internal/simulation"
)

// ErrRunNotFound is returned when a run ID is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Run is an archived simulation run.
type Run struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	BirthRate            float64 `json:"birth_rate"`
	MigrationProbability float64 `json:"migration_probability"`
	Generations          int     `json:"generations"`
	Sites                int     `json:"sites"`
	Seed                 uint64  `json:"seed"`
	RescaleIterations    int     `json:"rescale_iterations"`

	RootLength float64 `json:"root_length"`
	Nodes      int     `json:"nodes"`
	Leaves     int     `json:"leaves"`
	Migrations int     `json:"migrations"`

	// Tally, Labels and Edges are only populated by GetRun.
	Tally  [][]int          `json:"tally,omitempty"`
	Labels []int            `json:"labels,omitempty"`
	Edges  []phylogeny.Edge `json:"edges,omitempty"`
}

// RunFromResult flattens a simulation result into an archivable run.
func RunFromResult(res *simulation.Result) *Run {
	tree := res.Tree
	labels := make([]int, tree.Len())
	for i := range labels {
		n, _ := tree.Node(i)
		labels[i] = n.Label
	}
	edges := make([]phylogeny.Edge, 0, tree.Len()-1)
	for e := range tree.Edges() {
		edges = append(edges, e)
	}

	return &Run{
		BirthRate:            res.Params.BirthRate,
		MigrationProbability: res.Params.MigrationProbability,
		Generations:          res.Params.Generations,
		Sites:                res.Params.Sites,
		Seed:                 res.Params.Seed,
		RescaleIterations:    res.Params.EffectiveRescaleIterations(),
		RootLength:           tree.RootLength(),
		Nodes:                tree.Len(),
		Leaves:               tree.LeafCount(),
		Migrations:           res.Tally.Migrations(),
		Tally:                res.Tally.Rows(),
		Labels:               labels,
		Edges:                edges,
	}
}

// RunStore archives runs.
type RunStore interface {
	// SaveRun stores run and returns its assigned ID.
	SaveRun(ctx context.Context, run *Run) (int64, error)
	// GetRun returns a run with its tally, labels and edges.
	GetRun(ctx context.Context, id int64) (*Run, error)
	// ListRuns returns run summaries, newest first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
