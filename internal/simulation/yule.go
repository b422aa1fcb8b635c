package simulation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/nvandessel/migsim/internal/phylogeny"
	"github.com/nvandessel/migsim/internal/pmatrix"
	"gonum.org/v1/gonum/stat/distuv"
)

// Branching is the number of children each leaf produces per generation.
const Branching = 2

// MaxGenerations bounds the generation count so node indices fit in an int
// on every platform.
const MaxGenerations = 30

// ErrInvalidParams is returned when simulation parameters are out of range.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params configures a Yule/migration run.
type Params struct {
	// BirthRate is the rate λ of the exponential branch-length distribution.
	BirthRate float64
	// Generations is the number of synchronized splitting rounds.
	Generations int
	// Sites is the number of sites lineages migrate between.
	Sites int
	// MigrationProbability is the baseline probability of leaving a site.
	MigrationProbability float64
	// Seed fixes every random draw of the run.
	Seed uint64
	// RescaleIterations is the number of Sinkhorn-Knopp passes per
	// generation. Zero selects pmatrix.DefaultRescaleIterations.
	RescaleIterations int

	// Observer, when non-nil, is called after each generation completes.
	Observer func(GenerationReport)
}

// GenerationReport summarizes one completed generation.
type GenerationReport struct {
	Generation int
	Leaves     int
	Migrations int
	Occupancy  []float64
	Matrix     *pmatrix.PMatrix
}

// Result is the outcome of a run.
type Result struct {
	Params Params
	Tree   *phylogeny.Phylogeny[int, int]
	Tally  *Tally
	// Matrix is the migration matrix used in the last generation, or the
	// baseline matrix when no generation ran.
	Matrix *pmatrix.PMatrix
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case !(p.BirthRate > 0) || math.IsInf(p.BirthRate, 0):
		return fmt.Errorf("%w: birth rate must be positive, got %v", ErrInvalidParams, p.BirthRate)
	case p.Generations < 0 || p.Generations > MaxGenerations:
		return fmt.Errorf("%w: generations must be within [0, %d], got %d", ErrInvalidParams, MaxGenerations, p.Generations)
	case p.Sites < 2:
		return fmt.Errorf("%w: at least two sites are required, got %d", ErrInvalidParams, p.Sites)
	case math.IsNaN(p.MigrationProbability) || p.MigrationProbability < 0 || p.MigrationProbability > 1:
		return fmt.Errorf("%w: migration probability must be within [0, 1], got %v", ErrInvalidParams, p.MigrationProbability)
	case p.RescaleIterations < 0:
		return fmt.Errorf("%w: rescale iterations must be non-negative, got %d", ErrInvalidParams, p.RescaleIterations)
	}
	return nil
}

// EffectiveRescaleIterations returns RescaleIterations, or the default when
// it is zero.
func (p Params) EffectiveRescaleIterations() int {
	if p.RescaleIterations == 0 {
		return pmatrix.DefaultRescaleIterations
	}
	return p.RescaleIterations
}

// lineage is a leaf of the current generation.
type lineage struct {
	node int
	site int
}

// YuleMigrations runs the simulation. Node payloads are node indices and
// labels are site indices; the root sits at site 0.
func YuleMigrations(p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Sites
	iterations := p.EffectiveRescaleIterations()
	src := rand.NewPCG(p.Seed, p.Seed)
	branch := distuv.Exponential{Rate: p.BirthRate, Src: src}

	pm, err := pmatrix.WithMigrationRate(n, p.MigrationProbability)
	if err != nil {
		return nil, fmt.Errorf("baseline matrix: %w", err)
	}

	tally := NewTally(n)
	tree := phylogeny.CreateRoot(0, 0, branch.Rand())

	leaves := []lineage{{node: 0, site: 0}}
	freqs := make([]float64, n)
	freqs[0] = 1

	for g := 0; g < p.Generations; g++ {
		pm, err = pm.BiasFromOccupancyN(freqs, iterations)
		if err != nil {
			return nil, fmt.Errorf("generation %d: rebalance: %w", g, err)
		}

		counts := make([]int, n)
		next := make([]lineage, 0, len(leaves)*Branching)
		migrations := 0
		for _, leaf := range leaves {
			for k := 0; k < Branching; k++ {
				site, err := pm.SampleNext(leaf.site, src)
				if err != nil {
					return nil, fmt.Errorf("generation %d: node %d: %w", g, leaf.node, err)
				}
				length := branch.Rand()

				id, err := tree.AddChild(leaf.node, tree.Len(), site, length)
				if err != nil {
					return nil, fmt.Errorf("generation %d: %w", g, err)
				}

				tally.Inc(leaf.site, site)
				counts[site]++
				if site != leaf.site {
					migrations++
				}
				next = append(next, lineage{node: id, site: site})
			}
		}

		freqs = occupancy(counts, len(next))
		leaves = next

		if p.Observer != nil {
			p.Observer(GenerationReport{
				Generation: g,
				Leaves:     len(next),
				Migrations: migrations,
				Occupancy:  append([]float64(nil), freqs...),
				Matrix:     pm,
			})
		}
	}

	return &Result{Params: p, Tree: tree, Tally: tally, Matrix: pm}, nil
}

// occupancy returns each site's share of total.
func occupancy(counts []int, total int) []float64 {
	freqs := make([]float64, len(counts))
	for i, c := range counts {
		freqs[i] = float64(c) / float64(total)
	}
	return freqs
}
