package simulation_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/nvandessel/migsim/internal/phylogeny"
	"github.com/nvandessel/migsim/internal/pmatrix"
	"github.com/nvandessel/migsim/internal/simulation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func defaultParams() simulation.Params {
	return simulation.Params{
		BirthRate:            0.2,
		Generations:          10,
		Sites:                6,
		MigrationProbability: 0.01,
		Seed:                 42,
	}
}

func TestYuleMigrations_TreeShape(t *testing.T) {
	for g := 0; g <= 10; g++ {
		p := defaultParams()
		p.Generations = g
		res, err := simulation.YuleMigrations(p)
		require.NoError(t, err)

		simulation.AssertCompleteBinaryTree(t, res)
		simulation.AssertTallyMatchesTree(t, res)
		assert.Equal(t, 1<<(g+1)-2, res.Tally.Total(), "g=%d", g)
	}
}

func TestYuleMigrations_Deterministic(t *testing.T) {
	tests := []struct {
		name string
		p    simulation.Params
	}{
		{"defaults", defaultParams()},
		{"high migration", simulation.Params{BirthRate: 1, Generations: 8, Sites: 4, MigrationProbability: 0.6, Seed: 7}},
		{"two sites", simulation.Params{BirthRate: 0.5, Generations: 6, Sites: 2, MigrationProbability: 0.3, Seed: 1}},
		{"more balancing", simulation.Params{BirthRate: 0.2, Generations: 6, Sites: 5, MigrationProbability: 0.2, Seed: 3, RescaleIterations: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := simulation.YuleMigrations(tt.p)
			require.NoError(t, err)
			b, err := simulation.YuleMigrations(tt.p)
			require.NoError(t, err)
			simulation.AssertIdenticalRuns(t, a, b)
		})
	}
}

func TestYuleMigrations_SeedChangesOutcome(t *testing.T) {
	p := defaultParams()
	p.MigrationProbability = 0.5
	a, err := simulation.YuleMigrations(p)
	require.NoError(t, err)

	p.Seed = 43
	b, err := simulation.YuleMigrations(p)
	require.NoError(t, err)

	assert.NotEqual(t, a.Tree.RootLength(), b.Tree.RootLength())
	assert.NotEqual(t, slices.Collect(a.Tree.Edges()), slices.Collect(b.Tree.Edges()))
}

func TestYuleMigrations_NoMigration(t *testing.T) {
	p := defaultParams()
	p.MigrationProbability = 0
	p.Generations = 6
	res, err := simulation.YuleMigrations(p)
	require.NoError(t, err)

	assert.Zero(t, res.Tally.Migrations())
	assert.Equal(t, res.Tally.Total(), res.Tally.At(0, 0))
	for i := 0; i < res.Tree.Len(); i++ {
		n, err := res.Tree.Node(i)
		require.NoError(t, err)
		assert.Equal(t, 0, n.Label)
		assert.Equal(t, i, n.Data, "payload is the node index")
	}
}

func TestYuleMigrations_BranchLengthsPositive(t *testing.T) {
	res, err := simulation.YuleMigrations(defaultParams())
	require.NoError(t, err)

	assert.Greater(t, res.Tree.RootLength(), 0.0)
	var sum float64
	count := 0
	for e := range res.Tree.Edges() {
		assert.Greater(t, e.Length, 0.0)
		sum += e.Length
		count++
	}
	// Exponential(0.2) has mean 5.
	assert.InDelta(t, 5.0, sum/float64(count), 0.5)
}

func TestYuleMigrations_Spreads(t *testing.T) {
	p := simulation.Params{BirthRate: 1, Generations: 10, Sites: 4, MigrationProbability: 0.3, Seed: 11}
	res, err := simulation.YuleMigrations(p)
	require.NoError(t, err)

	occupied := map[int]bool{}
	for leaf := range res.Tree.Leaves() {
		n, _ := res.Tree.Node(leaf)
		occupied[n.Label] = true
	}
	assert.Len(t, occupied, 4, "1024 leaves at 0.3 migration should reach every site")
	assert.Positive(t, res.Tally.Migrations())
}

func TestYuleMigrations_Observer(t *testing.T) {
	var reports []simulation.GenerationReport
	p := defaultParams()
	p.Generations = 5
	p.Observer = func(r simulation.GenerationReport) {
		reports = append(reports, r)
	}

	res, err := simulation.YuleMigrations(p)
	require.NoError(t, err)
	require.Len(t, reports, 5)

	migrations := 0
	for g, r := range reports {
		assert.Equal(t, g, r.Generation)
		assert.Equal(t, 1<<(g+1), r.Leaves)
		var share float64
		for _, f := range r.Occupancy {
			share += f
		}
		assert.InDelta(t, 1.0, share, 1e-12)
		assert.Equal(t, 6, r.Matrix.Size())
		migrations += r.Migrations
	}
	assert.Equal(t, res.Tally.Migrations(), migrations)
	assert.Same(t, res.Matrix, reports[4].Matrix)
}

func TestYuleMigrations_ZeroGenerations(t *testing.T) {
	p := defaultParams()
	p.Generations = 0
	res, err := simulation.YuleMigrations(p)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Tree.Len())
	assert.Zero(t, res.Tally.Total())
	assert.Equal(t, 1-p.MigrationProbability, res.Matrix.At(0, 0))
}

func TestYuleMigrations_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*simulation.Params)
	}{
		{"zero birth rate", func(p *simulation.Params) { p.BirthRate = 0 }},
		{"negative birth rate", func(p *simulation.Params) { p.BirthRate = -1 }},
		{"negative generations", func(p *simulation.Params) { p.Generations = -1 }},
		{"too many generations", func(p *simulation.Params) { p.Generations = simulation.MaxGenerations + 1 }},
		{"one site", func(p *simulation.Params) { p.Sites = 1 }},
		{"migration above one", func(p *simulation.Params) { p.MigrationProbability = 1.1 }},
		{"negative migration", func(p *simulation.Params) { p.MigrationProbability = -0.1 }},
		{"negative rescale", func(p *simulation.Params) { p.RescaleIterations = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultParams()
			tt.mutate(&p)
			_, err := simulation.YuleMigrations(p)
			assert.ErrorIs(t, err, simulation.ErrInvalidParams)
		})
	}
}

func TestTally(t *testing.T) {
	tally := simulation.NewTally(3)
	tally.Inc(0, 0)
	tally.Inc(0, 1)
	tally.Inc(0, 1)
	tally.Inc(2, 1)

	assert.Equal(t, 3, tally.Size())
	assert.Equal(t, 2, tally.At(0, 1))
	assert.Equal(t, 4, tally.Total())
	assert.Equal(t, 3, tally.Migrations())

	rows := tally.Rows()
	assert.Equal(t, [][]int{{1, 2, 0}, {0, 0, 0}, {0, 1, 0}}, rows)
	rows[0][0] = 50
	assert.Equal(t, 1, tally.At(0, 0))
}

// replay rebuilds a run step by step against its own PCG source: the root
// branch length first, then for every child its site and then its length.
func replay(t *testing.T, p simulation.Params) *simulation.Result {
	t.Helper()
	src := rand.NewPCG(p.Seed, p.Seed)
	exp := distuv.Exponential{Rate: p.BirthRate, Src: src}

	pm, err := pmatrix.WithMigrationRate(p.Sites, p.MigrationProbability)
	require.NoError(t, err)
	tree := phylogeny.CreateRoot(0, 0, exp.Rand())
	tally := simulation.NewTally(p.Sites)

	type leaf struct{ node, site int }
	leaves := []leaf{{0, 0}}
	freqs := make([]float64, p.Sites)
	freqs[0] = 1

	for g := 0; g < p.Generations; g++ {
		pm, err = pm.BiasFromOccupancyN(freqs, p.EffectiveRescaleIterations())
		require.NoError(t, err)

		counts := make([]int, p.Sites)
		var next []leaf
		for _, l := range leaves {
			for k := 0; k < simulation.Branching; k++ {
				site, err := pm.SampleNext(l.site, src)
				require.NoError(t, err)
				id, err := tree.AddChild(l.node, tree.Len(), site, exp.Rand())
				require.NoError(t, err)
				tally.Inc(l.site, site)
				counts[site]++
				next = append(next, leaf{id, site})
			}
		}
		for i, c := range counts {
			freqs[i] = float64(c) / float64(len(next))
		}
		leaves = next
	}
	return &simulation.Result{Params: p, Tree: tree, Tally: tally, Matrix: pm}
}

func TestYuleMigrations_DrawOrder(t *testing.T) {
	tests := []struct {
		name string
		p    simulation.Params
	}{
		{"defaults", defaultParams()},
		{"seven generations", simulation.Params{BirthRate: 0.5, Generations: 7, Sites: 4, MigrationProbability: 0.3, Seed: 42}},
		{"zero generations", simulation.Params{BirthRate: 1, Generations: 0, Sites: 3, MigrationProbability: 0.1, Seed: 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := simulation.YuleMigrations(tt.p)
			require.NoError(t, err)
			want := replay(t, tt.p)

			assert.Equal(t, want.Tree.RootLength(), got.Tree.RootLength(), "root length is the first draw")
			simulation.AssertIdenticalRuns(t, want, got)
		})
	}
}
