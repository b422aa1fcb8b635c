// Package simulation grows a lineage tree by a generation-synchronized Yule
// process while lineages migrate between a fixed set of sites.
//
// Each generation the migration matrix is biased away from crowded sites and
// rebalanced, then every current leaf splits into two children. Each child
// draws its destination site from the matrix row of its parent's site and a
// branch length from Exponential(BirthRate).
//
// Runs are reproducible: a single PCG source seeded from Params.Seed feeds
// every draw, consumed in this fixed order:
//
//  1. the root branch length;
//  2. for each generation, for each leaf of that generation in creation
//     order, for each of its two children: the destination site, then the
//     branch length.
//
// Usage:
//
//	res, err := simulation.YuleMigrations(simulation.Params{
//	    BirthRate:            0.2,
//	    Generations:          10,
//	    Sites:                6,
//	    MigrationProbability: 0.01,
//	    Seed:                 42,
//	})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Tally.Migrations())
package simulation
