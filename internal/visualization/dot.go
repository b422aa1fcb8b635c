// Package visualization builds and renders the site migration graph.
package visualization

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// graphName is the DOT identifier of the migration graph.
const graphName = "migrations"

// attrs is a fixed attribute list.
type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// siteNode is a site of the migration graph.
type siteNode int64

func (s siteNode) ID() int64 { return int64(s) }

func (s siteNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: strconv.Quote("site " + strconv.FormatInt(int64(s), 10))}}
}

// migrationEdge is a directed edge weighted by the number of migrations
// observed between two sites.
type migrationEdge struct {
	from, to siteNode
	count    int
}

func (e migrationEdge) From() graph.Node { return e.from }
func (e migrationEdge) To() graph.Node { return e.to }
func (e migrationEdge) Weight() float64 { return float64(e.count) }
func (e migrationEdge) ReversedEdge() graph.Edge { return migrationEdge{from: e.to, to: e.from, count: e.count} }

func (e migrationEdge) Attributes() []encoding.Attribute {
	c := strconv.Itoa(e.count)
	return []encoding.Attribute{
		{Key: "label", Value: c},
		{Key: "weight", Value: c},
	}
}

// MigrationGraph is a weighted directed graph with one node per site and one
// edge per observed migration route.
type MigrationGraph struct {
	*simple.WeightedDirectedGraph
}

// DOTID names the graph in DOT output.
func (g *MigrationGraph) DOTID() string { return graphName }

// DOTAttributers sets graph-wide DOT defaults.
func (g *MigrationGraph) DOTAttributers() (graph, node, edge encoding.Attributer) {
	return attrs{{Key: "rankdir", Value: "LR"}},
		attrs{{Key: "shape", Value: "circle"}, {Key: "fontname", Value: "Helvetica"}},
		attrs{{Key: "fontname", Value: "Helvetica"}, {Key: "fontsize", Value: "10"}}
}

// Count returns the number of migrations from site i to site j.
func (g *MigrationGraph) Count(i, j int) int {
	w, ok := g.Weight(int64(i), int64(j))
	if !ok || i == j {
		return 0
	}
	return int(w)
}

// GraphFromTally builds the migration graph from square tally rows. Every
// site becomes a node; every positive off-diagonal cell becomes an edge.
func GraphFromTally(rows [][]int) (*MigrationGraph, error) {
	g := &MigrationGraph{WeightedDirectedGraph: simple.NewWeightedDirectedGraph(0, 0)}
	for i := range rows {
		g.AddNode(siteNode(i))
	}
	for i, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("tally row %d has %d cells, want %d", i, len(row), len(rows))
		}
		for j, count := range row {
			if i == j || count <= 0 {
				continue
			}
			g.SetWeightedEdge(migrationEdge{from: siteNode(i), to: siteNode(j), count: count})
		}
	}
	return g, nil
}

// MarshalDOT encodes the migration graph in Graphviz DOT format.
func MarshalDOT(g *MigrationGraph) ([]byte, error) {
	b, err := dot.Marshal(g, graphName, "", "\t")
	if err != nil {
		return nil, fmt.Errorf("marshal dot: %w", err)
	}
	return append(b, '\n'), nil
}
