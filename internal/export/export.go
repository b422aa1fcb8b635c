// Package export writes lineage arenas and migration tallies as flat
// delimited tables and JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nvandessel/migsim/internal/phylogeny"
)

// Table headers.
var (
	EdgeHeader   = []string{"parent", "child", "length"}
	VertexHeader = []string{"vertex", "label"}
	LeafHeader   = []string{"leaf", "label"}
	TallyHeader  = []string{"origin", "destination", "count"}
)

func newWriter(w io.Writer, comma rune) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	return cw
}

// flush flushes cw and reports the first write error.
func flush(cw *csv.Writer) error {
	cw.Flush()
	return cw.Error()
}

// WriteEdgesCSV writes the edge table with header parent,child,length.
func WriteEdgesCSV[N, L any](w io.Writer, p *phylogeny.Phylogeny[N, L]) error {
	return writeEdges(newWriter(w, ','), p)
}

// WriteEdgesTSV writes the edge table tab-separated.
func WriteEdgesTSV[N, L any](w io.Writer, p *phylogeny.Phylogeny[N, L]) error {
	return writeEdges(newWriter(w, '\t'), p)
}

func writeEdges[N, L any](cw *csv.Writer, p *phylogeny.Phylogeny[N, L]) error {
	if err := cw.Write(EdgeHeader); err != nil {
		return err
	}
	for e := range p.Edges() {
		row := []string{
			strconv.Itoa(e.Parent),
			strconv.Itoa(e.Child),
			strconv.FormatFloat(e.Length, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteVertexLabels writes one vertex,label row per node in arena order.
func WriteVertexLabels[N, L any](w io.Writer, p *phylogeny.Phylogeny[N, L]) error {
	cw := newWriter(w, ',')
	if err := cw.Write(VertexHeader); err != nil {
		return err
	}
	for i := 0; i < p.Len(); i++ {
		n, err := p.Node(i)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{strconv.Itoa(i), fmt.Sprint(n.Label)}); err != nil {
			return err
		}
	}
	return flush(cw)
}

// WriteLeafLabels writes one leaf,label row per leaf, numbering leaves from
// zero in arena order.
func WriteLeafLabels[N, L any](w io.Writer, p *phylogeny.Phylogeny[N, L]) error {
	cw := newWriter(w, ',')
	if err := cw.Write(LeafHeader); err != nil {
		return err
	}
	ordinal := 0
	for leaf := range p.Leaves() {
		n, err := p.Node(leaf)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{strconv.Itoa(ordinal), fmt.Sprint(n.Label)}); err != nil {
			return err
		}
		ordinal++
	}
	return flush(cw)
}

// WriteTallyCSV writes every cell of a migration tally, diagonal included.
func WriteTallyCSV(w io.Writer, rows [][]int) error {
	cw := newWriter(w, ',')
	if err := cw.Write(TallyHeader); err != nil {
		return err
	}
	for i, row := range rows {
		for j, count := range row {
			if err := cw.Write([]string{strconv.Itoa(i), strconv.Itoa(j), strconv.Itoa(count)}); err != nil {
				return err
			}
		}
	}
	return flush(cw)
}

// WriteTreeJSON writes the nested tree view as indented JSON.
func WriteTreeJSON[N, L any](w io.Writer, p *phylogeny.Phylogeny[N, L]) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.ToNestedTree()); err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	return nil
}

// ToFile creates path and hands it to write, reporting close errors too.
func ToFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); err == nil && e != nil {
			err = e
		}
	}()
	return write(f)
}
