// Package pmatrix implements the per-generation migration probability matrix.
//
// A PMatrix is an n×n non-negative matrix whose row i is the distribution of
// destination sites for a lineage currently at site i. Each generation the
// matrix is biased toward under-occupied sites and rebalanced with a fixed
// number of Sinkhorn-Knopp iterations. Every transform returns a new matrix;
// a PMatrix is never mutated once built.
package pmatrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultRescaleIterations is the number of Sinkhorn-Knopp passes applied by
// BiasFromOccupancy. Changing it changes simulation outputs.
const DefaultRescaleIterations = 3

// epsilon is the float64 machine epsilon, added to the occupancy exponent.
const epsilon = 0x1p-52

// PMatrix is an immutable square migration probability matrix.
type PMatrix struct {
	p *mat.Dense
}

// Uniform returns a matrix with 0.5 on the diagonal and the remaining half of
// each row spread evenly over the other sites.
func Uniform(n int) (*PMatrix, error) {
	if n < 2 {
		return nil, fmt.Errorf("uniform matrix of size %d: %w", n, ErrTooFewSites)
	}
	return fill(n, 0.5, 0.5/float64(n-1)), nil
}

// WithMigrationRate returns a matrix where a lineage stays put with
// probability 1-p and moves to each other site with probability p/(n-1).
func WithMigrationRate(n int, p float64) (*PMatrix, error) {
	if n < 2 {
		return nil, fmt.Errorf("migration matrix of size %d: %w", n, ErrTooFewSites)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return nil, fmt.Errorf("migration probability %v: %w", p, ErrInvalidProbability)
	}
	return fill(n, 1-p, p/float64(n-1)), nil
}

func fill(n int, diag, off float64) *PMatrix {
	p := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				p.Set(i, j, diag)
			} else {
				p.Set(i, j, off)
			}
		}
	}
	return &PMatrix{p: p}
}

// FromFlatValues builds an n×n matrix from n² values in row-major order.
// The values are copied.
func FromFlatValues(values []float64, n int) (*PMatrix, error) {
	if n < 1 || len(values) != n*n {
		return nil, fmt.Errorf("%d values for a %dx%d matrix: %w", len(values), n, n, ErrShapeMismatch)
	}
	for k, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("entry (%d,%d) = %v: %w", k/n, k%n, v, ErrInvalidDistribution)
		}
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &PMatrix{p: mat.NewDense(n, n, data)}, nil
}

// Size returns the number of sites.
func (m *PMatrix) Size() int {
	n, _ := m.p.Dims()
	return n
}

// At returns the probability of moving from site i to site j.
func (m *PMatrix) At(i, j int) float64 {
	return m.p.At(i, j)
}

// Row returns a copy of row i.
func (m *PMatrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.p)
}

// RowSums returns the sum of every row.
func (m *PMatrix) RowSums() []float64 {
	n := m.Size()
	sums := make([]float64, n)
	for i := range sums {
		sums[i] = floats.Sum(m.p.RawRowView(i))
	}
	return sums
}

// ColSums returns the sum of every column.
func (m *PMatrix) ColSums() []float64 {
	n := m.Size()
	sums := make([]float64, n)
	col := make([]float64, n)
	for j := range sums {
		mat.Col(col, j, m.p)
		sums[j] = floats.Sum(col)
	}
	return sums
}

// RawMatrix returns a read-only view of the underlying matrix.
func (m *PMatrix) RawMatrix() mat.Matrix {
	return m.p
}

// String formats the matrix one row per line.
func (m *PMatrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.p, mat.Squeeze()))
}

// ScaleColumns multiplies column j by weights[j], i.e. returns P·diag(weights).
func (m *PMatrix) ScaleColumns(weights []float64) (*PMatrix, error) {
	n := m.Size()
	if len(weights) != n {
		return nil, fmt.Errorf("%d column weights for %d sites: %w", len(weights), n, ErrShapeMismatch)
	}
	q := mat.NewDense(n, n, nil)
	q.Apply(func(_, j int, v float64) float64 {
		return v * weights[j]
	}, m.p)
	return &PMatrix{p: q}, nil
}

// Rescale balances the matrix with exactly iterations passes of
// Sinkhorn-Knopp iterative proportional fitting:
//
//	r ← 1 / (P·c),  c ← 1 / (Pᵀ·r),  Q = diag(r)·P·diag(c)
//
// The result is only approximately doubly stochastic. A zero, negative or
// non-finite row or column sum fails with ErrIllDefinedRescale.
func (m *PMatrix) Rescale(iterations int) (*PMatrix, error) {
	if iterations < 0 {
		return nil, fmt.Errorf("rescale with %d iterations: %w", iterations, ErrIllDefinedRescale)
	}
	n := m.Size()
	r := mat.NewVecDense(n, ones(n))
	c := mat.NewVecDense(n, ones(n))
	sums := mat.NewVecDense(n, nil)

	for it := 0; it < iterations; it++ {
		sums.MulVec(m.p, c)
		if err := reciprocal(r, sums, "row", it); err != nil {
			return nil, err
		}
		sums.MulVec(m.p.T(), r)
		if err := reciprocal(c, sums, "column", it); err != nil {
			return nil, err
		}
	}

	q := mat.NewDense(n, n, nil)
	q.Apply(func(i, j int, v float64) float64 {
		return r.AtVec(i) * v * c.AtVec(j)
	}, m.p)
	return &PMatrix{p: q}, nil
}

// reciprocal stores 1/sums[i] into dst, failing on sums that cannot be inverted.
func reciprocal(dst, sums *mat.VecDense, axis string, iteration int) error {
	for i := 0; i < sums.Len(); i++ {
		s := sums.AtVec(i)
		inv := 1 / s
		if !(s > 0) || math.IsInf(s, 0) || math.IsInf(inv, 0) {
			return fmt.Errorf("%s %d sums to %v at iteration %d: %w", axis, i, s, iteration, ErrIllDefinedRescale)
		}
		dst.SetVec(i, inv)
	}
	return nil
}

// BiasFromOccupancy reweights columns by a softmax of negated occupancy, so
// crowded sites receive less incoming mass, then rebalances with
// DefaultRescaleIterations passes.
func (m *PMatrix) BiasFromOccupancy(frequencies []float64) (*PMatrix, error) {
	return m.BiasFromOccupancyN(frequencies, DefaultRescaleIterations)
}

// BiasFromOccupancyN is BiasFromOccupancy with an explicit number of
// balancing iterations.
func (m *PMatrix) BiasFromOccupancyN(frequencies []float64, iterations int) (*PMatrix, error) {
	weights, err := OccupancyWeights(frequencies)
	if err != nil {
		return nil, err
	}
	scaled, err := m.ScaleColumns(weights)
	if err != nil {
		return nil, err
	}
	return scaled.Rescale(iterations)
}

// OccupancyWeights computes w_i = exp(-f_i + ε) / Σ_k exp(-f_k + ε).
func OccupancyWeights(frequencies []float64) ([]float64, error) {
	if len(frequencies) == 0 {
		return nil, fmt.Errorf("empty occupancy vector: %w", ErrShapeMismatch)
	}
	weights := make([]float64, len(frequencies))
	for i, f := range frequencies {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("occupancy of site %d is %v: %w", i, f, ErrInvalidDistribution)
		}
		weights[i] = math.Exp(-f + epsilon)
	}
	floats.Scale(1/floats.Sum(weights), weights)
	return weights, nil
}

// Exponentiate returns exp(rate·length·p_ij) element-wise. The result is not
// row-stochastic.
func (m *PMatrix) Exponentiate(rate, length float64) *PMatrix {
	n := m.Size()
	q := mat.NewDense(n, n, nil)
	q.Apply(func(_, _ int, v float64) float64 {
		return math.Exp(v * rate * length)
	}, m.p)
	return &PMatrix{p: q}
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
