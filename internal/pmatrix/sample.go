package pmatrix

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// minRowMass is the smallest row sum accepted as a sampling distribution.
const minRowMass = 1e-12

// SampleNext draws a destination site from row source, treating the row as
// an unnormalized discrete distribution. src is consumed exactly once per
// call.
func (m *PMatrix) SampleNext(source int, src rand.Source) (int, error) {
	n := m.Size()
	if source < 0 || source >= n {
		return 0, fmt.Errorf("sample from site %d of %d: %w", source, n, ErrSiteOutOfRange)
	}
	row := m.p.RawRowView(source)
	if err := validateDistribution(row); err != nil {
		return 0, fmt.Errorf("sample from site %d: %w", source, err)
	}
	return int(distuv.NewCategorical(row, src).Rand()), nil
}

func validateDistribution(row []float64) error {
	var sum float64
	for j, v := range row {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("entry %d is %v: %w", j, v, ErrInvalidDistribution)
		}
		sum += v
	}
	if sum < minRowMass || math.IsInf(sum, 0) {
		return fmt.Errorf("row mass %v: %w", sum, ErrInvalidDistribution)
	}
	return nil
}
