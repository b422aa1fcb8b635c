package pmatrix

import "errors"

var (
	// ErrShapeMismatch is returned when a value list or weight vector does not
	// match the matrix dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidDistribution is returned when a row cannot be used as a
	// discrete probability distribution (negative, non-finite, or zero mass).
	ErrInvalidDistribution = errors.New("invalid distribution")

	// ErrIllDefinedRescale is returned when a balancing step would divide by
	// a zero or non-finite row/column sum.
	ErrIllDefinedRescale = errors.New("ill-defined rescale")

	// ErrTooFewSites is returned when a matrix needs at least two sites.
	ErrTooFewSites = errors.New("at least two sites are required")

	// ErrInvalidProbability is returned for probabilities outside [0, 1].
	ErrInvalidProbability = errors.New("probability must be within [0, 1]")

	// ErrSiteOutOfRange is returned when a site index is outside the matrix.
	ErrSiteOutOfRange = errors.New("site index out of range")
)
