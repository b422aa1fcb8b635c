package simulation

// Tally counts lineage-splitting events by (origin site, destination site).
// The diagonal holds events that stayed at their site.
type Tally struct {
	n      int
	counts []int
}

// NewTally returns an all-zero n×n tally.
func NewTally(n int) *Tally {
	return &Tally{n: n, counts: make([]int, n*n)}
}

// Size returns the number of sites.
func (t *Tally) Size() int {
	return t.n
}

// Inc records one event from site i to site j.
func (t *Tally) Inc(i, j int) {
	t.counts[i*t.n+j]++
}

// At returns the number of events from site i to site j.
func (t *Tally) At(i, j int) int {
	return t.counts[i*t.n+j]
}

// Total returns the number of recorded events, self-transitions included.
func (t *Tally) Total() int {
	total := 0
	for _, c := range t.counts {
		total += c
	}
	return total
}

// Migrations returns the number of events that changed site.
func (t *Tally) Migrations() int {
	total := t.Total()
	for i := 0; i < t.n; i++ {
		total -= t.At(i, i)
	}
	return total
}

// Rows returns a copy of the tally as a slice of rows.
func (t *Tally) Rows() [][]int {
	rows := make([][]int, t.n)
	for i := range rows {
		rows[i] = make([]int, t.n)
		copy(rows[i], t.counts[i*t.n:(i+1)*t.n])
	}
	return rows
}
