// Package metrics records run metrics in a private Prometheus registry and
// writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nvandessel/migsim/internal/simulation"
)

// Recorder collects metrics for one run. A nil Recorder is safe to use; all
// methods are no-ops on nil receiver.
type Recorder struct {
	reg *prometheus.Registry

	generations  prometheus.Counter
	leaves       prometheus.Gauge
	migrations   *prometheus.CounterVec
	occupancy    *prometheus.GaugeVec
	balance      prometheus.Gauge
	branchLength prometheus.Histogram
	nodes        prometheus.Gauge
	duration     prometheus.Gauge
}

// NewRecorder registers the run metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		generations: f.NewCounter(prometheus.CounterOpts{
			Name: "migsim_generations_total",
			Help: "Completed generations",
		}),
		leaves: f.NewGauge(prometheus.GaugeOpts{
			Name: "migsim_leaves",
			Help: "Leaves after the latest generation",
		}),
		migrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "migsim_migrations_total",
			Help: "Child placements by origin and destination site, diagonal excluded",
		}, []string{"origin", "destination"}),
		occupancy: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "migsim_site_occupancy_ratio",
			Help: "Share of current leaves at each site",
		}, []string{"site"}),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "migsim_matrix_row_deviation",
			Help: "Largest |row sum - 1| of the latest migration matrix",
		}),
		branchLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "migsim_branch_length",
			Help:    "Branch lengths of the final tree, root branch included",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		nodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "migsim_tree_nodes",
			Help: "Nodes in the final tree",
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "migsim_run_duration_seconds",
			Help: "Wall time of the simulation",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// ObserveGeneration records a completed generation.
func (r *Recorder) ObserveGeneration(rep simulation.GenerationReport) {
	if r == nil {
		return
	}
	r.generations.Inc()
	r.leaves.Set(float64(rep.Leaves))
	for site, share := range rep.Occupancy {
		r.occupancy.WithLabelValues(strconv.Itoa(site)).Set(share)
	}
	if rep.Matrix != nil {
		var worst float64
		for _, s := range rep.Matrix.RowSums() {
			worst = max(worst, math.Abs(s-1))
		}
		r.balance.Set(worst)
	}
}

// ObserveResult records the final tree and tally.
func (r *Recorder) ObserveResult(res *simulation.Result, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.nodes.Set(float64(res.Tree.Len()))
	r.duration.Set(elapsed.Seconds())

	r.branchLength.Observe(res.Tree.RootLength())
	for e := range res.Tree.Edges() {
		r.branchLength.Observe(e.Length)
	}

	for i, row := range res.Tally.Rows() {
		for j, count := range row {
			if i == j || count == 0 {
				continue
			}
			r.migrations.WithLabelValues(strconv.Itoa(i), strconv.Itoa(j)).Add(float64(count))
		}
	}
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
