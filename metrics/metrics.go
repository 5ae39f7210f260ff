package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage label values.
const (
	StageBinary   = "binary"
	StageBinaryHQ = "binary_hq"
	StageWide     = "wide"
	StageCWBVH    = "cwbvh"
)

// Collectors are registered with the default registry on package init.
var (
	// Wall time of hierarchy construction, labeled by stage
	// (binary, binary_hq, wide, cwbvh).
	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "widebvh_build_duration_seconds",
			Help:    "Duration of hierarchy builds and conversions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"stage"},
	)

	// Number of nodes produced by the last build of each stage.
	Nodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "widebvh_nodes",
			Help: "Node count produced by the most recent build of a stage",
		},
		[]string{"stage"},
	)

	// Number of primitives (or primitive references) indexed by the last build.
	Primitives = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "widebvh_primitives",
			Help: "Primitive references indexed by the most recent build of a stage",
		},
		[]string{"stage"},
	)

	// Refits performed on binary trees.
	RefitTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "widebvh_refit_total",
			Help: "Total number of completed refits",
		},
	)

	RefitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "widebvh_refit_duration_seconds",
			Help:    "Duration of refits in seconds",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// Rays traced by the tracer package, labeled by tracer id.
	RaysTraced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widebvh_rays_traced_total",
			Help: "Total number of rays traced",
		},
		[]string{"tracer"},
	)
)
