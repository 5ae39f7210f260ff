package bvh

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// BuildOptions tune the SAH builders. The zero value is not usable; start from
// DefaultBuildOptions.
type BuildOptions struct {
	// Number of centroid bins evaluated per axis.
	Bins int `yaml:"bins"`

	// Ranges with at most this many primitives always become leaves.
	LeafThreshold int `yaml:"leaf_threshold"`

	// Ranges with more primitives than this are always split, even when
	// the SAH prefers a leaf. This bounds leaf size on degenerate input.
	MaxLeafSize int `yaml:"max_leaf_size"`

	// Relative SAH costs of a node visit and a triangle test.
	TraversalCost    float32 `yaml:"traversal_cost"`
	IntersectionCost float32 `yaml:"intersection_cost"`

	// Number of goroutines used by parallel builds and refits.
	Workers int `yaml:"workers"`

	// Subtrees with fewer primitives than this are built on the calling
	// goroutine.
	ParallelThreshold int `yaml:"parallel_threshold"`

	// Spatial splits are evaluated when the overlap of the best object
	// split children exceeds this fraction of the root area.
	SpatialAlpha float32 `yaml:"spatial_alpha"`

	// Extra primitive references spatial splits may create, as a fraction
	// of the triangle count.
	SpatialBudget float32 `yaml:"spatial_budget"`
}

// Get the default build options. Workers defaults to the number of logical
// cores reported by the CPU.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		Bins:              8,
		LeafThreshold:     1,
		MaxLeafSize:       16,
		TraversalCost:     1,
		IntersectionCost:  1,
		Workers:           DefaultWorkers(),
		ParallelThreshold: 4096,
		SpatialAlpha:      1e-5,
		SpatialBudget:     0.3,
	}
}

// Get the default worker count.
func DefaultWorkers() int {
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return cores
	}
	return runtime.NumCPU()
}

// Validate checks the options for consistency.
func (o BuildOptions) Validate() error {
	switch {
	case o.Bins < 2 || o.Bins > 256:
		return fmt.Errorf("%w: bins must be in [2, 256]; got %d", ErrInvalidOptions, o.Bins)
	case o.LeafThreshold < 1:
		return fmt.Errorf("%w: leaf threshold must be at least 1; got %d", ErrInvalidOptions, o.LeafThreshold)
	case o.MaxLeafSize < o.LeafThreshold:
		return fmt.Errorf("%w: max leaf size %d is below the leaf threshold %d", ErrInvalidOptions, o.MaxLeafSize, o.LeafThreshold)
	case o.TraversalCost < 0 || o.IntersectionCost <= 0:
		return fmt.Errorf("%w: SAH costs must be positive", ErrInvalidOptions)
	case o.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1; got %d", ErrInvalidOptions, o.Workers)
	case o.ParallelThreshold < 2:
		return fmt.Errorf("%w: parallel threshold must be at least 2; got %d", ErrInvalidOptions, o.ParallelThreshold)
	case o.SpatialAlpha < 0 || o.SpatialBudget < 0:
		return fmt.Errorf("%w: spatial split parameters must not be negative", ErrInvalidOptions)
	}
	return nil
}
