// Package tracer traces frames of rays against the hierarchy layouts using
// a pool of tracers that split each frame into row blocks.
package tracer

import (
	"context"
	"slices"
	"time"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/metrics"
)

// Frame is a row-major grid of rays. Tracers write hits into the rays of the
// rows they are assigned.
type Frame struct {
	Width  uint32
	Height uint32
	Rays   []bvh.Ray
}

// Create a frame of primary rays generated by cam.
func NewFrame(cam Camera, width, height uint32) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Rays:   cam.Rays(int(width), int(height)),
	}
}

// Get a copy of the frame with every hit record reset, ready to be traced
// again.
func (f *Frame) Clone() *Frame {
	out := &Frame{Width: f.Width, Height: f.Height, Rays: slices.Clone(f.Rays)}
	for i := range out.Rays {
		out.Rays[i].Reset(bvh.Infinite)
	}
	return out
}

// Get the rays of rows [blockY, blockY+blockH).
func (f *Frame) Block(blockY, blockH uint32) []bvh.Ray {
	return f.Rays[blockY*f.Width : (blockY+blockH)*f.Width]
}

// Count the rays that hit something.
func (f *Frame) HitCount() int {
	hits := 0
	for i := range f.Rays {
		if f.Rays[i].Hits() {
			hits++
		}
	}
	return hits
}

// Count the rays whose closest hit distance differs from other. Ties between
// triangles at the same distance may resolve to different primitives so
// only the distances are compared.
func (f *Frame) Mismatches(other *Frame) int {
	mismatches := 0
	for i := range f.Rays {
		if i >= len(other.Rays) || f.Rays[i].Hit.T != other.Rays[i].Hit.T {
			mismatches++
		}
	}
	return mismatches
}

// Mode selects the query issued per ray.
type Mode uint8

const (
	// Find the closest hit.
	Closest Mode = iota

	// Stop at the first hit. Only the hit flag is meaningful.
	AnyHit
)

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	Frame *Frame

	// Block start row and height.
	BlockY uint32
	BlockH uint32

	Mode Mode
}

// Tracer statistics for the last processed block.
type Stats struct {
	// The traced block height
	BlockH uint32

	// The time for tracing this block (in nanoseconds)
	BlockTime int64

	// Rays traced, rays that hit and nodes visited.
	Rays  uint64
	Hits  uint64
	Steps uint64
}

// Tracer traces row blocks against one hierarchy.
type Tracer interface {
	// Get tracer id.
	ID() string

	// Get the tracers computation speed estimate compared to a
	// baseline binary tree implementation.
	SpeedEstimate() float32

	// Trace a block of rows. Tracers may be called concurrently with
	// requests covering disjoint rows of the same frame.
	Trace(ctx context.Context, req BlockRequest) error

	// Retrieve last block statistics.
	Stats() *Stats
}

// Rows traced between context checks.
const rowsPerCheck = 8

type cpuTracer struct {
	id          string
	speed       float32
	intersector bvh.Intersector
	stats       Stats
}

// Create a tracer running on the calling goroutine against any hierarchy
// layout.
func NewCPUTracer(id string, intersector bvh.Intersector, speed float32) Tracer {
	return &cpuTracer{
		id:          id,
		speed:       speed,
		intersector: intersector,
	}
}

func (tr *cpuTracer) ID() string {
	return tr.id
}

func (tr *cpuTracer) SpeedEstimate() float32 {
	return tr.speed
}

func (tr *cpuTracer) Stats() *Stats {
	return &tr.stats
}

func (tr *cpuTracer) Trace(ctx context.Context, req BlockRequest) error {
	start := time.Now()
	stats := Stats{BlockH: req.BlockH}

	f := req.Frame
	for row := req.BlockY; row < req.BlockY+req.BlockH; row++ {
		if (row-req.BlockY)%rowsPerCheck == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		for i := range f.Block(row, 1) {
			ray := &f.Rays[row*f.Width+uint32(i)]
			switch req.Mode {
			case AnyHit:
				if tr.intersector.IsOccluded(ray) {
					stats.Hits++
				}
			default:
				stats.Steps += uint64(tr.intersector.Intersect(ray))
				if ray.Hits() {
					stats.Hits++
				}
			}
		}
		stats.Rays += uint64(f.Width)
	}

	stats.BlockTime = time.Since(start).Nanoseconds()
	tr.stats = stats
	metrics.RaysTraced.WithLabelValues(tr.id).Add(float64(stats.Rays))
	return nil
}
