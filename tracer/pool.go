package tracer

import (
	"context"
	"errors"
	"time"

	"github.com/achilleasa/widebvh/log"
	"golang.org/x/sync/errgroup"
)

var ErrNoTracers = errors.New("tracer: no tracers available")

// FrameStats summarizes a traced frame.
type FrameStats struct {
	// Wall time for the whole frame.
	FrameTime time.Duration

	// Per tracer block assignment and statistics, in tracer order.
	Blocks []uint32
	Stats  []Stats
}

// Totals across all tracers.
func (fs FrameStats) Totals() Stats {
	var total Stats
	for _, st := range fs.Stats {
		total.BlockH += st.BlockH
		total.Rays += st.Rays
		total.Hits += st.Hits
		total.Steps += st.Steps
	}
	total.BlockTime = fs.FrameTime.Nanoseconds()
	return total
}

// Pool runs a set of tracers concurrently over the rows of a frame.
type Pool struct {
	logger    log.Logger
	tracers   []Tracer
	scheduler BlockScheduler
}

// Create a pool that distributes rows with the perfect scheduler.
func NewPool(tracers ...Tracer) *Pool {
	return &Pool{
		logger:    log.New("tracer pool"),
		tracers:   tracers,
		scheduler: NewPerfectScheduler(),
	}
}

// Get the pool tracers.
func (p *Pool) Tracers() []Tracer {
	return p.tracers
}

// Trace all rows of a frame. Each tracer receives one contiguous block.
func (p *Pool) Trace(ctx context.Context, frame *Frame, mode Mode) (FrameStats, error) {
	if len(p.tracers) == 0 {
		return FrameStats{}, ErrNoTracers
	}

	start := time.Now()
	blocks := append([]uint32(nil), p.scheduler.Schedule(p.tracers, frame.Height)...)

	group, ctx := errgroup.WithContext(ctx)
	var blockY uint32
	for idx, tr := range p.tracers {
		blockH := min(blocks[idx], frame.Height-blockY)
		blocks[idx] = blockH
		if blockH == 0 {
			continue
		}

		req := BlockRequest{Frame: frame, BlockY: blockY, BlockH: blockH, Mode: mode}
		group.Go(func() error {
			return tr.Trace(ctx, req)
		})
		blockY += blockH
	}
	if err := group.Wait(); err != nil {
		return FrameStats{}, err
	}

	fs := FrameStats{
		FrameTime: time.Since(start),
		Blocks:    blocks,
		Stats:     make([]Stats, len(p.tracers)),
	}
	for idx, tr := range p.tracers {
		if blocks[idx] != 0 {
			fs.Stats[idx] = *tr.Stats()
		}
	}
	p.logger.Debugf("traced %dx%d frame in %d ms; blocks: %v", frame.Width, frame.Height, fs.FrameTime.Nanoseconds()/1e6, blocks)
	return fs, nil
}
