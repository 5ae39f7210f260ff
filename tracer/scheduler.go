package tracer

import "math"

// The BlockScheduler interface is implemented by all block scheduling algorithms.
type BlockScheduler interface {
	// Split frame into blocks of variable height and assign to the pool
	// of tracers using feedback collected from previous frames.
	//
	// This function returns the block height assignment for each tracer
	// in the input list. The assignments add up to frameH whenever there
	// are at least as many rows as tracers.
	Schedule(tracers []Tracer, frameH uint32) []uint32
}

// The perfect scheduler assumes that the volume of tracing work between two
// subsequent frames is approximately the same.
type perfectScheduler struct {
	blockAssignment []uint32
}

// Create a new perfect scheduler instance
func NewPerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

// Split frame into blocks of variable height and assign to the pool
// of tracers using feedback collected from previous frames.
//
// The first frame (or a frame after the tracer count changed) is split
// according to the tracer speed estimates. Afterwards the share of tracer w
// for frame i+1 is:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i / time,i)
func (sch *perfectScheduler) Schedule(tracers []Tracer, frameH uint32) []uint32 {
	weights := make([]float64, len(tracers))
	var total float64

	if len(sch.blockAssignment) == len(tracers) {
		for idx, tr := range tracers {
			stats := tr.Stats()
			if stats.BlockH > 0 && stats.BlockTime > 0 {
				weights[idx] = float64(stats.BlockH) / float64(stats.BlockTime)
			}
			total += weights[idx]
		}
	}

	// No usable feedback; distribute rows by speed estimate.
	if len(sch.blockAssignment) != len(tracers) || total == 0 {
		sch.blockAssignment = make([]uint32, len(tracers))
		total = 0
		for idx, tr := range tracers {
			weights[idx] = float64(tr.SpeedEstimate())
			total += weights[idx]
		}
	}

	scaler := float64(frameH) / total
	var scheduledRows uint32
	for idx := range tracers {
		sch.blockAssignment[idx] = uint32(math.Max(1.0, math.Floor(weights[idx]*scaler)))
		scheduledRows += sch.blockAssignment[idx]
	}

	// Take rows away from the largest blocks if the minimum of one row per
	// tracer oversubscribed the frame.
	for scheduledRows > frameH {
		largest := 0
		for idx, rows := range sch.blockAssignment {
			if rows > sch.blockAssignment[largest] {
				largest = idx
			}
		}
		if sch.blockAssignment[largest] <= 1 {
			break
		}
		sch.blockAssignment[largest]--
		scheduledRows--
	}

	// In case rows don't add up to the frame height append the missing ones to the first tracer
	if scheduledRows < frameH {
		sch.blockAssignment[0] += frameH - scheduledRows
	}

	return sch.blockAssignment
}
