package cwbvh

import (
	"fmt"
	"math"
	"time"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/metrics"
	"github.com/achilleasa/widebvh/types"
	"github.com/achilleasa/widebvh/wide"
)

// Quantized bounds use 8 bits per coordinate.
const maxQuant = 255

// Encode a converted wide tree into this tree, replacing its contents.
//
// Nodes are laid out breadth-first; the interior children of a node are
// contiguous and ordered by slot. Primitives are emitted per node in slot
// order so every leaf addresses a contiguous run of records. Leaves may hold
// at most MaxLeafSize triangles.
func (c *BVH) Convert(src *wide.BVH) error {
	if !src.Built() {
		return bvh.ErrNotBuilt
	}

	start := time.Now()
	srcNodes := src.Nodes()
	indices := src.Indices()
	store := src.Store()

	nodes := make([]Node, 0, len(srcNodes))
	prims := make([]Primitive, 0, len(indices))
	queue := make([]uint32, 1, len(srcNodes))
	for head := 0; head < len(queue); head++ {
		wn := &srcNodes[queue[head]]
		slots := assignSlots(wn)
		cn, err := quantizeNode(wn, slots)
		if err != nil {
			return fmt.Errorf("node %d: %w", queue[head], err)
		}

		cn.ChildBase = uint32(len(queue))
		cn.PrimBase = uint32(len(prims))
		for slot, ci := range slots {
			if ci < 0 {
				continue
			}
			child := &wn.Children[ci]
			if child.Kind == wide.Interior {
				cn.IMask |= 1 << slot
				cn.Meta[slot] = interiorMeta(slot)
				queue = append(queue, child.Index)
				continue
			}

			if child.Count > MaxLeafSize {
				return fmt.Errorf("%w: node %d has a leaf with %d triangles; at most %d are supported", bvh.ErrLeafTooLarge, queue[head], child.Count, MaxLeafSize)
			}
			cn.Meta[slot] = leafMeta(uint32(len(prims))-cn.PrimBase, child.Count)
			for _, tri := range indices[child.Index : child.Index+child.Count] {
				prims = append(prims, NewPrimitive(store, tri))
			}
		}
		nodes = append(nodes, cn)
	}

	c.setContents(nodes, prims)
	c.sourceID = src.ID()
	c.sourceGeneration = src.Generation()

	elapsed := time.Since(start)
	metrics.BuildDuration.WithLabelValues(metrics.StageCWBVH).Observe(elapsed.Seconds())
	metrics.Nodes.WithLabelValues(metrics.StageCWBVH).Set(float64(len(nodes)))
	metrics.Primitives.WithLabelValues(metrics.StageCWBVH).Set(float64(len(prims)))
	c.logger.Debugf(
		"CWBVH encode time: %d ms, nodes: %d, primitives: %d",
		elapsed.Nanoseconds()/1e6, len(nodes), len(prims),
	)
	return nil
}

// Build the quantization frame of a wide node and quantize its children into
// the given slots. Meta, masks and bases are left to the caller.
func quantizeNode(wn *wide.Node, slots [Width]int) (Node, error) {
	cn := Node{P: wn.Min}
	extent := wn.Bounds().Extent()
	for axis := 0; axis < 3; axis++ {
		e, ok := exponentFor(extent[axis])
		for ok {
			if quantizeAxis(&cn, wn, slots, axis, e) {
				break
			}
			// Rounding pushed a maximum past the representable range.
			e++
			ok = e <= maxExponent
		}
		if !ok {
			return Node{}, fmt.Errorf("%w: extent %g along axis %d", bvh.ErrQuantizationOverflow, extent[axis], axis)
		}
		cn.E[axis] = e
	}
	return cn, nil
}

// Get the smallest biased exponent whose scale spans extent in maxQuant
// steps.
func exponentFor(extent float32) (uint8, bool) {
	if !(extent > 0) {
		return minExponent, true
	}
	if math.IsInf(float64(extent), 0) {
		return 0, false
	}
	biased := int(math.Ceil(math.Log2(float64(extent)/maxQuant))) + 127
	if biased < minExponent {
		biased = minExponent
	}
	if biased > maxExponent {
		return 0, false
	}
	return uint8(biased), true
}

// Quantize one axis of every used child. Minimums round down and maximums
// round up; each value is then checked against the decoded float32 bounds
// and widened until the decoded box contains the child. Returns false if a
// maximum does not fit with exponent e.
func quantizeAxis(cn *Node, wn *wide.Node, slots [Width]int, axis int, e uint8) bool {
	origin := cn.P[axis]
	scale := scaleOf(e)
	for slot, ci := range slots {
		if ci < 0 {
			cn.QLo[axis][slot], cn.QHi[axis][slot] = 0, 0
			continue
		}
		child := &wn.Children[ci]

		lo := clampQuant(math.Floor(float64(child.Min[axis]-origin) / float64(scale)))
		for lo > 0 && dequantize(origin, scale, lo) > child.Min[axis] {
			lo--
		}

		hi := clampQuant(math.Ceil(float64(child.Max[axis]-origin) / float64(scale)))
		for dequantize(origin, scale, hi) < child.Max[axis] {
			if hi == maxQuant {
				return false
			}
			hi++
		}

		cn.QLo[axis][slot], cn.QHi[axis][slot] = lo, hi
	}
	return true
}

func clampQuant(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	} else if v >= maxQuant {
		return maxQuant
	}
	return uint8(v)
}

// Map the used children of a wide node to slots. Slot s corresponds to the
// ray octant whose direction signs are given by the bits of s (bit 0 for x,
// bit 1 for y, bit 2 for z; a set bit means negative). Child/slot pairs are
// picked greedily by the lowest projection of the child centroid offset onto
// the octant direction. Unassigned slots hold -1.
func assignSlots(wn *wide.Node) [Width]int {
	var slots [Width]int
	for s := range slots {
		slots[s] = -1
	}

	center := wn.Bounds().Center()
	var cost [Width][Width]float32
	for ci, child := range wn.Used() {
		offset := child.Bounds().Center().Sub(center)
		for s := 0; s < Width; s++ {
			cost[ci][s] = offset.Dot(octantDir(s))
		}
	}

	var childAssigned [Width]bool
	for range wn.ChildCount {
		bestChild, bestSlot := -1, -1
		var bestCost float32
		for ci := range int(wn.ChildCount) {
			if childAssigned[ci] {
				continue
			}
			for s := 0; s < Width; s++ {
				if slots[s] >= 0 {
					continue
				}
				if bestChild < 0 || cost[ci][s] < bestCost {
					bestChild, bestSlot, bestCost = ci, s, cost[ci][s]
				}
			}
		}
		childAssigned[bestChild] = true
		slots[bestSlot] = bestChild
	}
	return slots
}

func octantDir(s int) types.Vec3 {
	dir := types.XYZ(1, 1, 1)
	for axis := 0; axis < 3; axis++ {
		if s&(1<<axis) != 0 {
			dir[axis] = -1
		}
	}
	return dir
}
