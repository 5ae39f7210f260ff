package bvh

import (
	"github.com/achilleasa/widebvh/types"
)

// A candidate partition produced by the binned SAH search.
type split struct {
	axis int

	// Items whose bin index is <= bin go to the left child.
	bin int

	cost       float32
	leftCount  int
	rightCount int

	leftBounds  types.AABB
	rightBounds types.AABB

	valid bool
}

// Overlap area of the two children of the split.
func (s *split) overlap() float32 {
	return s.leftBounds.Intersect(s.rightBounds).HalfArea()
}

// Centroid bins for all three axes. Bins span the bounds the binner was
// created with.
type binner struct {
	bins   int
	origin types.Vec3
	scale  types.Vec3

	counts [3][]int
	boxes  [3][]types.AABB
}

func newBinner(bins int, bounds types.AABB) *binner {
	bn := &binner{
		bins:   bins,
		origin: bounds.Min,
	}

	extent := bounds.Extent()
	for axis := 0; axis < 3; axis++ {
		// A flat axis maps everything to bin 0 and yields no candidates.
		if extent[axis] > 0 {
			bn.scale[axis] = float32(bins) / extent[axis]
		}
		bn.counts[axis] = make([]int, bins)
		bn.boxes[axis] = make([]types.AABB, bins)
		for i := range bn.boxes[axis] {
			bn.boxes[axis][i] = types.EmptyAABB()
		}
	}
	return bn
}

// Map a coordinate to its bin along axis.
func (bn *binner) binIndex(axis int, v float32) int {
	idx := int((v - bn.origin[axis]) * bn.scale[axis])
	if idx < 0 {
		return 0
	} else if idx >= bn.bins {
		return bn.bins - 1
	}
	return idx
}

// Get the world-space position of the plane that separates bin and bin+1.
func (bn *binner) plane(axis, bin int) float32 {
	return bn.origin[axis] + float32(bin+1)/bn.scale[axis]
}

// Add an item with the given centroid and bounds.
func (bn *binner) add(centroid types.Vec3, box types.AABB) {
	for axis := 0; axis < 3; axis++ {
		idx := bn.binIndex(axis, centroid[axis])
		bn.counts[axis][idx]++
		bn.boxes[axis][idx].Grow(box)
	}
}

// Sweep the bins and return the cheapest split with both sides non-empty.
// Ties keep the first candidate in axis then bin order.
func (bn *binner) best(nodeArea, traversalCost, intersectionCost float32) split {
	best := split{}
	if nodeArea <= 0 {
		return best
	}

	leftCounts := make([]int, bn.bins-1)
	leftAreas := make([]float32, bn.bins-1)
	leftBoxes := make([]types.AABB, bn.bins-1)
	for axis := 0; axis < 3; axis++ {
		if bn.scale[axis] == 0 {
			continue
		}

		count := 0
		box := types.EmptyAABB()
		for i := 0; i < bn.bins-1; i++ {
			count += bn.counts[axis][i]
			box.Grow(bn.boxes[axis][i])
			leftCounts[i] = count
			leftAreas[i] = box.HalfArea()
			leftBoxes[i] = box
		}

		count = 0
		box = types.EmptyAABB()
		for i := bn.bins - 1; i > 0; i-- {
			count += bn.counts[axis][i]
			box.Grow(bn.boxes[axis][i])

			k := i - 1
			if leftCounts[k] == 0 || count == 0 {
				continue
			}

			cost := traversalCost + intersectionCost*(leftAreas[k]*float32(leftCounts[k])+box.HalfArea()*float32(count))/nodeArea
			if best.valid && (cost > best.cost || (cost == best.cost && !earlier(axis, k, best.axis, best.bin))) {
				continue
			}
			best = split{
				axis:        axis,
				bin:         k,
				cost:        cost,
				leftCount:   leftCounts[k],
				rightCount:  count,
				leftBounds:  leftBoxes[k],
				rightBounds: box,
				valid:       true,
			}
		}
	}
	return best
}

func earlier(axis, bin, otherAxis, otherBin int) bool {
	return axis < otherAxis || (axis == otherAxis && bin < otherBin)
}
