package bvh

import (
	"context"
	"slices"
	"time"

	"github.com/achilleasa/widebvh/log"
	"github.com/achilleasa/widebvh/metrics"
	"github.com/achilleasa/widebvh/types"
)

// A triangle reference with bounds clipped to the region it was split into.
type reference struct {
	tri    uint32
	bounds types.AABB
}

type hqBuilder struct {
	logger log.Logger
	opts   BuildOptions
	ctx    context.Context
	store  Store

	// Area of the root bounds; spatial splits are only considered for nodes
	// whose object split children overlap by more than SpatialAlpha of it.
	rootArea float32

	// Number of references that may still be created by spatial splits.
	budget int

	nodes   []Node
	indices []uint32
}

// Build a higher quality tree using spatial splits.
func (b *BVH) BuildHQ(store Store) error {
	return b.BuildHQContext(context.Background(), store)
}

// Build a higher quality tree using spatial splits. Triangles straddling a
// spatial split plane are referenced from both sides so the index array may
// be longer than the triangle count, and node bounds enclose clipped
// triangle fragments. Trees built this way cannot be refitted.
//
// The build runs on the calling goroutine. If ctx is canceled ctx.Err() is
// returned and the tree keeps its previous contents.
func (b *BVH) BuildHQContext(ctx context.Context, store Store) error {
	if err := store.Validate(); err != nil {
		return err
	}
	if err := b.opts.Validate(); err != nil {
		return err
	}

	start := time.Now()
	triCount := store.TriangleCount()
	refs := make([]reference, triCount)
	rootBounds := types.EmptyAABB()
	for tri := range refs {
		refs[tri] = reference{tri: uint32(tri), bounds: store.Bounds(uint32(tri))}
		rootBounds.Grow(refs[tri].bounds)
	}

	bld := &hqBuilder{
		logger:   b.logger,
		opts:     b.opts,
		ctx:      ctx,
		store:    store,
		rootArea: rootBounds.HalfArea(),
		budget:   int(b.opts.SpatialBudget * float32(triCount)),
		nodes:    make([]Node, 1, 2*triCount),
		indices:  make([]uint32, 0, triCount),
	}
	if err := bld.subdivide(0, refs); err != nil {
		return err
	}

	nodes := compactNodes(bld.nodes)
	b.commit(store, nodes, bld.indices, false)

	elapsed := time.Since(start)
	metrics.BuildDuration.WithLabelValues(metrics.StageBinaryHQ).Observe(elapsed.Seconds())
	metrics.Nodes.WithLabelValues(metrics.StageBinaryHQ).Set(float64(len(nodes)))
	metrics.Primitives.WithLabelValues(metrics.StageBinaryHQ).Set(float64(len(bld.indices)))

	st := collectStats(nodes, b.opts)
	b.logger.Debugf(
		"SBVH tree build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d, refs: %d (%d triangles)",
		elapsed.Nanoseconds()/1e6, st.MaxDepth, st.Nodes, st.Leaves, len(bld.indices), triCount,
	)
	return nil
}

func (bld *hqBuilder) subdivide(nodeIndex uint32, refs []reference) error {
	if err := bld.ctx.Err(); err != nil {
		return err
	}

	bounds := types.EmptyAABB()
	for i := range refs {
		bounds.Grow(refs[i].bounds)
	}
	bld.nodes[nodeIndex].SetBounds(bounds)

	count := len(refs)
	if count <= bld.opts.LeafThreshold {
		bld.makeLeaf(nodeIndex, refs)
		return nil
	}

	nodeArea := bounds.HalfArea()
	bn := newBinner(bld.opts.Bins, bounds)
	for i := range refs {
		bn.add(refs[i].bounds.Center(), refs[i].bounds)
	}
	objSplit := bn.best(nodeArea, bld.opts.TraversalCost, bld.opts.IntersectionCost)

	var left, right []reference
	bestCost := objSplit.cost
	if objSplit.valid && objSplit.overlap() > bld.opts.SpatialAlpha*bld.rootArea && bld.budget > 0 {
		spatial := bld.findSpatialSplit(refs, bounds, nodeArea)
		if spatial.valid && spatial.cost < objSplit.cost {
			left, right = bld.spatialPartition(refs, spatial.axis, bn.plane(spatial.axis, spatial.bin))
			dup := len(left) + len(right) - count
			if len(left) == 0 || len(right) == 0 || len(left) == count || len(right) == count || dup > bld.budget {
				left, right = nil, nil
			} else {
				bld.budget -= dup
				bestCost = spatial.cost
			}
		}
	}

	if left == nil {
		leafCost := bld.opts.IntersectionCost * float32(count)
		if (!objSplit.valid || objSplit.cost >= leafCost) && count <= bld.opts.MaxLeafSize {
			bld.makeLeaf(nodeIndex, refs)
			return nil
		}
		if objSplit.valid {
			left, right = objectPartition(refs, func(r *reference) bool {
				return bn.binIndex(objSplit.axis, r.bounds.Center()[objSplit.axis]) <= objSplit.bin
			})
		} else {
			left, right = medianPartition(refs)
		}
	} else if bestCost >= bld.opts.IntersectionCost*float32(count) && count <= bld.opts.MaxLeafSize {
		// Spatial splits are only taken when they beat the leaf too.
		bld.budget += len(left) + len(right) - count
		bld.makeLeaf(nodeIndex, refs)
		return nil
	}

	childIndex := uint32(len(bld.nodes))
	bld.nodes = append(bld.nodes, Node{}, Node{})
	bld.nodes[nodeIndex].SetChildNodes(childIndex)

	if err := bld.subdivide(childIndex, left); err != nil {
		return err
	}
	return bld.subdivide(childIndex+1, right)
}

func (bld *hqBuilder) makeLeaf(nodeIndex uint32, refs []reference) {
	bld.nodes[nodeIndex].SetPrimitives(uint32(len(bld.indices)), uint32(len(refs)))
	for i := range refs {
		bld.indices = append(bld.indices, refs[i].tri)
	}
}

// Evaluate spatial split planes at the bin boundaries of bounds. Each
// reference is clipped against every bin it overlaps; entry and exit counts
// give the number of references on either side of each plane.
func (bld *hqBuilder) findSpatialSplit(refs []reference, bounds types.AABB, nodeArea float32) split {
	best := split{}
	if nodeArea <= 0 {
		return best
	}

	bins := bld.opts.Bins
	extent := bounds.Extent()
	entries := make([]int, bins)
	exits := make([]int, bins)
	boxes := make([]types.AABB, bins)
	leftCounts := make([]int, bins-1)
	leftAreas := make([]float32, bins-1)
	leftBoxes := make([]types.AABB, bins-1)

	for axis := 0; axis < 3; axis++ {
		if extent[axis] <= 0 {
			continue
		}
		binWidth := extent[axis] / float32(bins)
		binOf := func(v float32) int {
			idx := int((v - bounds.Min[axis]) / binWidth)
			return max(0, min(bins-1, idx))
		}

		clear(entries)
		clear(exits)
		for i := range boxes {
			boxes[i] = types.EmptyAABB()
		}

		for i := range refs {
			r := &refs[i]
			first, last := binOf(r.bounds.Min[axis]), binOf(r.bounds.Max[axis])
			entries[first]++
			exits[last]++
			if first == last {
				boxes[first].Grow(r.bounds)
				continue
			}
			for b := first; b <= last; b++ {
				lo := bounds.Min[axis] + float32(b)*binWidth
				hi := lo + binWidth
				if b == last {
					hi = bounds.Max[axis]
				}
				boxes[b].Grow(bld.clipReference(r, axis, lo, hi))
			}
		}

		count := 0
		box := types.EmptyAABB()
		for i := 0; i < bins-1; i++ {
			count += entries[i]
			box.Grow(boxes[i])
			leftCounts[i] = count
			leftAreas[i] = box.HalfArea()
			leftBoxes[i] = box
		}

		count = 0
		box = types.EmptyAABB()
		for i := bins - 1; i > 0; i-- {
			count += exits[i]
			box.Grow(boxes[i])

			k := i - 1
			if leftCounts[k] == 0 || count == 0 || leftCounts[k] == len(refs) || count == len(refs) {
				continue
			}
			cost := bld.opts.TraversalCost + bld.opts.IntersectionCost*(leftAreas[k]*float32(leftCounts[k])+box.HalfArea()*float32(count))/nodeArea
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

// Split references at plane. References straddling the plane are clipped
// into one reference per side.
func (bld *hqBuilder) spatialPartition(refs []reference, axis int, plane float32) (left, right []reference) {
	left = make([]reference, 0, len(refs))
	right = make([]reference, 0, len(refs))
	for i := range refs {
		r := &refs[i]
		switch {
		case r.bounds.Max[axis] <= plane:
			left = append(left, *r)
		case r.bounds.Min[axis] >= plane:
			right = append(right, *r)
		default:
			lb := bld.clipReference(r, axis, r.bounds.Min[axis], plane)
			rb := bld.clipReference(r, axis, plane, r.bounds.Max[axis])
			if !lb.IsEmpty() {
				left = append(left, reference{tri: r.tri, bounds: lb})
			}
			if !rb.IsEmpty() {
				right = append(right, reference{tri: r.tri, bounds: rb})
			}
			if lb.IsEmpty() && rb.IsEmpty() {
				left = append(left, *r)
			}
		}
	}
	return left, right
}

// Get the bounds of the part of a reference's triangle that lies inside the
// slab [lo, hi] along axis, limited to the reference bounds.
func (bld *hqBuilder) clipReference(r *reference, axis int, lo, hi float32) types.AABB {
	v0, v1, v2 := bld.store.Triangle(r.tri)
	box := clipTriangle(v0, v1, v2, axis, lo, hi)
	if box.IsEmpty() {
		return box
	}
	return box.Intersect(r.bounds)
}

// Clip a triangle against the slab [lo, hi] along axis and return the bounds
// of the resulting polygon.
func clipTriangle(v0, v1, v2 types.Vec3, axis int, lo, hi float32) types.AABB {
	var bufA, bufB [9]types.Vec3
	poly := append(bufA[:0], v0, v1, v2)
	poly = clipPolygon(poly, bufB[:0], axis, lo, 1)
	poly = clipPolygon(poly, bufA[:0], axis, hi, -1)

	box := types.EmptyAABB()
	for _, p := range poly {
		box.GrowPoint(p)
	}
	return box
}

// Clip a convex polygon against the half space sign*(p[axis]-plane) >= 0.
func clipPolygon(in, out []types.Vec3, axis int, plane, sign float32) []types.Vec3 {
	n := len(in)
	for i := 0; i < n; i++ {
		a, b := in[i], in[(i+1)%n]
		da, db := sign*(a[axis]-plane), sign*(b[axis]-plane)
		if da >= 0 {
			out = append(out, a)
		}
		if (da < 0 && db > 0) || (da > 0 && db < 0) {
			t := da / (da - db)
			p := a.Add(b.Sub(a).Mul(t))
			// Snap to the plane to avoid drifting outside the slab.
			p[axis] = plane
			out = append(out, p)
		}
	}
	return out
}

func objectPartition(refs []reference, goesLeft func(r *reference) bool) (left, right []reference) {
	left = make([]reference, 0, len(refs))
	right = make([]reference, 0, len(refs))
	for i := range refs {
		if goesLeft(&refs[i]) {
			left = append(left, refs[i])
		} else {
			right = append(right, refs[i])
		}
	}
	return left, right
}

// Split references at their median centroid along the longest centroid axis.
func medianPartition(refs []reference) (left, right []reference) {
	sorted := slices.Clone(refs)

	centroidBounds := types.EmptyAABB()
	for i := range sorted {
		centroidBounds.GrowPoint(sorted[i].bounds.Center())
	}
	extent := centroidBounds.Extent()
	if extent.MaxComponent() > 0 {
		axis := extent.MaxAxis()
		slices.SortStableFunc(sorted, func(a, b reference) int {
			ca, cb := a.bounds.Center()[axis], b.bounds.Center()[axis]
			switch {
			case ca < cb:
				return -1
			case ca > cb:
				return 1
			case a.tri < b.tri:
				return -1
			case a.tri > b.tri:
				return 1
			}
			return 0
		})
	}
	half := len(sorted) / 2
	return sorted[:half], sorted[half:]
}
