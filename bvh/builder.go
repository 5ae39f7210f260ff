package bvh

import (
	"context"
	"slices"
	"time"

	"github.com/achilleasa/widebvh/log"
	"github.com/achilleasa/widebvh/metrics"
	"github.com/achilleasa/widebvh/types"
	"golang.org/x/sync/errgroup"
)

type builder struct {
	logger log.Logger
	opts   BuildOptions

	ctx   context.Context
	group *errgroup.Group

	// Per-triangle bounds and centroids indexed by triangle.
	bounds    []types.AABB
	centroids []types.Vec3

	indices []uint32

	// Pre-sized to 2N-1 entries. Every subtree owns a reserved slice of it
	// so concurrent subtrees never write to the same slot.
	nodes []Node
}

// Build the tree over store using the binned SAH builder.
func (b *BVH) Build(store Store) error {
	return b.BuildContext(context.Background(), store)
}

// Build the tree over store using the binned SAH builder. Subtrees with at
// least ParallelThreshold primitives are built concurrently.
//
// If ctx is canceled no further subtrees are scheduled and ctx.Err() is
// returned. On error the tree keeps its previous contents.
func (b *BVH) BuildContext(ctx context.Context, store Store) error {
	if err := store.Validate(); err != nil {
		return err
	}
	if err := b.opts.Validate(); err != nil {
		return err
	}

	start := time.Now()
	triCount := store.TriangleCount()
	bld := &builder{
		logger:    b.logger,
		opts:      b.opts,
		bounds:    make([]types.AABB, triCount),
		centroids: make([]types.Vec3, triCount),
		indices:   make([]uint32, triCount),
		nodes:     make([]Node, 2*triCount-1),
	}
	for tri := range bld.indices {
		bld.indices[tri] = uint32(tri)
		bld.bounds[tri] = store.Bounds(uint32(tri))
		bld.centroids[tri] = bld.bounds[tri].Center()
	}

	var err error
	if b.opts.Workers > 1 && triCount >= b.opts.ParallelThreshold {
		// The calling goroutine counts as one of the workers.
		var gctx context.Context
		bld.group, gctx = errgroup.WithContext(ctx)
		bld.group.SetLimit(b.opts.Workers - 1)
		bld.ctx = gctx
		err = bld.subdivide(0, 0, uint32(triCount), 1)
		if waitErr := bld.group.Wait(); err == nil {
			err = waitErr
		}
	} else {
		bld.ctx = ctx
		err = bld.subdivide(0, 0, uint32(triCount), 1)
	}
	if err != nil {
		return err
	}

	nodes := compactNodes(bld.nodes)
	b.commit(store, nodes, bld.indices, true)

	elapsed := time.Since(start)
	metrics.BuildDuration.WithLabelValues(metrics.StageBinary).Observe(elapsed.Seconds())
	metrics.Nodes.WithLabelValues(metrics.StageBinary).Set(float64(len(nodes)))
	metrics.Primitives.WithLabelValues(metrics.StageBinary).Set(float64(len(bld.indices)))

	st := collectStats(nodes, b.opts)
	b.logger.Debugf(
		"BVH tree build time: %d ms, maxDepth: %d, nodes: %d, leafs: %d",
		elapsed.Nanoseconds()/1e6, st.MaxDepth, st.Nodes, st.Leaves,
	)
	return nil
}

// Partition the index range [first, first+count) into the subtree rooted at
// nodeIndex. The subtree's descendants are written to slots starting at
// reserve; a subtree with n primitives never uses more than 2n-2 of them.
func (bld *builder) subdivide(nodeIndex, first, count, reserve uint32) error {
	if err := bld.ctx.Err(); err != nil {
		return err
	}

	bounds := types.EmptyAABB()
	for _, tri := range bld.indices[first : first+count] {
		bounds.Grow(bld.bounds[tri])
	}

	node := &bld.nodes[nodeIndex]
	node.SetBounds(bounds)
	if int(count) <= bld.opts.LeafThreshold {
		node.SetPrimitives(first, count)
		return nil
	}

	bn := newBinner(bld.opts.Bins, bounds)
	for _, tri := range bld.indices[first : first+count] {
		bn.add(bld.centroids[tri], bld.bounds[tri])
	}
	best := bn.best(bounds.HalfArea(), bld.opts.TraversalCost, bld.opts.IntersectionCost)

	leafCost := bld.opts.IntersectionCost * float32(count)
	if (!best.valid || best.cost >= leafCost) && int(count) <= bld.opts.MaxLeafSize {
		node.SetPrimitives(first, count)
		return nil
	}

	var leftCount uint32
	if best.valid {
		leftCount = bld.partition(first, count, func(tri uint32) bool {
			return bn.binIndex(best.axis, bld.centroids[tri][best.axis]) <= best.bin
		})
	} else {
		leftCount = bld.medianSplit(first, count)
	}

	left := reserve
	node.SetChildNodes(left)
	rightCount := count - leftCount

	if bld.group != nil && int(count) >= bld.opts.ParallelThreshold {
		forked := bld.group.TryGo(func() error {
			return bld.subdivide(left, first, leftCount, reserve+2)
		})
		if !forked {
			if err := bld.subdivide(left, first, leftCount, reserve+2); err != nil {
				return err
			}
		}
	} else if err := bld.subdivide(left, first, leftCount, reserve+2); err != nil {
		return err
	}
	return bld.subdivide(left+1, first+leftCount, rightCount, reserve+2*leftCount)
}

// Reorder the index range so that items matching goesLeft come first and
// return their count.
func (bld *builder) partition(first, count uint32, goesLeft func(tri uint32) bool) uint32 {
	i, j := int(first), int(first+count)-1
	for i <= j {
		if goesLeft(bld.indices[i]) {
			i++
			continue
		}
		bld.indices[i], bld.indices[j] = bld.indices[j], bld.indices[i]
		j--
	}
	return uint32(i) - first
}

// Split the range at its median centroid along the longest centroid axis.
// Ties are ordered by triangle index. If all centroids coincide the range
// is simply halved.
func (bld *builder) medianSplit(first, count uint32) uint32 {
	rng := bld.indices[first : first+count]

	centroidBounds := types.EmptyAABB()
	for _, tri := range rng {
		centroidBounds.GrowPoint(bld.centroids[tri])
	}

	extent := centroidBounds.Extent()
	if extent.MaxComponent() > 0 {
		axis := extent.MaxAxis()
		slices.SortFunc(rng, func(a, b uint32) int {
			ca, cb := bld.centroids[a][axis], bld.centroids[b][axis]
			switch {
			case ca < cb:
				return -1
			case ca > cb:
				return 1
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		})
	}
	return count / 2
}

// Re-layout a node array depth-first starting at the root. Unreachable slots
// are dropped. Siblings stay adjacent and every child is stored after its
// parent.
func compactNodes(src []Node) []Node {
	type pending struct {
		src, dst uint32
	}

	out := make([]Node, 1, len(src))
	out[0] = src[0]
	stack := []pending{{0, 0}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &src[p.src]
		if n.IsLeaf() {
			continue
		}

		left := uint32(len(out))
		out = append(out, src[n.Left()], src[n.Right()])
		out[p.dst].LeftFirst = left
		stack = append(stack, pending{n.Right(), left + 1}, pending{n.Left(), left})
	}
	return out
}
