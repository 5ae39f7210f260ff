package bvh

import (
	"context"
	"slices"
	"time"

	"github.com/achilleasa/widebvh/metrics"
	"github.com/achilleasa/widebvh/types"
	"golang.org/x/sync/errgroup"
)

// Levels with fewer nodes than this are refitted on the calling goroutine.
const minParallelLevel = 256

// Recompute the bounds of every node from the current primitive positions
// without changing the tree topology.
//
// Refitting is much cheaper than a rebuild but the resulting bounds may be
// looser than those of a fresh build once the primitives have moved far from
// where they were at build time.
//
// Refit must not run concurrently with traversal or another refit of the
// same tree. Trees built with BuildHQ cannot be refitted.
func (b *BVH) Refit() error {
	return b.RefitContext(context.Background())
}

// Refit the tree. Large trees are refitted one depth level at a time, from
// the deepest level up, with each level split across Workers goroutines.
//
// If ctx is canceled ctx.Err() is returned and the tree keeps its previous
// bounds.
func (b *BVH) RefitContext(ctx context.Context) error {
	if !b.Built() {
		return ErrNotBuilt
	}
	if !b.refittable {
		return ErrNotRefittable
	}

	start := time.Now()
	if len(b.nodes) < b.opts.ParallelThreshold || b.opts.Workers < 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Children are always stored after their parents.
		for i := len(b.nodes) - 1; i >= 0; i-- {
			b.refitNode(b.nodes, uint32(i))
		}
	} else {
		nodes := slices.Clone(b.nodes)
		for _, level := range slices.Backward(nodeLevels(nodes)) {
			if err := b.refitLevel(ctx, nodes, level); err != nil {
				return err
			}
		}
		b.nodes = nodes
	}
	b.generation++

	metrics.RefitTotal.Inc()
	metrics.RefitDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (b *BVH) refitLevel(ctx context.Context, nodes []Node, level []uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(level) < minParallelLevel {
		for _, idx := range level {
			b.refitNode(nodes, idx)
		}
		return nil
	}

	group, gctx := errgroup.WithContext(ctx)
	chunk := (len(level) + b.opts.Workers - 1) / b.opts.Workers
	for part := range slices.Chunk(level, chunk) {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, idx := range part {
				b.refitNode(nodes, idx)
			}
			return nil
		})
	}
	return group.Wait()
}

// Recompute the bounds of a single node. The children of interior nodes must
// already be up to date.
func (b *BVH) refitNode(nodes []Node, idx uint32) {
	n := &nodes[idx]
	if n.IsLeaf() {
		n.SetBounds(b.rangeBounds(n.LeftFirst, n.Count))
		return
	}

	bounds := types.EmptyAABB()
	bounds.Grow(nodes[n.Left()].Bounds())
	bounds.Grow(nodes[n.Right()].Bounds())
	n.SetBounds(bounds)
}

// Group node indices by depth. Entry d lists the nodes at depth d.
func nodeLevels(nodes []Node) [][]uint32 {
	depth := make([]uint32, len(nodes))
	var levels [][]uint32
	for i := range nodes {
		d := depth[i]
		if int(d) == len(levels) {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], uint32(i))

		if n := &nodes[i]; !n.IsLeaf() {
			depth[n.Left()] = d + 1
			depth[n.Right()] = d + 1
		}
	}
	return levels
}
