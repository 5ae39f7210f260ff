package bvh

import (
	"fmt"

	"github.com/achilleasa/widebvh/types"
)

// Split every leaf holding more than maxPrims primitives until all leaves
// comply. A leaf is split by halving its primitive range; the new children
// are appended to the node array. Child bounds are the union of their
// triangle bounds, clipped to the parent bounds.
func (b *BVH) SplitLeaves(maxPrims uint32) error {
	if maxPrims < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidLeafSize, maxPrims)
	}
	if !b.Built() {
		return ErrNotBuilt
	}

	splits := 0
	// The loop also visits the nodes appended while splitting.
	for i := 0; i < len(b.nodes); i++ {
		n := b.nodes[i]
		if n.Count <= maxPrims {
			continue
		}

		half := n.Count / 2
		parentBounds := n.Bounds()
		left := Node{}
		left.SetBounds(b.rangeBounds(n.LeftFirst, half).Intersect(parentBounds))
		left.SetPrimitives(n.LeftFirst, half)
		right := Node{}
		right.SetBounds(b.rangeBounds(n.LeftFirst+half, n.Count-half).Intersect(parentBounds))
		right.SetPrimitives(n.LeftFirst+half, n.Count-half)

		childIndex := uint32(len(b.nodes))
		b.nodes = append(b.nodes, left, right)
		b.nodes[i].SetChildNodes(childIndex)
		splits++
	}

	if splits > 0 {
		b.generation++
		b.logger.Debugf("split %d leaves larger than %d primitives", splits, maxPrims)
	}
	return nil
}

// Re-layout the node array depth-first so that subtrees occupy contiguous
// runs of nodes. Siblings stay adjacent.
func (b *BVH) Compact() error {
	if !b.Built() {
		return ErrNotBuilt
	}
	b.nodes = compactNodes(b.nodes)
	b.generation++
	return nil
}

// Union of the triangle bounds of an index range.
func (b *BVH) rangeBounds(first, count uint32) types.AABB {
	bounds := types.EmptyAABB()
	for _, tri := range b.indices[first : first+count] {
		bounds.Grow(b.store.Bounds(tri))
	}
	return bounds
}
