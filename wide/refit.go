package wide

import (
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/types"
)

// Recompute all child and node bounds from the current primitive positions
// without changing the topology. The same trade-off as bvh.Refit applies:
// bounds may end up looser than those of a fresh conversion.
//
// Refit must not run concurrently with traversal.
func (w *BVH) Refit() error {
	if !w.Built() {
		return bvh.ErrNotBuilt
	}
	if !w.refittable {
		return bvh.ErrNotRefittable
	}

	// Interior children are always stored after their parents.
	for i := len(w.nodes) - 1; i >= 0; i-- {
		n := &w.nodes[i]
		nodeBounds := types.EmptyAABB()
		for j := range n.Used() {
			c := &n.Children[j]
			var bounds types.AABB
			if c.Kind == Leaf {
				bounds = types.EmptyAABB()
				for _, tri := range w.indices[c.Index : c.Index+c.Count] {
					bounds.Grow(w.store.Bounds(tri))
				}
			} else {
				bounds = w.nodes[c.Index].Bounds()
			}
			c.Min, c.Max = bounds.Min, bounds.Max
			nodeBounds.Grow(bounds)
		}
		n.Min, n.Max = nodeBounds.Min, nodeBounds.Max
	}
	w.generation++
	return nil
}
