package wide

import (
	"github.com/achilleasa/widebvh/bvh"
)

type stackEntry struct {
	kind  ChildKind
	index uint32
	count uint32
	dist  float32
}

// Find the closest hit along ray. Children that pass the slab test are
// pushed far to near so the nearest child is visited first.
func (w *BVH) Intersect(ray *bvh.Ray) uint32 {
	if len(w.nodes) == 0 {
		return 0
	}

	var stackBuf [64]stackEntry
	stack := append(stackBuf[:0], stackEntry{kind: Interior, index: 0})
	var steps uint32
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.dist >= ray.Hit.T {
			continue
		}

		steps++
		if e.kind == Leaf {
			for _, tri := range w.indices[e.index : e.index+e.count] {
				w.store.Intersect(ray, tri)
			}
			continue
		}
		stack = w.pushChildren(ray, &w.nodes[e.index], stack)
	}
	return steps
}

// Returns true if any triangle intersects the ray inside its interval. The
// ray is not modified.
func (w *BVH) IsOccluded(ray *bvh.Ray) bool {
	if len(w.nodes) == 0 {
		return false
	}

	probe := *ray
	var stackBuf [64]stackEntry
	stack := append(stackBuf[:0], stackEntry{kind: Interior, index: 0})
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.kind == Leaf {
			for _, tri := range w.indices[e.index : e.index+e.count] {
				if w.store.Intersect(&probe, tri) {
					return true
				}
			}
			continue
		}
		stack = w.pushChildren(&probe, &w.nodes[e.index], stack)
	}
	return false
}

// Slab test the used children of n and push the ones that are hit, sorted
// so that the nearest ends up on top of the stack.
func (w *BVH) pushChildren(ray *bvh.Ray, n *Node, stack []stackEntry) []stackEntry {
	var hits [Width]stackEntry
	hitCount := 0
	for i := range n.Used() {
		c := &n.Children[i]
		dist := bvh.IntersectAABB(ray, c.Min, c.Max)
		if dist == bvh.Infinite {
			continue
		}

		// Insertion sort by descending distance.
		j := hitCount
		for ; j > 0 && hits[j-1].dist < dist; j-- {
			hits[j] = hits[j-1]
		}
		hits[j] = stackEntry{kind: c.Kind, index: c.Index, count: c.Count, dist: dist}
		hitCount++
	}
	return append(stack, hits[:hitCount]...)
}
