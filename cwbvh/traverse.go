package cwbvh

import (
	"github.com/achilleasa/widebvh/bvh"
)

type stackEntry struct {
	leaf  bool
	index uint32
	count uint32
	dist  float32
}

// Find the closest hit along ray. Child bounds are dequantized on the fly,
// so this may visit more nodes than the wide tree it was encoded from but
// reports the same hits.
func (c *BVH) Intersect(ray *bvh.Ray) uint32 {
	if len(c.nodes) == 0 {
		return 0
	}

	var stackBuf [64]stackEntry
	stack := append(stackBuf[:0], stackEntry{index: 0})
	var steps uint32
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.dist >= ray.Hit.T {
			continue
		}

		steps++
		if e.leaf {
			for i := e.index; i < e.index+e.count; i++ {
				c.prims[i].Intersect(ray)
			}
			continue
		}
		stack = pushChildren(ray, &c.nodes[e.index], stack)
	}
	return steps
}

// Returns true if any primitive intersects the ray inside its interval. The
// ray is not modified.
func (c *BVH) IsOccluded(ray *bvh.Ray) bool {
	if len(c.nodes) == 0 {
		return false
	}

	probe := *ray
	var stackBuf [64]stackEntry
	stack := append(stackBuf[:0], stackEntry{index: 0})
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.leaf {
			for i := e.index; i < e.index+e.count; i++ {
				if c.prims[i].Intersect(&probe) {
					return true
				}
			}
			continue
		}
		stack = pushChildren(&probe, &c.nodes[e.index], stack)
	}
	return false
}

// Slab test the used slots of n and push the hit children far to near.
func pushChildren(ray *bvh.Ray, n *Node, stack []stackEntry) []stackEntry {
	var hits [Width]stackEntry
	hitCount := 0
	for s := 0; s < Width; s++ {
		if !n.Used(s) {
			continue
		}
		bounds := n.ChildBounds(s)
		dist := bvh.IntersectAABB(ray, bounds.Min, bounds.Max)
		if dist == bvh.Infinite {
			continue
		}

		entry := stackEntry{dist: dist}
		if n.IsInterior(s) {
			entry.index = n.ChildNode(s)
		} else {
			entry.leaf = true
			entry.index, entry.count = n.LeafRange(s)
		}

		j := hitCount
		for ; j > 0 && hits[j-1].dist < dist; j-- {
			hits[j] = hits[j-1]
		}
		hits[j] = entry
		hitCount++
	}
	return append(stack, hits[:hitCount]...)
}
