package bvh

// Initial traversal stack capacity. The stack grows for deeper trees.
const stackSize = 64

type stackEntry struct {
	node uint32
	dist float32
}

// Find the closest hit along ray. The near child is visited first and the
// far child is deferred on a stack together with its entry distance so it can
// be culled once a closer hit is known.
func (b *BVH) Intersect(ray *Ray) uint32 {
	if len(b.nodes) == 0 {
		return 0
	}

	var stackBuf [stackSize]stackEntry
	stack := stackBuf[:0]
	var steps uint32

	if IntersectAABB(ray, b.nodes[0].Min, b.nodes[0].Max) == Infinite {
		return 1
	}

	node := &b.nodes[0]
	for {
		steps++
		if node.IsLeaf() {
			for _, tri := range b.indices[node.LeftFirst : node.LeftFirst+node.Count] {
				b.store.Intersect(ray, tri)
			}
		} else {
			near, far := &b.nodes[node.Left()], &b.nodes[node.Right()]
			nearIndex, farIndex := node.Left(), node.Right()
			dNear := IntersectAABB(ray, near.Min, near.Max)
			dFar := IntersectAABB(ray, far.Min, far.Max)
			if dNear > dFar {
				dNear, dFar = dFar, dNear
				near, far = far, near
				nearIndex, farIndex = farIndex, nearIndex
			}

			if dNear != Infinite {
				if dFar != Infinite {
					stack = append(stack, stackEntry{farIndex, dFar})
				}
				node = near
				continue
			}
		}

		// Pop the next node that may still hold a closer hit.
		node = nil
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.dist < ray.Hit.T {
				node = &b.nodes[top.node]
				break
			}
		}
		if node == nil {
			return steps
		}
	}
}

// Returns true if any triangle intersects the ray inside its interval. The
// ray is not modified.
func (b *BVH) IsOccluded(ray *Ray) bool {
	if len(b.nodes) == 0 {
		return false
	}

	probe := *ray
	var stackBuf [stackSize]uint32
	stack := append(stackBuf[:0], 0)
	for len(stack) > 0 {
		node := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if IntersectAABB(&probe, node.Min, node.Max) == Infinite {
			continue
		}

		if node.IsLeaf() {
			for _, tri := range b.indices[node.LeftFirst : node.LeftFirst+node.Count] {
				if b.store.Intersect(&probe, tri) {
					return true
				}
			}
			continue
		}
		stack = append(stack, node.Right(), node.Left())
	}
	return false
}
