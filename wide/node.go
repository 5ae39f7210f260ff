package wide

import (
	"github.com/achilleasa/widebvh/types"
)

// Maximum number of children per node.
const Width = 8

type ChildKind uint8

// The slot kinds of a wide node.
const (
	Empty ChildKind = iota
	Interior
	Leaf
)

func (k ChildKind) String() string {
	switch k {
	case Interior:
		return "interior"
	case Leaf:
		return "leaf"
	}
	return "empty"
}

// A child slot of a wide node.
type Child struct {
	Min  types.Vec3
	Max  types.Vec3
	Kind ChildKind

	// Node index for interior children; offset into the index array for
	// leaves.
	Index uint32

	// Number of primitives for leaves.
	Count uint32
}

// Get child bounds.
func (c *Child) Bounds() types.AABB {
	return types.AABB{Min: c.Min, Max: c.Max}
}

// An 8-wide BVH node. Used slots are packed at the front of Children; the
// remaining slots are Empty.
type Node struct {
	Min types.Vec3
	Max types.Vec3

	Children   [Width]Child
	ChildCount uint32
}

// Get node bounds.
func (n *Node) Bounds() types.AABB {
	return types.AABB{Min: n.Min, Max: n.Max}
}

// Get the used child slots.
func (n *Node) Used() []Child {
	return n.Children[:n.ChildCount]
}

func (n *Node) addChild(c Child) {
	n.Children[n.ChildCount] = c
	n.ChildCount++
}
