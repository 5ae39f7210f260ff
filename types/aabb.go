package types

import "math"

// An axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// Create an empty (inverted) AABB that any point or box can grow.
func EmptyAABB() AABB {
	return AABB{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Returns true if the box has not been grown by any point.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Grow box to include point.
func (b *AABB) GrowPoint(p Vec3) {
	b.Min = MinVec3(b.Min, p)
	b.Max = MaxVec3(b.Max, p)
}

// Grow box to include another box.
func (b *AABB) Grow(other AABB) {
	b.Min = MinVec3(b.Min, other.Min)
	b.Max = MaxVec3(b.Max, other.Max)
}

// Get the union of two boxes.
func (b AABB) Union(other AABB) AABB {
	return AABB{MinVec3(b.Min, other.Min), MaxVec3(b.Max, other.Max)}
}

// Get the intersection of two boxes. The result may be empty.
func (b AABB) Intersect(other AABB) AABB {
	return AABB{MaxVec3(b.Min, other.Min), MinVec3(b.Max, other.Max)}
}

// Get the box side lengths.
func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the box center.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Calculate half of the box surface area. Empty boxes have zero area.
//
// The SAH only compares area ratios so the 2x factor is omitted.
func (b AABB) HalfArea() float32 {
	if b.IsEmpty() {
		return 0
	}
	side := b.Extent()
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}

// Returns true if this box fully contains other. Empty boxes are contained by
// any box.
func (b AABB) Contains(other AABB) bool {
	if other.IsEmpty() {
		return true
	}
	return b.Min[0] <= other.Min[0] && b.Min[1] <= other.Min[1] && b.Min[2] <= other.Min[2] &&
		b.Max[0] >= other.Max[0] && b.Max[1] >= other.Max[1] && b.Max[2] >= other.Max[2]
}
