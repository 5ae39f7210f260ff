package bvh

import (
	"fmt"

	"github.com/achilleasa/widebvh/types"
)

// Store is the caller-owned triangle vertex array the hierarchies index into.
// Triangle i occupies entries 3i, 3i+1 and 3i+2; the W component is ignored.
//
// Trees borrow the store; they never copy or modify it. The caller must keep
// it alive (and unchanged, unless a refit follows) for as long as any tree
// built over it is traversed.
type Store []types.Vec4

// Validate vertex slice and wrap it as a Store.
func NewStore(vertices []types.Vec4) (Store, error) {
	store := Store(vertices)
	if err := store.Validate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Check that the store is non-empty and triangulated.
func (s Store) Validate() error {
	if len(s) == 0 {
		return ErrEmptyStore
	}
	if len(s)%3 != 0 {
		return fmt.Errorf("%w: got %d vertices", ErrNotTriangulated, len(s))
	}
	return nil
}

// Number of triangles in the store.
func (s Store) TriangleCount() int {
	return len(s) / 3
}

// Get the vertices of triangle tri.
func (s Store) Triangle(tri uint32) (v0, v1, v2 types.Vec3) {
	base := 3 * tri
	return s[base].Vec3(), s[base+1].Vec3(), s[base+2].Vec3()
}

// Get the bounding box of triangle tri.
func (s Store) Bounds(tri uint32) types.AABB {
	v0, v1, v2 := s.Triangle(tri)
	return types.AABB{
		Min: types.MinVec3(types.MinVec3(v0, v1), v2),
		Max: types.MaxVec3(types.MaxVec3(v0, v1), v2),
	}
}

// Get the centroid of triangle tri.
func (s Store) Centroid(tri uint32) types.Vec3 {
	v0, v1, v2 := s.Triangle(tri)
	return v0.Add(v1).Add(v2).Mul(1.0 / 3.0)
}
