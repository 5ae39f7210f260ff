package cwbvh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/types"
)

// Size of a packed primitive record (3 storage units).
const PrimitiveSize = 3 * UnitSize

// Primitive is a triangle stored in the form consumed by the intersection
// routine. Its packed layout is little-endian:
//
//	offset  size  field
//	     0    12  Edge1  v1 - v0
//	    12     4  padding
//	    16    12  Edge2  v2 - v0
//	    28     4  padding
//	    32    12  V0
//	    44     4  Index  triangle index in the source store
type Primitive struct {
	Edge1 types.Vec3
	Edge2 types.Vec3
	V0    types.Vec3
	Index uint32
}

// Create the record of triangle tri.
func NewPrimitive(store bvh.Store, tri uint32) Primitive {
	v0, v1, v2 := store.Triangle(tri)
	return Primitive{
		Edge1: v1.Sub(v0),
		Edge2: v2.Sub(v0),
		V0:    v0,
		Index: tri,
	}
}

// Get the triangle bounds reconstructed from the record.
func (p *Primitive) Bounds() types.AABB {
	b := types.EmptyAABB()
	b.GrowPoint(p.V0)
	b.GrowPoint(p.V0.Add(p.Edge1))
	b.GrowPoint(p.V0.Add(p.Edge2))
	return b
}

// Intersect the primitive and record the hit if it is closer than the
// current one.
func (p *Primitive) Intersect(ray *bvh.Ray) bool {
	t, u, v, ok := bvh.IntersectTriangle(ray, p.V0, p.Edge1, p.Edge2)
	if !ok {
		return false
	}
	ray.Hit = bvh.Intersection{T: t, U: u, V: v, Prim: p.Index}
	return true
}

// Pack primitive into dst which must hold at least PrimitiveSize bytes.
func PackPrimitive(dst []byte, p *Primitive) {
	_ = dst[PrimitiveSize-1]
	putVec3(dst[0:12], p.Edge1)
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	putVec3(dst[16:28], p.Edge2)
	binary.LittleEndian.PutUint32(dst[28:32], 0)
	putVec3(dst[32:44], p.V0)
	binary.LittleEndian.PutUint32(dst[44:48], p.Index)
}

// Unpack a primitive packed by PackPrimitive.
func UnpackPrimitive(src []byte) (Primitive, error) {
	if len(src) < PrimitiveSize {
		return Primitive{}, fmt.Errorf("%w: primitive record needs %d bytes; got %d", bvh.ErrInvalidInput, PrimitiveSize, len(src))
	}
	return Primitive{
		Edge1: getVec3(src[0:12]),
		Edge2: getVec3(src[16:28]),
		V0:    getVec3(src[32:44]),
		Index: binary.LittleEndian.Uint32(src[44:48]),
	}, nil
}

func putVec3(dst []byte, v types.Vec3) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(v[2]))
}

func getVec3(src []byte) types.Vec3 {
	return types.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
		math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
		math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
	}
}
