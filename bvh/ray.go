package bvh

import (
	"math"

	"github.com/achilleasa/widebvh/types"
)

const (
	// Distance used as "no hit yet". This is not math.MaxFloat32 so that
	// slab math on it never overflows to +Inf.
	Infinite float32 = 1e30

	// Primitive index reported by rays that did not hit anything.
	NoHit = ^uint32(0)

	// Direction components smaller than this are treated as zero when
	// computing the reciprocal direction.
	rcpEpsilon = 1e-12

	// Determinant threshold below which a ray is considered parallel to a
	// triangle.
	parallelEpsilon = 1e-12
)

// Intersection holds the closest hit found so far for a ray.
type Intersection struct {
	// Parametric distance along the ray. Doubles as the ray's tmax.
	T float32

	// Barycentric coordinates of the hit.
	U float32
	V float32

	// Index of the hit triangle in the primitive store or NoHit.
	Prim uint32
}

// Ray is the query type shared by all hierarchy layouts.
//
// The valid parametric interval is (TMin, Hit.T). Closest-hit traversal
// narrows Hit.T as closer hits are found.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3

	// Reciprocal direction used by slab tests.
	RDir types.Vec3

	TMin float32
	Hit  Intersection
}

// Create a ray with the interval (0, Infinite). The direction does not need to
// be normalized.
func NewRay(origin, dir types.Vec3) Ray {
	return NewRayInterval(origin, dir, 0, Infinite)
}

// Create a ray with a caller-supplied (tmin, tmax) interval.
func NewRayInterval(origin, dir types.Vec3, tmin, tmax float32) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir,
		RDir:   types.Vec3{safeRcp(dir[0]), safeRcp(dir[1]), safeRcp(dir[2])},
		TMin:   tmin,
		Hit: Intersection{
			T:    tmax,
			Prim: NoHit,
		},
	}
}

// Returns true if the ray has recorded a hit.
func (r *Ray) Hits() bool {
	return r.Hit.Prim != NoHit
}

// Reset the hit record so the ray can be traced again with interval
// (TMin, tmax).
func (r *Ray) Reset(tmax float32) {
	r.Hit = Intersection{T: tmax, Prim: NoHit}
}

func safeRcp(v float32) float32 {
	if v > rcpEpsilon || v < -rcpEpsilon {
		return 1.0 / v
	}
	if math.Signbit(float64(v)) {
		return -Infinite
	}
	return Infinite
}

// Slab test against a box. Returns the entry distance or Infinite if the ray
// misses the box or the box lies outside the ray's current interval.
func IntersectAABB(ray *Ray, bmin, bmax types.Vec3) float32 {
	tx1 := (bmin[0] - ray.Origin[0]) * ray.RDir[0]
	tx2 := (bmax[0] - ray.Origin[0]) * ray.RDir[0]
	tmin, tmax := min(tx1, tx2), max(tx1, tx2)

	ty1 := (bmin[1] - ray.Origin[1]) * ray.RDir[1]
	ty2 := (bmax[1] - ray.Origin[1]) * ray.RDir[1]
	tmin, tmax = max(tmin, min(ty1, ty2)), min(tmax, max(ty1, ty2))

	tz1 := (bmin[2] - ray.Origin[2]) * ray.RDir[2]
	tz2 := (bmax[2] - ray.Origin[2]) * ray.RDir[2]
	tmin, tmax = max(tmin, min(tz1, tz2)), min(tmax, max(tz1, tz2))

	if tmax >= tmin && tmin < ray.Hit.T && tmax > ray.TMin {
		return tmin
	}
	return Infinite
}

// Möller-Trumbore intersection against the triangle (v0, v0+e1, v0+e2). All
// layouts go through this routine so they report bit-identical distances.
//
// Returns the hit distance and barycentrics; ok is false when there is no hit
// inside (TMin, Hit.T).
func IntersectTriangle(ray *Ray, v0, e1, e2 types.Vec3) (t, u, v float32, ok bool) {
	h := ray.Dir.Cross(e2)
	a := e1.Dot(h)
	if a > -parallelEpsilon && a < parallelEpsilon {
		return 0, 0, 0, false
	}
	f := 1 / a
	s := ray.Origin.Sub(v0)
	u = f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := s.Cross(e1)
	v = f * ray.Dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = f * e2.Dot(q)
	if t <= ray.TMin || t >= ray.Hit.T {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// Intersect triangle tri of the store and record the hit if it is closer than
// the current one.
func (s Store) Intersect(ray *Ray, tri uint32) bool {
	v0, v1, v2 := s.Triangle(tri)
	t, u, v, ok := IntersectTriangle(ray, v0, v1.Sub(v0), v2.Sub(v0))
	if !ok {
		return false
	}
	ray.Hit = Intersection{T: t, U: u, V: v, Prim: tri}
	return true
}

// Intersector is the traversal contract implemented by every layout.
//
// Intersect performs a closest-hit query: on return ray.Hit holds the hit
// with the smallest distance inside the ray interval or NoHit. It returns the
// number of traversal steps (nodes visited) for diagnostics.
//
// IsOccluded performs an any-hit query and may stop at the first hit. It does
// not modify the ray.
//
// Implementations are read-only and safe for concurrent use.
type Intersector interface {
	Intersect(ray *Ray) uint32
	IsOccluded(ray *Ray) bool
}
