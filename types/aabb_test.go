package types

import (
	"math"
	"testing"
)

func TestEmptyAABB(t *testing.T) {
	b := EmptyAABB()
	if !b.IsEmpty() {
		t.Fatal("expected empty box")
	}
	if b.HalfArea() != 0 {
		t.Fatalf("expected empty box to have zero area; got %f", b.HalfArea())
	}

	b.GrowPoint(XYZ(1, 2, 3))
	if b.IsEmpty() || b.Min != XYZ(1, 2, 3) || b.Max != XYZ(1, 2, 3) {
		t.Fatalf("expected degenerate box at the point; got %v", b)
	}
	if b.HalfArea() != 0 {
		t.Fatalf("expected point box to have zero area; got %f", b.HalfArea())
	}
}

func TestAABBOps(t *testing.T) {
	a := AABB{Min: XYZ(0, 0, 0), Max: XYZ(2, 2, 2)}
	b := AABB{Min: XYZ(1, -1, 1), Max: XYZ(3, 1, 4)}

	type spec struct {
		got, exp AABB
	}
	specs := []spec{
		{a.Union(b), AABB{Min: XYZ(0, -1, 0), Max: XYZ(3, 2, 4)}},
		{a.Intersect(b), AABB{Min: XYZ(1, 0, 1), Max: XYZ(2, 1, 2)}},
		{a.Union(EmptyAABB()), a},
	}
	for index, s := range specs {
		if s.got != s.exp {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, s.got)
		}
	}

	grown := a
	grown.Grow(b)
	if grown != a.Union(b) {
		t.Fatalf("expected Grow to match Union; got %v", grown)
	}

	disjoint := AABB{Min: XYZ(5, 5, 5), Max: XYZ(6, 6, 6)}
	if !a.Intersect(disjoint).IsEmpty() {
		t.Fatal("expected intersection of disjoint boxes to be empty")
	}

	if a.Extent() != XYZ(2, 2, 2) || a.Center() != XYZ(1, 1, 1) {
		t.Fatalf("unexpected extent %v or center %v", a.Extent(), a.Center())
	}
	if area := b.HalfArea(); area != 2*2+2*3+2*3 {
		t.Fatalf("expected half area 16; got %f", area)
	}
}

func TestAABBContains(t *testing.T) {
	outer := AABB{Min: XYZ(-1, -1, -1), Max: XYZ(1, 1, 1)}

	type spec struct {
		inner AABB
		exp   bool
	}
	specs := []spec{
		{outer, true},
		{AABB{Min: XYZ(0, 0, 0), Max: XYZ(0.5, 0.5, 0.5)}, true},
		{AABB{Min: XYZ(0, 0, 0), Max: XYZ(1.5, 0.5, 0.5)}, false},
		{AABB{Min: XYZ(-2, 0, 0), Max: XYZ(0, 0, 0)}, false},
		{EmptyAABB(), true},
	}
	for index, s := range specs {
		if got := outer.Contains(s.inner); got != s.exp {
			t.Fatalf("[spec %d] expected Contains to return %t; got %t", index, s.exp, got)
		}
	}
}

func TestVectorOps(t *testing.T) {
	v := XYZ(3, 4, 0)
	if v.Len() != 5 {
		t.Fatalf("expected length 5; got %f", v.Len())
	}
	if n := v.Normalize(); math.Abs(float64(n.Len()-1)) > 1e-6 {
		t.Fatalf("expected unit vector; got %v", n)
	}
	if n := (Vec3{}).Normalize(); n != (Vec3{}) {
		t.Fatalf("expected zero vector to stay zero; got %v", n)
	}

	x, y := XYZ(1, 0, 0), XYZ(0, 1, 0)
	if c := x.Cross(y); c != XYZ(0, 0, 1) {
		t.Fatalf("expected x cross y to be z; got %v", c)
	}
	if d := x.Dot(y); d != 0 {
		t.Fatalf("expected orthogonal vectors; got dot %f", d)
	}

	type spec struct {
		in      Vec3
		expAxis int
		expMax  float32
	}
	specs := []spec{
		{XYZ(1, 2, 3), 2, 3},
		{XYZ(3, 2, 1), 0, 3},
		{XYZ(1, 5, 5), 1, 5},
		{XYZ(2, 2, 2), 0, 2},
	}
	for index, s := range specs {
		if axis := s.in.MaxAxis(); axis != s.expAxis {
			t.Fatalf("[spec %d] expected max axis %d; got %d", index, s.expAxis, axis)
		}
		if m := s.in.MaxComponent(); m != s.expMax {
			t.Fatalf("[spec %d] expected max component %f; got %f", index, s.expMax, m)
		}
	}

	if MinVec3(XYZ(1, 5, 3), XYZ(2, 4, 3)) != XYZ(1, 4, 3) || MaxVec3(XYZ(1, 5, 3), XYZ(2, 4, 3)) != XYZ(2, 5, 3) {
		t.Fatal("unexpected component-wise min/max")
	}
	if XYZ(1, 2, 3).Vec4(7).Vec3() != XYZ(1, 2, 3) || XYZW(1, 2, 3, 4)[3] != 4 {
		t.Fatal("unexpected Vec3/Vec4 conversion")
	}
}
