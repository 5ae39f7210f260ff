package bvh

import (
	"math/rand"
	"testing"

	"github.com/achilleasa/widebvh/types"
)

// Generate n random triangles with centers inside [-10, 10]^3.
func randomStore(seed int64, n int) Store {
	rng := rand.New(rand.NewSource(seed))
	rnd := func(scale float32) float32 {
		return (rng.Float32()*2 - 1) * scale
	}

	store := make(Store, 0, 3*n)
	for i := 0; i < n; i++ {
		c := types.XYZ(rnd(10), rnd(10), rnd(10))
		for v := 0; v < 3; v++ {
			store = append(store, c.Add(types.XYZ(rnd(1), rnd(1), rnd(1))).Vec4(0))
		}
	}
	return store
}

// Generate n unit triangles in the z=0 plane laid out along the x axis with a
// unit gap between them.
func lineStore(n int) Store {
	store := make(Store, 0, 3*n)
	for i := 0; i < n; i++ {
		x := float32(2 * i)
		store = append(store,
			types.XYZW(x, 0, 0, 0),
			types.XYZW(x+1, 0, 0, 0),
			types.XYZW(x, 1, 0, 0),
		)
	}
	return store
}

// Generate rays from random origins aimed at the centroids of random triangles.
func randomRays(seed int64, store Store, n int) []Ray {
	rng := rand.New(rand.NewSource(seed))
	rays := make([]Ray, n)
	for i := range rays {
		origin := types.XYZ(rng.Float32()*60-30, rng.Float32()*60-30, rng.Float32()*60-30)
		target := store.Centroid(uint32(rng.Intn(store.TriangleCount())))
		rays[i] = NewRay(origin, target.Sub(origin).Normalize())
	}
	return rays
}

// Closest hit by testing every triangle.
func bruteForce(store Store, ray Ray) Intersection {
	for tri := 0; tri < store.TriangleCount(); tri++ {
		store.Intersect(&ray, uint32(tri))
	}
	return ray.Hit
}

// Check the structural invariants of a built tree. If exactCover is set, leaf
// ranges must partition the index array and reference every triangle exactly
// once.
func checkTree(t *testing.T, b *BVH, exactCover bool) {
	t.Helper()

	nodes := b.Nodes()
	if len(nodes) == 0 {
		t.Fatal("expected tree to have nodes")
	}

	rangeOwner := make([]int, len(b.Indices()))
	for i := range rangeOwner {
		rangeOwner[i] = -1
	}
	triRefs := make([]int, b.Store().TriangleCount())
	reachable := make([]bool, len(nodes))
	reachable[0] = true

	for i := range nodes {
		n := &nodes[i]
		if !reachable[i] {
			t.Fatalf("node %d is not reachable from the root", i)
		}

		if n.IsLeaf() {
			for off := n.LeftFirst; off < n.LeftFirst+n.Count; off++ {
				if rangeOwner[off] != -1 {
					t.Fatalf("index slot %d is shared by leaves %d and %d", off, rangeOwner[off], i)
				}
				rangeOwner[off] = i

				tri := b.Indices()[off]
				triRefs[tri]++
				if exactCover && !n.Bounds().Contains(b.Store().Bounds(tri)) {
					t.Fatalf("leaf %d bounds %v do not contain triangle %d bounds %v", i, n.Bounds(), tri, b.Store().Bounds(tri))
				}
			}
			continue
		}

		for _, child := range []uint32{n.Left(), n.Right()} {
			if int(child) <= i || int(child) >= len(nodes) {
				t.Fatalf("node %d has invalid child index %d", i, child)
			}
			if !n.Bounds().Contains(nodes[child].Bounds()) {
				t.Fatalf("node %d bounds %v do not contain child %d bounds %v", i, n.Bounds(), child, nodes[child].Bounds())
			}
			reachable[child] = true
		}
	}

	for off, owner := range rangeOwner {
		if owner == -1 {
			t.Fatalf("index slot %d is not referenced by any leaf", off)
		}
	}
	for tri, refs := range triRefs {
		if refs == 0 || (exactCover && refs != 1) {
			t.Fatalf("triangle %d is referenced %d times", tri, refs)
		}
	}
}
