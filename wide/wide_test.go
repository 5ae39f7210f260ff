package wide

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/types"
)

func randomStore(seed int64, n int) bvh.Store {
	rng := rand.New(rand.NewSource(seed))
	rnd := func(scale float32) float32 {
		return (rng.Float32()*2 - 1) * scale
	}

	store := make(bvh.Store, 0, 3*n)
	for i := 0; i < n; i++ {
		c := types.XYZ(rnd(10), rnd(10), rnd(10))
		for v := 0; v < 3; v++ {
			store = append(store, c.Add(types.XYZ(rnd(1), rnd(1), rnd(1))).Vec4(0))
		}
	}
	return store
}

func randomRays(seed int64, store bvh.Store, n int) []bvh.Ray {
	rng := rand.New(rand.NewSource(seed))
	rays := make([]bvh.Ray, n)
	for i := range rays {
		origin := types.XYZ(rng.Float32()*60-30, rng.Float32()*60-30, rng.Float32()*60-30)
		target := store.Centroid(uint32(rng.Intn(store.TriangleCount())))
		rays[i] = bvh.NewRay(origin, target.Sub(origin).Normalize())
	}
	return rays
}

func buildBinary(t *testing.T, store bvh.Store, opts bvh.BuildOptions) *bvh.BVH {
	t.Helper()
	b := bvh.NewWithOptions(opts)
	if err := b.Build(store); err != nil {
		t.Fatal(err)
	}
	return b
}

func checkWide(t *testing.T, w *BVH, triCount int) {
	t.Helper()

	nodes := w.Nodes()
	slotOwner := make([]bool, len(w.Indices()))
	seen := make([]bool, triCount)
	for i := range nodes {
		n := &nodes[i]
		if n.ChildCount == 0 || n.ChildCount > Width {
			t.Fatalf("node %d has %d children", i, n.ChildCount)
		}
		for s := int(n.ChildCount); s < Width; s++ {
			if n.Children[s].Kind != Empty {
				t.Fatalf("node %d slot %d is past ChildCount but not empty", i, s)
			}
		}

		for s, c := range n.Used() {
			if !n.Bounds().Contains(c.Bounds()) {
				t.Fatalf("node %d bounds %v do not contain slot %d bounds %v", i, n.Bounds(), s, c.Bounds())
			}
			switch c.Kind {
			case Interior:
				if int(c.Index) <= i || int(c.Index) >= len(nodes) {
					t.Fatalf("node %d slot %d has invalid child index %d", i, s, c.Index)
				}
				if nodes[c.Index].Bounds() != c.Bounds() {
					t.Fatalf("node %d slot %d bounds differ from child node bounds", i, s)
				}
			case Leaf:
				for off := c.Index; off < c.Index+c.Count; off++ {
					if slotOwner[off] {
						t.Fatalf("index slot %d is referenced twice", off)
					}
					slotOwner[off] = true
					tri := w.Indices()[off]
					seen[tri] = true
					if !c.Bounds().Contains(w.Store().Bounds(tri)) {
						t.Fatalf("leaf slot bounds %v do not contain triangle %d", c.Bounds(), tri)
					}
				}
			default:
				t.Fatalf("node %d slot %d is empty but below ChildCount", i, s)
			}
		}
	}

	for off, used := range slotOwner {
		if !used {
			t.Fatalf("index slot %d is not referenced", off)
		}
	}
	for tri, ok := range seen {
		if !ok {
			t.Fatalf("triangle %d is not reachable", tri)
		}
	}
}

func TestConvertErrors(t *testing.T) {
	w := New()
	if err := w.Convert(bvh.New()); !errors.Is(err, bvh.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt; got %v", err)
	}
	if w.Built() {
		t.Fatal("expected failed conversion not to expose a tree")
	}
	if err := w.Refit(); !errors.Is(err, bvh.ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt; got %v", err)
	}
}

func TestConvertRootLeaf(t *testing.T) {
	src := buildBinary(t, randomStore(1, 1), bvh.DefaultBuildOptions())

	w := New()
	if err := w.Convert(src); err != nil {
		t.Fatal(err)
	}
	nodes := w.Nodes()
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node; got %d", len(nodes))
	}
	if nodes[0].ChildCount != 1 || nodes[0].Children[0].Kind != Leaf || nodes[0].Children[0].Count != 1 {
		t.Fatalf("expected root with a single leaf slot; got %+v", nodes[0])
	}
	checkWide(t, w, 1)
}

func TestConvert(t *testing.T) {
	type spec struct {
		triangles int
		build     func(*bvh.BuildOptions)
		opts      Options
	}
	specs := []spec{
		{2, nil, DefaultOptions()},
		{9, nil, DefaultOptions()},
		{500, nil, DefaultOptions()},
		{2000, func(o *bvh.BuildOptions) { o.LeafThreshold = 4; o.MaxLeafSize = 4 }, DefaultOptions()},
		{2000, nil, Options{NodeCost: 1, SlotCost: 0.1}},
	}

	for specIndex, s := range specs {
		buildOpts := bvh.DefaultBuildOptions()
		if s.build != nil {
			s.build(&buildOpts)
		}
		store := randomStore(int64(specIndex), s.triangles)
		src := buildBinary(t, store, buildOpts)

		w := NewWithOptions(s.opts)
		if err := w.Convert(src); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		checkWide(t, w, s.triangles)

		if got := w.PrimCount(0); got != src.PrimCount(0) {
			t.Fatalf("[spec %d] expected %d reachable primitives; got %d", specIndex, src.PrimCount(0), got)
		}
		if got, exp := int(w.LeafCount(0)), src.TreeStats().Leaves; got != exp {
			t.Fatalf("[spec %d] expected %d leaf slots; got %d", specIndex, exp, got)
		}
		if wideCost, binCost := w.SAHCost(), src.SAHCost(0); wideCost > binCost*1.0001 {
			t.Fatalf("[spec %d] expected wide SAH cost %f <= binary cost %f", specIndex, wideCost, binCost)
		}
		if len(w.Nodes()) >= len(src.Nodes()) {
			t.Fatalf("[spec %d] expected fewer wide nodes than binary nodes; got %d vs %d", specIndex, len(w.Nodes()), len(src.Nodes()))
		}
		if w.Stats() == "" {
			t.Fatalf("[spec %d] expected non-empty stats", specIndex)
		}
	}
}

func TestConvertWithoutOpening(t *testing.T) {
	src := buildBinary(t, randomStore(3, 300), bvh.DefaultBuildOptions())

	// Opening never pays off when a slot costs as much as a node visit.
	w := NewWithOptions(Options{NodeCost: 1, SlotCost: 1})
	if err := w.Convert(src); err != nil {
		t.Fatal(err)
	}

	interior := 0
	for _, n := range src.Nodes() {
		if !n.IsLeaf() {
			interior++
		}
	}
	if len(w.Nodes()) != interior {
		t.Fatalf("expected %d wide nodes; got %d", interior, len(w.Nodes()))
	}
	for i, n := range w.Nodes() {
		if n.ChildCount != 2 {
			t.Fatalf("expected node %d to have 2 children; got %d", i, n.ChildCount)
		}
	}
}

func TestIntersectMatchesBinary(t *testing.T) {
	store := randomStore(11, 800)
	src := buildBinary(t, store, bvh.DefaultBuildOptions())
	w := New()
	if err := w.Convert(src); err != nil {
		t.Fatal(err)
	}

	for specIndex, ray := range randomRays(12, store, 500) {
		exp := ray
		src.Intersect(&exp)

		got := ray
		w.Intersect(&got)
		if got.Hit != exp.Hit {
			t.Fatalf("[spec %d] expected hit %+v; got %+v", specIndex, exp.Hit, got.Hit)
		}
		if occ := w.IsOccluded(&ray); occ != exp.Hits() {
			t.Fatalf("[spec %d] expected occlusion %t; got %t", specIndex, exp.Hits(), occ)
		}
	}
}

func TestStaleAndSnapshot(t *testing.T) {
	store := randomStore(4, 100)
	src := buildBinary(t, store, bvh.DefaultBuildOptions())
	w := New()
	if err := w.Convert(src); err != nil {
		t.Fatal(err)
	}
	if w.Stale(src) {
		t.Fatal("expected freshly converted tree not to be stale")
	}
	if other := buildBinary(t, store, bvh.DefaultBuildOptions()); !w.Stale(other) {
		t.Fatal("expected tree to be stale against a different source")
	}

	indices := append([]uint32(nil), w.Indices()...)
	if err := src.Build(randomStore(5, 100)); err != nil {
		t.Fatal(err)
	}
	if !w.Stale(src) {
		t.Fatal("expected tree to be stale after the source was rebuilt")
	}
	for i := range indices {
		if w.Indices()[i] != indices[i] {
			t.Fatal("expected rebuilding the source not to affect the converted indices")
		}
	}
}

func TestRefit(t *testing.T) {
	store := randomStore(6, 400)
	src := buildBinary(t, store, bvh.DefaultBuildOptions())
	w := New()
	if err := w.Convert(src); err != nil {
		t.Fatal(err)
	}

	for i := range store {
		store[i] = store[i].Vec3().Mul(1.5).Add(types.XYZ(0, float32(i%5), 0)).Vec4(0)
	}
	gen := w.Generation()
	if err := w.Refit(); err != nil {
		t.Fatal(err)
	}
	if w.Generation() != gen+1 {
		t.Fatal("expected refit to bump the generation")
	}
	checkWide(t, w, 400)

	if err := src.Refit(); err != nil {
		t.Fatal(err)
	}
	for specIndex, ray := range randomRays(7, store, 200) {
		exp := ray
		src.Intersect(&exp)
		w.Intersect(&ray)
		if ray.Hit != exp.Hit {
			t.Fatalf("[spec %d] expected hit %+v; got %+v", specIndex, exp.Hit, ray.Hit)
		}
	}

	hq := bvh.New()
	if err := hq.BuildHQ(store); err != nil {
		t.Fatal(err)
	}
	if err := w.Convert(hq); err != nil {
		t.Fatal(err)
	}
	if err := w.Refit(); !errors.Is(err, bvh.ErrNotRefittable) {
		t.Fatalf("expected ErrNotRefittable; got %v", err)
	}
}
