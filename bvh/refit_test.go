package bvh

import (
	"errors"
	"slices"
	"testing"

	"github.com/achilleasa/widebvh/types"
)

func TestRefitErrors(t *testing.T) {
	b := New()
	if err := b.Refit(); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt; got %v", err)
	}

	if err := b.BuildHQ(randomStore(1, 50)); err != nil {
		t.Fatal(err)
	}
	if b.Refittable() {
		t.Fatal("expected spatial split tree not to be refittable")
	}
	if err := b.Refit(); !errors.Is(err, ErrNotRefittable) || !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrNotRefittable; got %v", err)
	}
}

func TestRefit(t *testing.T) {
	type spec struct {
		triangles int
		workers   int
	}
	specs := []spec{
		{1, 1},
		{300, 1},
		// Large enough to refit level by level on several goroutines.
		{4000, 4},
	}

	for specIndex, s := range specs {
		opts := DefaultBuildOptions()
		opts.Workers = s.workers
		opts.ParallelThreshold = 64

		store := randomStore(int64(specIndex), s.triangles)
		b := NewWithOptions(opts)
		if err := b.Build(store); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		built := slices.Clone(b.Nodes())

		// Refitting an unchanged store reproduces the build bounds.
		if err := b.Refit(); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		if !slices.Equal(b.Nodes(), built) {
			t.Fatalf("[spec %d] expected refit of unmoved geometry to match the build", specIndex)
		}

		// Move every vertex and refit twice.
		for i := range store {
			store[i] = store[i].Vec3().Add(types.XYZ(float32(i%7), -float32(i%3), 0.5)).Vec4(0)
		}
		if err := b.Refit(); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		once := slices.Clone(b.Nodes())
		gen := b.Generation()
		if err := b.Refit(); err != nil {
			t.Fatalf("[spec %d] %v", specIndex, err)
		}
		if !slices.Equal(b.Nodes(), once) {
			t.Fatalf("[spec %d] expected refit to be idempotent", specIndex)
		}
		if b.Generation() != gen+1 {
			t.Fatalf("[spec %d] expected refit to bump the generation", specIndex)
		}
		checkTree(t, b, true)

		for rayIndex, ray := range randomRays(int64(specIndex), store, 100) {
			exp := bruteForce(store, ray)
			b.Intersect(&ray)
			if ray.Hit != exp {
				t.Fatalf("[spec %d] ray %d: expected hit %+v after refit; got %+v", specIndex, rayIndex, exp, ray.Hit)
			}
		}
	}
}

func TestNodeLevels(t *testing.T) {
	b := New()
	if err := b.Build(lineStore(4)); err != nil {
		t.Fatal(err)
	}

	levels := nodeLevels(b.Nodes())
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels; got %d", len(levels))
	}
	expSizes := []int{1, 2, 4}
	for depth, level := range levels {
		if len(level) != expSizes[depth] {
			t.Fatalf("expected %d nodes at depth %d; got %d", expSizes[depth], depth, len(level))
		}
	}
}
