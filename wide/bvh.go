// Package wide collapses binary hierarchies into 8-wide trees.
package wide

import (
	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/log"
	"github.com/google/uuid"
)

// Options tune the greedy node opening.
type Options struct {
	// Cost of visiting a node relative to testing one extra child slot.
	// Opening a candidate c inside node n saves NodeCost*A(c) and costs
	// SlotCost*A(n).
	NodeCost float32 `yaml:"node_cost"`
	SlotCost float32 `yaml:"slot_cost"`
}

// Get the default options. With no slot cost every node is filled up to
// Width children.
func DefaultOptions() Options {
	return Options{
		NodeCost: 1,
		SlotCost: 0,
	}
}

// BVH is an 8-wide hierarchy converted from a binary tree. It owns a copy of
// the source index array and borrows the primitive store.
type BVH struct {
	logger log.Logger
	opts   Options

	id         uuid.UUID
	generation uint64

	// Identity of the binary tree snapshot this tree was converted from.
	sourceID         uuid.UUID
	sourceGeneration uint64
	sourceOpts       bvh.BuildOptions
	refittable       bool

	store   bvh.Store
	nodes   []Node
	indices []uint32
}

// Create an empty wide tree with the default options.
func New() *BVH {
	return NewWithOptions(DefaultOptions())
}

// Create an empty wide tree.
func NewWithOptions(opts Options) *BVH {
	return &BVH{
		logger: log.New("wide"),
		opts:   opts,
		id:     uuid.New(),
	}
}

func (w *BVH) ID() uuid.UUID {
	return w.id
}

// Get the tree generation. It is bumped by Convert and Refit.
func (w *BVH) Generation() uint64 {
	return w.generation
}

func (w *BVH) Options() Options {
	return w.opts
}

// Returns true if the tree has been converted.
func (w *BVH) Built() bool {
	return len(w.nodes) != 0
}

// Get the tree nodes. The root is node 0 and every interior child is stored
// after its parent.
func (w *BVH) Nodes() []Node {
	return w.nodes
}

// Get the primitive index array. Leaf slots index into it.
func (w *BVH) Indices() []uint32 {
	return w.indices
}

// Get the primitive store.
func (w *BVH) Store() bvh.Store {
	return w.store
}

// Returns true if src has changed since this tree was converted from it, or
// if this tree was not converted from src at all.
func (w *BVH) Stale(src *bvh.BVH) bool {
	return src.ID() != w.sourceID || src.Generation() != w.sourceGeneration
}

// Count the primitive references reachable from a node.
func (w *BVH) PrimCount(nodeIndex uint32) uint32 {
	var total uint32
	w.walk(nodeIndex, func(c *Child) {
		total += c.Count
	})
	return total
}

// Count the leaf slots reachable from a node.
func (w *BVH) LeafCount(nodeIndex uint32) uint32 {
	var total uint32
	w.walk(nodeIndex, func(*Child) {
		total++
	})
	return total
}

// Calculate the SAH cost of the tree relative to the root area, using the
// traversal and intersection costs of the source tree. Each wide node costs
// one traversal step.
func (w *BVH) SAHCost() float32 {
	if len(w.nodes) == 0 {
		return 0
	}
	rootArea := w.nodes[0].Bounds().HalfArea()
	if rootArea <= 0 {
		rootArea = 1
	}

	var cost float32
	for i := range w.nodes {
		n := &w.nodes[i]
		cost += n.Bounds().HalfArea() / rootArea * w.sourceOpts.TraversalCost
		for _, c := range n.Used() {
			if c.Kind == Leaf {
				cost += c.Bounds().HalfArea() / rootArea * w.sourceOpts.IntersectionCost * float32(c.Count)
			}
		}
	}
	return cost
}

// Invoke fn for every leaf slot reachable from a node.
func (w *BVH) walk(nodeIndex uint32, fn func(*Child)) {
	if int(nodeIndex) >= len(w.nodes) {
		return
	}
	stack := []uint32{nodeIndex}
	for len(stack) > 0 {
		n := &w.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		for i := range n.Used() {
			c := &n.Children[i]
			switch c.Kind {
			case Leaf:
				fn(c)
			case Interior:
				stack = append(stack, c.Index)
			}
		}
	}
}
