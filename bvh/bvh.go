package bvh

import (
	"fmt"

	"github.com/achilleasa/widebvh/log"
	"github.com/google/uuid"
)

// BVH is a binary bounding volume hierarchy over a borrowed primitive store.
//
// Nodes live in a single array with the root at index 0 and every child
// stored after its parent. The index array maps leaf primitive ranges to
// triangle indices in the store.
//
// Building, refitting and the other mutating methods require exclusive
// access. Traversal is read-only and may run from any number of goroutines
// once the tree is built.
type BVH struct {
	logger log.Logger
	opts   BuildOptions

	id         uuid.UUID
	generation uint64

	store   Store
	nodes   []Node
	indices []uint32

	// False for trees whose node bounds were clipped by spatial splits.
	refittable bool
}

// Create an empty tree that uses the default build options.
func New() *BVH {
	return NewWithOptions(DefaultBuildOptions())
}

// Create an empty tree with custom build options. The options are validated
// when the tree is built.
func NewWithOptions(opts BuildOptions) *BVH {
	return &BVH{
		logger: log.New("bvh"),
		opts:   opts,
		id:     uuid.New(),
	}
}

// Get the tree id. The id stays the same for the lifetime of the tree.
func (b *BVH) ID() uuid.UUID {
	return b.id
}

// Get the tree generation. It is bumped by every operation that changes the
// tree nodes, indices or bound store.
func (b *BVH) Generation() uint64 {
	return b.generation
}

// Get the build options.
func (b *BVH) Options() BuildOptions {
	return b.opts
}

// Returns true if the tree has been built.
func (b *BVH) Built() bool {
	return len(b.nodes) != 0
}

// Get the primitive store the tree is bound to.
func (b *BVH) Store() Store {
	return b.store
}

// Get the tree nodes. The slice length equals the number of nodes in use.
// Callers must treat it as read-only.
func (b *BVH) Nodes() []Node {
	return b.nodes
}

// Get the primitive index array. Leaf ranges index into it. For trees built
// with Build its length equals the triangle count; spatial-split trees may
// reference a triangle from several leaves.
func (b *BVH) Indices() []uint32 {
	return b.indices
}

// Returns true if the tree supports Refit.
func (b *BVH) Refittable() bool {
	return b.refittable
}

// Rebind the tree to a different store with the same number of vertices
// without rebuilding it. Call Refit afterwards if the geometry moved.
func (b *BVH) Bind(store Store) error {
	if !b.Built() {
		return ErrNotBuilt
	}
	if len(store) != len(b.store) {
		return fmt.Errorf("%w: expected %d vertices; got %d", ErrStoreSizeMismatch, len(b.store), len(store))
	}
	b.store = store
	b.generation++
	return nil
}

// Count the primitive references reachable from a node.
func (b *BVH) PrimCount(nodeIndex uint32) uint32 {
	if int(nodeIndex) >= len(b.nodes) {
		return 0
	}
	var total uint32
	stack := []uint32{nodeIndex}
	for len(stack) > 0 {
		n := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.IsLeaf() {
			total += n.Count
			continue
		}
		stack = append(stack, n.Left(), n.Right())
	}
	return total
}

// Calculate the SAH cost of the subtree rooted at a node, relative to the
// node's surface area:
//
// cost = Σ A(m)/A(node) * (TraversalCost for interior m, IntersectionCost * count for leaf m)
func (b *BVH) SAHCost(nodeIndex uint32) float32 {
	if int(nodeIndex) >= len(b.nodes) {
		return 0
	}
	rootArea := b.nodes[nodeIndex].Bounds().HalfArea()
	if rootArea <= 0 {
		rootArea = 1
	}

	var cost float32
	stack := []uint32{nodeIndex}
	for len(stack) > 0 {
		n := &b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		area := n.Bounds().HalfArea() / rootArea
		if n.IsLeaf() {
			cost += area * b.opts.IntersectionCost * float32(n.Count)
			continue
		}
		cost += area * b.opts.TraversalCost
		stack = append(stack, n.Left(), n.Right())
	}
	return cost
}

// Get the largest leaf primitive count.
func (b *BVH) MaxLeafSize() uint32 {
	var maxCount uint32
	for i := range b.nodes {
		if b.nodes[i].Count > maxCount {
			maxCount = b.nodes[i].Count
		}
	}
	return maxCount
}

// Install a finished build. Nothing is made visible before this point.
func (b *BVH) commit(store Store, nodes []Node, indices []uint32, refittable bool) {
	b.store = store
	b.nodes = nodes
	b.indices = indices
	b.refittable = refittable
	b.generation++
}

// Rebuild a tree from previously exported nodes and indices, for example
// after loading them from an archive. The layout is checked against store
// before the tree is returned.
func Restore(opts BuildOptions, store Store, nodes []Node, indices []uint32, refittable bool) (*BVH, error) {
	if err := store.Validate(); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidInput)
	}
	triCount := uint32(store.TriangleCount())
	for i, idx := range indices {
		if idx >= triCount {
			return nil, fmt.Errorf("%w: index %d references triangle %d of %d", ErrStoreSizeMismatch, i, idx, triCount)
		}
	}
	for i := range nodes {
		n := &nodes[i]
		if n.IsLeaf() {
			if uint64(n.LeftFirst)+uint64(n.Count) > uint64(len(indices)) {
				return nil, fmt.Errorf("%w: leaf %d references indices [%d, %d)", ErrInvalidInput, i, n.LeftFirst, n.LeftFirst+n.Count)
			}
			continue
		}
		if int(n.Left()) <= i || int(n.Right()) >= len(nodes) {
			return nil, fmt.Errorf("%w: node %d references children %d and %d", ErrInvalidInput, i, n.Left(), n.Right())
		}
	}

	b := NewWithOptions(opts)
	b.commit(store, nodes, indices, refittable)
	return b, nil
}
