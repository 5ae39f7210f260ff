// Package cwbvh encodes wide hierarchies into the compressed wide BVH
// format: quantized 80-byte nodes and 48-byte triangle records laid out for
// GPU consumption.
package cwbvh

import (
	"context"
	"fmt"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/log"
	"github.com/achilleasa/widebvh/types"
	"github.com/achilleasa/widebvh/wide"
	"github.com/google/uuid"
)

// Options configure the build pipeline used by Build.
type Options struct {
	Build bvh.BuildOptions `yaml:"build"`
	Wide  wide.Options     `yaml:"wide"`

	// Use the spatial split builder for the binary stage.
	SpatialSplits bool `yaml:"spatial_splits"`
}

// Get the default pipeline options.
func DefaultOptions() Options {
	return Options{
		Build: bvh.DefaultBuildOptions(),
		Wide:  wide.DefaultOptions(),
	}
}

// BVH is a compressed wide hierarchy. It is self-contained: primitive
// records carry their own vertices so traversal does not need the source
// store.
type BVH struct {
	logger log.Logger
	opts   Options

	// Identity of the wide tree snapshot this tree was encoded from.
	sourceID         uuid.UUID
	sourceGeneration uint64

	nodes []Node
	prims []Primitive

	nodeBytes []byte
	primBytes []byte
}

// Create an empty tree with the default options.
func New() *BVH {
	return NewWithOptions(DefaultOptions())
}

// Create an empty tree.
func NewWithOptions(opts Options) *BVH {
	return &BVH{
		logger: log.New("cwbvh"),
		opts:   opts,
	}
}

// Load a tree from blobs produced by NodeBytes and PrimitiveBytes.
func FromBytes(nodeBytes, primBytes []byte) (*BVH, error) {
	if len(nodeBytes) == 0 || len(nodeBytes)%NodeSize != 0 {
		return nil, fmt.Errorf("%w: node blob length %d is not a positive multiple of %d", bvh.ErrInvalidInput, len(nodeBytes), NodeSize)
	}
	if len(primBytes)%PrimitiveSize != 0 {
		return nil, fmt.Errorf("%w: primitive blob length %d is not a multiple of %d", bvh.ErrInvalidInput, len(primBytes), PrimitiveSize)
	}

	nodes := make([]Node, len(nodeBytes)/NodeSize)
	for i := range nodes {
		nodes[i], _ = UnpackNode(nodeBytes[i*NodeSize:])
	}
	prims := make([]Primitive, len(primBytes)/PrimitiveSize)
	for i := range prims {
		prims[i], _ = UnpackPrimitive(primBytes[i*PrimitiveSize:])
	}
	if err := validate(nodes, len(prims)); err != nil {
		return nil, err
	}

	c := New()
	c.setContents(nodes, prims)
	return c, nil
}

// Build the tree over store: binary build, leaf splitting down to
// MaxLeafSize triangles, wide conversion and encoding.
func (c *BVH) Build(store bvh.Store) error {
	return c.BuildContext(context.Background(), store)
}

// Build the tree over store. The context is honored by the binary build
// stage.
func (c *BVH) BuildContext(ctx context.Context, store bvh.Store) error {
	src := bvh.NewWithOptions(c.opts.Build)
	var err error
	if c.opts.SpatialSplits {
		err = src.BuildHQContext(ctx, store)
	} else {
		err = src.BuildContext(ctx, store)
	}
	if err != nil {
		return err
	}
	if err = src.SplitLeaves(MaxLeafSize); err != nil {
		return err
	}

	w := wide.NewWithOptions(c.opts.Wide)
	if err = w.Convert(src); err != nil {
		return err
	}
	return c.Convert(w)
}

func (c *BVH) setContents(nodes []Node, prims []Primitive) {
	c.nodes = nodes
	c.prims = prims
	c.nodeBytes = make([]byte, NodeSize*len(nodes))
	for i := range nodes {
		PackNode(c.nodeBytes[i*NodeSize:], &nodes[i])
	}
	c.primBytes = make([]byte, PrimitiveSize*len(prims))
	for i := range prims {
		PackPrimitive(c.primBytes[i*PrimitiveSize:], &prims[i])
	}
}

// Returns true if the tree has been built.
func (c *BVH) Built() bool {
	return len(c.nodes) != 0
}

// Returns true if src has changed since this tree was encoded from it, or if
// this tree was not encoded from src at all.
func (c *BVH) Stale(src *wide.BVH) bool {
	return src.ID() != c.sourceID || src.Generation() != c.sourceGeneration
}

// Get the packed node blob.
func (c *BVH) NodeBytes() []byte {
	return c.nodeBytes
}

// Get the node count: the number of 16-byte storage units in the node blob
// divided by the 5 units of a node.
func (c *BVH) NodeCount() int {
	return len(c.nodeBytes) / UnitSize / UnitsPerNode
}

// Get the packed primitive blob.
func (c *BVH) PrimitiveBytes() []byte {
	return c.primBytes
}

// Get the number of primitive records.
func (c *BVH) PrimitiveCount() int {
	return len(c.prims)
}

// Get the unpacked nodes.
func (c *BVH) Nodes() []Node {
	return c.nodes
}

// Get the unpacked primitive records.
func (c *BVH) Primitives() []Primitive {
	return c.prims
}

// DecodedChild is a child slot of a node decoded from the packed blob.
type DecodedChild struct {
	Kind   wide.ChildKind
	Bounds types.AABB

	// Child node index for interior slots.
	Node uint32

	// Primitive record range for leaf slots.
	First uint32
	Count uint32
}

// Decode the children of node i straight from the packed node blob.
func (c *BVH) Decode(i int) ([Width]DecodedChild, error) {
	var out [Width]DecodedChild
	if i < 0 || i >= c.NodeCount() {
		return out, fmt.Errorf("%w: node %d out of range [0, %d)", bvh.ErrInvalidInput, i, c.NodeCount())
	}

	n, err := UnpackNode(c.nodeBytes[i*NodeSize:])
	if err != nil {
		return out, err
	}
	for s := 0; s < Width; s++ {
		if !n.Used(s) {
			continue
		}
		out[s].Bounds = n.ChildBounds(s)
		if n.IsInterior(s) {
			out[s].Kind = wide.Interior
			out[s].Node = n.ChildNode(s)
			continue
		}
		out[s].Kind = wide.Leaf
		out[s].First, out[s].Count = n.LeafRange(s)
	}
	return out, nil
}

// Check that child and primitive references stay in range.
func validate(nodes []Node, primCount int) error {
	for i := range nodes {
		n := &nodes[i]
		for s := 0; s < Width; s++ {
			if !n.Used(s) {
				continue
			}
			if n.IsInterior(s) {
				if child := n.ChildNode(s); int(child) <= i || int(child) >= len(nodes) {
					return fmt.Errorf("%w: node %d slot %d references node %d", bvh.ErrInvalidInput, i, s, child)
				}
				continue
			}
			first, count := n.LeafRange(s)
			if count == 0 || int(first+count) > primCount {
				return fmt.Errorf("%w: node %d slot %d references primitives [%d, %d)", bvh.ErrInvalidInput, i, s, first, first+count)
			}
		}
	}
	return nil
}
