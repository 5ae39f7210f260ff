package cwbvh

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/types"
)

const (
	// Version of the node and primitive byte layouts.
	LayoutVersion = 1

	// Compressed data is measured in 16-byte storage units.
	UnitSize = 16

	// Every node occupies exactly 5 storage units.
	UnitsPerNode = 5
	NodeSize     = UnitsPerNode * UnitSize

	// Children per node.
	Width = 8

	// Maximum number of triangles a leaf slot can address.
	MaxLeafSize = 3

	// Biased exponent range of the per-axis scale. Biased exponent e
	// encodes the scale 2^(e-127); 0 and 255 are not valid scales.
	minExponent = 1
	maxExponent = 254

	metaInteriorFlag = 0b0010_0000
	metaSlotBase     = 24
)

// Node is the unpacked form of a compressed wide node.
//
// The packed layout is little-endian:
//
//	offset  size  field
//	     0    12  P          float32 x3; quantization origin
//	    12     3  E          biased per-axis scale exponents
//	    15     1  IMask      bit s set if slot s holds an interior child
//	    16     4  ChildBase  index of the first interior child node
//	    20     4  PrimBase   index of the first primitive record
//	    24     8  Meta       per-slot metadata
//	    32    24  QLo        quantized child minimum; 8 x, then 8 y, then 8 z
//	    56    24  QHi        quantized child maximum; same order
//
// Meta byte for slot s: 0 for an empty slot; 0b001_00000 | (24+s) for an
// interior child; for a leaf the triangle count in unary in bits 5-7 and the
// primitive offset relative to PrimBase in bits 0-4.
//
// The interior child in slot s is node ChildBase + popcount(IMask & (1<<s - 1)).
type Node struct {
	P         types.Vec3
	E         [3]uint8
	IMask     uint8
	ChildBase uint32
	PrimBase  uint32
	Meta      [Width]uint8
	QLo       [3][Width]uint8
	QHi       [3][Width]uint8
}

// Pack node into dst which must hold at least NodeSize bytes.
func PackNode(dst []byte, n *Node) {
	_ = dst[NodeSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(n.P[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(n.P[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(n.P[2]))
	copy(dst[12:15], n.E[:])
	dst[15] = n.IMask
	binary.LittleEndian.PutUint32(dst[16:20], n.ChildBase)
	binary.LittleEndian.PutUint32(dst[20:24], n.PrimBase)
	copy(dst[24:32], n.Meta[:])
	for axis := 0; axis < 3; axis++ {
		copy(dst[32+axis*Width:], n.QLo[axis][:])
		copy(dst[56+axis*Width:], n.QHi[axis][:])
	}
}

// Unpack a node packed by PackNode.
func UnpackNode(src []byte) (Node, error) {
	if len(src) < NodeSize {
		return Node{}, fmt.Errorf("%w: node record needs %d bytes; got %d", bvh.ErrInvalidInput, NodeSize, len(src))
	}

	n := Node{
		P: types.Vec3{
			math.Float32frombits(binary.LittleEndian.Uint32(src[0:4])),
			math.Float32frombits(binary.LittleEndian.Uint32(src[4:8])),
			math.Float32frombits(binary.LittleEndian.Uint32(src[8:12])),
		},
		IMask:     src[15],
		ChildBase: binary.LittleEndian.Uint32(src[16:20]),
		PrimBase:  binary.LittleEndian.Uint32(src[20:24]),
	}
	copy(n.E[:], src[12:15])
	copy(n.Meta[:], src[24:32])
	for axis := 0; axis < 3; axis++ {
		copy(n.QLo[axis][:], src[32+axis*Width:])
		copy(n.QHi[axis][:], src[56+axis*Width:])
	}
	return n, nil
}

// Get the scale encoded by a biased exponent.
func scaleOf(e uint8) float32 {
	return math.Float32frombits(uint32(e) << 23)
}

// Map a quantized coordinate back to world space. The explicit conversion
// forces rounding of the product so the result never depends on fused
// multiply-add.
func dequantize(origin, scale float32, q uint8) float32 {
	return origin + float32(float32(q)*scale)
}

// Returns true if slot s holds a child.
func (n *Node) Used(s int) bool {
	return n.Meta[s] != 0
}

// Returns true if slot s holds an interior child.
func (n *Node) IsInterior(s int) bool {
	return n.IMask&(1<<s) != 0
}

// Get the node index of the interior child in slot s.
func (n *Node) ChildNode(s int) uint32 {
	return n.ChildBase + uint32(bits.OnesCount8(n.IMask&(1<<s-1)))
}

// Get the primitive range of the leaf in slot s.
func (n *Node) LeafRange(s int) (first, count uint32) {
	return n.PrimBase + uint32(n.Meta[s]&0x1f), uint32(bits.OnesCount8(n.Meta[s] >> 5))
}

// Get the decoded bounds of the child in slot s.
func (n *Node) ChildBounds(s int) types.AABB {
	var b types.AABB
	for axis := 0; axis < 3; axis++ {
		scale := scaleOf(n.E[axis])
		b.Min[axis] = dequantize(n.P[axis], scale, n.QLo[axis][s])
		b.Max[axis] = dequantize(n.P[axis], scale, n.QHi[axis][s])
	}
	return b
}

// Number of used slots.
func (n *Node) ChildCount() int {
	count := 0
	for s := 0; s < Width; s++ {
		if n.Used(s) {
			count++
		}
	}
	return count
}

func interiorMeta(slot int) uint8 {
	return metaInteriorFlag | uint8(metaSlotBase+slot)
}

func leafMeta(offset, count uint32) uint8 {
	return uint8((1<<count-1)<<5) | uint8(offset)
}
