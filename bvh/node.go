package bvh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/achilleasa/widebvh/types"
)

// Size of an encoded Node in bytes.
const NodeSize = 32

// Binary BVH node. Each node takes 32 bytes:
//
//	[ 0:12] Min
//	[12:16] LeftFirst
//	[16:28] Max
//	[28:32] Count
//
// For interior nodes Count is 0 and LeftFirst points to the left child; the
// right child always follows it at LeftFirst+1. For leaves LeftFirst is the
// offset of the first primitive in the tree's index array and Count the
// number of primitives.
type Node struct {
	Min       types.Vec3
	LeftFirst uint32
	Max       types.Vec3
	Count     uint32
}

// Returns true if this node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.Count > 0
}

// Get the left child index of an interior node.
func (n *Node) Left() uint32 {
	return n.LeftFirst
}

// Get the right child index of an interior node.
func (n *Node) Right() uint32 {
	return n.LeftFirst + 1
}

// Get node bounds.
func (n *Node) Bounds() types.AABB {
	return types.AABB{Min: n.Min, Max: n.Max}
}

// Set node bounds.
func (n *Node) SetBounds(b types.AABB) {
	n.Min = b.Min
	n.Max = b.Max
}

// Set left child; the right child is implied.
func (n *Node) SetChildNodes(left uint32) {
	n.LeftFirst = left
	n.Count = 0
}

// Set primitive offset and count.
func (n *Node) SetPrimitives(first, count uint32) {
	n.LeftFirst = first
	n.Count = count
}

// Encode nodes as a little-endian byte blob.
func EncodeNodes(nodes []Node) []byte {
	buf := make([]byte, NodeSize*len(nodes))
	for i := range nodes {
		out := buf[i*NodeSize:]
		n := &nodes[i]
		binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(n.Min[0]))
		binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(n.Min[1]))
		binary.LittleEndian.PutUint32(out[8:12], math.Float32bits(n.Min[2]))
		binary.LittleEndian.PutUint32(out[12:16], n.LeftFirst)
		binary.LittleEndian.PutUint32(out[16:20], math.Float32bits(n.Max[0]))
		binary.LittleEndian.PutUint32(out[20:24], math.Float32bits(n.Max[1]))
		binary.LittleEndian.PutUint32(out[24:28], math.Float32bits(n.Max[2]))
		binary.LittleEndian.PutUint32(out[28:32], n.Count)
	}
	return buf
}

// Decode a blob produced by EncodeNodes.
func DecodeNodes(buf []byte) ([]Node, error) {
	if len(buf)%NodeSize != 0 {
		return nil, fmt.Errorf("%w: node blob length %d is not a multiple of %d", ErrInvalidInput, len(buf), NodeSize)
	}
	nodes := make([]Node, len(buf)/NodeSize)
	for i := range nodes {
		in := buf[i*NodeSize:]
		nodes[i] = Node{
			Min: types.Vec3{
				math.Float32frombits(binary.LittleEndian.Uint32(in[0:4])),
				math.Float32frombits(binary.LittleEndian.Uint32(in[4:8])),
				math.Float32frombits(binary.LittleEndian.Uint32(in[8:12])),
			},
			LeftFirst: binary.LittleEndian.Uint32(in[12:16]),
			Max: types.Vec3{
				math.Float32frombits(binary.LittleEndian.Uint32(in[16:20])),
				math.Float32frombits(binary.LittleEndian.Uint32(in[20:24])),
				math.Float32frombits(binary.LittleEndian.Uint32(in[24:28])),
			},
			Count: binary.LittleEndian.Uint32(in[28:32]),
		}
	}
	return nodes, nil
}
