package bvh

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// TreeStats summarizes the shape of a binary tree.
type TreeStats struct {
	Nodes    int
	Leaves   int
	MaxDepth int

	// Primitive references stored in leaves.
	References  int
	MaxLeafSize int

	// SAH cost of the root.
	SAHCost float32
}

// Average number of primitive references per leaf.
func (s TreeStats) AvgLeafSize() float32 {
	if s.Leaves == 0 {
		return 0
	}
	return float32(s.References) / float32(s.Leaves)
}

func collectStats(nodes []Node, opts BuildOptions) TreeStats {
	st := TreeStats{Nodes: len(nodes)}
	if len(nodes) == 0 {
		return st
	}

	rootArea := nodes[0].Bounds().HalfArea()
	if rootArea <= 0 {
		rootArea = 1
	}

	type pending struct {
		node  uint32
		depth int
	}
	stack := []pending{{0, 0}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.depth > st.MaxDepth {
			st.MaxDepth = p.depth
		}

		n := &nodes[p.node]
		area := n.Bounds().HalfArea() / rootArea
		if n.IsLeaf() {
			st.Leaves++
			st.References += int(n.Count)
			st.MaxLeafSize = max(st.MaxLeafSize, int(n.Count))
			st.SAHCost += area * opts.IntersectionCost * float32(n.Count)
			continue
		}
		st.SAHCost += area * opts.TraversalCost
		stack = append(stack, pending{n.Left(), p.depth + 1}, pending{n.Right(), p.depth + 1})
	}
	return st
}

// Get the tree statistics.
func (b *BVH) TreeStats() TreeStats {
	return collectStats(b.nodes, b.opts)
}

// Render the tree statistics as a table.
func (b *BVH) Stats() string {
	st := b.TreeStats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Binary BVH", "Value"})
	table.Append([]string{"Triangles", fmt.Sprint(b.store.TriangleCount())})
	table.Append([]string{"Nodes", fmt.Sprint(st.Nodes)})
	table.Append([]string{"Leaves", fmt.Sprint(st.Leaves)})
	table.Append([]string{"Max depth", fmt.Sprint(st.MaxDepth)})
	table.Append([]string{"References", fmt.Sprint(st.References)})
	table.Append([]string{"Leaf size (avg/max)", fmt.Sprintf("%.2f / %d", st.AvgLeafSize(), st.MaxLeafSize)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.3f", st.SAHCost)})
	table.Append([]string{"Refittable", fmt.Sprint(b.refittable)})
	table.SetFooter([]string{"Size", FormatSize(NodeSize*len(b.nodes) + 4*len(b.indices))})
	table.Render()
	return buf.String()
}

// Format a byte count with the appropriate byte/kb/mb unit.
func FormatSize(totalBytes int) string {
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", totalBytes)
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", float32(totalBytes)/1e3)
	}
	return fmt.Sprintf("%5.1f mb", float32(totalBytes)/1e6)
}
