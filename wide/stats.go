package wide

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/olekukonko/tablewriter"
)

// TreeStats summarizes the shape of a wide tree.
type TreeStats struct {
	Nodes      int
	LeafSlots  int
	EmptySlots int
	MaxDepth   int
	SAHCost    float32
}

// Average number of used slots per node.
func (s TreeStats) AvgChildren() float32 {
	if s.Nodes == 0 {
		return 0
	}
	return float32(Width*s.Nodes-s.EmptySlots) / float32(s.Nodes)
}

// Get the tree statistics.
func (w *BVH) TreeStats() TreeStats {
	st := TreeStats{Nodes: len(w.nodes), SAHCost: w.SAHCost()}
	if len(w.nodes) == 0 {
		return st
	}

	depth := make([]int, len(w.nodes))
	for i := range w.nodes {
		n := &w.nodes[i]
		st.MaxDepth = max(st.MaxDepth, depth[i])
		st.EmptySlots += Width - int(n.ChildCount)
		for _, c := range n.Used() {
			switch c.Kind {
			case Leaf:
				st.LeafSlots++
			case Interior:
				depth[c.Index] = depth[i] + 1
			}
		}
	}
	return st
}

// Render the tree statistics as a table.
func (w *BVH) Stats() string {
	st := w.TreeStats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Wide BVH", "Value"})
	table.Append([]string{"Nodes", fmt.Sprint(st.Nodes)})
	table.Append([]string{"Leaf slots", fmt.Sprint(st.LeafSlots)})
	table.Append([]string{"Children (avg)", fmt.Sprintf("%.2f", st.AvgChildren())})
	table.Append([]string{"Max depth", fmt.Sprint(st.MaxDepth)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.3f", st.SAHCost)})
	table.SetFooter([]string{"Size", bvh.FormatSize(int(unsafe.Sizeof(Node{}))*len(w.nodes) + 4*len(w.indices))})
	table.Render()
	return buf.String()
}
