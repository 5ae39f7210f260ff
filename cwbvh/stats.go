package cwbvh

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/olekukonko/tablewriter"
)

// Render node and primitive blob statistics as a table.
func (c *BVH) Stats() string {
	usedSlots, leafSlots := 0, 0
	for i := range c.nodes {
		n := &c.nodes[i]
		for s := 0; s < Width; s++ {
			if !n.Used(s) {
				continue
			}
			usedSlots++
			if !n.IsInterior(s) {
				leafSlots++
			}
		}
	}
	avgSlots := float32(0)
	if len(c.nodes) != 0 {
		avgSlots = float32(usedSlots) / float32(len(c.nodes))
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"CWBVH", "Count", "Size"})
	table.Append([]string{"Nodes", fmt.Sprint(c.NodeCount()), bvh.FormatSize(len(c.nodeBytes))})
	table.Append([]string{"Primitives", fmt.Sprint(c.PrimitiveCount()), bvh.FormatSize(len(c.primBytes))})
	table.Append([]string{"Leaf slots", fmt.Sprint(leafSlots), ""})
	table.Append([]string{"Children (avg)", fmt.Sprintf("%.2f", avgSlots), ""})
	table.SetFooter([]string{"Total", fmt.Sprintf("v%d", LayoutVersion), bvh.FormatSize(len(c.nodeBytes) + len(c.primBytes))})
	table.Render()
	return buf.String()
}
