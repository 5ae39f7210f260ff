package wide

import (
	"slices"
	"time"

	"github.com/achilleasa/widebvh/bvh"
	"github.com/achilleasa/widebvh/metrics"
)

// Convert a built binary tree into this tree, replacing its contents.
//
// Each wide node starts from a binary interior node with its two children as
// candidates. The interior candidate whose opening saves the most SAH cost
// is repeatedly replaced by its own children until Width slots are used or
// no opening saves anything. Binary leaves become leaf slots with the same
// primitive range. A binary root leaf yields a root with a single leaf slot.
//
// The source index array is copied so later changes to src do not affect
// the converted tree.
func (w *BVH) Convert(src *bvh.BVH) error {
	if !src.Built() {
		return bvh.ErrNotBuilt
	}

	start := time.Now()
	srcNodes := src.Nodes()
	root := &srcNodes[0]

	nodes := make([]Node, 1, len(srcNodes)/2+1)
	nodes[0] = Node{Min: root.Min, Max: root.Max}
	if root.IsLeaf() {
		nodes[0].addChild(leafChild(root))
	} else {
		type pending struct {
			src uint32
			dst uint32
		}
		queue := []pending{{0, 0}}
		candidates := make([]uint32, 0, Width)
		for head := 0; head < len(queue); head++ {
			p := queue[head]
			n := &srcNodes[p.src]

			candidates = append(candidates[:0], n.Left(), n.Right())
			for len(candidates) < Width {
				best := w.bestCandidate(srcNodes, n, candidates)
				if best < 0 {
					break
				}
				c := &srcNodes[candidates[best]]
				candidates[best] = c.Left()
				candidates = slices.Insert(candidates, best+1, c.Right())
			}

			for _, ci := range candidates {
				c := &srcNodes[ci]
				if c.IsLeaf() {
					nodes[p.dst].addChild(leafChild(c))
					continue
				}

				childIndex := uint32(len(nodes))
				nodes = append(nodes, Node{Min: c.Min, Max: c.Max})
				nodes[p.dst].addChild(Child{Min: c.Min, Max: c.Max, Kind: Interior, Index: childIndex})
				queue = append(queue, pending{ci, childIndex})
			}
		}
	}

	w.nodes = nodes
	w.indices = slices.Clone(src.Indices())
	w.store = src.Store()
	w.sourceID = src.ID()
	w.sourceGeneration = src.Generation()
	w.sourceOpts = src.Options()
	w.refittable = src.Refittable()
	w.generation++

	elapsed := time.Since(start)
	metrics.BuildDuration.WithLabelValues(metrics.StageWide).Observe(elapsed.Seconds())
	metrics.Nodes.WithLabelValues(metrics.StageWide).Set(float64(len(nodes)))
	metrics.Primitives.WithLabelValues(metrics.StageWide).Set(float64(len(w.indices)))
	w.logger.Debugf(
		"wide tree conversion time: %d ms, nodes: %d (binary: %d)",
		elapsed.Nanoseconds()/1e6, len(nodes), len(srcNodes),
	)
	return nil
}

// Get the position of the interior candidate with the largest positive cost
// reduction or -1 if opening any candidate would not pay off.
func (w *BVH) bestCandidate(srcNodes []bvh.Node, parent *bvh.Node, candidates []uint32) int {
	parentArea := parent.Bounds().HalfArea()
	best, bestGain := -1, float32(0)
	for i, ci := range candidates {
		c := &srcNodes[ci]
		if c.IsLeaf() {
			continue
		}
		gain := w.opts.NodeCost*c.Bounds().HalfArea() - w.opts.SlotCost*parentArea
		if gain > bestGain {
			best, bestGain = i, gain
		}
	}
	return best
}

func leafChild(n *bvh.Node) Child {
	return Child{Min: n.Min, Max: n.Max, Kind: Leaf, Index: n.LeftFirst, Count: n.Count}
}
