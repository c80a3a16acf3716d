package quadtree

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// QueryCircle appends the ids of all points with distance(pos, center) <
// radius to out. Subtrees whose region cannot intersect the circle are
// pruned via the distance lower bound.
//
// The accumulator is caller-owned so that queries over disjoint subtrees
// can run in parallel; supply one accumulator per task or serialize writes.
func (n *Node) QueryCircle(center orb.Point, radius float64, out *[]ElementID) {
	if n.OutOfReach(center, radius) {
		return
	}

	if n.leaf {
		rsq := radius * radius
		for i, pos := range n.positions {
			if planar.DistanceSquared(pos, center) < rsq {
				*out = append(*out, n.content[i])
			}
		}
		return
	}

	for _, child := range n.children {
		child.QueryCircle(center, radius, out)
	}
}
