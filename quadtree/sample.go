package quadtree

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// expectedDirect is the expected-match count under which an internal node
// stops recursing and skip-samples global offsets over its whole subtree.
const expectedDirect = 4

// probDirect is the acceptance upper bound under which the direct regime
// is always worthwhile.
const probDirect = 1e-3

// SampleByProbability appends each element of the subtree to out
// independently with probability prob(distance(element, query)).
//
// prob must be non-increasing in distance and map into [0,1]; this is a
// precondition and is not checked. The monotonicity gives per-subtree
// acceptance bounds from the region distance bounds, which drive two
// optimizations: subtrees with a zero upper bound are pruned outright, and
// instead of one coin flip per element the scan index advances by
// geometrically distributed gaps, landing directly on pre-selected
// candidates. A landed candidate is accepted with the corrected ratio
// prob(d)/probUB, so the overall acceptance stays exact.
//
// rng is the only source of randomness used; pass a seeded generator for
// reproducible draws, and distinct generators to concurrent calls.
//
// The return value is the number of candidates whose acceptance test was
// evaluated, a diagnostic for the sampling overhead, not the accepted
// count.
func (n *Node) SampleByProbability(rng *rand.Rand, query orb.Point, prob func(float64) float64, out *[]ElementID) int {
	minDist, _ := n.rect.DistanceBounds(query)
	probUB := prob(minDist)
	if probUB == 0 {
		return 0
	}
	// over one half, the skip distribution degenerates to visiting
	// everything anyway; the acceptance test keeps the true ratio
	if probUB > 0.5 {
		probUB = 1
	}
	probDenom := math.Log1p(-probUB)
	if probDenom == 0 {
		// probability too small to be representable in the gap draw
		return 0
	}

	if n.leaf {
		return n.sampleLeaf(rng, query, prob, probUB, probDenom, out)
	}

	if float64(n.subtreeSize)*probUB < expectedDirect || probUB < probDirect {
		return n.sampleDirect(rng, query, prob, probUB, probDenom, out)
	}

	tested := 0
	for _, child := range n.children {
		tested += child.SampleByProbability(rng, query, prob, out)
	}
	return tested
}

// sampleLeaf scans the leaf with geometric jumps at rate probUB.
func (n *Node) sampleLeaf(rng *rand.Rand, query orb.Point, prob func(float64) float64, probUB, probDenom float64, out *[]ElementID) int {
	tested := 0
	size := len(n.content)
	for i := 0; i < size; i++ {
		if probUB < 1 {
			delta := math.Log(rng.Float64()) / probDenom
			if delta >= float64(size-i) {
				break
			}
			i += int(delta)
		}

		tested++
		d := planar.Distance(n.positions[i], query)
		q := prob(d) / probUB
		if rng.Float64() < q {
			*out = append(*out, n.content[i])
		}
	}
	return tested
}

// sampleDirect skip-samples offsets over the subtree as one virtual flat
// sequence and resolves each offset to its leaf element, avoiding a visit
// to every child when very few matches are expected.
func (n *Node) sampleDirect(rng *rand.Rand, query orb.Point, prob func(float64) float64, probUB, probDenom float64, out *[]ElementID) int {
	tested := 0
	size := n.subtreeSize
	for k := 0; k < size; k++ {
		delta := math.Log(rng.Float64()) / probDenom
		if delta >= float64(size-k) {
			break
		}
		k += int(delta)

		n.maybeAcceptKth(rng, query, prob, probUB, k, out)
		tested++
	}
	return tested
}

// maybeAcceptKth resolves offset k within the subtree by subtracting
// per-child sizes and applies the corrected acceptance test to the element
// it lands on.
func (n *Node) maybeAcceptKth(rng *rand.Rand, query orb.Point, prob func(float64) float64, probUB float64, k int, out *[]ElementID) {
	if n.leaf {
		q := prob(planar.Distance(n.positions[k], query)) / probUB
		if rng.Float64() < q {
			*out = append(*out, n.content[k])
		}
		return
	}
	for _, child := range n.children {
		if k < child.Size() {
			child.maybeAcceptKth(rng, query, prob, probUB, k, out)
			return
		}
		k -= child.Size()
	}
}
