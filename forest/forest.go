// Package forest routes quadtree operations across several roots, each
// owning a disjoint rectangle. Callers that cover a large or irregular
// area with multiple trees use it to find the root responsible for a
// position without scanning every root.
package forest

import (
	"math/rand/v2"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/qtree"

	"github.com/royalcat/geograph/quadtree"
)

// Forest holds the registered roots and their routing index. The mutex
// guards the root set and the routing index only, not the trees: routing
// takes the read lock while AddRegion takes the write lock. Mutating a
// routed tree (Insert, Remove) follows the single-writer discipline of
// quadtree.Node; the forest adds no synchronization around it.
type Forest struct {
	mu        sync.RWMutex
	idCounter uint64
	roots     []*quadtree.Node
	qt        qtree.QTree
}

func New() *Forest {
	return &Forest{}
}

// AddRegion creates a new empty root over rect and registers it in the
// routing index. Rectangles of different roots must not overlap.
func (f *Forest) AddRegion(rect quadtree.Rect, opts ...quadtree.Option) *quadtree.Node {
	root := quadtree.New(rect, opts...)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.roots = append(f.roots, root)
	f.qt.Insert(
		[2]float64{rect.MinX, rect.MinY},
		[2]float64{rect.MaxX, rect.MaxY},
		f.idCounter,
	)
	f.idCounter++
	return root
}

// rootsAt collects the roots whose bounding box covers the point. The
// routing index works on closed boxes, so a point on a shared edge can
// yield more than one candidate; the half-open Responsible predicate of
// the root disambiguates.
func (f *Forest) rootsAt(pos orb.Point) []*quadtree.Node {
	var candidates []*quadtree.Node
	p := [2]float64{pos[0], pos[1]}
	f.qt.Search(p, p, func(_, _ [2]float64, data interface{}) bool {
		candidates = append(candidates, f.roots[data.(uint64)])
		return true
	})
	return candidates
}

// Insert routes (id, pos) to the responsible root. Returns
// quadtree.ErrOutOfRegion when no root covers pos.
func (f *Forest) Insert(id quadtree.ElementID, pos orb.Point) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, root := range f.rootsAt(pos) {
		if root.Responsible(pos) {
			return root.Insert(id, pos)
		}
	}
	return quadtree.ErrOutOfRegion
}

// Remove probes the candidate roots for (id, pos). Probing a root that
// does not own the position is a normal miss.
func (f *Forest) Remove(id quadtree.ElementID, pos orb.Point) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, root := range f.rootsAt(pos) {
		if root.Remove(id, pos) {
			return true
		}
	}
	return false
}

// QueryCircle appends all ids within radius of center across all roots
// whose region intersects the circle's bounding box.
func (f *Forest) QueryCircle(center orb.Point, radius float64, out *[]quadtree.ElementID) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	min := [2]float64{center[0] - radius, center[1] - radius}
	max := [2]float64{center[0] + radius, center[1] + radius}
	f.qt.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		f.roots[data.(uint64)].QueryCircle(center, radius, out)
		return true
	})
}

// SampleByProbability runs the probabilistic query against every root;
// roots with a zero acceptance upper bound prune themselves. Returns the
// total number of candidates tested.
func (f *Forest) SampleByProbability(rng *rand.Rand, query orb.Point, prob func(float64) float64, out *[]quadtree.ElementID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	tested := 0
	for _, root := range f.roots {
		tested += root.SampleByProbability(rng, query, prob, out)
	}
	return tested
}

// Size returns the total number of points across all roots.
func (f *Forest) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	size := 0
	for _, root := range f.roots {
		size += root.Size()
	}
	return size
}

// Roots returns the registered roots, for finalize passes that the
// caller runs per root.
func (f *Forest) Roots() []*quadtree.Node {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return append([]*quadtree.Node(nil), f.roots...)
}
