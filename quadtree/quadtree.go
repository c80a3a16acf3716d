// Package quadtree implements a recursive spatial partition of a 2D
// Euclidean region with point insertion and removal, exact circular range
// queries and probabilistic neighbor sampling. The probabilistic query
// selects points with a caller-supplied, distance-dependent acceptance
// probability without visiting every stored point, which makes random
// geometric graph generation scale sub-quadratically.
package quadtree

import (
	"errors"
	"fmt"
	"slices"

	"github.com/paulmach/orb"
)

// ElementID is the content stored in the tree, a plain numeric identifier
// owned by the caller (typically a graph node index).
type ElementID = int64

// CellID identifies a leaf cell after IndexSubtree has run.
// CellUnassigned marks nodes that have not been indexed yet.
type CellID = int

const CellUnassigned CellID = -1

var (
	// ErrOutOfRegion is returned when a position lies outside the
	// rectangle managed by the node it was handed to.
	ErrOutOfRegion = errors.New("quadtree: position out of region")
	// ErrInvariantViolation reports a broken structural invariant.
	ErrInvariantViolation = errors.New("quadtree: invariant violation")
)

// SplitMode selects how an over-capacity leaf chooses its partition point.
type SplitMode int

const (
	// SplitMedian partitions at the median of the held x and y
	// coordinates. Default; bounds leaf imbalance for skewed inputs.
	SplitMedian SplitMode = iota
	// SplitCenter partitions at the geometric center of the rectangle.
	SplitCenter
)

const defaultCapacity = 20
const defaultCoarsenLimit = 4

// Node is a cell of the quadtree. A node is either a leaf holding points
// directly or an internal node with exactly four children tiling its
// rectangle. There is no separate tree type; every operation is defined on
// a node and its subtree, and the root is just the outermost node.
//
// Mutation is single-writer. Read-only operations and the per-leaf
// finalize passes are safe to run concurrently across disjoint subtrees.
type Node struct {
	rect         Rect
	capacity     int
	coarsenLimit int
	splitMode    SplitMode

	leaf      bool
	content   []ElementID
	positions []orb.Point
	children  []*Node

	subtreeSize int
	cellID      CellID
}

type options struct {
	capacity     int
	coarsenLimit int
	splitMode    SplitMode
}

type Option interface {
	apply(*options)
}

type capacityOption int

func (c capacityOption) apply(o *options) { o.capacity = int(c) }

// WithCapacity sets how many points a leaf holds before it splits.
// Default: 20.
func WithCapacity(capacity int) Option { return capacityOption(capacity) }

type coarsenOption int

func (c coarsenOption) apply(o *options) { o.coarsenLimit = int(c) }

// WithCoarsenLimit sets the combined size under which four leaf children
// are merged back into their parent after a removal. Default: 4.
func WithCoarsenLimit(limit int) Option { return coarsenOption(limit) }

type splitModeOption SplitMode

func (m splitModeOption) apply(o *options) { o.splitMode = SplitMode(m) }

func WithSplitMode(mode SplitMode) Option { return splitModeOption(mode) }

// New creates an empty leaf responsible for rect.
func New(rect Rect, opts ...Option) *Node {
	o := options{
		capacity:     defaultCapacity,
		coarsenLimit: defaultCoarsenLimit,
		splitMode:    SplitMedian,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return &Node{
		rect:         rect,
		capacity:     o.capacity,
		coarsenLimit: o.coarsenLimit,
		splitMode:    o.splitMode,
		leaf:         true,
		cellID:       CellUnassigned,
	}
}

func (n *Node) child(rect Rect) *Node {
	return &Node{
		rect:         rect,
		capacity:     n.capacity,
		coarsenLimit: n.coarsenLimit,
		splitMode:    n.splitMode,
		leaf:         true,
		cellID:       CellUnassigned,
	}
}

func (n *Node) Rect() Rect   { return n.rect }
func (n *Node) IsLeaf() bool { return n.leaf }

// Responsible reports whether pos falls inside the half-open rectangle
// managed by this node.
func (n *Node) Responsible(pos orb.Point) bool {
	return n.rect.Contains(pos)
}

// DistanceBounds returns the tightest (min, max) Euclidean distance from
// query to any point that could lie within this node's region.
func (n *Node) DistanceBounds(query orb.Point) (minDist, maxDist float64) {
	return n.rect.DistanceBounds(query)
}

// OutOfReach reports whether the region managed by this node lies entirely
// outside the circle around query.
func (n *Node) OutOfReach(query orb.Point, radius float64) bool {
	minDist, _ := n.rect.DistanceBounds(query)
	return minDist > radius
}

// Insert adds (id, pos) to the subtree. Returns ErrOutOfRegion when pos is
// not inside this node's rectangle; routing to the correct root is the
// caller's job.
func (n *Node) Insert(id ElementID, pos orb.Point) error {
	if !n.Responsible(pos) {
		return fmt.Errorf("%w: (%v, %v) not in [%v,%v)x[%v,%v)",
			ErrOutOfRegion, pos[0], pos[1], n.rect.MinX, n.rect.MaxX, n.rect.MinY, n.rect.MaxY)
	}
	n.insert(id, pos)
	return nil
}

// insert assumes n is responsible for pos.
func (n *Node) insert(id ElementID, pos orb.Point) {
	if n.leaf {
		if len(n.content) < n.capacity || !n.split() {
			n.content = append(n.content, id)
			n.positions = append(n.positions, pos)
			return
		}
		// fallthrough: the node is internal now
	}
	for _, child := range n.children {
		if child.Responsible(pos) {
			child.insert(id, pos)
			n.subtreeSize++
			return
		}
	}
	panic(fmt.Errorf("%w: no child responsible for (%v, %v)", ErrInvariantViolation, pos[0], pos[1]))
}

// split converts a full leaf into an internal node with four fresh leaf
// children and pushes the held points down into them. Returns false when
// no strictly interior partition point exists; the leaf then stays a leaf
// and is allowed to run over capacity.
func (n *Node) split() bool {
	mid, ok := n.partitionPoint()
	if !ok {
		return false
	}

	quads := n.rect.quadrants(mid)
	n.children = make([]*Node, 4)
	for i, q := range quads {
		n.children[i] = n.child(q)
	}
	n.leaf = false

	for i, id := range n.content {
		n.insert(id, n.positions[i])
	}
	// the reinsertion loop counted every held point once
	n.subtreeSize = len(n.content)
	n.content = nil
	n.positions = nil
	return true
}

// partitionPoint picks the point dividing both axes into four quadrants.
// In median mode a degenerate median (all held points sharing a
// coordinate) falls back to the geometric center on that axis.
func (n *Node) partitionPoint() (orb.Point, bool) {
	mid := n.rect.Center()
	if n.splitMode == SplitMedian {
		xs := make([]float64, len(n.positions))
		ys := make([]float64, len(n.positions))
		for i, p := range n.positions {
			xs[i] = p[0]
			ys[i] = p[1]
		}
		slices.Sort(xs)
		slices.Sort(ys)
		if mx := xs[len(xs)/2]; mx > n.rect.MinX && mx < n.rect.MaxX {
			mid[0] = mx
		}
		if my := ys[len(ys)/2]; my > n.rect.MinY && my < n.rect.MaxY {
			mid[1] = my
		}
	}
	interior := mid[0] > n.rect.MinX && mid[0] < n.rect.MaxX &&
		mid[1] > n.rect.MinY && mid[1] < n.rect.MaxY
	return mid, interior
}

// Remove deletes (id, pos) from the subtree and reports whether it was
// found. A position outside the node's region is a normal miss, not an
// error, so that callers can probe every root of a forest.
//
// After a successful removal the node merges its children back into
// itself if all four are leaves and their combined size dropped under the
// coarsen limit. Coarsening is checked only at the immediate parent, it
// does not propagate further up within the same call.
func (n *Node) Remove(id ElementID, pos orb.Point) bool {
	if !n.Responsible(pos) {
		return false
	}
	if n.leaf {
		for i, held := range n.content {
			if held == id {
				n.content = slices.Delete(n.content, i, i+1)
				n.positions = slices.Delete(n.positions, i, i+1)
				return true
			}
		}
		return false
	}

	removed := false
	allLeaves := true
	for _, child := range n.children {
		if !child.leaf {
			allLeaves = false
		}
		if child.Remove(id, pos) {
			if removed {
				panic(fmt.Errorf("%w: element %d removed from two children", ErrInvariantViolation, id))
			}
			removed = true
		}
	}
	if !removed {
		return false
	}
	n.subtreeSize--

	if allLeaves && n.Size() < n.coarsenLimit {
		n.coarsen()
	}
	return true
}

func (n *Node) coarsen() {
	content := make([]ElementID, 0, n.subtreeSize)
	positions := make([]orb.Point, 0, n.subtreeSize)
	for _, child := range n.children {
		content = append(content, child.content...)
		positions = append(positions, child.positions...)
	}
	n.children = nil
	n.content = content
	n.positions = positions
	n.leaf = true
}

// Size returns the number of points stored in the subtree. For internal
// nodes this is the cached subtree counter, kept current by Insert and
// Remove; call Recount after any pass that bypassed them.
func (n *Node) Size() int {
	if n.leaf {
		return len(n.content)
	}
	return n.subtreeSize
}

// Height returns the height of the subtree; a leaf has height 1.
func (n *Node) Height() int {
	h := 1
	for _, child := range n.children {
		if ch := child.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}

// CountLeaves returns the number of leaf cells in the subtree.
func (n *Node) CountLeaves() int {
	if n.leaf {
		return 1
	}
	count := 0
	for _, child := range n.children {
		count += child.CountLeaves()
	}
	return count
}

// Elements collects all element ids in the subtree in traversal order.
func (n *Node) Elements() []ElementID {
	out := make([]ElementID, 0, n.Size())
	n.appendElements(&out)
	return out
}

func (n *Node) appendElements(out *[]ElementID) {
	if n.leaf {
		*out = append(*out, n.content...)
		return
	}
	for _, child := range n.children {
		child.appendElements(out)
	}
}

// Positions collects all stored positions in the subtree in traversal
// order, index-aligned with Elements.
func (n *Node) Positions() []orb.Point {
	out := make([]orb.Point, 0, n.Size())
	n.appendPositions(&out)
	return out
}

func (n *Node) appendPositions(out *[]orb.Point) {
	if n.leaf {
		*out = append(*out, n.positions...)
		return
	}
	for _, child := range n.children {
		child.appendPositions(out)
	}
}

// Validate walks the subtree and checks the structural invariants: leaf
// xor internal, exactly four children tiling the parent rectangle, every
// stored point inside its leaf, and cached sizes matching a recount.
// Returns an error wrapping ErrInvariantViolation on the first failure.
func (n *Node) Validate() error {
	if n.leaf {
		if len(n.children) != 0 {
			return fmt.Errorf("%w: leaf with children", ErrInvariantViolation)
		}
		if len(n.content) != len(n.positions) {
			return fmt.Errorf("%w: content/positions length mismatch: %d != %d",
				ErrInvariantViolation, len(n.content), len(n.positions))
		}
		for i, pos := range n.positions {
			if !n.Responsible(pos) {
				return fmt.Errorf("%w: element %d at (%v, %v) outside leaf rect",
					ErrInvariantViolation, n.content[i], pos[0], pos[1])
			}
		}
		return nil
	}

	if len(n.children) != 4 {
		return fmt.Errorf("%w: internal node with %d children", ErrInvariantViolation, len(n.children))
	}
	if len(n.content) != 0 || len(n.positions) != 0 {
		return fmt.Errorf("%w: internal node holding content", ErrInvariantViolation)
	}
	sw, se, nw, ne := n.children[0].rect, n.children[1].rect, n.children[2].rect, n.children[3].rect
	tiled := sw.MinX == n.rect.MinX && sw.MinY == n.rect.MinY &&
		ne.MaxX == n.rect.MaxX && ne.MaxY == n.rect.MaxY &&
		sw.MaxX == se.MinX && sw.MaxY == nw.MinY &&
		nw.MaxX == ne.MinX && se.MaxY == ne.MinY &&
		se.MaxX == n.rect.MaxX && nw.MaxY == n.rect.MaxY &&
		nw.MinX == n.rect.MinX && se.MinY == n.rect.MinY
	if !tiled {
		return fmt.Errorf("%w: children do not tile parent rect", ErrInvariantViolation)
	}

	size := 0
	for _, child := range n.children {
		if err := child.Validate(); err != nil {
			return err
		}
		size += child.Size()
	}
	if size != n.subtreeSize {
		return fmt.Errorf("%w: cached subtree size %d, recounted %d",
			ErrInvariantViolation, n.subtreeSize, size)
	}
	return nil
}
