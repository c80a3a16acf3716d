package quadtree

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb"
	"github.com/sourcegraph/conc/pool"
)

// The operations in this file make up the one-shot finalize phase run
// after bulk insertion: id assignment, recounting, reordering and storage
// trimming. Leaves are disjoint, so the per-leaf passes fork one task per
// leaf and join before returning.

// IndexSubtree numbers every leaf with a dense, contiguous cell id in
// depth-first order, starting at next. Internal nodes receive the highest
// leaf id underneath them. Returns the next free id.
func (n *Node) IndexSubtree(next CellID) CellID {
	if n.leaf {
		n.cellID = next
		return next + 1
	}
	for _, child := range n.children {
		next = child.IndexSubtree(next)
	}
	n.cellID = next - 1
	return next
}

// CellID returns the id of the leaf cell containing pos, or
// CellUnassigned when pos is outside the region or IndexSubtree has not
// run.
func (n *Node) CellID(pos orb.Point) CellID {
	if !n.Responsible(pos) {
		return CellUnassigned
	}
	if n.leaf {
		return n.cellID
	}
	for _, child := range n.children {
		if id := child.CellID(pos); id != CellUnassigned {
			return id
		}
	}
	return CellUnassigned
}

// MaxCellID returns the highest cell id in the subtree.
func (n *Node) MaxCellID() CellID {
	if n.leaf {
		return n.cellID
	}
	max := CellUnassigned
	for _, child := range n.children {
		if id := child.MaxCellID(); id > max {
			max = id
		}
	}
	return max
}

// Recount rebuilds the cached subtree sizes bottom-up. Required after any
// mutation pass that bypassed Insert and Remove, such as Reindex.
func (n *Node) Recount() {
	if n.leaf {
		return
	}
	n.subtreeSize = 0
	for _, child := range n.children {
		child.Recount()
		n.subtreeSize += child.Size()
	}
}

// Reindex reassigns the stored element ids to the dense range starting at
// offset, in traversal order, and returns the next free id. The old ids
// are discarded; the caller is expected to reorder its own arrays with
// the permutation implied by Elements before and after. Leaves are
// rewritten as parallel tasks.
func (n *Node) Reindex(offset int) int {
	p := pool.New()
	next := n.reindex(p, offset)
	p.Wait()
	return next
}

func (n *Node) reindex(p *pool.Pool, offset int) int {
	if n.leaf {
		node, start := n, offset
		p.Go(func() {
			for i := range node.content {
				node.content[i] = ElementID(start + i)
			}
		})
		return offset + len(n.content)
	}
	for _, child := range n.children {
		offset = child.reindex(p, offset)
	}
	return offset
}

// SortLeavesByX reorders every leaf's (content, position) pairs by
// x-coordinate, independently per leaf. Improves locality for later
// scans.
func (n *Node) SortLeavesByX() {
	p := pool.New()
	n.sortLeavesByX(p)
	p.Wait()
}

func (n *Node) sortLeavesByX(p *pool.Pool) {
	if !n.leaf {
		for _, child := range n.children {
			child.sortLeavesByX(p)
		}
		return
	}

	node := n
	p.Go(func() {
		perm := make([]int, len(node.content))
		for i := range perm {
			perm[i] = i
		}
		slices.SortFunc(perm, func(a, b int) int {
			return cmp.Compare(node.positions[a][0], node.positions[b][0])
		})

		content := make([]ElementID, len(node.content))
		positions := make([]orb.Point, len(node.positions))
		for i, pi := range perm {
			content[i] = node.content[pi]
			positions[i] = node.positions[pi]
		}
		node.content = content
		node.positions = positions
	})
}

// Trim releases excess slice capacity in the whole subtree. Call once
// construction is complete.
func (n *Node) Trim() {
	n.content = slices.Clip(n.content)
	n.positions = slices.Clip(n.positions)
	for _, child := range n.children {
		child.Trim()
	}
}
