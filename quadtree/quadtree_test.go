package quadtree_test

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/royalcat/geograph/quadtree"
)

func unitRect() quadtree.Rect {
	return quadtree.NewRect(0, 0, 1, 1)
}

func randomPoints(rng *rand.Rand, n int) []orb.Point {
	points := make([]orb.Point, n)
	for i := range points {
		points[i] = orb.Point{rng.Float64(), rng.Float64()}
	}
	return points
}

func buildTree(t *testing.T, points []orb.Point, opts ...quadtree.Option) *quadtree.Node {
	t.Helper()
	root := quadtree.New(unitRect(), opts...)
	for i, p := range points {
		if err := root.Insert(int64(i), p); err != nil {
			t.Fatalf("insert %d at (%v, %v): %v", i, p[0], p[1], err)
		}
	}
	return root
}

func TestSplitScenario(t *testing.T) {
	root := quadtree.New(unitRect(), quadtree.WithCapacity(4))

	points := []orb.Point{{0.1, 0.1}, {0.2, 0.2}, {0.8, 0.8}, {0.9, 0.1}}
	for i, p := range points {
		if err := root.Insert(int64(i), p); err != nil {
			t.Fatal(err)
		}
	}
	if !root.IsLeaf() {
		t.Fatal("expected root to still be a leaf at capacity")
	}

	if err := root.Insert(4, orb.Point{0.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	if root.IsLeaf() {
		t.Fatal("expected 5th insert to force a split")
	}
	if root.Size() != 5 {
		t.Fatalf("expected size 5, got %d", root.Size())
	}
	if err := root.Validate(); err != nil {
		t.Fatal(err)
	}

	// both corner points are within 0.1 of (0.15, 0.15)
	var got []int64
	root.QueryCircle(orb.Point{0.15, 0.15}, 0.1, &got)
	slices.Sort(got)
	if !slices.Equal(got, []int64{0, 1}) {
		t.Fatalf("expected elements 0 and 1, got %v", got)
	}

	// a tighter circle near the first point separates the pair
	got = got[:0]
	root.QueryCircle(orb.Point{0.12, 0.12}, 0.05, &got)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected exactly element 0, got %v", got)
	}
}

func TestInsertOutOfRegion(t *testing.T) {
	root := quadtree.New(unitRect())
	err := root.Insert(0, orb.Point{1.5, 0.5})
	if !errors.Is(err, quadtree.ErrOutOfRegion) {
		t.Fatalf("expected ErrOutOfRegion, got %v", err)
	}
	// the upper boundary is exclusive
	if err := root.Insert(0, orb.Point{1, 0}); !errors.Is(err, quadtree.ErrOutOfRegion) {
		t.Fatalf("expected ErrOutOfRegion on boundary, got %v", err)
	}
}

func TestQueryCircleMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	points := randomPoints(rng, 1000)
	root := buildTree(t, points, quadtree.WithCapacity(8))

	for trial := 0; trial < 20; trial++ {
		center := orb.Point{rng.Float64(), rng.Float64()}
		radius := rng.Float64() * 0.3

		var got []int64
		root.QueryCircle(center, radius, &got)

		var want []int64
		for i, p := range points {
			if planar.DistanceSquared(p, center) < radius*radius {
				want = append(want, int64(i))
			}
		}

		slices.Sort(got)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			t.Fatalf("circle (%v, %v) r=%v: got %v, want %v", center[0], center[1], radius, got, want)
		}
	}
}

func TestInvariantsAfterBulkInsert(t *testing.T) {
	for _, mode := range []quadtree.SplitMode{quadtree.SplitMedian, quadtree.SplitCenter} {
		rng := rand.New(rand.NewPCG(7, uint64(mode)))
		points := randomPoints(rng, 500)
		root := buildTree(t, points, quadtree.WithCapacity(5), quadtree.WithSplitMode(mode))

		if root.Size() != len(points) {
			t.Fatalf("mode %d: size %d, want %d", mode, root.Size(), len(points))
		}
		if err := root.Validate(); err != nil {
			t.Fatalf("mode %d: %v", mode, err)
		}
		if root.Height() < 2 {
			t.Fatalf("mode %d: expected the tree to have split", mode)
		}
		if root.CountLeaves() < 4 {
			t.Fatalf("mode %d: expected at least 4 leaves, got %d", mode, root.CountLeaves())
		}

		elements := root.Elements()
		slices.Sort(elements)
		for i, id := range elements {
			if id != int64(i) {
				t.Fatalf("mode %d: elements not a permutation of inserted ids", mode)
			}
		}
	}
}

func TestRemove(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 0))
	points := randomPoints(rng, 200)
	root := buildTree(t, points, quadtree.WithCapacity(4))

	if root.Remove(5, orb.Point{2, 2}) {
		t.Fatal("remove outside the region must report not found")
	}
	if root.Remove(999, points[5]) {
		t.Fatal("remove of an absent id must report not found")
	}

	for i, p := range points {
		before := root.Size()
		if !root.Remove(int64(i), p) {
			t.Fatalf("element %d not found at its position", i)
		}
		if root.Size() != before-1 {
			t.Fatalf("size after removal: %d, want %d", root.Size(), before-1)
		}

		var hits []int64
		root.QueryCircle(p, 1e-9, &hits)
		if slices.Contains(hits, int64(i)) {
			t.Fatalf("removed element %d still returned by query", i)
		}
		if err := root.Validate(); err != nil {
			t.Fatalf("after removing %d: %v", i, err)
		}
	}
	if root.Size() != 0 {
		t.Fatalf("expected empty tree, got size %d", root.Size())
	}
}

func TestCoarsen(t *testing.T) {
	root := quadtree.New(unitRect(), quadtree.WithCapacity(4), quadtree.WithCoarsenLimit(4))

	// spread across all quadrants to force one split
	points := []orb.Point{
		{0.1, 0.1}, {0.9, 0.1}, {0.1, 0.9}, {0.9, 0.9},
		{0.4, 0.4}, {0.6, 0.6},
	}
	for i, p := range points {
		if err := root.Insert(int64(i), p); err != nil {
			t.Fatal(err)
		}
	}
	if root.IsLeaf() {
		t.Fatal("expected split")
	}

	// drop under the coarsen limit
	for i := 0; i < 3; i++ {
		if !root.Remove(int64(i), points[i]) {
			t.Fatalf("remove %d failed", i)
		}
	}
	if !root.IsLeaf() {
		t.Fatal("expected the root to coarsen back into a leaf")
	}

	want := []int64{3, 4, 5}
	got := root.Elements()
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Fatalf("elements after coarsening: %v, want %v", got, want)
	}
	if err := root.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestDegenerateMedianFallsBackToCenter(t *testing.T) {
	root := quadtree.New(unitRect(), quadtree.WithCapacity(4))

	// all points share x = 0, the x-median degenerates to the rect boundary
	for i := 0; i < 8; i++ {
		if err := root.Insert(int64(i), orb.Point{0, float64(i) / 10}); err != nil {
			t.Fatal(err)
		}
	}
	if root.Size() != 8 {
		t.Fatalf("size %d, want 8", root.Size())
	}
	if err := root.Validate(); err != nil {
		t.Fatal(err)
	}

	var got []int64
	root.QueryCircle(orb.Point{0, 0.35}, 0.06, &got)
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
}

func TestCoincidentPointsOverfillLeaf(t *testing.T) {
	root := quadtree.New(unitRect(), quadtree.WithCapacity(4))

	// identical positions exhaust subdivision; once no interior
	// partition point remains the leaf must absorb them instead of
	// failing
	p := orb.Point{0.5, 0.5}
	for i := 0; i < 20; i++ {
		if err := root.Insert(int64(i), p); err != nil {
			t.Fatal(err)
		}
	}
	if root.Size() != 20 {
		t.Fatalf("size %d, want 20", root.Size())
	}

	var got []int64
	root.QueryCircle(p, 0.01, &got)
	if len(got) != 20 {
		t.Fatalf("expected all 20 coincident points, got %d", len(got))
	}
}

func TestPositionsAlignedWithElements(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 0))
	points := randomPoints(rng, 300)
	root := buildTree(t, points, quadtree.WithCapacity(10))

	ids := root.Elements()
	positions := root.Positions()
	if len(ids) != len(positions) {
		t.Fatalf("length mismatch: %d ids, %d positions", len(ids), len(positions))
	}
	for i, id := range ids {
		if positions[i] != points[id] {
			t.Fatalf("position %d not aligned with element %d", i, id)
		}
	}
}
