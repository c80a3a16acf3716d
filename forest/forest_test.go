package forest_test

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"github.com/royalcat/geograph/forest"
	"github.com/royalcat/geograph/quadtree"
)

func TestRouting(t *testing.T) {
	f := forest.New()
	f.AddRegion(quadtree.NewRect(0, 0, 1, 1), quadtree.WithCapacity(4))
	f.AddRegion(quadtree.NewRect(1, 0, 2, 1), quadtree.WithCapacity(4))

	if err := f.Insert(1, orb.Point{0.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := f.Insert(2, orb.Point{1.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	// the shared edge x=1 belongs to the right region
	if err := f.Insert(3, orb.Point{1, 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := f.Insert(4, orb.Point{2.5, 0.5}); !errors.Is(err, quadtree.ErrOutOfRegion) {
		t.Fatalf("expected ErrOutOfRegion, got %v", err)
	}

	if f.Size() != 3 {
		t.Fatalf("size %d, want 3", f.Size())
	}
}

func TestQueryAcrossRegions(t *testing.T) {
	f := forest.New()
	f.AddRegion(quadtree.NewRect(0, 0, 1, 1), quadtree.WithCapacity(4))
	f.AddRegion(quadtree.NewRect(1, 0, 2, 1), quadtree.WithCapacity(4))

	f.Insert(1, orb.Point{0.95, 0.5})
	f.Insert(2, orb.Point{1.05, 0.5})
	f.Insert(3, orb.Point{1.9, 0.9})

	var got []int64
	f.QueryCircle(orb.Point{1, 0.5}, 0.1, &got)
	slices.Sort(got)
	if !slices.Equal(got, []int64{1, 2}) {
		t.Fatalf("expected elements on both sides of the seam, got %v", got)
	}
}

func TestRemoveProbing(t *testing.T) {
	f := forest.New()
	f.AddRegion(quadtree.NewRect(0, 0, 1, 1))
	f.AddRegion(quadtree.NewRect(1, 0, 2, 1))

	pos := orb.Point{1.5, 0.5}
	f.Insert(7, pos)

	if f.Remove(7, orb.Point{0.5, 0.5}) {
		t.Fatal("remove at the wrong position must miss")
	}
	if !f.Remove(7, pos) {
		t.Fatal("remove at the stored position must succeed")
	}
	if f.Size() != 0 {
		t.Fatalf("size %d after removal, want 0", f.Size())
	}
}

func TestSampleOverForest(t *testing.T) {
	rng := rand.New(rand.NewPCG(17, 0))
	f := forest.New()
	f.AddRegion(quadtree.NewRect(0, 0, 1, 1), quadtree.WithCapacity(8))
	f.AddRegion(quadtree.NewRect(1, 0, 2, 1), quadtree.WithCapacity(8))

	n := 0
	for i := 0; i < 400; i++ {
		if err := f.Insert(int64(i), orb.Point{rng.Float64() * 2, rng.Float64()}); err != nil {
			t.Fatal(err)
		}
		n++
	}

	var got []int64
	f.SampleByProbability(rng, orb.Point{1, 0.5}, func(float64) float64 { return 1 }, &got)
	if len(got) != n {
		t.Fatalf("prob=1 over the forest must return every point: %d of %d", len(got), n)
	}
}
