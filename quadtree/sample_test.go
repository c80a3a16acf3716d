package quadtree_test

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/paulmach/orb"

	"github.com/royalcat/geograph/quadtree"
)

func TestSampleProbabilityOne(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	points := randomPoints(rng, 1000)
	root := buildTree(t, points, quadtree.WithCapacity(16))

	var got []int64
	tested := root.SampleByProbability(rng, orb.Point{0.5, 0.5}, func(float64) float64 { return 1 }, &got)

	if len(got) != len(points) {
		t.Fatalf("prob=1 must return every point: got %d of %d", len(got), len(points))
	}
	if tested != len(points) {
		t.Fatalf("prob=1 must test every candidate: tested %d of %d", tested, len(points))
	}
	slices.Sort(got)
	for i, id := range got {
		if id != int64(i) {
			t.Fatal("prob=1 must return each point exactly once")
		}
	}
}

func TestSampleProbabilityZero(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 3))
	points := randomPoints(rng, 500)
	root := buildTree(t, points)

	var got []int64
	tested := root.SampleByProbability(rng, orb.Point{0.5, 0.5}, func(float64) float64 { return 0 }, &got)

	if tested != 0 {
		t.Fatalf("prob=0 must prune everything, tested %d candidates", tested)
	}
	if len(got) != 0 {
		t.Fatalf("prob=0 must return nothing, got %d", len(got))
	}
}

func TestSampleLowerBoundOne(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	points := randomPoints(rng, 800)
	root := buildTree(t, points, quadtree.WithCapacity(8))

	// the whole unit square is within distance 2 of the query, so the
	// acceptance lower bound is 1 for every subtree and every element
	// must appear
	prob := func(d float64) float64 {
		if d < 2 {
			return 1
		}
		return 0
	}

	var got []int64
	root.SampleByProbability(rng, orb.Point{0.5, 0.5}, prob, &got)
	if len(got) != len(points) {
		t.Fatalf("probLB=1 subtree must be returned completely: got %d of %d", len(got), len(points))
	}
}

func TestSampleConstantRateCalibration(t *testing.T) {
	rng := rand.New(rand.NewPCG(1234, 0))
	const n = 4000
	points := randomPoints(rng, n)
	root := buildTree(t, points, quadtree.WithCapacity(32))

	const rate = 0.3
	var got []int64
	root.SampleByProbability(rng, orb.Point{0.5, 0.5}, func(float64) float64 { return rate }, &got)

	mean := float64(n) * rate
	sigma := math.Sqrt(float64(n) * rate * (1 - rate))
	if math.Abs(float64(len(got))-mean) > 6*sigma {
		t.Fatalf("accepted %d points, expected %.0f +- %.0f", len(got), mean, 6*sigma)
	}

	// independent draws must not repeat an element
	slices.Sort(got)
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Fatalf("element %d accepted twice", got[i])
		}
	}
}

func TestSampleDistanceDecay(t *testing.T) {
	rng := rand.New(rand.NewPCG(77, 0))
	const n = 4000
	points := randomPoints(rng, n)
	root := buildTree(t, points, quadtree.WithCapacity(32))

	query := orb.Point{0.5, 0.5}
	prob := func(d float64) float64 { return math.Exp(-8 * d) }

	var got []int64
	tested := root.SampleByProbability(rng, query, prob, &got)

	if tested >= n {
		t.Fatalf("decaying probability should not test every point: tested %d of %d", tested, n)
	}

	// expected acceptance count, with a wide tolerance
	var mean, variance float64
	for _, p := range points {
		q := prob(math.Hypot(p[0]-query[0], p[1]-query[1]))
		mean += q
		variance += q * (1 - q)
	}
	sigma := math.Sqrt(variance)
	if math.Abs(float64(len(got))-mean) > 6*sigma+1 {
		t.Fatalf("accepted %d points, expected %.1f +- %.1f", len(got), mean, 6*sigma+1)
	}
}

func TestSampleDirectRegime(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	const n = 5000
	points := randomPoints(rng, n)
	root := buildTree(t, points, quadtree.WithCapacity(32))

	// tiny constant rate forces the direct offset-sampling path at the
	// root; work must stay proportional to expected matches, not n
	var got []int64
	tested := root.SampleByProbability(rng, orb.Point{0.5, 0.5}, func(float64) float64 { return 1e-4 }, &got)

	if tested > 64 {
		t.Fatalf("direct regime tested %d candidates for %d points", tested, n)
	}
	if len(got) > tested {
		t.Fatalf("accepted %d but only tested %d", len(got), tested)
	}
}

func BenchmarkSampleByProbability(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 1))
	const n = 100_000
	root := quadtree.New(quadtree.NewRect(0, 0, 1, 1), quadtree.WithCapacity(64))
	for i := 0; i < n; i++ {
		root.Insert(int64(i), orb.Point{rng.Float64(), rng.Float64()})
	}
	prob := func(d float64) float64 { return math.Exp(-32 * d) }

	b.ResetTimer()
	out := make([]int64, 0, 1024)
	for i := 0; i < b.N; i++ {
		out = out[:0]
		root.SampleByProbability(rng, orb.Point{rng.Float64(), rng.Float64()}, prob, &out)
	}
}
