// Package generator builds random geometric graphs on top of the
// quadtree index. A graph is generated by inserting all node positions
// into a tree and then, per node, querying either an exact circle
// (threshold model) or a distance-decaying edge probability
// (probabilistic model). Per-node queries run on a worker pool with
// task-local accumulators, so generation scales across cores without
// shared mutable state beyond the final merge.
package generator

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	mathrand "math/rand"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/fogleman/poissondisc"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/royalcat/geograph/hyperbolic"
	"github.com/royalcat/geograph/quadtree"
)

type GraphGen struct {
	threads   int
	seed      uint64
	capacity  int
	splitMode quadtree.SplitMode
	progress  bool

	log *slog.Logger
}

func New(opts ...Option) *GraphGen {
	o := loadOptions(opts...)
	return &GraphGen{
		threads:   o.threads,
		seed:      o.seed,
		capacity:  o.capacity,
		splitMode: o.splitMode,
		progress:  o.progress,
		log:       o.logger.With("run_id", uuid.NewString()),
	}
}

// BuildIndex bulk-inserts the points into a fresh tree over their
// bounding rectangle and runs the one-shot finalize phase. Insertion is
// single-threaded; the per-leaf finalize passes fork and join internally.
func (g *GraphGen) BuildIndex(points []orb.Point) (*quadtree.Node, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("no points to index")
	}

	root := quadtree.New(boundingRect(points),
		quadtree.WithCapacity(g.capacity),
		quadtree.WithSplitMode(g.splitMode),
	)
	for i, p := range points {
		if err := root.Insert(int64(i), p); err != nil {
			return nil, fmt.Errorf("indexing point %d: %w", i, err)
		}
	}

	root.IndexSubtree(0)
	root.SortLeavesByX()
	root.Recount()
	root.Trim()

	g.log.Debug("index built",
		"points", len(points),
		"height", root.Height(),
		"leaves", root.CountLeaves(),
	)
	return root, nil
}

// boundingRect covers all points; the upper bounds are nudged outward so
// the maxima stay inside the half-open rectangle.
func boundingRect(points []orb.Point) quadtree.Rect {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return quadtree.NewRect(minX, minY,
		math.Nextafter(maxX, math.Inf(1)),
		math.Nextafter(maxY, math.Inf(1)),
	)
}

// Threshold generates the exact random geometric graph: an edge connects
// every pair of points closer than radius.
func (g *GraphGen) Threshold(points []orb.Point, radius float64) (*Graph, error) {
	root, err := g.BuildIndex(points)
	if err != nil {
		return nil, err
	}

	graph := &Graph{N: len(points)}
	var mu sync.Mutex

	bar := g.startBar(len(points))
	p := pool.New().WithMaxGoroutines(g.threads)
	for i := range points {
		p.Go(func() {
			var local []quadtree.ElementID
			root.QueryCircle(points[i], radius, &local)

			buf := make([][2]quadtree.ElementID, 0, len(local)/2)
			for _, j := range local {
				// every pair is seen from both ends, keep one
				if j > int64(i) {
					buf = append(buf, [2]quadtree.ElementID{int64(i), j})
				}
			}

			mu.Lock()
			graph.Edges = append(graph.Edges, buf...)
			mu.Unlock()
			bar.Increment()
		})
	}
	p.Wait()
	bar.Finish()

	sortEdges(graph.Edges)
	g.log.Info("threshold graph generated",
		"nodes", graph.N,
		"edges", humanize.Comma(int64(len(graph.Edges))),
		"avg_degree", graph.AvgDegree(),
	)
	return graph, nil
}

// Probabilistic generates a graph where each pair (u, v) is connected
// independently with probability prob(distance(u, v)). prob must be
// non-increasing in distance and map into [0,1]. Every node runs the
// probabilistic tree query with its own generator derived from the seed,
// so the result does not depend on scheduling.
func (g *GraphGen) Probabilistic(points []orb.Point, prob func(float64) float64) (*Graph, error) {
	root, err := g.BuildIndex(points)
	if err != nil {
		return nil, err
	}

	graph := &Graph{N: len(points)}
	var mu sync.Mutex
	candidates := xsync.NewCounter()

	bar := g.startBar(len(points))
	p := pool.New().WithMaxGoroutines(g.threads)
	for i := range points {
		p.Go(func() {
			rng := rand.New(rand.NewPCG(g.seed, uint64(i)))

			var local []quadtree.ElementID
			tested := root.SampleByProbability(rng, points[i], prob, &local)
			candidates.Add(int64(tested))

			buf := make([][2]quadtree.ElementID, 0, len(local)/2)
			for _, j := range local {
				// the pair is drawn from both ends at the same rate,
				// keeping one direction preserves the edge probability
				if j > int64(i) {
					buf = append(buf, [2]quadtree.ElementID{int64(i), j})
				}
			}

			mu.Lock()
			graph.Edges = append(graph.Edges, buf...)
			mu.Unlock()
			bar.Increment()
		})
	}
	p.Wait()
	bar.Finish()

	sortEdges(graph.Edges)
	g.log.Info("probabilistic graph generated",
		"nodes", graph.N,
		"edges", humanize.Comma(int64(len(graph.Edges))),
		"candidates_tested", humanize.Comma(candidates.Value()),
		"avg_degree", graph.AvgDegree(),
	)
	return graph, nil
}

// UniformPoints draws n points uniformly from the unit square.
func (g *GraphGen) UniformPoints(n int) []orb.Point {
	rng := rand.New(rand.NewPCG(g.seed, 0))
	points := make([]orb.Point, n)
	for i := range points {
		points[i] = orb.Point{rng.Float64(), rng.Float64()}
	}
	return points
}

// PoissonPoints draws a blue-noise point set from the unit square with
// roughly n points. The disc spacing is derived from n assuming the
// usual poisson-disc packing density, so the exact count varies a
// little between seeds.
func (g *GraphGen) PoissonPoints(n int) []orb.Point {
	spacing := 0.84 / math.Sqrt(float64(n))
	rng := mathrand.New(mathrand.NewSource(int64(g.seed)))
	sampled := poissondisc.Sample(0, 0, 1, 1, spacing, 16, rng)
	points := make([]orb.Point, 0, len(sampled))
	for _, p := range sampled {
		points = append(points, orb.Point{p.X, p.Y})
	}
	return points
}

// HyperbolicPoints draws n points from the native hyperbolic disk with
// dispersion alpha and the target radius for the requested average
// degree, projected to the Euclidean plane. The layout is heavily
// clustered around the origin, a useful stress case for the median split
// and the probabilistic query.
func (g *GraphGen) HyperbolicPoints(n int, avgDegree, alpha float64) []orb.Point {
	maxR := hyperbolic.TargetRadius(n, avgDegree, alpha)
	rng := rand.New(rand.NewPCG(g.seed, 0))
	points := make([]orb.Point, n)
	for i := range points {
		phi, r := hyperbolic.RandomPolar(rng, alpha, maxR)
		points[i] = hyperbolic.PolarToCartesian(phi, r)
	}
	return points
}

// startBar returns a running progress bar, or an idle one that only
// counts when progress output is disabled.
func (g *GraphGen) startBar(total int) *pb.ProgressBar {
	if !g.progress {
		return pb.New(total)
	}
	return pb.Start64(int64(total))
}

func sortEdges(edges [][2]quadtree.ElementID) {
	slices.SortFunc(edges, func(a, b [2]quadtree.ElementID) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})
}
