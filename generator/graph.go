package generator

import (
	"golang.org/x/exp/constraints"

	"github.com/royalcat/geograph/quadtree"
)

// Graph is the generated random geometric graph: node count plus an
// undirected edge list over node indices [0, N).
type Graph struct {
	N     int
	Edges [][2]quadtree.ElementID
}

func (g *Graph) AvgDegree() float64 {
	if g.N == 0 {
		return 0
	}
	return 2 * float64(len(g.Edges)) / float64(g.N)
}

func (g *Graph) Degrees() []int {
	degrees := make([]int, g.N)
	for _, e := range g.Edges {
		degrees[e[0]]++
		degrees[e[1]]++
	}
	return degrees
}

// DegreeStats returns the minimum and maximum node degree.
func (g *Graph) DegreeStats() (min, max int) {
	return minMax(g.Degrees())
}

func minMax[T constraints.Ordered](xs []T) (min, max T) {
	if len(xs) == 0 {
		return
	}
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}
