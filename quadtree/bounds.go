package quadtree

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Rect is an axis-aligned rectangle, half-open on both axes:
// [MinX,MaxX) x [MinY,MaxY).
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func NewRect(minX, minY, maxX, maxY float64) Rect {
	return Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func (r Rect) Contains(pos orb.Point) bool {
	return pos[0] >= r.MinX && pos[0] < r.MaxX && pos[1] >= r.MinY && pos[1] < r.MaxY
}

func (r Rect) Center() orb.Point {
	return orb.Point{(r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2}
}

// quadrants cuts the rectangle at mid into southwest, southeast, northwest
// and northeast parts. The four parts tile r exactly, no gap and no overlap.
func (r Rect) quadrants(mid orb.Point) [4]Rect {
	return [4]Rect{
		{r.MinX, r.MinY, mid[0], mid[1]}, // southwest
		{mid[0], r.MinY, r.MaxX, mid[1]}, // southeast
		{r.MinX, mid[1], mid[0], r.MaxY}, // northwest
		{mid[0], mid[1], r.MaxX, r.MaxY}, // northeast
	}
}

// DistanceBounds returns the tightest lower and upper bound on the Euclidean
// distance from query to any point inside the rectangle. The minimum is zero
// when the query lies inside; otherwise it is attained on a boundary edge or
// at a corner. The maximum is always attained at one of the corners.
func (r Rect) DistanceBounds(query orb.Point) (minDist, maxDist float64) {
	minDist = math.Inf(1)
	if r.Contains(query) {
		minDist = 0
	}

	update := func(p orb.Point) {
		d := planar.Distance(p, query)
		if d < minDist {
			minDist = d
		}
		if d > maxDist {
			maxDist = d
		}
	}

	// boundary points closest along each axis, only valid if the projection
	// of the query falls within the rectangle span
	if query[0] > r.MinX && query[0] < r.MaxX {
		update(orb.Point{query[0], r.MinY})
		update(orb.Point{query[0], r.MaxY})
	}
	if query[1] > r.MinY && query[1] < r.MaxY {
		update(orb.Point{r.MinX, query[1]})
		update(orb.Point{r.MaxX, query[1]})
	}

	update(orb.Point{r.MinX, r.MinY})
	update(orb.Point{r.MinX, r.MaxY})
	update(orb.Point{r.MaxX, r.MinY})
	update(orb.Point{r.MaxX, r.MaxY})

	return minDist, maxDist
}
