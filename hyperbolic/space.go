// Package hyperbolic provides the coordinate transforms used to embed
// points of the native hyperbolic disk into the Euclidean plane before
// indexing them. Callers draw polar coordinates, project them to
// Cartesian and insert the projected points; distances for edge
// probabilities are then computed back in hyperbolic space.
package hyperbolic

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"
)

// PolarToCartesian projects the polar coordinate (phi, r) onto the plane.
func PolarToCartesian(phi, r float64) orb.Point {
	return orb.Point{r * math.Cos(phi), r * math.Sin(phi)}
}

// CartesianToPolar is the inverse projection. The returned angle is in
// [0, 2*pi).
func CartesianToPolar(p orb.Point) (phi, r float64) {
	phi = math.Atan2(p[1], p[0])
	if phi < 0 {
		phi += 2 * math.Pi
	}
	return phi, math.Hypot(p[0], p[1])
}

// Distance returns the hyperbolic distance between two points given in
// native polar coordinates, by the hyperbolic law of cosines.
func Distance(phi1, r1, phi2, r2 float64) float64 {
	cosh := math.Cosh(r1)*math.Cosh(r2) -
		math.Sinh(r1)*math.Sinh(r2)*math.Cos(phi1-phi2)
	if cosh < 1 {
		// rounding for near-coincident points
		return 0
	}
	return math.Acosh(cosh)
}

// DistanceCartesian is Distance applied to projected points.
func DistanceCartesian(a, b orb.Point) float64 {
	phi1, r1 := CartesianToPolar(a)
	phi2, r2 := CartesianToPolar(b)
	return Distance(phi1, r1, phi2, r2)
}

// TargetRadius returns the radius of the native disk for which a
// threshold hyperbolic random graph with n nodes and dispersion alpha
// (alpha > 0.5) reaches the requested expected average degree:
// R = 2 ln(2n / (pi k xi^-2)) with xi = 2 alpha / (2 alpha - 1).
func TargetRadius(n int, avgDegree, alpha float64) float64 {
	xiInv := (2*alpha - 1) / (2 * alpha)
	v := avgDegree * (math.Pi / 2) * xiInv * xiInv
	return 2 * math.Log(float64(n)/v)
}

// RandomPolar draws a point of the native disk of radius maxR with
// angular coordinate uniform in [0, 2*pi) and radial density
// alpha*sinh(alpha*r) / (cosh(alpha*maxR)-1), via inverse transform
// sampling.
func RandomPolar(rng *rand.Rand, alpha, maxR float64) (phi, r float64) {
	phi = rng.Float64() * 2 * math.Pi
	u := rng.Float64()
	r = math.Acosh(1+u*(math.Cosh(alpha*maxR)-1)) / alpha
	return phi, r
}
