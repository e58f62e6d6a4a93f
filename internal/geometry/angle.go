// Package geometry computes joint angles from landmark positions.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateGeometry is returned when one of the rays forming an angle has
// (near) zero length or a coordinate is not finite, so no meaningful angle exists.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// MinRayLength is the smallest ray length, in normalized image units, that
// still yields a trustworthy angle.
const MinRayLength = 1e-9

// Point is a position in normalized image space. Z is ignored by the 2-D
// functions.
type Point struct {
	X float64
	Y float64
	Z float64
}

func (p Point) vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

func (p Point) finite() bool {
	for _, v := range [...]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Angle3D returns the unsigned angle at vertex b formed by the rays b->a and
// b->c, in degrees within [0, 180].
func Angle3D(a, b, c Point) (float64, error) {
	if !a.finite() || !b.finite() || !c.finite() {
		return 0, ErrDegenerateGeometry
	}
	return angleBetween(r3.Sub(a.vec(), b.vec()), r3.Sub(c.vec(), b.vec()))
}

// Angle2D is Angle3D restricted to the x,y plane.
func Angle2D(a, b, c Point) (float64, error) {
	return Angle3D(flatten(a), flatten(b), flatten(c))
}

// SignedAngle2D returns the signed planar angle from ray b->a to ray b->c in
// degrees within (-180, 180]. Its absolute value matches Angle2D.
func SignedAngle2D(a, b, c Point) (float64, error) {
	if !a.finite() || !b.finite() || !c.finite() {
		return 0, ErrDegenerateGeometry
	}
	ux, uy := a.X-b.X, a.Y-b.Y
	vx, vy := c.X-b.X, c.Y-b.Y
	if math.Hypot(ux, uy) < MinRayLength || math.Hypot(vx, vy) < MinRayLength {
		return 0, ErrDegenerateGeometry
	}
	cross := ux*vy - uy*vx
	dot := ux*vx + uy*vy
	return math.Atan2(cross, dot) * 180 / math.Pi, nil
}

func angleBetween(u, v r3.Vec) (float64, error) {
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < MinRayLength || nv < MinRayLength {
		return 0, ErrDegenerateGeometry
	}
	cos := r3.Dot(u, v) / (nu * nv)
	// Rounding can push |cos| marginally past 1.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, nil
}

func flatten(p Point) Point { return Point{X: p.X, Y: p.Y} }
