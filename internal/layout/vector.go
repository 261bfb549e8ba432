package layout

import (
	"math"

	"github.com/paulmach/orb"
)

// Planar vector helpers over orb.Point. orb treats points as positions; these
// give them the arithmetic needed for velocities.

func Add(a, b orb.Point) orb.Point { return orb.Point{a[0] + b[0], a[1] + b[1]} }

func Sub(a, b orb.Point) orb.Point { return orb.Point{a[0] - b[0], a[1] - b[1]} }

func Scale(a orb.Point, k float64) orb.Point { return orb.Point{a[0] * k, a[1] * k} }

func Dot(a, b orb.Point) float64 { return a[0]*b[0] + a[1]*b[1] }

// Norm is the Euclidean length of a.
func Norm(a orb.Point) float64 { return math.Hypot(a[0], a[1]) }

// Lerp moves a toward b by fraction t.
func Lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

// Unit returns the unit vector at angle theta.
func Unit(theta float64) orb.Point { return orb.Point{math.Cos(theta), math.Sin(theta)} }
