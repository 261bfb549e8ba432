// Package layout holds the fixed geometry of the simulated intersection: the two
// streets, their lanes, stop lines, sensor windows and the road boundary.
//
// The intersection is centred on the origin. Vertical traffic enters at
// Y = +RoadLength/2 and travels toward -Y; horizontal traffic enters at
// X = +RoadLength/2 and travels toward -X. All distances are in abstract
// length units, all times in simulated seconds.
package layout

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Road geometry.
const (
	RoadWidth  = 20.0
	RoadLength = 200.0
	LaneWidth  = RoadWidth / 4
	LaneCount  = 2

	// EvictionMargin is how far past the road half-length a vehicle may travel
	// before it is removed from the active set.
	EvictionMargin = 10.0
)

// Stop lines, measured from the intersection centre along each street's
// travel coordinate.
const (
	StopLineVertical   = 20.0
	StopLineHorizontal = 20.0
)

// Sensor zones.
const (
	SensorZoneLength           = 40.0
	SensorZoneCenterVertical   = 40.0
	SensorZoneCenterHorizontal = 40.0
)

// Vehicle dimensions and spacing.
const (
	CarLength = 4.5
	CarWidth  = 2.2
	MinGap    = 3.0
	// QueueDistance is the minimum centre-to-centre gap between following
	// vehicles in the same lane.
	QueueDistance = CarLength + MinGap
)

// Street identifies one of the two travel axes through the intersection.
type Street string

const (
	Vertical   Street = "vertical"
	Horizontal Street = "horizontal"
)

// Streets lists both axes in their canonical order.
var Streets = [...]Street{Vertical, Horizontal}

// Valid reports whether s names a known street.
func (s Street) Valid() bool { return s == Vertical || s == Horizontal }

// Other returns the crossing street.
func (s Street) Other() Street {
	if s == Vertical {
		return Horizontal
	}
	return Vertical
}

// Index maps a street to 0 (vertical) or 1 (horizontal) for array-indexed state.
func (s Street) Index() int {
	if s == Horizontal {
		return 1
	}
	return 0
}

// ParseStreet converts a textual street name into a Street.
func ParseStreet(name string) (Street, error) {
	switch Street(name) {
	case Vertical, Horizontal:
		return Street(name), nil
	}
	return "", fmt.Errorf("unknown street %q", name)
}

// ValidLane reports whether lane is a lane index on a street.
func ValidLane(lane int) bool { return lane >= 0 && lane < LaneCount }

// OtherLane returns the adjacent lane on a two-lane street.
func OtherLane(lane int) int {
	if lane == 0 {
		return 1
	}
	return 0
}

// StopLine returns the travel coordinate of a street's stop line.
func StopLine(s Street) float64 {
	if s == Vertical {
		return StopLineVertical
	}
	return StopLineHorizontal
}

// LaneCenter returns the lateral coordinate of a lane's centerline.
// Vertical lanes sit at +X, horizontal lanes at -Y; lane 0 is the inner lane.
func LaneCenter(s Street, lane int) float64 {
	offset := LaneWidth/2 + float64(lane)*LaneWidth
	if s == Vertical {
		return offset
	}
	return -offset
}

// Direction is the unit vector of travel for a street.
func Direction(s Street) orb.Point {
	if s == Vertical {
		return orb.Point{0, -1}
	}
	return orb.Point{-1, 0}
}

// BaseHeading is the angle (radians, counter-clockwise from +X) of a street's
// direction of travel.
func BaseHeading(s Street) float64 {
	if s == Vertical {
		return -math.Pi / 2
	}
	return math.Pi
}

// Longitudinal extracts the coordinate a street travels along.
func Longitudinal(s Street, p orb.Point) float64 {
	if s == Vertical {
		return p.Y()
	}
	return p.X()
}

// Lateral extracts the coordinate across a street.
func Lateral(s Street, p orb.Point) float64 {
	if s == Vertical {
		return p.X()
	}
	return p.Y()
}

// WithLateral returns p with its cross-street coordinate replaced.
func WithLateral(s Street, p orb.Point, lateral float64) orb.Point {
	if s == Vertical {
		return orb.Point{lateral, p.Y()}
	}
	return orb.Point{p.X(), lateral}
}

// Entry returns the spawn point of a lane at the upstream edge of the road.
func Entry(s Street, lane int) orb.Point {
	if s == Vertical {
		return orb.Point{LaneCenter(s, lane), RoadLength / 2}
	}
	return orb.Point{RoadLength / 2, LaneCenter(s, lane)}
}

// DistanceToStopLine is the signed distance still to travel before reaching
// the stop line. It is negative once the line has been crossed.
func DistanceToStopLine(s Street, p orb.Point) float64 {
	return Longitudinal(s, p) - StopLine(s)
}

// Ahead returns how far to lies in front of from along a street's direction of
// travel. Negative values mean to is behind.
func Ahead(s Street, from, to orb.Point) float64 {
	return Dot(Sub(to, from), Direction(s))
}

// Bounds is the region a vehicle may occupy before eviction.
func Bounds() orb.Bound {
	limit := RoadLength/2 + EvictionMargin
	return orb.Bound{Min: orb.Point{-limit, -limit}, Max: orb.Point{limit, limit}}
}

// OutOfBounds reports whether p has left the simulated road segment.
func OutOfBounds(p orb.Point) bool {
	return !Bounds().Contains(p)
}
