package vehicle

import (
	"math"

	"github.com/cxd309/junction-sim/internal/kinematics"
	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Policy distances (length units) and rates.
const (
	StopLineLookahead    = 120.0 // stop line ignored beyond this
	StopLineHaltDistance = 5.0
	StopLineSlowDistance = 30.0

	ForwardLookahead = 50.0 // forward query range
	ApproachDistance = 30.0 // a car ahead closer than this triggers overtake-or-slow
	QueueStopGap     = 15.0 // queuing: stop below this gap

	OvertakeStopLineClearance = 40.0
	OvertakeMinGap            = 15.0
	OvertakeAbortGap          = 20.0 // blocked overtake: stop below this gap
	LaneClearance             = 30.0 // destination lane must be empty within this radius

	// PathHalfWidth is how far off a vehicle's lateral position another
	// vehicle's center may lie and still block its path. A vehicle halfway
	// through a lane change is within it from both lane centers.
	PathHalfWidth = layout.LaneWidth/2 + layout.CarWidth/2

	LaneChangeRate    = 1.5  // progress per simulated second
	LateralGain       = 2.0  // lateral speed per unit of remaining lateral offset
	BankingFactor     = 0.05 // heading skew (rad) per unit/s of lateral speed
	SkewResetProgress = 0.95
)

// Decision is the longitudinal response chosen for a tick, in increasing
// order of severity.
type Decision int

const (
	Cruise Decision = iota
	SlowDown
	SoftStop
	ForceStop
)

func (d Decision) String() string {
	switch d {
	case SlowDown:
		return "slow_down"
	case SoftStop:
		return "soft_stop"
	case ForceStop:
		return "force_stop"
	}
	return "cruise"
}

func (d Decision) state() MotionState {
	switch d {
	case SlowDown:
		return StateSlowing
	case SoftStop:
		return StateBraking
	case ForceStop:
		return StateStopped
	}
	return StateCruising
}

// Neighbor is the part of another vehicle's state visible to the policy. The
// engine captures every neighbor before the motion pass so each vehicle
// decides against the same picture of the road.
type Neighbor struct {
	ID           uuid.UUID
	Street       layout.Street
	Lane         int
	ChangingLane bool
	Position     orb.Point
}

// NeighborOf captures v as seen by other vehicles.
func NeighborOf(v *Vehicle) Neighbor {
	return Neighbor{
		ID:           v.ID,
		Street:       v.Street,
		Lane:         v.Lane,
		ChangingLane: v.IsChangingLane,
		Position:     v.Position,
	}
}

// Plan is the outcome of the decision phase.
type Plan struct {
	Decision       Decision
	DistToStopLine float64
	StopLineActive bool
	Gap            float64 // to the nearest vehicle ahead; +Inf when the road is clear
	Overtake       bool
	TargetLane     int
}

// Decide evaluates stop-line relevance, the forward gap and the braking rules
// for v without mutating it.
func Decide(v *Vehicle, light signal.Color, traffic []Neighbor) Plan {
	p := Plan{Gap: math.Inf(1)}

	p.DistToStopLine = layout.DistanceToStopLine(v.Street, v.Position)
	p.StopLineActive = p.DistToStopLine > 0 &&
		p.DistToStopLine < StopLineLookahead &&
		(light == signal.Red || light == signal.Yellow)

	if gap, ok := GapAhead(v, traffic); ok {
		p.Gap = gap
	}

	var stop, slow bool
	switch {
	case p.Gap < layout.QueueDistance:
		p.Decision = ForceStop
		return p
	case p.Gap < ApproachDistance:
		if !v.IsChangingLane && p.DistToStopLine > OvertakeStopLineClearance && p.Gap > OvertakeMinGap {
			target := layout.OtherLane(v.Lane)
			if LaneClear(v, target, traffic) {
				p.Overtake = true
				p.TargetLane = target
			} else {
				slow = true
				stop = p.Gap < OvertakeAbortGap
			}
		} else {
			slow = true
			stop = p.Gap < QueueStopGap
		}
	}

	if p.StopLineActive {
		if p.DistToStopLine < StopLineHaltDistance {
			stop = true
		} else if p.DistToStopLine < StopLineSlowDistance {
			slow = true
		}
	}

	switch {
	case stop:
		p.Decision = SoftStop
	case slow:
		p.Decision = SlowDown
	default:
		p.Decision = Cruise
	}
	return p
}

// GapAhead returns the longitudinal distance to the nearest vehicle in front of
// v on the same street within PathHalfWidth of v's lateral position and
// ForwardLookahead ahead.
func GapAhead(v *Vehicle, traffic []Neighbor) (float64, bool) {
	best, found := math.Inf(1), false
	lat := layout.Lateral(v.Street, v.Position)
	for _, n := range traffic {
		if n.ID == v.ID || n.Street != v.Street {
			continue
		}
		if math.Abs(layout.Lateral(v.Street, n.Position)-lat) >= PathHalfWidth {
			continue
		}
		ahead := layout.Ahead(v.Street, v.Position, n.Position)
		if ahead <= 0 || ahead > ForwardLookahead {
			continue
		}
		if ahead < best {
			best, found = ahead, true
		}
	}
	return best, found
}

// LaneClear reports whether the target lane beside v is free of vehicles,
// including any that are themselves mid-lane-change, within LaneClearance.
func LaneClear(v *Vehicle, target int, traffic []Neighbor) bool {
	check := layout.WithLateral(v.Street, v.Position, layout.LaneCenter(v.Street, target))
	for _, n := range traffic {
		if n.ID == v.ID || n.Street != v.Street {
			continue
		}
		if n.Lane != target && !n.ChangingLane {
			continue
		}
		if planar.Distance(n.Position, check) <= LaneClearance {
			return false
		}
	}
	return true
}

// Step advances v by one tick: decide, integrate any lane change, update the
// velocity through model and integrate the position. The forward move is
// trimmed so v never closes within QueueDistance of the vehicle ahead.
func Step(v *Vehicle, dt float64, light signal.Color, traffic []Neighbor, model kinematics.MotionModel) Plan {
	plan := Decide(v, light, traffic)
	dir := layout.Unit(v.Heading())

	if plan.Overtake {
		v.startLaneChange(plan.TargetLane)
	}
	v.advanceLaneChange(dt)

	switch plan.Decision {
	case ForceStop:
		v.Velocity = orb.Point{}
	case SoftStop:
		v.Velocity = model.SoftStop(v.Velocity)
	case SlowDown:
		v.Velocity = model.SlowDown(v.Velocity, dir, v.MaxSpeed)
	default:
		v.Velocity = model.Cruise(v.Velocity, dir, v.MaxSpeed)
	}
	v.Stopped = plan.Decision >= SoftStop
	v.State = plan.Decision.state()

	travel := layout.Direction(v.Street)
	if !v.IsChangingLane {
		// lane keeping: only the along-street component survives
		v.Velocity = layout.Scale(travel, math.Max(0, layout.Dot(v.Velocity, travel)))
	}

	if forward := layout.Dot(v.Velocity, travel) * dt; forward > 0 && !math.IsInf(plan.Gap, 1) {
		allowed := math.Max(0, plan.Gap-layout.QueueDistance)
		if forward > allowed {
			v.Velocity = layout.Scale(v.Velocity, allowed/forward)
			if allowed == 0 {
				v.Stopped = true
				v.State = StateStopped
			}
		}
	}

	v.Position = layout.Add(v.Position, layout.Scale(v.Velocity, dt))
	return plan
}
