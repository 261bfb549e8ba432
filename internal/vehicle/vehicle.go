// Package vehicle defines the simulated car and the per-tick agent policy that
// moves it: stop-line compliance, car-following, queuing and overtaking.
package vehicle

import (
	"errors"
	"fmt"

	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// ErrInvalidLane is returned when a lane or target lane is outside {0,1}.
var ErrInvalidLane = errors.New("vehicle: invalid lane")

// MotionState describes how the vehicle responded on its last tick.
type MotionState string

const (
	StateCruising MotionState = "cruising"
	StateSlowing  MotionState = "slowing"
	StateBraking  MotionState = "braking"
	StateStopped  MotionState = "stopped"
)

// Vehicle is one car on the intersection approach. Street never changes after
// construction; Lane changes only when a lane change completes.
type Vehicle struct {
	ID       uuid.UUID
	Street   layout.Street
	Lane     int
	Position orb.Point
	Velocity orb.Point // units/s
	MaxSpeed float64   // units/s, fixed for the vehicle's lifetime
	Stopped  bool
	State    MotionState

	// Lane-change state. LaneChangeProgress is only meaningful while
	// IsChangingLane is set.
	TargetLane          int
	IsChangingLane      bool
	LaneChangeProgress  float64
	LaneChangeDirection int
	LaneChanges         int // completed lane changes
}

// New places a vehicle at the entry point of a lane, at rest.
func New(id uuid.UUID, street layout.Street, lane int, maxSpeed float64) (*Vehicle, error) {
	if !street.Valid() {
		return nil, fmt.Errorf("vehicle %s: unknown street %q", id, street)
	}
	if !layout.ValidLane(lane) {
		return nil, fmt.Errorf("vehicle %s: lane %d: %w", id, lane, ErrInvalidLane)
	}
	if maxSpeed <= 0 {
		return nil, fmt.Errorf("vehicle %s: max speed must be positive, got %v", id, maxSpeed)
	}
	return &Vehicle{
		ID:         id,
		Street:     street,
		Lane:       lane,
		TargetLane: lane,
		Position:   layout.Entry(street, lane),
		MaxSpeed:   maxSpeed,
		State:      StateCruising,
	}, nil
}

// Speed is the magnitude of the velocity vector.
func (v *Vehicle) Speed() float64 { return layout.Norm(v.Velocity) }

// Heading is the direction the vehicle faces, derived from its street and
// lane-change state. During a lane change the heading is skewed toward the
// target lane in proportion to the lateral speed, straightening out near the end.
func (v *Vehicle) Heading() float64 {
	h := layout.BaseHeading(v.Street)
	if !v.IsChangingLane || v.LaneChangeProgress >= SkewResetProgress {
		return h
	}
	skew := v.lateralSpeed() * BankingFactor
	if v.Street == layout.Horizontal {
		return h - skew
	}
	return h + skew
}

// lateralSpeed is the critically-damped approach speed toward the target lane.
func (v *Vehicle) lateralSpeed() float64 {
	target := layout.LaneCenter(v.Street, v.TargetLane)
	return (target - layout.Lateral(v.Street, v.Position)) * LateralGain
}

// StartLaneChange begins a maneuver toward target.
func (v *Vehicle) StartLaneChange(target int) error {
	if !layout.ValidLane(target) {
		return fmt.Errorf("vehicle %s: target lane %d: %w", v.ID, target, ErrInvalidLane)
	}
	v.startLaneChange(target)
	return nil
}

// startLaneChange begins a maneuver toward a target lane already known to be valid.
func (v *Vehicle) startLaneChange(target int) {
	if v.IsChangingLane || target == v.Lane {
		return
	}
	v.IsChangingLane = true
	v.TargetLane = target
	v.LaneChangeProgress = 0
	if target > v.Lane {
		v.LaneChangeDirection = 1
	} else {
		v.LaneChangeDirection = -1
	}
}

// advanceLaneChange integrates one tick of an in-progress lane change. On
// completion the vehicle snaps onto the target lane's centerline.
func (v *Vehicle) advanceLaneChange(dt float64) {
	if !v.IsChangingLane {
		return
	}
	v.LaneChangeProgress += dt * LaneChangeRate
	if v.LaneChangeProgress >= 1 {
		v.LaneChangeProgress = 1
		v.IsChangingLane = false
		v.Lane = v.TargetLane
		v.LaneChanges++
		v.Position = layout.WithLateral(v.Street, v.Position, layout.LaneCenter(v.Street, v.Lane))
		return
	}
	lat := layout.Lateral(v.Street, v.Position)
	v.Position = layout.WithLateral(v.Street, v.Position, lat+v.lateralSpeed()*dt)
}

// Validate checks the vehicle's structural invariants.
func (v *Vehicle) Validate() error {
	if !layout.ValidLane(v.Lane) || !layout.ValidLane(v.TargetLane) {
		return fmt.Errorf("vehicle %s: lane %d target %d: %w", v.ID, v.Lane, v.TargetLane, ErrInvalidLane)
	}
	if v.Speed() > v.MaxSpeed+1e-9 {
		return fmt.Errorf("vehicle %s: speed %.3f exceeds max %.3f", v.ID, v.Speed(), v.MaxSpeed)
	}
	return nil
}

// Pose is a point-in-time snapshot of a vehicle for renderers and logs.
type Pose struct {
	ID           uuid.UUID     `json:"id"`
	Street       layout.Street `json:"street"`
	Lane         int           `json:"lane"`
	X            float64       `json:"x"`
	Y            float64       `json:"y"`
	Heading      float64       `json:"heading"` // radians
	Speed        float64       `json:"speed"`
	Stopped      bool          `json:"stopped"`
	State        MotionState   `json:"state"`
	ChangingLane bool          `json:"changing_lane"`
}

// Pose returns a point-in-time snapshot of the vehicle.
func (v *Vehicle) Pose() Pose {
	return Pose{
		ID:           v.ID,
		Street:       v.Street,
		Lane:         v.Lane,
		X:            v.Position.X(),
		Y:            v.Position.Y(),
		Heading:      v.Heading(),
		Speed:        v.Speed(),
		Stopped:      v.Stopped,
		State:        v.State,
		ChangingLane: v.IsChangingLane,
	}
}
