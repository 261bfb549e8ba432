// Package kinematics defines the MotionModel interface for the longitudinal
// speed response of a vehicle, along with built-in implementations.
//
// The vehicle agent decides *what* to do each tick (stop, brake, crawl, cruise);
// a MotionModel decides *how* the velocity responds. Adding a new model only
// requires implementing MotionModel and registering it in ParseModel; the agent
// and the engine never need to change.
package kinematics

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

// ErrUnknownModel is returned by ParseModel for an unrecognised discriminator.
var ErrUnknownModel = errors.New("unknown kinematics model")

// MotionModel is the speed-response contract every kinematics implementation
// must satisfy. Velocities are planar vectors in units/s; dir is always a unit
// vector along the vehicle's heading. Each method is applied once per tick.
type MotionModel interface {
	// SoftStop decays v toward rest. The result is zero once the vehicle is
	// slow enough to be considered stopped.
	SoftStop(v orb.Point) orb.Point

	// SlowDown eases v toward the model's low approach speed along dir,
	// never targeting more than vMax.
	SlowDown(v, dir orb.Point, vMax float64) orb.Point

	// Cruise eases v toward vMax along dir.
	Cruise(v, dir orb.Point, vMax float64) orb.Point
}

// modelDisc is the minimum JSON structure needed to read the model discriminator.
type modelDisc struct {
	Model string `json:"model"`
}

// ParseModel resolves a MotionModel from its JSON form. The object must carry a
// "model" discriminator key; the remaining keys are forwarded to that model's
// own unmarshaler. An empty document selects the default model.
//
// Supported models:
//   - "smoothing": geometric braking and exponential speed easing.
func ParseModel(data json.RawMessage) (MotionModel, error) {
	if len(data) == 0 || string(data) == "null" {
		return DefaultSmoothing(), nil
	}

	var disc modelDisc
	if err := json.Unmarshal(data, &disc); err != nil {
		return nil, fmt.Errorf("reading kinematics model discriminator: %w", err)
	}

	switch disc.Model {
	case SmoothingModelName, "":
		m := DefaultSmoothing()
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parsing smoothing kinematics: %w", err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, disc.Model)
	}
}
