package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/sensor"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/cxd309/junction-sim/internal/spawn"
	"github.com/cxd309/junction-sim/internal/vehicle"
)

// ErrInvalidInput is wrapped by every error caused by a malformed input document.
var ErrInvalidInput = errors.New("invalid simulation input")

const (
	// SimulationSpeed scales wall-clock seconds into simulated seconds.
	SimulationSpeed = 0.2

	// MaxTimeStep caps a single tick so a lane change or the queue envelope
	// can never be overshot.
	MaxTimeStep = 0.1

	DefaultDensity  = 50
	DefaultTimeStep = SimulationSpeed / 60 // one 60 Hz frame
	DefaultSeed     = 1
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id"`
	RunTime      float64 `json:"run_time"`     // simulated seconds
	TimeStep     float64 `json:"time_step"`    // simulated seconds
	LogInterval  int     `json:"log_interval"` // ticks between logged frames
	Seed         int64   `json:"seed"`         // 0 selects DefaultSeed
}

// SimulationConfig holds the initial values of the external inputs.
type SimulationConfig struct {
	Density int         `json:"density"`
	Mode    signal.Mode `json:"mode"`
	// InitialGreen defaults to horizontal when absent; an explicit empty
	// string starts with every axis red.
	InitialGreen *layout.Street `json:"initial_green"`
}

// Control changes an external input during a batch run. It is applied at the
// first tick starting at or after At.
type Control struct {
	At      float64      `json:"at"`
	Density *int         `json:"density,omitempty"`
	Mode    *signal.Mode `json:"mode,omitempty"`
}

// SimulationInput is the JSON-serialisable input to the engine.
type SimulationInput struct {
	Meta         SimulationMeta   `json:"simulation_meta"`
	Config       SimulationConfig `json:"config"`
	VehicleModel json.RawMessage  `json:"vehicle_model,omitempty"`
	Controls     []Control        `json:"controls,omitempty"`
}

// withDefaults fills unset fields and checks the rest.
func (in SimulationInput) withDefaults() (SimulationInput, error) {
	m := &in.Meta
	switch {
	case m.RunTime < 0 || math.IsNaN(m.RunTime):
		return in, fmt.Errorf("%w: run_time %v", ErrInvalidInput, m.RunTime)
	case m.TimeStep == 0:
		m.TimeStep = DefaultTimeStep
	case !(m.TimeStep > 0) || m.TimeStep > MaxTimeStep:
		return in, fmt.Errorf("%w: time_step %v outside (0, %v]", ErrInvalidInput, m.TimeStep, MaxTimeStep)
	}
	if m.LogInterval < 0 {
		return in, fmt.Errorf("%w: log_interval %d", ErrInvalidInput, m.LogInterval)
	}
	if m.LogInterval == 0 {
		m.LogInterval = 1
	}
	if m.Seed == 0 {
		m.Seed = DefaultSeed
	}

	c := &in.Config
	if c.Density == 0 {
		c.Density = DefaultDensity
	}
	c.Density = spawn.ClampDensity(c.Density)
	if c.Mode == "" {
		c.Mode = signal.Adaptive
	}
	if _, err := signal.ParseMode(string(c.Mode)); err != nil {
		return in, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if c.InitialGreen == nil {
		h := layout.Horizontal
		c.InitialGreen = &h
	}
	if g := *c.InitialGreen; g != "" && !g.Valid() {
		return in, fmt.Errorf("%w: initial_green %q", ErrInvalidInput, g)
	}

	controls := make([]Control, len(in.Controls))
	copy(controls, in.Controls)
	for i, ctl := range controls {
		if ctl.At < 0 || math.IsNaN(ctl.At) {
			return in, fmt.Errorf("%w: control %d at %v", ErrInvalidInput, i, ctl.At)
		}
		if ctl.Mode != nil {
			if _, err := signal.ParseMode(string(*ctl.Mode)); err != nil {
				return in, fmt.Errorf("%w: control %d: %w", ErrInvalidInput, i, err)
			}
		}
	}
	sort.SliceStable(controls, func(i, j int) bool { return controls[i].At < controls[j].At })
	in.Controls = controls
	return in, nil
}

// Frame is the state published after a tick: everything a renderer reads.
type Frame struct {
	Timestamp float64         `json:"timestamp"` // simulated seconds
	Tick      int             `json:"tick"`
	Density   int             `json:"density"`
	Signal    signal.Snapshot `json:"signal"`
	Counts    sensor.Counts   `json:"counts"`
	Zones     sensor.Zones    `json:"zones"`
	Vehicles  []vehicle.Pose  `json:"vehicles"`
}

// Stats are running totals over the life of a simulation.
type Stats struct {
	Spawned     int `json:"spawned"`
	Evicted     int `json:"evicted"`
	Transitions int `json:"transitions"` // right-of-way grants
	LaneChanges int `json:"lane_changes"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta   SimulationMeta `json:"simulation_meta"`
	Output []Frame        `json:"output"`
	Stats  Stats          `json:"stats"`
}
