// Package engine implements the intersection simulation loop.
//
// The simulation advances tick by tick in a fixed sequence:
//
//  1. Spawn - the spawner may admit vehicles at the upstream edge of each lane.
//
//  2. Motion - every vehicle decides and moves against the same pre-tick
//     snapshot of its neighbours, so the order vehicles are visited in never
//     changes the outcome. A vehicle's forward move is trimmed to the queue
//     envelope of the vehicle ahead.
//
//  3. Eviction - vehicles that left the road bounds are removed, using the
//     positions computed in the motion pass.
//
//  4. Sensing - each street's detection zone is counted.
//
//  5. Control - the signal controller advances with the fresh counts.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/cxd309/junction-sim/internal/kinematics"
	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/sensor"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/cxd309/junction-sim/internal/spawn"
	"github.com/cxd309/junction-sim/internal/vehicle"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Simulation is the single owner of all mutable simulation state. It is not
// safe for concurrent use.
type Simulation struct {
	meta SimulationMeta
	log  logrus.FieldLogger

	density    int
	controller *signal.Controller
	zones      sensor.Zones
	spawner    *spawn.Spawner
	model      kinematics.MotionModel

	vehicles    []*vehicle.Vehicle
	controls    []Control
	nextControl int

	curTime float64
	tick    int
	counts  sensor.Counts
	lights  signal.Snapshot
	stats   Stats
}

// Option customises a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger used for light changes, spawns and evictions.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Simulation) { s.log = l }
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// New constructs a Simulation from a SimulationInput.
func New(input SimulationInput, opts ...Option) (*Simulation, error) {
	input, err := input.withDefaults()
	if err != nil {
		return nil, err
	}

	model, err := kinematics.ParseModel(input.VehicleModel)
	if err != nil {
		return nil, fmt.Errorf("%w: vehicle model: %w", ErrInvalidInput, err)
	}

	controller, err := signal.NewController(signal.Config{
		Timing:       signal.DefaultTiming(),
		Mode:         input.Config.Mode,
		InitialGreen: *input.Config.InitialGreen,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s := &Simulation{
		meta:       input.Meta,
		log:        discardLogger(),
		density:    input.Config.Density,
		controller: controller,
		zones:      sensor.DefaultZones(),
		spawner:    spawn.New(rand.New(rand.NewSource(input.Meta.Seed))),
		model:      model,
		controls:   input.Controls,
		lights:     controller.Snapshot(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetDensity changes the traffic density. Values outside [1,100] are clamped.
func (s *Simulation) SetDensity(density int) {
	s.density = spawn.ClampDensity(density)
}

// Density returns the current traffic density.
func (s *Simulation) Density() int { return s.density }

// SetMode switches the signal policy from the next controller update.
func (s *Simulation) SetMode(m signal.Mode) error {
	if err := s.controller.SetMode(m); err != nil {
		return err
	}
	s.lights.Mode = m
	return nil
}

// Time returns the simulated seconds elapsed.
func (s *Simulation) Time() float64 { return s.curTime }

// Stats returns the running totals.
func (s *Simulation) Stats() Stats { return s.stats }

// Step advances the simulation by dt simulated seconds and returns the
// published frame. A dt that is not positive leaves the state untouched; a dt
// above MaxTimeStep is clamped. An error means an internal invariant was
// violated and the simulation must not be stepped again.
func (s *Simulation) Step(dt float64) (Frame, error) {
	if !(dt > 0) {
		return s.Frame(), nil
	}
	dt = math.Min(dt, MaxTimeStep)

	if err := s.applyControls(); err != nil {
		return Frame{}, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
	}

	admitted, err := s.spawner.Tick(dt, s.density, s.vehicles)
	if err != nil {
		return Frame{}, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
	}
	for _, v := range admitted {
		s.vehicleLog(v).Trace("vehicle spawned")
	}
	s.vehicles = append(s.vehicles, admitted...)
	s.stats.Spawned += len(admitted)

	traffic := lo.Map(s.vehicles, func(v *vehicle.Vehicle, _ int) vehicle.Neighbor {
		return vehicle.NeighborOf(v)
	})
	for _, v := range s.vehicles {
		changes := v.LaneChanges
		vehicle.Step(v, dt, s.controller.Color(v.Street), traffic, s.model)
		s.stats.LaneChanges += v.LaneChanges - changes
	}

	s.vehicles = lo.Filter(s.vehicles, func(v *vehicle.Vehicle, _ int) bool {
		if layout.OutOfBounds(v.Position) {
			s.vehicleLog(v).Trace("vehicle evicted")
			s.stats.Evicted++
			return false
		}
		return true
	})

	s.counts = s.zones.Sample(s.vehicles)

	before := s.lights
	s.lights = s.controller.Update(dt, s.counts.Vertical, s.counts.Horizontal)
	s.curTime += dt
	s.tick++
	s.logLightChanges(before, s.lights)

	if err := s.validate(); err != nil {
		return Frame{}, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
	}
	return s.Frame(), nil
}

// applyControls applies every scheduled input change that is due.
func (s *Simulation) applyControls() error {
	for ; s.nextControl < len(s.controls); s.nextControl++ {
		ctl := s.controls[s.nextControl]
		if ctl.At > s.curTime+1e-9 {
			return nil
		}
		if ctl.Density != nil {
			s.SetDensity(*ctl.Density)
		}
		if ctl.Mode != nil {
			if err := s.SetMode(*ctl.Mode); err != nil {
				return fmt.Errorf("control at %v: %w", ctl.At, err)
			}
		}
	}
	return nil
}

func (s *Simulation) vehicleLog(v *vehicle.Vehicle) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"vehicle_id": v.ID,
		"street":     v.Street,
		"lane":       v.Lane,
		"t":          s.curTime,
	})
}

func (s *Simulation) logLightChanges(before, after signal.Snapshot) {
	for i, axis := range after.Axes {
		from := before.Axes[i].Color
		if from == axis.Color {
			continue
		}
		if axis.Color == signal.Green {
			s.stats.Transitions++
		}
		s.log.WithFields(logrus.Fields{
			"axis": axis.Street,
			"from": from,
			"to":   axis.Color,
			"t":    s.curTime,
		}).Debug("light changed")
	}
}

// validate checks the invariants that must hold after every tick.
func (s *Simulation) validate() error {
	if err := s.controller.Validate(); err != nil {
		return err
	}
	for _, v := range s.vehicles {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the state published after the last completed tick.
func (s *Simulation) Frame() Frame {
	return Frame{
		Timestamp: s.curTime,
		Tick:      s.tick,
		Density:   s.density,
		Signal:    s.lights,
		Counts:    s.counts,
		Zones:     s.zones,
		Vehicles: lo.Map(s.vehicles, func(v *vehicle.Vehicle, _ int) vehicle.Pose {
			return v.Pose()
		}),
	}
}

// Run executes the simulation for the configured run time and returns the log.
// Every LogInterval-th frame is recorded, starting with the initial state.
// Cancelling ctx stops the run at the next tick boundary; the frames logged so
// far are returned with the context's error.
func (s *Simulation) Run(ctx context.Context) (SimulationLog, error) {
	out := SimulationLog{Meta: s.meta, Output: []Frame{s.Frame()}}
	steps := int(math.Ceil(s.meta.RunTime/s.meta.TimeStep - 1e-6))
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			out.Stats = s.stats
			return out, fmt.Errorf("at t=%.2f: %w", s.curTime, err)
		}
		frame, err := s.Step(s.meta.TimeStep)
		if err != nil {
			return SimulationLog{}, err
		}
		if i%s.meta.LogInterval == 0 {
			out.Output = append(out.Output, frame)
		}
	}
	out.Stats = s.stats
	return out, nil
}

// RunJSON is the primary entry point for the CLI and WASM targets. It accepts
// a JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string, opts ...Option) (string, error) {
	var input SimulationInput
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("%w: decoding JSON: %w", ErrInvalidInput, err)
	}

	sim, err := New(input, opts...)
	if err != nil {
		return "", err
	}

	simLog, err := sim.Run(context.Background())
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
