// Package server runs a simulation against the wall clock and publishes its
// frames to WebSocket clients, with Prometheus metrics alongside.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cxd309/junction-sim/internal/engine"
	"github.com/sirupsen/logrus"
)

// LoopConfig sets the pacing of the realtime loop.
type LoopConfig struct {
	// Speed converts wall-clock seconds into simulated seconds.
	Speed float64
	// FPS is how many ticks are attempted per wall-clock second.
	FPS int
}

// DefaultLoopConfig runs at the standard simulation speed and 60 frames a second.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{Speed: engine.SimulationSpeed, FPS: 60}
}

// Loop is the only goroutine that touches the simulation. Inputs submitted
// from other goroutines are queued and applied between ticks.
type Loop struct {
	sim     *engine.Simulation
	cfg     LoopConfig
	hub     *Hub
	metrics *Metrics
	log     logrus.FieldLogger

	commands chan Command

	mu   sync.RWMutex
	last engine.Frame
}

// NewLoop builds a loop driving sim.
func NewLoop(sim *engine.Simulation, cfg LoopConfig, log logrus.FieldLogger) (*Loop, error) {
	if !(cfg.Speed > 0) || cfg.FPS <= 0 {
		return nil, fmt.Errorf("server: invalid loop config %+v", cfg)
	}
	return &Loop{
		sim:      sim,
		cfg:      cfg,
		log:      log,
		commands: make(chan Command, 64),
		last:     sim.Frame(),
	}, nil
}

// Publish attaches the hub frames are broadcast to and the metrics they are
// recorded in. It must be called before Run; without it frames are only
// kept for Frame.
func (l *Loop) Publish(hub *Hub, metrics *Metrics) {
	l.hub = hub
	l.metrics = metrics
}

// Submit queues an input change for the next tick boundary.
func (l *Loop) Submit(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	select {
	case l.commands <- cmd:
		return nil
	default:
		return ErrBacklog
	}
}

// Frame returns the most recently published frame.
func (l *Loop) Frame() engine.Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// Run ticks the simulation until ctx is cancelled. Each tick advances the
// simulation by the wall-clock time since the previous one, scaled by Speed
// and split into steps no longer than engine.MaxTimeStep. An invariant
// violation stops the loop with an error.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.FPS))
	defer ticker.Stop()

	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-l.commands:
			l.apply(cmd)
		case now := <-ticker.C:
			elapsed := now.Sub(prev).Seconds()
			prev = now
			if err := l.advance(elapsed * l.cfg.Speed); err != nil {
				return err
			}
		}
	}
}

func (l *Loop) apply(cmd Command) {
	if cmd.Density != nil {
		l.sim.SetDensity(*cmd.Density)
	}
	if cmd.Mode != nil {
		if err := l.sim.SetMode(*cmd.Mode); err != nil {
			l.log.WithError(err).Warn("ignoring mode change")
		}
	}
	l.log.WithFields(logrus.Fields{"density": l.sim.Density(), "t": l.sim.Time()}).Info("inputs changed")
}

// advance steps the simulation by dt simulated seconds and publishes the
// resulting frame.
func (l *Loop) advance(dt float64) error {
	frame := l.sim.Frame()
	for dt > 1e-12 {
		step := min(dt, engine.MaxTimeStep)
		f, err := l.sim.Step(step)
		if err != nil {
			return err
		}
		frame = f
		dt -= step
	}

	l.mu.Lock()
	l.last = frame
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.Observe(frame, l.sim.Stats())
	}
	if l.hub != nil {
		msg, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("marshaling frame: %w", err)
		}
		l.hub.Broadcast(msg)
	}
	return nil
}
