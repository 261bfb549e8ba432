// Package signal implements the intersection's signal controller: a timed state
// machine over {RED, YELLOW, GREEN} for each street that decides which axis has
// right-of-way, either from sensor demand (adaptive mode) or from a fixed cycle.
//
// Each axis's colors are a small fluo state machine. All timers, including the
// yellow hold of an in-flight transition, advance only by the simulated dt
// passed to Update; the machines move on events sent from Update and
// RequestGreen, and their guards read those simulated timers. Nothing is
// scheduled on the wall clock, so a paused or sped-up simulation keeps every
// phase in step.
package signal

import (
	"errors"
	"fmt"

	"github.com/anggasct/fluo"
	"github.com/cxd309/junction-sim/internal/layout"
)

var (
	// ErrConflictingGreens means both axes were GREEN at once.
	ErrConflictingGreens = errors.New("signal: both axes green")

	// ErrIllegalTransition means an axis machine refused an event the
	// controller relies on.
	ErrIllegalTransition = errors.New("signal: illegal axis transition")
)

// timeEpsilon absorbs float drift when a deadline is reached by summed dt values.
const timeEpsilon = 1e-9

// Color is the aspect shown to one axis.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
)

// Mode selects the decision policy.
type Mode string

const (
	Adaptive Mode = "adaptive"
	Fixed    Mode = "fixed"
)

// ParseMode converts a textual mode into a Mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case Adaptive, Fixed:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown signal mode %q", name)
}

// Timing holds the controller's durations in simulated seconds.
type Timing struct {
	MaxGreen      float64 `json:"max_green"`      // green held longer than this yields to any waiting demand
	MinGreen      float64 `json:"min_green"`      // green cannot be preempted by demand before this
	Yellow        float64 `json:"yellow"`         // yellow hold during a transition
	StandardCycle float64 `json:"standard_cycle"` // round-robin period when demand is tied
	FixedGreen    float64 `json:"fixed_green"`    // cycle period in fixed mode
}

// DefaultTiming returns the standard controller durations.
func DefaultTiming() Timing {
	return Timing{
		MaxGreen:      15,
		MinGreen:      2,
		Yellow:        1,
		StandardCycle: 5,
		FixedGreen:    4,
	}
}

// Config is the controller's start-up configuration.
type Config struct {
	Timing Timing
	Mode   Mode
	// InitialGreen is the axis holding right-of-way at start. Empty starts
	// with every axis red.
	InitialGreen layout.Street
}

// DefaultConfig starts in adaptive mode with the horizontal axis green.
func DefaultConfig() Config {
	return Config{Timing: DefaultTiming(), Mode: Adaptive, InitialGreen: layout.Horizontal}
}

// AxisState is the published state of one axis.
type AxisState struct {
	Street       layout.Street `json:"street"`
	Color        Color         `json:"color"`
	GreenElapsed float64       `json:"green_elapsed"`
}

// Snapshot is a read-only copy of the controller state taken after an update.
type Snapshot struct {
	Mode               Mode          `json:"mode"`
	Axes               [2]AxisState  `json:"axes"`
	Transitioning      bool          `json:"transitioning"`
	TransitionTarget   layout.Street `json:"transition_target,omitempty"`
	YellowRemaining    float64       `json:"yellow_remaining"`
	StandardCycleTimer float64       `json:"standard_cycle_timer"`
	FixedTimer         float64       `json:"fixed_timer"`
}

// Color returns the aspect shown to a street.
func (s Snapshot) Color(street layout.Street) Color { return s.Axes[street.Index()].Color }

// Controller is the signal state machine. It is not safe for concurrent use;
// the simulation owning it serialises all calls.
type Controller struct {
	timing Timing
	mode   Mode

	axes         [2]fluo.Machine
	greenElapsed [2]float64
	fault        error

	inFlight        bool
	target          layout.Street
	yellowRemaining float64

	standardCycleTimer float64
	fixedTimer         float64
}

// NewController builds a controller from cfg.
func NewController(cfg Config) (*Controller, error) {
	t := cfg.Timing
	if t.MaxGreen <= 0 || t.MinGreen < 0 || t.Yellow < 0 || t.StandardCycle <= 0 || t.FixedGreen <= 0 {
		return nil, fmt.Errorf("signal: invalid timing %+v", t)
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.InitialGreen != "" && !cfg.InitialGreen.Valid() {
		return nil, fmt.Errorf("signal: invalid initial green %q", cfg.InitialGreen)
	}
	c := &Controller{timing: t, mode: cfg.Mode}
	for i, street := range layout.Streets {
		initial := Red
		if street == cfg.InitialGreen {
			initial = Green
		}
		m, err := newAxisMachine(initial, c.yellowCleared)
		if err != nil {
			return nil, err
		}
		c.axes[i] = m
	}
	return c, nil
}

// yellowCleared guards the yellow-to-red edge.
func (c *Controller) yellowCleared(fluo.Context) bool {
	return c.yellowRemaining <= timeEpsilon
}

func (c *Controller) color(i int) Color { return Color(c.axes[i].CurrentState()) }

// send delivers ev to one axis and records a refusal as a fault.
func (c *Controller) send(street layout.Street, ev string) {
	res := c.axes[street.Index()].HandleEvent(ev, nil)
	if !res.Processed && c.fault == nil {
		c.fault = fmt.Errorf("%w: %s axis in %s refused %q: %s",
			ErrIllegalTransition, street, res.PreviousState, ev, res.RejectionReason)
	}
}

// Mode returns the active decision policy.
func (c *Controller) Mode() Mode { return c.mode }

// SetMode switches policy. The change is consulted from the next Update.
func (c *Controller) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.mode = m
	return nil
}

// Color returns the aspect currently shown to a street.
func (c *Controller) Color(street layout.Street) Color { return c.color(street.Index()) }

// Transitioning reports whether a right-of-way change is in flight.
func (c *Controller) Transitioning() bool { return c.inFlight }

// Update advances the controller by dt simulated seconds given the current
// sensor counts. It must be called once per tick, after sensor sampling.
// While a transition is in flight only that transition progresses.
func (c *Controller) Update(dt float64, countV, countH int) Snapshot {
	if !(dt > 0) {
		return c.Snapshot()
	}

	for i := range c.axes {
		if c.color(i) == Green {
			c.greenElapsed[i] += dt
		} else {
			c.greenElapsed[i] = 0
		}
	}

	if c.inFlight {
		c.yellowRemaining -= dt
		for _, street := range layout.Streets {
			if c.Color(street) == Yellow {
				// refused while the hold is still running
				c.axes[street.Index()].HandleEvent(evTick, nil)
			}
		}
		if c.yellowRemaining <= timeEpsilon {
			c.grant()
		}
		return c.Snapshot()
	}

	if c.mode == Fixed {
		c.decideFixed(dt)
	} else {
		c.decideAdaptive(dt, [2]int{countV, countH})
	}
	return c.Snapshot()
}

// RequestGreen starts handing right-of-way to street. It is a no-op, returning
// false, while another transition is in flight or when street is already green.
// A green crossing axis is first held yellow for the yellow duration; a red one
// lets the grant happen immediately.
func (c *Controller) RequestGreen(street layout.Street) bool {
	if c.inFlight || !street.Valid() || c.Color(street) == Green {
		return false
	}

	c.inFlight = true
	c.target = street

	other := street.Other()
	if c.Color(other) == Green {
		c.yellowRemaining = c.timing.Yellow
		c.send(other, evRelinquish)
		c.greenElapsed[other.Index()] = 0
		return true
	}
	c.grant()
	return true
}

// grant completes the in-flight transition. The crossing axis must already
// be red; a yellow one is cleared first.
func (c *Controller) grant() {
	c.yellowRemaining = 0
	if other := c.target.Other(); c.Color(other) == Yellow {
		c.send(other, evTick)
	}
	c.send(c.target, evGrant)
	c.greenElapsed[c.target.Index()] = 0
	c.inFlight = false
	c.target = ""
}

// greenAxis returns the axis currently holding green, if any.
func (c *Controller) greenAxis() (layout.Street, bool) {
	for _, s := range layout.Streets {
		if c.Color(s) == Green {
			return s, true
		}
	}
	return "", false
}

// decideAdaptive applies, in priority order: forced switch on starvation,
// demand preemption after the minimum green, and round-robin on tied demand.
func (c *Controller) decideAdaptive(dt float64, counts [2]int) {
	green, ok := c.greenAxis()
	if !ok {
		// All red outside a transition only happens at an all-red start. With
		// no demand anywhere the intersection stays dark.
		v, h := counts[layout.Vertical.Index()], counts[layout.Horizontal.Index()]
		switch {
		case v == 0 && h == 0:
		case h > v:
			c.RequestGreen(layout.Horizontal)
		default:
			c.RequestGreen(layout.Vertical)
		}
		return
	}

	other := green.Other()
	held := c.greenElapsed[green.Index()]
	mine, theirs := counts[green.Index()], counts[other.Index()]

	switch {
	case held > c.timing.MaxGreen && theirs > 0:
		c.RequestGreen(other)
	case theirs > mine && held >= c.timing.MinGreen:
		c.RequestGreen(other)
	case mine == theirs && mine > 0:
		c.standardCycleTimer += dt
		if c.standardCycleTimer > c.timing.StandardCycle {
			c.standardCycleTimer = 0
			c.RequestGreen(other)
		}
	}
}

func (c *Controller) decideFixed(dt float64) {
	c.fixedTimer += dt
	if c.fixedTimer <= c.timing.FixedGreen {
		return
	}
	c.fixedTimer = 0
	if green, ok := c.greenAxis(); ok {
		c.RequestGreen(green.Other())
		return
	}
	c.RequestGreen(layout.Vertical)
}

// Validate checks the controller's structural invariants.
func (c *Controller) Validate() error {
	if c.fault != nil {
		return c.fault
	}
	if c.color(0) == Green && c.color(1) == Green {
		return ErrConflictingGreens
	}
	for i := range c.axes {
		switch color := c.color(i); color {
		case Red, Yellow, Green:
		default:
			return fmt.Errorf("signal: axis %s has invalid color %q", layout.Streets[i], color)
		}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Mode:               c.mode,
		Transitioning:      c.inFlight,
		TransitionTarget:   c.target,
		YellowRemaining:    c.yellowRemaining,
		StandardCycleTimer: c.standardCycleTimer,
		FixedTimer:         c.fixedTimer,
	}
	for i, street := range layout.Streets {
		s.Axes[i] = AxisState{Street: street, Color: c.color(i), GreenElapsed: c.greenElapsed[i]}
	}
	return s
}
