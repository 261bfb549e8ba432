package kinematics

import (
	"fmt"
	"math"

	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/paulmach/orb"
)

// SmoothingModelName is the JSON discriminator string for the Smoothing model.
const SmoothingModelName = "smoothing"

// Smoothing implements MotionModel with per-tick geometric braking and
// exponential easing toward a target velocity. It is the default model.
//
// JSON discriminator: "model": "smoothing"
type Smoothing struct {
	BrakeFactor   float64 `json:"brake_factor"`   // per-tick speed multiplier under a soft stop
	StopThreshold float64 `json:"stop_threshold"` // units/s; slower than this snaps to rest
	CrawlSpeed    float64 `json:"crawl_speed"`    // units/s; target when slowing down
	SlowBlend     float64 `json:"slow_blend"`     // per-tick easing toward CrawlSpeed
	CruiseBlend   float64 `json:"cruise_blend"`   // per-tick easing toward vMax
}

// DefaultSmoothing returns the Smoothing model with its standard constants.
func DefaultSmoothing() Smoothing {
	return Smoothing{
		BrakeFactor:   0.85,
		StopThreshold: 0.5,
		CrawlSpeed:    10,
		SlowBlend:     0.1,
		CruiseBlend:   0.05,
	}
}

// Validate checks that every factor lies in a range that keeps speeds bounded.
func (s Smoothing) Validate() error {
	if s.BrakeFactor < 0 || s.BrakeFactor >= 1 {
		return fmt.Errorf("smoothing: brake_factor %v outside [0,1)", s.BrakeFactor)
	}
	if s.SlowBlend <= 0 || s.SlowBlend > 1 {
		return fmt.Errorf("smoothing: slow_blend %v outside (0,1]", s.SlowBlend)
	}
	if s.CruiseBlend <= 0 || s.CruiseBlend > 1 {
		return fmt.Errorf("smoothing: cruise_blend %v outside (0,1]", s.CruiseBlend)
	}
	if s.CrawlSpeed < 0 || s.StopThreshold < 0 {
		return fmt.Errorf("smoothing: negative speed parameter")
	}
	return nil
}

func (s Smoothing) SoftStop(v orb.Point) orb.Point {
	v = layout.Scale(v, s.BrakeFactor)
	if layout.Norm(v) < s.StopThreshold {
		return orb.Point{}
	}
	return v
}

func (s Smoothing) SlowDown(v, dir orb.Point, vMax float64) orb.Point {
	return layout.Lerp(v, layout.Scale(dir, math.Min(s.CrawlSpeed, vMax)), s.SlowBlend)
}

func (s Smoothing) Cruise(v, dir orb.Point, vMax float64) orb.Point {
	return layout.Lerp(v, layout.Scale(dir, vMax), s.CruiseBlend)
}
