// Package spawn admits new vehicles at the upstream edge of each lane, paced by
// the traffic density setting and capped by a density-derived population limit.
package spawn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/vehicle"
	"github.com/google/uuid"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
)

const (
	MinDensity = 1
	MaxDensity = 100

	// SafeDistance is the clearance required around a lane's entry point.
	SafeDistance = 45.0

	MinMaxSpeed = 25.0
	MaxMaxSpeed = 55.0

	// AggressiveDensity is the density above which every lane is tried with
	// AggressiveProbability.
	AggressiveDensity     = 60
	AggressiveProbability = 0.9
)

// Slot is one of the four entry lanes.
type Slot struct {
	Street layout.Street
	Lane   int
}

// Slots lists every entry lane.
var Slots = [...]Slot{
	{layout.Vertical, 0},
	{layout.Vertical, 1},
	{layout.Horizontal, 0},
	{layout.Horizontal, 1},
}

// ClampDensity bounds density to [MinDensity, MaxDensity].
func ClampDensity(density int) int { return lo.Clamp(density, MinDensity, MaxDensity) }

// Interval is the simulated time between spawn attempts.
func Interval(density int) float64 {
	return math.Max(0.2, 2.0-float64(density)/100*1.8)
}

// Capacity is the population limit for a density.
func Capacity(density int) int {
	return 15 + int(math.Floor(float64(density)/100*90))
}

// AdmissionProbability is the per-lane chance of admitting a vehicle on an
// eligible attempt.
func AdmissionProbability(density int) float64 {
	if density > AggressiveDensity {
		return AggressiveProbability
	}
	return float64(density) / 100
}

// Spawner paces admission attempts. All randomness, including vehicle IDs,
// comes from rng so a seeded run is reproducible.
type Spawner struct {
	rng       *rand.Rand
	sinceLast float64
}

// New returns a Spawner drawing from rng.
func New(rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng}
}

// Tick advances the spawn timer by dt and, once the density interval has
// elapsed, tries each lane in shuffled order. It returns the admitted vehicles;
// the caller owns adding them to the active set. Unsafe lanes are skipped
// silently and retried on a later attempt.
func (s *Spawner) Tick(dt float64, density int, active []*vehicle.Vehicle) ([]*vehicle.Vehicle, error) {
	density = ClampDensity(density)
	s.sinceLast += dt
	if s.sinceLast <= Interval(density) {
		return nil, nil
	}
	s.sinceLast = 0

	order := Slots
	s.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	p := AdmissionProbability(density)
	capacity := Capacity(density)
	population := len(active)

	var admitted []*vehicle.Vehicle
	for _, slot := range order {
		if population >= capacity {
			break
		}
		if s.rng.Float64() >= p {
			continue
		}
		if !Clear(slot, active) {
			continue
		}
		id, err := uuid.NewRandomFromReader(s.rng)
		if err != nil {
			return admitted, fmt.Errorf("spawn %s lane %d: vehicle id: %w", slot.Street, slot.Lane, err)
		}
		maxSpeed := MinMaxSpeed + s.rng.Float64()*(MaxMaxSpeed-MinMaxSpeed)
		v, err := vehicle.New(id, slot.Street, slot.Lane, maxSpeed)
		if err != nil {
			return admitted, fmt.Errorf("spawn %s lane %d: %w", slot.Street, slot.Lane, err)
		}
		admitted = append(admitted, v)
		population++
	}
	return admitted, nil
}

// Clear reports whether no vehicle in the slot's street and lane lies within
// SafeDistance of the entry point.
func Clear(slot Slot, active []*vehicle.Vehicle) bool {
	entry := layout.Entry(slot.Street, slot.Lane)
	for _, v := range active {
		if v.Street == slot.Street && v.Lane == slot.Lane && planar.Distance(v.Position, entry) <= SafeDistance {
			return false
		}
	}
	return true
}
