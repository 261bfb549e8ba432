package vehicle

import (
	"math"
	"testing"

	"github.com/cxd309/junction-sim/internal/kinematics"
	"github.com/cxd309/junction-sim/internal/layout"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var model = kinematics.DefaultSmoothing()

func place(t *testing.T, street layout.Street, lane int, pos, vel orb.Point) *Vehicle {
	t.Helper()
	v, err := New(uuid.New(), street, lane, 50)
	require.NoError(t, err)
	v.Position = pos
	v.Velocity = vel
	return v
}

func parked(street layout.Street, lane int, pos orb.Point) Neighbor {
	return Neighbor{ID: uuid.New(), Street: street, Lane: lane, Position: pos}
}

func TestForceStopBelowQueueDistance(t *testing.T) {
	for _, light := range []signal.Color{signal.Green, signal.Yellow, signal.Red} {
		t.Run(string(light), func(t *testing.T) {
			v := place(t, layout.Vertical, 0, orb.Point{2.5, 60}, orb.Point{0, -30})
			traffic := []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 55})}

			plan := Step(v, 0.01, light, traffic, model)

			assert.Equal(t, ForceStop, plan.Decision)
			assert.Equal(t, orb.Point{}, v.Velocity)
			assert.True(t, v.Stopped)
			assert.Equal(t, StateStopped, v.State)
			assert.Equal(t, orb.Point{2.5, 60}, v.Position)
		})
	}
}

func TestStopLine(t *testing.T) {
	tests := []struct {
		name     string
		y        float64
		light    signal.Color
		decision Decision
	}{
		{"halt at line on red", 23, signal.Red, SoftStop},
		{"halt at line on yellow", 23, signal.Yellow, SoftStop},
		{"approach on red", 40, signal.Red, SlowDown},
		{"far from line", 80, signal.Red, Cruise},
		{"beyond lookahead", layout.StopLineVertical + StopLineLookahead + 1, signal.Red, Cruise},
		{"green ignores line", 23, signal.Green, Cruise},
		{"already crossed", 10, signal.Red, Cruise},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := place(t, layout.Vertical, 0, orb.Point{2.5, tt.y}, orb.Point{0, -10})
			plan := Decide(v, tt.light, nil)
			assert.Equal(t, tt.decision, plan.Decision)
		})
	}
}

func TestSoftStopDecaysVelocity(t *testing.T) {
	v := place(t, layout.Horizontal, 1, orb.Point{23, -7.5}, orb.Point{-10, 0})
	plan := Step(v, 0.01, signal.Red, nil, model)
	assert.Equal(t, SoftStop, plan.Decision)
	assert.InDelta(t, 8.5, v.Speed(), 1e-9)
	assert.True(t, v.Stopped)
}

func TestSlowDownEasesToCrawl(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 40}, orb.Point{0, -40})
	Step(v, 0.01, signal.Red, nil, model)
	assert.InDelta(t, 37, v.Speed(), 1e-9)
	assert.False(t, v.Stopped)
	assert.Equal(t, StateSlowing, v.State)
}

func TestOvertakeStartsWhenLaneIsClear(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{0, -40})
	traffic := []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 70})}

	plan := Step(v, 0.01, signal.Green, traffic, model)

	assert.True(t, plan.Overtake)
	assert.Equal(t, Cruise, plan.Decision)
	assert.True(t, v.IsChangingLane)
	assert.Equal(t, 1, v.TargetLane)
	assert.Equal(t, 1, v.LaneChangeDirection)
	assert.Equal(t, 0, v.Lane)
}

func TestBlockedOvertakeFallsBack(t *testing.T) {
	blocker := parked(layout.Vertical, 1, orb.Point{7.5, 95})

	t.Run("slow down", func(t *testing.T) {
		v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{0, -40})
		traffic := []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 68}), blocker}
		plan := Decide(v, signal.Green, traffic)
		assert.False(t, plan.Overtake)
		assert.Equal(t, SlowDown, plan.Decision)
	})

	t.Run("stop when tight", func(t *testing.T) {
		v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{0, -40})
		traffic := []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 72}), blocker}
		plan := Decide(v, signal.Green, traffic)
		assert.False(t, plan.Overtake)
		assert.Equal(t, SoftStop, plan.Decision)
	})
}

func TestVehicleMidLaneChangeBlocksTarget(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{0, -40})
	changing := Neighbor{ID: uuid.New(), Street: layout.Vertical, Lane: 0, ChangingLane: true, Position: orb.Point{5, 100}}
	assert.False(t, LaneClear(v, 1, []Neighbor{changing}))
	assert.True(t, LaneClear(v, 1, []Neighbor{parked(layout.Horizontal, 1, orb.Point{90, -7.5})}))
}

func TestQueueNearStopLineDoesNotOvertake(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 50}, orb.Point{0, -20})

	plan := Decide(v, signal.Green, []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 30})})
	assert.False(t, plan.Overtake)
	assert.Equal(t, SlowDown, plan.Decision)

	plan = Decide(v, signal.Green, []Neighbor{parked(layout.Vertical, 0, orb.Point{2.5, 38})})
	assert.Equal(t, SoftStop, plan.Decision)
}

func TestGapAheadIgnoresOtherLanesAndStreets(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 60}, orb.Point{})
	traffic := []Neighbor{
		parked(layout.Vertical, 1, orb.Point{7.5, 50}),
		parked(layout.Horizontal, 0, orb.Point{2.5, 55}),
		parked(layout.Vertical, 0, orb.Point{2.5, 70}), // behind
		parked(layout.Vertical, 0, orb.Point{2.5, 5}),  // out of range
	}
	_, ok := GapAhead(v, traffic)
	assert.False(t, ok)

	traffic = append(traffic, parked(layout.Vertical, 0, orb.Point{3.5, 40}))
	gap, ok := GapAhead(v, traffic)
	require.True(t, ok)
	assert.InDelta(t, 20, gap, 1e-12)
}

func TestGapAheadSeesVehiclesMidLaneChange(t *testing.T) {
	changing := parked(layout.Vertical, 0, orb.Point{5, 50})
	changing.ChangingLane = true

	for _, lane := range []int{0, 1} {
		follower := place(t, layout.Vertical, lane, orb.Point{layout.LaneCenter(layout.Vertical, lane), 70}, orb.Point{})
		gap, ok := GapAhead(follower, []Neighbor{changing})
		require.True(t, ok, "lane %d", lane)
		assert.InDelta(t, 20, gap, 1e-12)
	}

	v := place(t, layout.Vertical, 0, orb.Point{5, 70}, orb.Point{})
	v.IsChangingLane = true
	for _, x := range []float64{2.5, 7.5} {
		gap, ok := GapAhead(v, []Neighbor{parked(layout.Vertical, 0, orb.Point{x, 60})})
		require.True(t, ok, "x=%v", x)
		assert.InDelta(t, 10, gap, 1e-12)
	}
}

func TestFollowerNeverClosesInsideQueueDistance(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 80}, orb.Point{0, -50})
	leader := parked(layout.Vertical, 0, orb.Point{2.5, 60})
	blocker := parked(layout.Vertical, 1, orb.Point{7.5, 75})
	traffic := []Neighbor{leader, blocker}

	for i := 0; i < 500; i++ {
		Step(v, 0.1, signal.Green, traffic, model)
		gap := layout.Ahead(layout.Vertical, v.Position, leader.Position)
		require.GreaterOrEqual(t, gap, layout.QueueDistance-1e-9, "tick %d", i)
	}
	assert.True(t, v.Stopped)
}

func TestLaneChangeCompletesOnCenterline(t *testing.T) {
	for _, dt := range []float64{0.001, 0.01, 0.05, 0.1} {
		v := place(t, layout.Horizontal, 0, orb.Point{90, -2.5}, orb.Point{-30, 0})
		require.NoError(t, v.StartLaneChange(1))
		assert.Equal(t, 1, v.LaneChangeDirection)

		limit := int(math.Ceil(1/(dt*LaneChangeRate))) + 1
		ticks := 0
		for v.IsChangingLane {
			Step(v, dt, signal.Green, nil, model)
			ticks++
			require.LessOrEqual(t, ticks, limit, "dt=%v", dt)
		}
		assert.Equal(t, 1, v.Lane)
		assert.Equal(t, 1, v.TargetLane)
		assert.Equal(t, 1, v.LaneChanges)
		assert.Equal(t, layout.LaneCenter(layout.Horizontal, 1), v.Position.Y())
		assert.Equal(t, layout.BaseHeading(layout.Horizontal), v.Heading())
	}
}

func TestHeadingSkewsTowardTargetLane(t *testing.T) {
	v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{0, -30})
	assert.Equal(t, -math.Pi/2, v.Heading())

	require.NoError(t, v.StartLaneChange(1))
	assert.Greater(t, v.Heading(), -math.Pi/2)

	h := place(t, layout.Horizontal, 1, orb.Point{90, -7.5}, orb.Point{-30, 0})
	require.NoError(t, h.StartLaneChange(0))
	assert.Equal(t, -1, h.LaneChangeDirection)
	// moving toward +Y skews a westbound heading below pi
	assert.Less(t, h.Heading(), math.Pi)
}

func TestSpeedNeverExceedsMax(t *testing.T) {
	v := place(t, layout.Vertical, 1, orb.Point{7.5, 100}, orb.Point{})
	v.MaxSpeed = 27
	for i := 0; i < 3000; i++ {
		Step(v, 0.02, signal.Green, nil, model)
		require.LessOrEqual(t, v.Speed(), v.MaxSpeed+1e-9)
		require.NoError(t, v.Validate())
	}
}

func TestInvalidLanes(t *testing.T) {
	_, err := New(uuid.New(), layout.Vertical, 2, 30)
	assert.ErrorIs(t, err, ErrInvalidLane)

	v := place(t, layout.Vertical, 0, orb.Point{2.5, 90}, orb.Point{})
	assert.ErrorIs(t, v.StartLaneChange(-1), ErrInvalidLane)
	assert.False(t, v.IsChangingLane)

	v.TargetLane = 3
	assert.ErrorIs(t, v.Validate(), ErrInvalidLane)
}

func TestPose(t *testing.T) {
	v := place(t, layout.Horizontal, 0, orb.Point{50, -2.5}, orb.Point{-20, 0})
	p := v.Pose()
	assert.Equal(t, v.ID, p.ID)
	assert.Equal(t, 50.0, p.X)
	assert.Equal(t, -2.5, p.Y)
	assert.InDelta(t, 20, p.Speed, 1e-12)
	assert.Equal(t, math.Pi, p.Heading)
}
