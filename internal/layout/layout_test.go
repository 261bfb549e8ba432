package layout

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDistance(t *testing.T) {
	assert.InDelta(t, 7.5, QueueDistance, 1e-12)
}

func TestLaneCenters(t *testing.T) {
	assert.InDelta(t, 2.5, LaneCenter(Vertical, 0), 1e-12)
	assert.InDelta(t, 7.5, LaneCenter(Vertical, 1), 1e-12)
	assert.InDelta(t, -2.5, LaneCenter(Horizontal, 0), 1e-12)
	assert.InDelta(t, -7.5, LaneCenter(Horizontal, 1), 1e-12)
}

func TestEntryIsUpstreamOfStopLine(t *testing.T) {
	for _, s := range Streets {
		for lane := 0; lane < LaneCount; lane++ {
			p := Entry(s, lane)
			assert.InDelta(t, RoadLength/2-StopLine(s), DistanceToStopLine(s, p), 1e-12)
			assert.InDelta(t, LaneCenter(s, lane), Lateral(s, p), 1e-12)
			assert.False(t, OutOfBounds(p))
		}
	}
}

func TestDirectionMatchesHeading(t *testing.T) {
	for _, s := range Streets {
		d := Direction(s)
		u := Unit(BaseHeading(s))
		assert.InDelta(t, d.X(), u.X(), 1e-12)
		assert.InDelta(t, d.Y(), u.Y(), 1e-12)
	}
}

func TestAhead(t *testing.T) {
	from := orb.Point{2.5, 50}
	assert.InDelta(t, 10, Ahead(Vertical, from, orb.Point{2.5, 40}), 1e-12)
	assert.InDelta(t, -10, Ahead(Vertical, from, orb.Point{2.5, 60}), 1e-12)
	assert.InDelta(t, 5, Ahead(Horizontal, orb.Point{30, -2.5}, orb.Point{25, -2.5}), 1e-12)
}

func TestOutOfBounds(t *testing.T) {
	limit := RoadLength/2 + EvictionMargin
	assert.False(t, OutOfBounds(orb.Point{2.5, -limit}))
	assert.True(t, OutOfBounds(orb.Point{2.5, -limit - 0.01}))
	assert.True(t, OutOfBounds(orb.Point{limit + 0.01, -2.5}))
}

func TestParseStreet(t *testing.T) {
	s, err := ParseStreet("horizontal")
	require.NoError(t, err)
	assert.Equal(t, Horizontal, s)
	assert.Equal(t, Vertical, s.Other())

	_, err = ParseStreet("diagonal")
	assert.Error(t, err)
}

func TestVectorHelpers(t *testing.T) {
	v := Lerp(orb.Point{0, 0}, orb.Point{10, 0}, 0.1)
	assert.InDelta(t, 1, v.X(), 1e-12)
	assert.InDelta(t, 5, Norm(orb.Point{3, 4}), 1e-12)
	assert.InDelta(t, 0, Dot(Direction(Vertical), Direction(Horizontal)), 1e-12)
	assert.InDelta(t, math.Sqrt2, Norm(Add(orb.Point{1, 0}, orb.Point{0, 1})), 1e-12)
	assert.Equal(t, orb.Point{2, 4}, Scale(orb.Point{1, 2}, 2))
}
