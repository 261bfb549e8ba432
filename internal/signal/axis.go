package signal

import (
	"fmt"

	"github.com/anggasct/fluo"
)

// Events understood by an axis machine.
const (
	evRelinquish = "relinquish" // green -> yellow
	evTick       = "tick"       // yellow -> red once the hold has run out
	evGrant      = "grant"      // red -> green
)

// newAxisMachine builds the color machine for one axis, started in initial.
// clear guards the end of the yellow hold; it reads simulated time only.
func newAxisMachine(initial Color, clear fluo.GuardFunc) (fluo.Machine, error) {
	b := fluo.NewMachine()

	b.State(string(Green)).
		To(string(Yellow)).On(evRelinquish)

	b.State(string(Yellow)).
		To(string(Red)).On(evTick).When(clear)

	b.State(string(Red)).
		To(string(Green)).On(evGrant)

	b.State(string(initial)).Initial()

	m := b.Build().CreateInstance()
	if err := m.Start(); err != nil {
		return nil, fmt.Errorf("signal: starting %s axis machine: %w", initial, err)
	}
	return m, nil
}
