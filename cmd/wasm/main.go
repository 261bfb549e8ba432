//go:build js && wasm

// Command wasm runs the junction simulation in the browser. It registers one
// global JavaScript function:
//
//	runSimulation(jsonString) -> jsonString
//
// The argument is a SimulationInput (simulation_meta, config with density,
// mode and initial_green, optional timed controls). The result is a
// SimulationLog whose output frames carry everything a renderer draws:
//
//	signal.axes[i].color        "red", "yellow" or "green" per street axis
//	signal.transitioning        true while the yellow hold runs
//	counts.vertical/horizontal  queued vehicles seen by the approach sensors
//	zones                       sensor windows, for debug overlays
//	vehicles[].x, y, heading    pose in intersection coordinates, heading in radians
//	vehicles[].stopped, state   brake lights and motion state
//
// Failures come back as {"error": message} instead of a log.
package main

import (
	"syscall/js"

	"github.com/cxd309/junction-sim/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := engine.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
