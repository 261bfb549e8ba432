// Command junction-sim reads a SimulationInput JSON from a file argument (or
// stdin), runs the simulation, and writes the SimulationLog JSON to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cxd309/junction-sim/internal/engine"
	"github.com/sirupsen/logrus"
)

func main() {
	logLevel := flag.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	var data []byte
	if flag.NArg() > 0 {
		data, err = os.ReadFile(flag.Arg(0))
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		log.WithError(err).Fatal("error reading input")
	}

	result, err := engine.RunJSON(string(data), engine.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("simulation error")
	}

	fmt.Println(result)
}
