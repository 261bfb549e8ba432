// Command junction-server runs the intersection simulation in real time and
// streams frames to renderers over WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cxd309/junction-sim/internal/engine"
	"github.com/cxd309/junction-sim/internal/server"
	sig "github.com/cxd309/junction-sim/internal/signal"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "listen address")
		density  = flag.Int("density", engine.DefaultDensity, "initial traffic density (1-100)")
		mode     = flag.String("mode", string(sig.Adaptive), "initial signal mode (adaptive, fixed)")
		speed    = flag.Float64("speed", engine.SimulationSpeed, "simulated seconds per wall-clock second")
		fps      = flag.Int("fps", 60, "ticks per wall-clock second")
		seed     = flag.Int64("seed", engine.DefaultSeed, "random seed")
		logLevel = flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	)
	flag.Parse()

	log := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	m, err := sig.ParseMode(*mode)
	if err != nil {
		log.WithError(err).Fatal("invalid mode")
	}

	sim, err := engine.New(engine.SimulationInput{
		Meta:   engine.SimulationMeta{SimulationID: "live", Seed: *seed},
		Config: engine.SimulationConfig{Density: *density, Mode: m},
	}, engine.WithLogger(log))
	if err != nil {
		log.WithError(err).Fatal("building simulation")
	}

	loop, err := server.NewLoop(sim, server.LoopConfig{Speed: *speed, FPS: *fps}, log)
	if err != nil {
		log.WithError(err).Fatal("building loop")
	}
	hub := server.NewHub(loop.Submit, log)
	metrics := server.NewMetrics()
	loop.Publish(hub, metrics)

	srv := &http.Server{Addr: *addr, Handler: server.NewRouter(loop, hub, metrics), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go hub.Run(ctx)
	go func() {
		log.WithField("addr", *addr).Info("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server")
			cancel()
		}
	}()

	runErr := loop.Run(ctx)
	cancel()

	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdown); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	if runErr != nil {
		log.WithError(runErr).Fatal("simulation stopped")
	}
	log.Info("stopped")
}
