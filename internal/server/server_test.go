package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cxd309/junction-sim/internal/engine"
	"github.com/cxd309/junction-sim/internal/signal"
	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	loop *Loop
	srv  *httptest.Server
	errc chan error
}

func start(t *testing.T) *fixture {
	t.Helper()
	logger, _ := logtest.NewNullLogger()

	sim, err := engine.New(engine.SimulationInput{Config: engine.SimulationConfig{Density: 60}})
	require.NoError(t, err)
	loop, err := NewLoop(sim, LoopConfig{Speed: 1, FPS: 100}, logger)
	require.NoError(t, err)
	hub := NewHub(loop.Submit, logger)
	metrics := NewMetrics()
	loop.Publish(hub, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	f := &fixture{loop: loop, srv: httptest.NewServer(NewRouter(loop, hub, metrics)), errc: make(chan error, 1)}
	go hub.Run(ctx)
	go func() { f.errc <- loop.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		f.srv.Close()
		assert.NoError(t, <-f.errc)
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) engine.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f engine.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestFramesStreamInSimulatedTime(t *testing.T) {
	f := start(t)
	conn := f.dial(t)

	first := readFrame(t, conn)
	var later engine.Frame
	for i := 0; i < 20; i++ {
		later = readFrame(t, conn)
	}
	assert.Greater(t, later.Timestamp, first.Timestamp)
	assert.Greater(t, later.Tick, first.Tick)
	assert.Equal(t, 60, later.Density)
}

func TestWebSocketInputsApplyBetweenTicks(t *testing.T) {
	f := start(t)
	conn := f.dial(t)

	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgSetDensity, Payload: json.RawMessage(`{"density":250}`)}))
	require.NoError(t, conn.WriteJSON(Envelope{Type: MsgSetMode, Payload: json.RawMessage(`{"mode":"fixed"}`)}))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		fr := readFrame(t, conn)
		if fr.Density == 100 && fr.Signal.Mode == signal.Fixed {
			return
		}
	}
	t.Fatal("inputs never reached the simulation")
}

func TestHTTPInputs(t *testing.T) {
	f := start(t)

	resp, err := http.Post(f.srv.URL+"/inputs", "application/json", strings.NewReader(`{"density": 5}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(f.srv.URL+"/inputs", "application/json", strings.NewReader(`{"mode": "manual"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(f.srv.URL + "/frame")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var fr engine.Frame
		return json.NewDecoder(resp.Body).Decode(&fr) == nil && fr.Density == 5
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMetricsAndHealth(t *testing.T) {
	f := start(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool {
		resp, err := http.Get(f.srv.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), "junction_frames_total") &&
			strings.Contains(string(body), "junction_light{")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"type":"set_density","payload":{"density":42}}`))
	require.NoError(t, err)
	require.NotNil(t, cmd.Density)
	assert.Equal(t, 42, *cmd.Density)
	assert.Nil(t, cmd.Mode)

	_, err = decodeCommand([]byte(`{"type":"teleport"}`))
	assert.Error(t, err)

	assert.Error(t, Command{}.Validate())
}

func TestSubmitReportsBacklog(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	sim, err := engine.New(engine.SimulationInput{})
	require.NoError(t, err)
	loop, err := NewLoop(sim, DefaultLoopConfig(), logger)
	require.NoError(t, err)

	d := 10
	for i := 0; i < cap(loop.commands); i++ {
		require.NoError(t, loop.Submit(Command{Density: &d}))
	}
	assert.ErrorIs(t, loop.Submit(Command{Density: &d}), ErrBacklog)
}

func TestNewLoopRejectsBadConfig(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	sim, err := engine.New(engine.SimulationInput{})
	require.NoError(t, err)
	_, err = NewLoop(sim, LoopConfig{Speed: 0, FPS: 60}, logger)
	assert.Error(t, err)
}
