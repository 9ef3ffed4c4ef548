package core

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/meshwatch/state"
	"github.com/encodeous/tint"
	"github.com/stretchr/testify/require"
)

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MeshHarness runs a real engine on a fake clock. Sweeps only happen when the
// test asks for them, the periodic sweep interval is far longer than any test.
type MeshHarness struct {
	t      *testing.T
	Cfg    state.Config
	Clock  *FakeClock
	Engine *Engine
	errs   chan error
}

func NewMeshHarness(t *testing.T) *MeshHarness {
	cfg := state.DefaultConfig()
	cfg.HeartbeatInterval = time.Hour
	cfg.OfflineTimeout = 3 * time.Hour
	return &MeshHarness{
		t:     t,
		Cfg:   cfg,
		Clock: NewFakeClock(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:        slog.LevelDebug,
		CustomPrefix: "test",
	}))
}

func (h *MeshHarness) Start() {
	e, err := NewEngine(h.Cfg, WithClock(h.Clock.Now), WithLogger(testLogger()))
	require.NoError(h.t, err)
	h.Engine = e
	h.errs = make(chan error, 1)
	go func() {
		h.errs <- e.Run()
	}()
}

func (h *MeshHarness) Stop() {
	h.Engine.Stop()
	require.NoError(h.t, <-h.errs)
}

func healthy(neighbours ...state.NodeId) state.TelemetrySample {
	return state.TelemetrySample{
		SignalDbm:  -60,
		Neighbours: neighbours,
		LatencyMs:  10,
		PacketLoss: 0.01,
	}
}

// Node registers a healthy node hearing the given neighbours.
func (h *MeshHarness) Node(id state.NodeId, neighbours ...state.NodeId) *state.Node {
	n, err := h.Engine.Register(state.NodeDescriptor{
		Id:         id,
		Type:       state.NodeRelay,
		SignalDbm:  -60,
		Neighbours: neighbours,
		LatencyMs:  10,
		PacketLoss: 0.01,
	})
	require.NoError(h.t, err)
	return n
}

// Beat sends a heartbeat that keeps the node's current neighbours, after
// applying mutate to a healthy sample.
func (h *MeshHarness) Beat(id state.NodeId, mutate func(t *state.TelemetrySample)) bool {
	sample := healthy()
	if n, err := h.Engine.GetNode(id); err == nil {
		sample.Neighbours = n.Neighbours
	}
	if mutate != nil {
		mutate(&sample)
	}
	ok, err := h.Engine.HandleHeartbeat(id, sample)
	require.NoError(h.t, err)
	return ok
}

func (h *MeshHarness) Status(id state.NodeId) state.NodeStatus {
	n, err := h.Engine.GetNode(id)
	require.NoError(h.t, err)
	return n.Status
}

func (h *MeshHarness) ActiveAlerts() []*state.Alert {
	alerts, err := h.Engine.ListActiveAlerts()
	require.NoError(h.t, err)
	return alerts
}

func (h *MeshHarness) Route(from, to state.NodeId) (state.Route, bool) {
	r, ok, err := h.Engine.GetBestRoute(from, to)
	require.NoError(h.t, err)
	return r, ok
}
