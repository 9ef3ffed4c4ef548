package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/meshwatch/core"
	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
	"github.com/encodeous/tint"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	engine  *core.Engine
	metrics *perf.Collector
	server  *Server
	http    *httptest.Server
	errs    chan error
}

func newTestServer(t *testing.T) *testServer {
	logger := slog.New(tint.NewHandler(io.Discard, &tint.Options{Level: slog.LevelDebug}))
	metrics, err := perf.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	engine, err := core.NewEngine(state.DefaultConfig(), core.WithLogger(logger), core.WithCollector(metrics))
	require.NoError(t, err)

	ts := &testServer{
		t:       t,
		engine:  engine,
		metrics: metrics,
		errs:    make(chan error, 1),
	}
	go func() {
		ts.errs <- engine.Run()
	}()
	ts.server = NewServer(engine, logger, metrics)
	ts.http = httptest.NewServer(ts.server.Handler())
	t.Cleanup(ts.close)
	return ts
}

func (ts *testServer) close() {
	ts.engine.Stop()
	require.NoError(ts.t, <-ts.errs)
	ts.http.Close()
}

func (ts *testServer) do(method, path string, body any) (*http.Response, []byte) {
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			data, err := json.Marshal(body)
			require.NoError(ts.t, err)
			rd = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, ts.http.URL+path, rd)
	require.NoError(ts.t, err)
	resp, err := ts.http.Client().Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	return resp, data
}

func (ts *testServer) register(id state.NodeId, neighbours ...state.NodeId) {
	resp, data := ts.do(http.MethodPost, "/api/nodes", state.NodeDescriptor{
		Id:         id,
		Type:       state.NodeRelay,
		SignalDbm:  -60,
		Neighbours: neighbours,
		LatencyMs:  5,
	})
	require.Equal(ts.t, http.StatusCreated, resp.StatusCode, string(data))
}

func TestRegisterNode(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(http.MethodPost, "/api/nodes", state.NodeDescriptor{Id: "relay-1", Type: state.NodeRelay, SignalDbm: -60})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var n state.Node
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, state.NodeId("relay-1"), n.Id)
	assert.Equal(t, state.StatusOnline, n.Status)
	assert.Equal(t, state.SignalGood, n.SignalStrength)

	resp, _ = ts.do(http.MethodPost, "/api/nodes", state.NodeDescriptor{Id: "relay-1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/api/nodes", state.NodeDescriptor{Id: "bad id"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/api/nodes", `{"id": "x", "colour": "red"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(http.MethodPost, "/api/nodes", `{"id": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetNodes(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")
	ts.register("b")
	resp, _ := ts.do(http.MethodPost, "/api/nodes/b/heartbeat", state.TelemetrySample{SignalDbm: -60, PacketLoss: 0.9})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var nodes []state.Node
	resp, data := ts.do(http.MethodGet, "/api/nodes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &nodes))
	assert.Len(t, nodes, 2)

	resp, data = ts.do(http.MethodGet, "/api/nodes?status=online", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &nodes))
	require.Len(t, nodes, 1)
	assert.Equal(t, state.NodeId("a"), nodes[0].Id)

	resp, _ = ts.do(http.MethodGet, "/api/nodes?status=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = ts.do(http.MethodGet, "/api/nodes/b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var n state.Node
	require.NoError(t, json.Unmarshal(data, &n))
	assert.Equal(t, state.StatusDegraded, n.Status)

	resp, _ = ts.do(http.MethodGet, "/api/nodes/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")

	resp, data := ts.do(http.MethodPost, "/api/nodes/a/heartbeat", map[string]any{"signal_dbm": -70, "seq": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"accepted": true}`, string(data))

	resp, data = ts.do(http.MethodPost, "/api/nodes/a/heartbeat", map[string]any{"signal_dbm": -70, "seq": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"accepted": false, "replayed": true}`, string(data))

	// frames without a sequence number are never treated as replays
	for range 2 {
		_, data = ts.do(http.MethodPost, "/api/nodes/a/heartbeat", map[string]any{"signal_dbm": -70})
		assert.JSONEq(t, `{"accepted": true}`, string(data))
	}

	resp, data = ts.do(http.MethodPost, "/api/nodes/ghost/heartbeat", map[string]any{"signal_dbm": -70})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"accepted": false}`, string(data))

	resp, _ = ts.do(http.MethodPost, "/api/nodes/a/heartbeat", map[string]any{"signal_dbm": -70, "packet_loss": 2})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 3.0, testutil.ToFloat64(ts.metrics.Heartbeats.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Heartbeats.WithLabelValues("replayed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Heartbeats.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Heartbeats.WithLabelValues("rejected")))
}

func TestHeartbeatBeforeRegistrationIsRetried(t *testing.T) {
	ts := newTestServer(t)

	resp, data := ts.do(http.MethodPost, "/api/nodes/late/heartbeat", map[string]any{"signal_dbm": -70, "seq": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"accepted": false}`, string(data))
	assert.Equal(t, 0, ts.server.replay.Len())

	ts.register("late")

	// same frame retried by the transport once the node exists
	_, data = ts.do(http.MethodPost, "/api/nodes/late/heartbeat", map[string]any{"signal_dbm": -70, "seq": 5})
	assert.JSONEq(t, `{"accepted": true}`, string(data))
	_, data = ts.do(http.MethodPost, "/api/nodes/late/heartbeat", map[string]any{"signal_dbm": -70, "seq": 5})
	assert.JSONEq(t, `{"accepted": false, "replayed": true}`, string(data))
}

func TestHeartbeatWhileStoppedIsRetried(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")
	ts.engine.Stop()

	resp, _ := ts.do(http.MethodPost, "/api/nodes/a/heartbeat", map[string]any{"signal_dbm": -70, "seq": 9})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	assert.Equal(t, 0, ts.server.replay.Len(), "a failed frame is not recorded as seen")
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a", "b")
	ts.register("b", "a", "c")
	ts.register("c", "b")

	resp, data := ts.do(http.MethodGet, "/api/routes/a/c", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var r state.Route
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, []state.NodeId{"a", "b", "c"}, r.Path)
	assert.Equal(t, 2, r.HopCount)
	assert.InDelta(t, 15, r.TotalLatencyMs, 1e-9)

	var routes []state.Route
	resp, data = ts.do(http.MethodGet, "/api/routes/a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &routes))
	assert.Len(t, routes, 2)

	resp, data = ts.do(http.MethodGet, "/api/routes/zzz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	resp, _ = ts.do(http.MethodGet, "/api/routes/a/zzz", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlerts(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")
	ts.do(http.MethodPost, "/api/nodes/a/heartbeat", state.TelemetrySample{SignalDbm: -60, PacketLoss: 0.5})

	var alerts []state.Alert
	resp, data := ts.do(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(data, &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, state.AlertPacketLoss, alerts[0].Type)

	resp, data = ts.do(http.MethodPost, "/api/alerts/"+alerts[0].Id+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"resolved": true}`, string(data))
	_, data = ts.do(http.MethodPost, "/api/alerts/"+alerts[0].Id+"/resolve", nil)
	assert.JSONEq(t, `{"resolved": false}`, string(data))

	_, data = ts.do(http.MethodGet, "/api/alerts", nil)
	assert.JSONEq(t, `[]`, string(data))
	_, data = ts.do(http.MethodGet, "/api/alerts?all=true", nil)
	require.NoError(t, json.Unmarshal(data, &alerts))
	require.Len(t, alerts, 1)
	assert.NotNil(t, alerts[0].ResolvedAt)
}

func TestSummary(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a", "b")
	ts.register("b", "a")

	resp, data := ts.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sum state.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	assert.Equal(t, 2, sum.TotalNodes)
	assert.Equal(t, 2, sum.ByStatus[state.StatusOnline])
	assert.InDelta(t, 5, sum.MeanLatencyMs, 1e-9)
	assert.Equal(t, 2, sum.Routes)
}

func TestCors(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(http.MethodOptions, "/api/nodes", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")
	ts.do(http.MethodPost, "/api/nodes/a/heartbeat", state.TelemetrySample{SignalDbm: -60})

	resp, data := ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `meshwatch_heartbeats_total{outcome="accepted"} 1`)

	resp, _ = ts.do(http.MethodGet, "/debug/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEngineStoppedIsUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.engine.Stop()
	resp, _ := ts.do(http.MethodGet, "/api/nodes", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	ts.register("a")

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	events := make(chan state.Event, 16)
	go func() {
		for {
			var ev state.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case events <- ev:
			default:
			}
		}
	}()

	// the subscription is registered after the upgrade, so keep flapping the
	// node until a status change makes it through
	deadline := time.After(2 * time.Second)
	degraded := false
	for {
		degraded = !degraded
		latency := 5.0
		if degraded {
			latency = 900
		}
		ts.do(http.MethodPost, "/api/nodes/a/heartbeat", state.TelemetrySample{SignalDbm: -60, LatencyMs: latency})
		select {
		case ev := <-events:
			if ev.Type == state.EventStatusChange {
				require.NotNil(t, ev.Status)
				assert.Equal(t, state.NodeId("a"), ev.Status.NodeId)
				return
			}
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no status change received over the event stream")
		}
	}
}
