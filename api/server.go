package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/encodeous/meshwatch/core"
	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Server is the HTTP transport boundary in front of the engine. Telemetry is
// shape-checked here, the engine trusts what it receives.
type Server struct {
	engine   *core.Engine
	log      *slog.Logger
	metrics  *perf.Collector
	replay   *ReplayGuard
	router   *mux.Router
	upgrader websocket.Upgrader
}

func NewServer(engine *core.Engine, log *slog.Logger, metrics *perf.Collector) *Server {
	s := &Server{
		engine:  engine,
		log:     log,
		metrics: metrics,
		replay:  NewReplayGuard(engine.Env().GetReplayWindow()),
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	s.router.HandleFunc("/api/nodes", s.registerNode).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/nodes", s.getNodes).Methods("GET")
	s.router.HandleFunc("/api/nodes/{id}", s.getNode).Methods("GET")
	s.router.HandleFunc("/api/nodes/{id}/heartbeat", s.heartbeat).Methods("POST", "OPTIONS")

	s.router.HandleFunc("/api/routes/{from}", s.getRoutes).Methods("GET")
	s.router.HandleFunc("/api/routes/{from}/{to}", s.getBestRoute).Methods("GET")

	s.router.HandleFunc("/api/alerts", s.getAlerts).Methods("GET")
	s.router.HandleFunc("/api/alerts/{id}/resolve", s.resolveAlert).Methods("POST", "OPTIONS")

	s.router.HandleFunc("/api/summary", s.getSummary).Methods("GET")
	s.router.HandleFunc("/api/events", s.streamEvents).Methods("GET")

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.router.Handle("/debug/metrics", perf.Handler()).Methods("GET")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve handles requests on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(l)
	}()
	s.log.Info("serving api", "addr", l.Addr().String())

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type heartbeatRequest struct {
	state.TelemetrySample
	// Seq is an optional per-node frame counter used to drop replays
	Seq *uint64 `json:"seq,omitempty"`
}

type heartbeatResponse struct {
	Accepted bool `json:"accepted"`
	Replayed bool `json:"replayed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrInvalidTelemetry), errors.Is(err, errMalformed):
		status = http.StatusBadRequest
	case errors.Is(err, state.ErrDuplicateNode):
		status = http.StatusConflict
	case errors.Is(err, state.ErrUnknownNode):
		status = http.StatusNotFound
	case errors.Is(err, state.ErrEngineStopped):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

var errMalformed = errors.New("malformed request body")

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errMalformed, err)
	}
	return nil
}

func (s *Server) registerNode(w http.ResponseWriter, r *http.Request) {
	var desc state.NodeDescriptor
	if err := decode(r, &desc); err != nil {
		s.writeError(w, err)
		return
	}
	if err := state.DescriptorValidator(&desc); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	n, err := s.engine.Register(desc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, n)
}

func (s *Server) getNodes(w http.ResponseWriter, r *http.Request) {
	var nodes []*state.Node
	var err error
	switch r.URL.Query().Get("status") {
	case "":
		nodes, err = s.engine.ListAllNodes()
	case string(state.StatusOnline):
		nodes, err = s.engine.ListOnlineNodes()
	default:
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status filter must be online"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.GetNode(state.NodeId(mux.Vars(r)["id"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n)
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	id := state.NodeId(mux.Vars(r)["id"])
	var req heartbeatRequest
	if err := decode(r, &req); err != nil {
		s.metrics.Heartbeat("rejected")
		s.writeError(w, err)
		return
	}
	if err := state.TelemetryValidator(&req.TelemetrySample); err != nil {
		s.metrics.Heartbeat("rejected")
		s.writeError(w, err)
		return
	}
	if req.Seq != nil && s.replay.Seen(id, *req.Seq) {
		s.metrics.Heartbeat("replayed")
		s.log.Debug("dropped replayed heartbeat", "node", id, "seq", *req.Seq)
		s.writeJSON(w, http.StatusOK, heartbeatResponse{Accepted: false, Replayed: true})
		return
	}
	ok, err := s.engine.HandleHeartbeat(id, req.TelemetrySample)
	if req.Seq != nil && (err != nil || !ok) {
		// the node may register later and its transport will retry
		s.replay.Forget(id, *req.Seq)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, heartbeatResponse{Accepted: ok})
}

func (s *Server) getRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := s.engine.GetRoutes(state.NodeId(mux.Vars(r)["from"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, routes)
}

func (s *Server) getBestRoute(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	route, ok, err := s.engine.GetBestRoute(state.NodeId(vars["from"]), state.NodeId(vars["to"]))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "no route"})
		return
	}
	s.writeJSON(w, http.StatusOK, route)
}

func (s *Server) getAlerts(w http.ResponseWriter, r *http.Request) {
	var alerts []*state.Alert
	var err error
	if r.URL.Query().Get("all") == "true" {
		alerts, err = s.engine.ListAlerts()
	} else {
		alerts, err = s.engine.ListActiveAlerts()
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) resolveAlert(w http.ResponseWriter, r *http.Request) {
	ok, err := s.engine.ResolveAlert(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"resolved": ok})
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.GetNetworkHealthSummary()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}
