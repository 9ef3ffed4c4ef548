package state

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/encodeous/meshwatch/perf"
)

type MeshModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on the main loop goroutine
type State struct {
	*Env
	Modules map[string]MeshModule
	Nodes   map[NodeId]*Node
	Routes  RouteTable
	// Alerts is ordered by detection time, resolved alerts stay until gc
	Alerts []*Alert
}

func NewState(env *Env) *State {
	return &State{
		Env:     env,
		Modules: make(map[string]MeshModule),
		Nodes:   make(map[NodeId]*Node),
		Routes:  make(RouteTable),
		Alerts:  make([]*Alert, 0),
	}
}

func (s *State) GetNode(id NodeId) *Node {
	return s.Nodes[id]
}

// SortedNodes returns the registry ordered by node id.
func (s *State) SortedNodes() []*Node {
	ids := slices.Sorted(maps.Keys(s.Nodes))
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, s.Nodes[id])
	}
	return nodes
}

func (s *State) ActiveAlert(node NodeId, typ AlertType) *Alert {
	idx := slices.IndexFunc(s.Alerts, func(a *Alert) bool {
		return a.Active() && a.NodeId == node && a.Type == typ
	})
	if idx == -1 {
		return nil
	}
	return s.Alerts[idx]
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan func(s *State) error
	Config
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Clock    func() time.Time
	Metrics  *perf.Collector
	Started  atomic.Bool
	Stopping atomic.Bool
}

func (e *Env) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}
