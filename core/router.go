package core

import (
	"maps"
	"slices"
	"time"

	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
)

// MeshRouter owns the route table. Topology changes only mark the table dirty;
// the rebuild itself runs on the main loop, at most one is queued at a time,
// and every read rebuilds first if the table is dirty.
type MeshRouter struct {
	dirty       bool
	queued      bool
	LastRebuild time.Time
	Rebuilds    int
}

func (r *MeshRouter) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.dirty = true
	return nil
}

func (r *MeshRouter) Cleanup(s *state.State) error {
	s.Routes = make(state.RouteTable)
	return nil
}

// Invalidate marks the table stale and queues a coalesced rebuild.
func (r *MeshRouter) Invalidate(s *state.State) {
	r.dirty = true
	if r.queued {
		return
	}
	r.queued = true
	task := func(s *state.State) error {
		r.queued = false
		r.ensureFresh(s)
		return nil
	}
	// we are on the main loop, so never block on our own channel
	if !s.TryDispatch(task) {
		s.ScheduleTask(task, 0)
	}
}

func (r *MeshRouter) ensureFresh(s *state.State) {
	if r.dirty {
		r.Rebuild(s)
	}
}

// Rebuild recomputes the route table from scratch.
func (r *MeshRouter) Rebuild(s *state.State) {
	start := time.Now()
	s.Routes = ComputeRouteTable(s.Nodes)
	elapsed := time.Since(start)
	r.dirty = false
	r.LastRebuild = s.Now()
	r.Rebuilds++

	n := s.Routes.Len()
	perf.RebuildLatency.Add(float64(elapsed.Microseconds()))
	perf.RouteCount.Add(float64(n))
	s.Metrics.Rebuild(elapsed.Seconds(), n)

	if state.DBG_log_route_table {
		for _, src := range slices.Sorted(maps.Keys(s.Routes)) {
			for _, dst := range slices.Sorted(maps.Keys(s.Routes[src])) {
				for _, route := range s.Routes[src][dst] {
					s.Log.Debug("route", "route", route.String())
				}
			}
		}
	}
	s.Log.Debug("rebuilt route table", "routes", n, "elapsed", elapsed)
}

func (r *MeshRouter) GetBestRoute(s *state.State, from, to state.NodeId) (state.Route, bool) {
	r.ensureFresh(s)
	route, ok := BestRoute(s.Routes.Get(from, to))
	if !ok {
		return state.Route{}, false
	}
	route.Path = slices.Clone(route.Path)
	return route, true
}

// GetRoutes returns every route originating at from, ordered by destination.
func (r *MeshRouter) GetRoutes(s *state.State, from state.NodeId) []state.Route {
	r.ensureFresh(s)
	dst := s.Routes[from]
	routes := make([]state.Route, 0, len(dst))
	for _, to := range slices.Sorted(maps.Keys(dst)) {
		for _, route := range dst[to] {
			route.Path = slices.Clone(route.Path)
			routes = append(routes, route)
		}
	}
	return routes
}
