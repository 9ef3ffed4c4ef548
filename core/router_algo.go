package core

import (
	"slices"

	"github.com/encodeous/meshwatch/state"
)

// Routable reports whether a node may carry or terminate traffic. Degraded
// and offline nodes are excluded until the registry marks them online again.
// Degraded nodes stay out even though they are still reachable over the radio,
// a route is only served over nodes whose status is exactly online.
func Routable(n *state.Node) bool {
	return n != nil && n.Status == state.StatusOnline
}

// ComputeRouteTable rebuilds the whole route table from the registry. For
// every ordered pair of routable nodes it stores the minimum-hop path over the
// directed neighbour graph, or nothing if the target is unreachable.
func ComputeRouteTable(nodes map[state.NodeId]*state.Node) state.RouteTable {
	table := make(state.RouteTable)
	sources := make([]state.NodeId, 0, len(nodes))
	for id, n := range nodes {
		if Routable(n) {
			sources = append(sources, id)
		}
	}
	slices.Sort(sources)

	for _, src := range sources {
		for _, path := range shortestPaths(nodes, src) {
			table.Add(makeRoute(nodes, path))
		}
	}
	return table
}

// shortestPaths runs one breadth-first search from src and returns the path to
// every routable node it reaches, in the order they were dequeued. Neighbour
// lists are sorted, so the first path found to a node is deterministic.
func shortestPaths(nodes map[state.NodeId]*state.Node, src state.NodeId) [][]state.NodeId {
	parent := map[state.NodeId]state.NodeId{src: src}
	queue := []state.NodeId{src}
	paths := make([][]state.NodeId, 0)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur != src {
			paths = append(paths, walkBack(parent, src, cur))
		}
		for _, neigh := range nodes[cur].Neighbours {
			if _, seen := parent[neigh]; seen {
				continue
			}
			if !Routable(nodes[neigh]) {
				continue
			}
			parent[neigh] = cur
			queue = append(queue, neigh)
		}
	}
	return paths
}

func walkBack(parent map[state.NodeId]state.NodeId, src, dst state.NodeId) []state.NodeId {
	path := []state.NodeId{dst}
	for cur := dst; cur != src; {
		cur = parent[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

func makeRoute(nodes map[state.NodeId]*state.Node, path []state.NodeId) state.Route {
	latency, reliability := pathMetrics(nodes, path)
	return state.Route{
		From:           path[0],
		To:             path[len(path)-1],
		Path:           path,
		HopCount:       len(path) - 1,
		TotalLatencyMs: latency,
		Reliability:    reliability,
	}
}

// pathMetrics aggregates per-node telemetry along a path. Latency is summed
// over every node on the path including both ends, reliability is the product
// of each node's delivery ratio.
func pathMetrics(nodes map[state.NodeId]*state.Node, path []state.NodeId) (latencyMs float64, reliability float64) {
	reliability = 1
	for _, id := range path {
		n := nodes[id]
		latencyMs += n.LatencyMs
		reliability *= 1 - n.PacketLoss
	}
	return
}

// BestRoute picks the route with the fewest hops, then the highest reliability.
func BestRoute(routes []state.Route) (state.Route, bool) {
	if len(routes) == 0 {
		return state.Route{}, false
	}
	best := routes[0]
	for _, r := range routes[1:] {
		if r.HopCount < best.HopCount ||
			(r.HopCount == best.HopCount && r.Reliability > best.Reliability) {
			best = r
		}
	}
	return best, true
}
