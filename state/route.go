package state

import (
	"fmt"
	"strings"
)

type Route struct {
	From           NodeId   `json:"from"`
	To             NodeId   `json:"to"`
	Path           []NodeId `json:"path"`
	HopCount       int      `json:"hop_count"`
	TotalLatencyMs float64  `json:"total_latency_ms"`
	Reliability    float64  `json:"reliability"`
}

func (r Route) String() string {
	hops := make([]string, 0, len(r.Path))
	for _, id := range r.Path {
		hops = append(hops, string(id))
	}
	return fmt.Sprintf("%s -> %s via [%s] (hops: %d, latency: %.1fms, reliability: %.3f)",
		r.From, r.To, strings.Join(hops, " "), r.HopCount, r.TotalLatencyMs, r.Reliability)
}

// RouteTable holds the candidate routes for every ordered pair, indexed by
// source then destination.
type RouteTable map[NodeId]map[NodeId][]Route

func (t RouteTable) Get(from, to NodeId) []Route {
	dst, ok := t[from]
	if !ok {
		return nil
	}
	return dst[to]
}

func (t RouteTable) Add(r Route) {
	dst, ok := t[r.From]
	if !ok {
		dst = make(map[NodeId][]Route)
		t[r.From] = dst
	}
	dst[r.To] = append(dst[r.To], r)
}

func (t RouteTable) Len() int {
	n := 0
	for _, dst := range t {
		for _, routes := range dst {
			n += len(routes)
		}
	}
	return n
}
