package core

import (
	"github.com/encodeous/meshwatch/state"
)

// NetworkSummary aggregates the registry for dashboards. Means are taken over
// online nodes only and are zero when there are none.
func NetworkSummary(s *state.State) state.Summary {
	sum := state.Summary{
		TotalNodes: len(s.Nodes),
		ByStatus: map[state.NodeStatus]int{
			state.StatusOnline:   0,
			state.StatusDegraded: 0,
			state.StatusOffline:  0,
			state.StatusUnknown:  0,
		},
	}
	var latency, loss float64
	for _, n := range s.Nodes {
		sum.ByStatus[n.Status]++
		if n.Status == state.StatusOnline {
			latency += n.LatencyMs
			loss += n.PacketLoss
		}
	}
	online := sum.ByStatus[state.StatusOnline]
	sum.MeanLatencyMs = mean(latency, online)
	sum.MeanPacketLoss = mean(loss, online)
	sum.ActiveAlerts = Get[*AlertEngine](s).ActiveCount(s)

	Get[*MeshRouter](s).ensureFresh(s)
	sum.Routes = s.Routes.Len()
	return sum
}
