package core

import (
	"fmt"
	"time"

	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
)

// SweepNodes is the liveness tick. Any node silent for longer than the offline
// timeout moves to offline and raises a critical alert. The route table is
// rebuilt afterwards whether or not anything changed.
func SweepNodes(s *state.State) error {
	now := s.Now()
	reg := Get[*MeshRegistry](s)
	alerts := Get[*AlertEngine](s)

	offline := 0
	for _, n := range s.SortedNodes() {
		if n.Status == state.StatusOffline {
			continue
		}
		silent := now.Sub(n.LastHeartbeatAt)
		if silent <= s.OfflineTimeout {
			continue
		}
		prev := n.Status
		n.Status = state.StatusOffline
		alerts.Raise(s, n.Id, state.AlertOffline, state.SeverityCritical,
			fmt.Sprintf("no heartbeat for %s", silent.Round(time.Second)))
		reg.statusChanged(s, n, prev)
		offline++
	}

	Get[*MeshRouter](s).Rebuild(s)
	perf.SweepsPerSecond.Add(1)
	refreshGauges(s)
	if offline > 0 {
		s.Log.Debug("sweep complete", "offline", offline, "nodes", len(s.Nodes))
	}
	return nil
}

func refreshGauges(s *state.State) {
	if s.Metrics == nil {
		return
	}
	byStatus := map[string]int{
		string(state.StatusOnline):   0,
		string(state.StatusDegraded): 0,
		string(state.StatusOffline):  0,
	}
	for _, n := range s.Nodes {
		byStatus[string(n.Status)]++
	}
	s.Metrics.SetCounts(byStatus, Get[*AlertEngine](s).ActiveCount(s))
}
