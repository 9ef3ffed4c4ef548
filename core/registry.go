package core

import (
	"fmt"
	"slices"

	"github.com/encodeous/meshwatch/perf"
	"github.com/encodeous/meshwatch/state"
)

// MeshRegistry owns the node table and drives every status transition except
// the move to offline, which belongs to the liveness sweep.
type MeshRegistry struct{}

func (r *MeshRegistry) Init(s *state.State) error {
	s.Log.Debug("init registry")
	s.RepeatTask(SweepNodes, s.HeartbeatInterval)
	s.RepeatTask(meshGc, state.GcDelay)
	return nil
}

func (r *MeshRegistry) Cleanup(s *state.State) error {
	return nil
}

// Register inserts a new node as online. Ids are unique, re-registering an
// existing id fails with ErrDuplicateNode.
func (r *MeshRegistry) Register(s *state.State, desc state.NodeDescriptor) (*state.Node, error) {
	if _, ok := s.Nodes[desc.Id]; ok {
		return nil, fmt.Errorf("%w: %s", state.ErrDuplicateNode, desc.Id)
	}
	now := s.Now()
	n := &state.Node{
		Id:              desc.Id,
		Name:            desc.Name,
		Type:            desc.Type,
		Status:          state.StatusOnline,
		RegisteredAt:    now,
		LastHeartbeatAt: now,
	}
	if n.Name == "" {
		n.Name = string(desc.Id)
	}
	if n.Type == "" {
		n.Type = state.NodeEndpoint
	}
	applyTelemetry(n, state.TelemetrySample{
		SignalDbm:    desc.SignalDbm,
		BatteryLevel: desc.BatteryLevel,
		Location:     desc.Location,
		Neighbours:   desc.Neighbours,
		LatencyMs:    desc.LatencyMs,
		PacketLoss:   desc.PacketLoss,
		HopCount:     desc.HopCount,
	})
	s.Nodes[n.Id] = n

	s.Log.Info("node registered", "node", n.Id, "type", n.Type, "neighbours", len(n.Neighbours))
	Get[*MeshRouter](s).Invalidate(s)
	return n.Clone(), nil
}

// HandleHeartbeat applies one telemetry frame. Unknown nodes are ignored and
// reported as false, since frames can race with registration.
func (r *MeshRegistry) HandleHeartbeat(s *state.State, id state.NodeId, sample state.TelemetrySample) bool {
	n, ok := s.Nodes[id]
	if !ok {
		s.Metrics.Heartbeat("unknown")
		s.Log.Debug("heartbeat from unknown node", "node", id)
		return false
	}
	perf.HeartbeatsPerSecond.Add(1)
	s.Metrics.Heartbeat("accepted")

	prevNeigh := n.Neighbours
	n.LastHeartbeatAt = s.Now()
	applyTelemetry(n, sample)

	prev := n.Status
	n.Status = state.ClassifyStatus(n, s.Thresholds)
	if state.DBG_log_heartbeats {
		s.Log.Debug("heartbeat", "node", id, "signal", n.SignalDbm, "loss", n.PacketLoss, "latency", n.LatencyMs, "status", n.Status)
	}

	alerts := Get[*AlertEngine](s)
	alerts.Evaluate(s, n)
	alerts.AutoResolve(s, n)

	if prev != n.Status {
		r.statusChanged(s, n, prev)
		Get[*MeshRouter](s).Invalidate(s)
	} else if !slices.Equal(prevNeigh, n.Neighbours) {
		Get[*MeshRouter](s).Invalidate(s)
	}
	return true
}

func applyTelemetry(n *state.Node, t state.TelemetrySample) {
	n.SignalDbm = t.SignalDbm
	n.SignalStrength = state.BucketSignal(t.SignalDbm)
	n.BatteryLevel = nil
	if t.BatteryLevel != nil {
		b := *t.BatteryLevel
		n.BatteryLevel = &b
	}
	n.Location = nil
	if t.Location != nil {
		l := *t.Location
		n.Location = &l
	}
	n.Neighbours = state.NeighbourSet(t.Neighbours)
	n.LatencyMs = t.LatencyMs
	n.PacketLoss = t.PacketLoss
	n.HopCount = t.HopCount
}

func (r *MeshRegistry) statusChanged(s *state.State, n *state.Node, prev state.NodeStatus) {
	change := &state.StatusChange{
		NodeId:   n.Id,
		Previous: prev,
		Current:  n.Status,
		At:       s.Now(),
	}
	s.Log.Info("node status changed", "node", n.Id, "from", prev, "to", n.Status)
	s.Metrics.StatusChange(string(prev), string(n.Status))
	Get[*MeshTrace](s).Publish(s, state.Event{
		Type:   state.EventStatusChange,
		Status: change,
	})
}

func (r *MeshRegistry) Get(s *state.State, id state.NodeId) (*state.Node, bool) {
	n, ok := s.Nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// ListAll returns every registered node ordered by id.
func (r *MeshRegistry) ListAll(s *state.State) []*state.Node {
	nodes := s.SortedNodes()
	out := make([]*state.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}

// ListOnline returns the nodes whose status is exactly online.
func (r *MeshRegistry) ListOnline(s *state.State) []*state.Node {
	out := make([]*state.Node, 0)
	for _, n := range s.SortedNodes() {
		if n.Status == state.StatusOnline {
			out = append(out, n.Clone())
		}
	}
	return out
}
