package core

import (
	"fmt"
	"slices"

	"github.com/encodeous/meshwatch/state"
	"github.com/google/uuid"
)

// AlertEngine raises at most one active alert per (node, type). Alerts are
// only resolved by an explicit call to Resolve, unless the auto-resolve policy
// is enabled in the config.
type AlertEngine struct{}

func (a *AlertEngine) Init(s *state.State) error {
	s.Log.Debug("init alert engine", "auto_resolve", s.AutoResolve)
	return nil
}

func (a *AlertEngine) Cleanup(s *state.State) error {
	return nil
}

// Evaluate checks each threshold-bearing telemetry field independently and
// raises an alert for every breach. It returns the alerts that were newly
// created by this call.
func (a *AlertEngine) Evaluate(s *state.State, n *state.Node) []*state.Alert {
	t := s.Thresholds
	raised := make([]*state.Alert, 0)
	add := func(al *state.Alert, ok bool) {
		if ok {
			raised = append(raised, al)
		}
	}

	if n.SignalDbm < t.CriticalSignalDbm {
		add(a.Raise(s, n.Id, state.AlertWeakSignal, state.SeverityCritical,
			fmt.Sprintf("signal %d dBm is below the critical threshold of %d dBm", n.SignalDbm, t.CriticalSignalDbm)))
	} else if n.SignalDbm < t.WeakSignalDbm {
		add(a.Raise(s, n.Id, state.AlertWeakSignal, state.SeverityWarning,
			fmt.Sprintf("signal %d dBm is below the weak threshold of %d dBm", n.SignalDbm, t.WeakSignalDbm)))
	}
	if n.LatencyMs > t.HighLatencyMs {
		add(a.Raise(s, n.Id, state.AlertHighLatency, state.SeverityWarning,
			fmt.Sprintf("latency %.0fms exceeds %.0fms", n.LatencyMs, t.HighLatencyMs)))
	}
	if n.PacketLoss > t.PacketLoss {
		add(a.Raise(s, n.Id, state.AlertPacketLoss, state.SeverityWarning,
			fmt.Sprintf("packet loss %.1f%% exceeds %.1f%%", n.PacketLoss*100, t.PacketLoss*100)))
	}
	if n.BatteryLevel != nil && *n.BatteryLevel < t.LowBattery {
		add(a.Raise(s, n.Id, state.AlertLowBattery, state.SeverityCritical,
			fmt.Sprintf("battery at %.0f%%, below %.0f%%", *n.BatteryLevel*100, t.LowBattery*100)))
	}
	return raised
}

// Raise is a no-op if an active alert already exists for (node, type).
// Otherwise it records a new alert and publishes it.
func (a *AlertEngine) Raise(s *state.State, node state.NodeId, typ state.AlertType, severity state.Severity, message string) (*state.Alert, bool) {
	if s.ActiveAlert(node, typ) != nil {
		return nil, false
	}
	alert := &state.Alert{
		Id:         uuid.NewString(),
		NodeId:     node,
		Type:       typ,
		Severity:   severity,
		Message:    message,
		DetectedAt: s.Now(),
	}
	s.Alerts = append(s.Alerts, alert)

	s.Log.Warn("alert raised", "node", node, "type", typ, "severity", severity, "message", message, "id", alert.Id)
	s.Metrics.AlertRaised(string(typ), string(severity))
	Get[*MeshTrace](s).Publish(s, state.Event{
		Type:  state.EventAlertRaised,
		Alert: alert.Clone(),
	})
	return alert.Clone(), true
}

// Resolve marks an active alert as resolved. It returns false if the alert
// does not exist or was already resolved.
func (a *AlertEngine) Resolve(s *state.State, id string) bool {
	idx := slices.IndexFunc(s.Alerts, func(al *state.Alert) bool {
		return al.Id == id
	})
	if idx == -1 || !s.Alerts[idx].Active() {
		return false
	}
	a.resolve(s, s.Alerts[idx], "operator")
	return true
}

func (a *AlertEngine) resolve(s *state.State, alert *state.Alert, by string) {
	now := s.Now()
	alert.ResolvedAt = &now

	s.Log.Info("alert resolved", "node", alert.NodeId, "type", alert.Type, "id", alert.Id, "by", by)
	s.Metrics.AlertResolved()
	Get[*MeshTrace](s).Publish(s, state.Event{
		Type:  state.EventAlertResolved,
		Alert: alert.Clone(),
	})
}

// AutoResolve resolves the node's active alerts whose condition no longer
// holds. It only runs when auto_resolve is enabled.
func (a *AlertEngine) AutoResolve(s *state.State, n *state.Node) int {
	if !s.AutoResolve {
		return 0
	}
	t := s.Thresholds
	cleared := 0
	for _, alert := range s.Alerts {
		if !alert.Active() || alert.NodeId != n.Id {
			continue
		}
		var holds bool
		switch alert.Type {
		case state.AlertOffline:
			holds = n.Status == state.StatusOffline
		case state.AlertWeakSignal:
			holds = n.SignalDbm < t.WeakSignalDbm
		case state.AlertHighLatency:
			holds = n.LatencyMs > t.HighLatencyMs
		case state.AlertPacketLoss:
			holds = n.PacketLoss > t.PacketLoss
		case state.AlertLowBattery:
			holds = n.BatteryLevel != nil && *n.BatteryLevel < t.LowBattery
		}
		if !holds {
			a.resolve(s, alert, "auto")
			cleared++
		}
	}
	return cleared
}

// ListActive returns the unresolved alerts in detection order.
func (a *AlertEngine) ListActive(s *state.State) []*state.Alert {
	active := make([]*state.Alert, 0)
	for _, alert := range s.Alerts {
		if alert.Active() {
			active = append(active, alert.Clone())
		}
	}
	return active
}

// ListAll returns the alert history that has not yet been garbage collected.
func (a *AlertEngine) ListAll(s *state.State) []*state.Alert {
	all := make([]*state.Alert, 0, len(s.Alerts))
	for _, alert := range s.Alerts {
		all = append(all, alert.Clone())
	}
	return all
}

func (a *AlertEngine) ActiveCount(s *state.State) int {
	n := 0
	for _, alert := range s.Alerts {
		if alert.Active() {
			n++
		}
	}
	return n
}
