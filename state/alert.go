package state

import "time"

type AlertType string

const (
	AlertOffline     AlertType = "offline"
	AlertWeakSignal  AlertType = "weak_signal"
	AlertHighLatency AlertType = "high_latency"
	AlertPacketLoss  AlertType = "packet_loss"
	AlertLowBattery  AlertType = "low_battery"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type Alert struct {
	Id         string     `json:"id"`
	NodeId     NodeId     `json:"node_id"`
	Type       AlertType  `json:"type"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	DetectedAt time.Time  `json:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (a *Alert) Active() bool {
	return a.ResolvedAt == nil
}

func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

type StatusChange struct {
	NodeId   NodeId     `json:"node_id"`
	Previous NodeStatus `json:"previous_status"`
	Current  NodeStatus `json:"new_status"`
	At       time.Time  `json:"at"`
}

type EventType string

const (
	EventStatusChange  EventType = "status_change"
	EventAlertRaised   EventType = "alert_raised"
	EventAlertResolved EventType = "alert_resolved"
)

// Event is the envelope published to subscribers of the engine.
type Event struct {
	Type   EventType     `json:"type"`
	Status *StatusChange `json:"status,omitempty"`
	Alert  *Alert        `json:"alert,omitempty"`
}

// Summary is the dashboard view of the whole mesh.
type Summary struct {
	TotalNodes     int                `json:"total_nodes"`
	ByStatus       map[NodeStatus]int `json:"by_status"`
	MeanLatencyMs  float64            `json:"mean_latency_ms"`
	MeanPacketLoss float64            `json:"mean_packet_loss"`
	ActiveAlerts   int                `json:"active_alerts"`
	Routes         int                `json:"routes"`
}
