package state

import (
	"slices"
	"time"
)

type NodeId string

type NodeType string

const (
	NodeRelay    NodeType = "relay"
	NodeEndpoint NodeType = "endpoint"
	NodeGateway  NodeType = "gateway"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeRelay, NodeEndpoint, NodeGateway:
		return true
	}
	return false
}

type NodeStatus string

const (
	StatusUnknown  NodeStatus = "unknown"
	StatusOnline   NodeStatus = "online"
	StatusDegraded NodeStatus = "degraded"
	StatusOffline  NodeStatus = "offline"
)

type SignalStrength string

const (
	SignalExcellent SignalStrength = "excellent"
	SignalGood      SignalStrength = "good"
	SignalFair      SignalStrength = "fair"
	SignalWeak      SignalStrength = "weak"
	SignalCritical  SignalStrength = "critical"
)

type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Node is the registry's view of a mesh radio. Status is derived and only
// written by the registry and the liveness sweep.
type Node struct {
	Id              NodeId         `json:"id"`
	Name            string         `json:"name"`
	Type            NodeType       `json:"type"`
	Status          NodeStatus     `json:"status"`
	RegisteredAt    time.Time      `json:"registered_at"`
	LastHeartbeatAt time.Time      `json:"last_heartbeat_at"`
	SignalDbm       int            `json:"signal_dbm"`
	SignalStrength  SignalStrength `json:"signal_strength"`
	BatteryLevel    *float64       `json:"battery_level,omitempty"` // nil when mains powered
	Location        *Location      `json:"location,omitempty"`
	// Neighbours this node hears directly, as reported by the node itself
	Neighbours []NodeId `json:"neighbours"`
	HopCount   int      `json:"hop_count"`
	PacketLoss float64  `json:"packet_loss"`
	LatencyMs  float64  `json:"latency_ms"`
}

// NodeDescriptor is what the provisioning layer supplies when a node joins.
type NodeDescriptor struct {
	Id           NodeId    `json:"id"`
	Name         string    `json:"name"`
	Type         NodeType  `json:"type"`
	SignalDbm    int       `json:"signal_dbm"`
	BatteryLevel *float64  `json:"battery_level,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Neighbours   []NodeId  `json:"neighbours"`
	HopCount     int       `json:"hop_count"`
	PacketLoss   float64   `json:"packet_loss"`
	LatencyMs    float64   `json:"latency_ms"`
}

// TelemetrySample is a single heartbeat frame, already shape-checked by the
// transport boundary.
type TelemetrySample struct {
	SignalDbm    int       `json:"signal_dbm"`
	BatteryLevel *float64  `json:"battery_level,omitempty"`
	Location     *Location `json:"location,omitempty"`
	Neighbours   []NodeId  `json:"neighbours"`
	LatencyMs    float64   `json:"latency_ms"`
	PacketLoss   float64   `json:"packet_loss"`
	HopCount     int       `json:"hop_count"`
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Neighbours = slices.Clone(n.Neighbours)
	if n.BatteryLevel != nil {
		b := *n.BatteryLevel
		c.BatteryLevel = &b
	}
	if n.Location != nil {
		l := *n.Location
		c.Location = &l
	}
	return &c
}

func (n *Node) HasNeighbour(id NodeId) bool {
	_, found := slices.BinarySearch(n.Neighbours, id)
	return found
}

// NeighbourSet deduplicates and sorts a reported neighbour list.
func NeighbourSet(ids []NodeId) []NodeId {
	set := make([]NodeId, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			set = append(set, id)
		}
	}
	slices.Sort(set)
	return slices.Compact(set)
}
