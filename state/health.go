package state

// BucketSignal maps receive power to a qualitative strength.
func BucketSignal(dbm int) SignalStrength {
	switch {
	case dbm > -50:
		return SignalExcellent
	case dbm > -70:
		return SignalGood
	case dbm > -85:
		return SignalFair
	case dbm > -100:
		return SignalWeak
	default:
		return SignalCritical
	}
}

// ClassifyStatus derives a node's status from its latest telemetry. It never
// returns StatusOffline, that transition belongs to the liveness sweep.
func ClassifyStatus(n *Node, t Thresholds) NodeStatus {
	if n.SignalDbm < t.CriticalSignalDbm ||
		n.PacketLoss > t.PacketLoss ||
		n.LatencyMs > t.HighLatencyMs {
		return StatusDegraded
	}
	return StatusOnline
}
