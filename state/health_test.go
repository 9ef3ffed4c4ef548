package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBucketSignal(t *testing.T) {
	tests := []struct {
		dbm  int
		want SignalStrength
	}{
		{-20, SignalExcellent},
		{-49, SignalExcellent},
		{-50, SignalGood},
		{-69, SignalGood},
		{-70, SignalFair},
		{-84, SignalFair},
		{-85, SignalWeak},
		{-99, SignalWeak},
		{-100, SignalCritical},
		{-130, SignalCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BucketSignal(tt.dbm), "dbm %d", tt.dbm)
	}
}

func TestClassifyStatus(t *testing.T) {
	th := DefaultConfig().Thresholds
	tests := []struct {
		name string
		node Node
		want NodeStatus
	}{
		{"healthy", Node{SignalDbm: -60, PacketLoss: 0.01, LatencyMs: 40}, StatusOnline},
		// weak but above the critical threshold is still online
		{"weak signal", Node{SignalDbm: -95}, StatusOnline},
		{"critical signal boundary", Node{SignalDbm: -100}, StatusOnline},
		{"critical signal", Node{SignalDbm: -105}, StatusDegraded},
		{"packet loss boundary", Node{SignalDbm: -60, PacketLoss: 0.2}, StatusOnline},
		{"packet loss", Node{SignalDbm: -60, PacketLoss: 0.5}, StatusDegraded},
		{"latency", Node{SignalDbm: -60, LatencyMs: 501}, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(&tt.node, th))
		})
	}
}

func TestClassifyStatusNeverOffline(t *testing.T) {
	th := DefaultConfig().Thresholds
	n := &Node{Status: StatusOffline, SignalDbm: -60}
	assert.Equal(t, StatusOnline, ClassifyStatus(n, th))
}
