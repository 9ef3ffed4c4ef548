package state

import "time"

var (
	DefaultListen            = "127.0.0.1:8787"
	DefaultConfigPath        = "meshwatch.yaml"
	DefaultHeartbeatInterval = time.Second * 10
	DefaultOfflineTimeout    = 3 * DefaultHeartbeatInterval
	DefaultAlertRetention    = time.Hour * 24

	// GcDelay is how often resolved alerts past their retention are pruned
	GcDelay = time.Minute

	DispatchBufferSize = 128
	// SlowDispatchThreshold logs a warning when a single dispatch runs longer
	SlowDispatchThreshold = time.Millisecond * 10

	TraceBufferSize = 1024

	WsWriteTimeout = time.Second * 5
	WsPingInterval = time.Second * 30
)

var (
	DBG_log_heartbeats  = false
	DBG_log_route_table = false
)
