package state

import (
	"fmt"
	"math"
	"net"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9A-Za-z._:-]+$")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid node id, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, _, err := net.SplitHostPort(s)
	return err
}

func fractionValidator(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}

func ConfigValidator(cfg *Config) error {
	if err := BindValidator(cfg.Listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if cfg.OfflineTimeout < cfg.HeartbeatInterval {
		return fmt.Errorf("offline_timeout (%s) must not be shorter than heartbeat_interval (%s)", cfg.OfflineTimeout, cfg.HeartbeatInterval)
	}
	if cfg.AlertRetention < 0 {
		return fmt.Errorf("alert_retention must not be negative")
	}
	if cfg.ReplayWindow < 0 {
		return fmt.Errorf("replay_window must not be negative")
	}
	t := cfg.Thresholds
	if t.CriticalSignalDbm >= t.WeakSignalDbm {
		return fmt.Errorf("critical_signal_dbm (%d) must be below weak_signal_dbm (%d)", t.CriticalSignalDbm, t.WeakSignalDbm)
	}
	if t.HighLatencyMs < 0 {
		return fmt.Errorf("high_latency_ms must not be negative")
	}
	if err := fractionValidator("packet_loss", t.PacketLoss); err != nil {
		return err
	}
	return fractionValidator("low_battery", t.LowBattery)
}

func DescriptorValidator(d *NodeDescriptor) error {
	if err := NameValidator(string(d.Id)); err != nil {
		return err
	}
	if d.Type != "" && !d.Type.Valid() {
		return fmt.Errorf("%s is not a valid node type", d.Type)
	}
	return TelemetryValidator(&TelemetrySample{
		SignalDbm:    d.SignalDbm,
		BatteryLevel: d.BatteryLevel,
		Location:     d.Location,
		Neighbours:   d.Neighbours,
		LatencyMs:    d.LatencyMs,
		PacketLoss:   d.PacketLoss,
		HopCount:     d.HopCount,
	})
}

// TelemetryValidator rejects malformed heartbeat frames at the transport
// boundary. The engine itself trusts its input.
func TelemetryValidator(t *TelemetrySample) error {
	if err := fractionValidator("packet_loss", t.PacketLoss); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTelemetry, err)
	}
	if t.BatteryLevel != nil {
		if err := fractionValidator("battery_level", *t.BatteryLevel); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTelemetry, err)
		}
	}
	if math.IsNaN(t.LatencyMs) || t.LatencyMs < 0 {
		return fmt.Errorf("%w: latency_ms must not be negative", ErrInvalidTelemetry)
	}
	if t.HopCount < 0 {
		return fmt.Errorf("%w: hop_count must not be negative", ErrInvalidTelemetry)
	}
	if t.Location != nil {
		if math.Abs(t.Location.Lat) > 90 || math.Abs(t.Location.Lon) > 180 {
			return fmt.Errorf("%w: location out of range", ErrInvalidTelemetry)
		}
	}
	for _, n := range t.Neighbours {
		if err := NameValidator(string(n)); err != nil {
			return fmt.Errorf("%w: neighbour: %w", ErrInvalidTelemetry, err)
		}
	}
	return nil
}
