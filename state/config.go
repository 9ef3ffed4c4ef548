package state

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/goccy/go-yaml"
)

// Thresholds are the operator-tunable limits used by the health classifier and
// the alert engine.
type Thresholds struct {
	WeakSignalDbm     int     `yaml:"weak_signal_dbm"`
	CriticalSignalDbm int     `yaml:"critical_signal_dbm"`
	HighLatencyMs     float64 `yaml:"high_latency_ms"`
	PacketLoss        float64 `yaml:"packet_loss"`
	LowBattery        float64 `yaml:"low_battery"`
}

// Config is loaded once at startup and is read-only afterwards
type Config struct {
	Listen            string        `yaml:"listen"`                 // address the http boundary binds to
	LogPath           string        `yaml:"log_path,omitempty"`     // if not empty, logs are also written to this file
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`     // period of the liveness sweep
	OfflineTimeout    time.Duration `yaml:"offline_timeout"`        // silence after which a node is offline
	Thresholds        Thresholds    `yaml:"thresholds"`             // classifier and alert limits
	AutoResolve       bool          `yaml:"auto_resolve,omitempty"` // resolve alerts when their condition clears
	AlertRetention    time.Duration `yaml:"alert_retention"`        // how long resolved alerts are kept, 0 keeps them forever
	ReplayWindow      time.Duration `yaml:"replay_window,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Listen:            DefaultListen,
		HeartbeatInterval: DefaultHeartbeatInterval,
		OfflineTimeout:    DefaultOfflineTimeout,
		Thresholds: Thresholds{
			WeakSignalDbm:     -85,
			CriticalSignalDbm: -100,
			HighLatencyMs:     500,
			PacketLoss:        0.2,
			LowBattery:        0.2,
		},
		AlertRetention: DefaultAlertRetention,
	}
}

// GetReplayWindow returns how long a heartbeat sequence number is remembered.
func (c *Config) GetReplayWindow() time.Duration {
	if c.ReplayWindow > 0 {
		return c.ReplayWindow
	}
	return 2 * c.HeartbeatInterval
}

// LoadConfig reads a config file on top of DefaultConfig, so omitted keys keep
// their defaults.
func LoadConfig(cfgPath string) (*Config, error) {
	file, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cfgPath, err)
	}
	return &cfg, nil
}

func SaveConfig(cfgPath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := path.Dir(cfgPath); dir != "." {
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			return err
		}
	}
	return os.WriteFile(cfgPath, data, 0600)
}
