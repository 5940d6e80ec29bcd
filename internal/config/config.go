// Package config loads the gateway's YAML configuration file, directly
// generalizing cmd/agsys-controller/main.go's Config/loadConfig pattern:
// a typed, yaml-tagged struct read with gopkg.in/yaml.v3 and no CLI flag
// parsing wired to it (CLI wrappers are out of scope here).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mbusgw/mbus-core/internal/telemetry"
)

// Config is the gateway's full configuration: identity, radio
// parameters, bus endpoints, and device-stats alert thresholds.
type Config struct {
	Gateway struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"gateway"`

	Serial struct {
		Port     string `yaml:"port"`
		BaudRate int    `yaml:"baud_rate"`
	} `yaml:"serial"`

	Radio struct {
		FrequencyHz     uint32  `yaml:"frequency_hz"`
		Mode            string  `yaml:"mode"` // "T1", "S1", "C1", or "" for auto-switching
		LBTThresholdDBm float64 `yaml:"lbt_threshold_dbm"`
		DutyCycleLimit  float64 `yaml:"duty_cycle_limit"` // fraction, e.g. 0.009 for 0.9%
	} `yaml:"radio"`

	Cache struct {
		CompactFramePath     string `yaml:"compact_frame_path"`
		CompactFrameCapacity int    `yaml:"compact_frame_capacity"`
	} `yaml:"cache"`

	Bus struct {
		ZMQMeteringURL    string `yaml:"zmq_metering_url"`
		ZMQDiagnosticsURL string `yaml:"zmq_diagnostics_url"`
		WebSocketAddr     string `yaml:"websocket_addr"`
		WebSocketPath     string `yaml:"websocket_path"`
	} `yaml:"bus"`

	Alerts struct {
		CRCPerMinute              float64 `yaml:"crc_per_minute"`
		BlockCrcPerMinute         float64 `yaml:"block_crc_per_minute"`
		TimeoutPerMinute          float64 `yaml:"timeout_per_minute"`
		DecryptionFailedPerMinute float64 `yaml:"decryption_failed_per_minute"`
	} `yaml:"alerts"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Gateway.ID == "" {
		return nil, fmt.Errorf("gateway.id is required")
	}
	return &cfg, nil
}

// AlertThresholds converts the configured per-kind thresholds into the
// map internal/telemetry.NewTracker expects. A zero-value field falls
// back to the corresponding documented default rather than disabling the
// kind, since the YAML zero value and "explicitly disabled" are not
// distinguishable in this struct shape.
func (c *Config) AlertThresholds() map[telemetry.ErrorKind]float64 {
	defaults := telemetry.DefaultThresholds()
	thresholds := map[telemetry.ErrorKind]float64{
		telemetry.ErrorCRC:              orDefault(c.Alerts.CRCPerMinute, defaults[telemetry.ErrorCRC]),
		telemetry.ErrorBlockCrc:         orDefault(c.Alerts.BlockCrcPerMinute, defaults[telemetry.ErrorBlockCrc]),
		telemetry.ErrorTimeout:          orDefault(c.Alerts.TimeoutPerMinute, defaults[telemetry.ErrorTimeout]),
		telemetry.ErrorDecryptionFailed: orDefault(c.Alerts.DecryptionFailedPerMinute, defaults[telemetry.ErrorDecryptionFailed]),
	}
	return thresholds
}

func orDefault(configured, fallback float64) float64 {
	if configured == 0 {
		return fallback
	}
	return configured
}
