package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mbusgw/mbus-core/internal/telemetry"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeTempConfig(t, `
gateway:
  id: gw-01
  name: North Field Gateway
serial:
  port: /dev/ttyUSB0
  baud_rate: 2400
radio:
  frequency_hz: 868950000
  mode: T1
  lbt_threshold_dbm: -85
  duty_cycle_limit: 0.009
cache:
  compact_frame_path: /var/lib/mbus/cache.json
  compact_frame_capacity: 512
bus:
  zmq_metering_url: "tcp://*:5556"
  zmq_diagnostics_url: "tcp://*:5557"
  websocket_addr: ":8090"
  websocket_path: /diagnostics
alerts:
  crc_per_minute: 8
logging:
  level: info
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateway.ID != "gw-01" {
		t.Errorf("got gateway id %q", cfg.Gateway.ID)
	}
	if cfg.Serial.BaudRate != 2400 {
		t.Errorf("got baud rate %d", cfg.Serial.BaudRate)
	}
	if cfg.Radio.Mode != "T1" {
		t.Errorf("got radio mode %q", cfg.Radio.Mode)
	}
	if cfg.Cache.CompactFrameCapacity != 512 {
		t.Errorf("got cache capacity %d", cfg.Cache.CompactFrameCapacity)
	}
}

func TestLoadRequiresGatewayID(t *testing.T) {
	path := writeTempConfig(t, "gateway:\n  name: no id here\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing gateway.id")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAlertThresholdsFallsBackToDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Alerts.CRCPerMinute = 8

	thresholds := cfg.AlertThresholds()
	if thresholds[telemetry.ErrorCRC] != 8 {
		t.Errorf("got CRC threshold %v want 8 (configured override)", thresholds[telemetry.ErrorCRC])
	}
	if thresholds[telemetry.ErrorBlockCrc] != telemetry.DefaultThresholds()[telemetry.ErrorBlockCrc] {
		t.Errorf("got BlockCrc threshold %v want default", thresholds[telemetry.ErrorBlockCrc])
	}
}
