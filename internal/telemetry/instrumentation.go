package telemetry

import (
	"encoding/json"
	"time"

	"github.com/mbusgw/mbus-core/internal/vendor"
)

// RadioMetrics carries the LoRa/radio metadata for the frame a reading
// came in on, when available.
type RadioMetrics struct {
	RSSI            float64 `json:"rssi_dbm"`
	SNR             float64 `json:"snr_db"`
	FreqHz          float64 `json:"freq_hz"`
	SpreadingFactor uint32  `json:"spreading_factor"`
	BandwidthHz     uint32  `json:"bandwidth_hz"`
	PacketCounter   uint64  `json:"packet_counter"`
}

// FrameStatistics is the received/valid frame tally for one device, as of
// the moment a report was produced.
type FrameStatistics struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesValid    uint64 `json:"frames_valid"`
}

// SuccessRate is frames_valid / frames_received, or 0 if no frames have
// been received yet.
func (f FrameStatistics) SuccessRate() float64 {
	if f.FramesReceived == 0 {
		return 0
	}
	return float64(f.FramesValid) / float64(f.FramesReceived)
}

// UnifiedInstrumentation is the full-fidelity diagnostic projection: every
// reading (good and bad), radio metrics, frame statistics, battery,
// device status, and any vendor-defined variables.
type UnifiedInstrumentation struct {
	Timestamp       time.Time                `json:"timestamp"`
	DeviceID        string                   `json:"device_id"`
	Manufacturer    string                   `json:"manufacturer"`
	DeviceType      string                   `json:"device_type,omitempty"`
	ProtocolVariant string                   `json:"protocol_variant,omitempty"`
	Readings        []Reading                `json:"readings"`
	BadReadings     []Reading                `json:"bad_readings,omitempty"`
	Radio           *RadioMetrics            `json:"radio_metrics,omitempty"`
	FrameStats      FrameStatistics          `json:"frame_stats"`
	BatteryPercent  *float64                 `json:"battery_percent,omitempty"`
	DeviceStatus    string                   `json:"device_status,omitempty"`
	VendorMetrics   []vendor.VendorVariable  `json:"vendor_metrics,omitempty"`
}

// Clean returns a copy with empty slice fields nilled out, so that
// marshaling it omits them rather than emitting "[]" — the "clean variant
// omits an empty bad-readings list" requirement.
func (u UnifiedInstrumentation) Clean() UnifiedInstrumentation {
	c := u
	if len(c.BadReadings) == 0 {
		c.BadReadings = nil
	}
	if len(c.VendorMetrics) == 0 {
		c.VendorMetrics = nil
	}
	return c
}

// JSON serializes the clean variant to JSON.
func (u UnifiedInstrumentation) JSON() ([]byte, error) {
	return json.Marshal(u.Clean())
}
