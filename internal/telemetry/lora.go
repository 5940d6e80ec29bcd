package telemetry

import (
	"math"
	"sync"
	"time"
)

// LoRaSnapshot is a point-in-time view of LoRaStats.
type LoRaSnapshot struct {
	RSSIMin, RSSIAvg, RSSIMax float64
	SNRMin, SNRAvg, SNRMax    float64
	ToAMin, ToAAvg, ToAMax    time.Duration
	Uplinks, Downlinks        uint64
	SpreadingFactor           uint32
}

// LoRaStats is the separate radio-metrics accumulator tracking
// RSSI/SNR/Time-on-Air extrema and averages, uplink/downlink counts, and
// the current spreading factor.
type LoRaStats struct {
	mu sync.Mutex

	rssiMin, rssiMax, rssiSum float64
	snrMin, snrMax, snrSum    float64
	toaMin, toaMax, toaSum    time.Duration

	uplinkCount, downlinkCount uint64
	currentSF                  uint32
}

// NewLoRaStats constructs an empty accumulator.
func NewLoRaStats() *LoRaStats {
	return &LoRaStats{
		rssiMin: math.Inf(1), rssiMax: math.Inf(-1),
		snrMin: math.Inf(1), snrMax: math.Inf(-1),
		toaMin: math.MaxInt64, toaMax: 0,
	}
}

// RecordUplink accumulates one received packet's radio metrics and
// latches the current spreading factor.
func (s *LoRaStats) RecordUplink(rssi, snr float64, toa time.Duration, spreadingFactor uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uplinkCount++
	s.currentSF = spreadingFactor

	if rssi < s.rssiMin {
		s.rssiMin = rssi
	}
	if rssi > s.rssiMax {
		s.rssiMax = rssi
	}
	s.rssiSum += rssi

	if snr < s.snrMin {
		s.snrMin = snr
	}
	if snr > s.snrMax {
		s.snrMax = snr
	}
	s.snrSum += snr

	s.accumulateToALocked(toa)
}

// RecordDownlink accumulates one transmitted packet's Time-on-Air.
func (s *LoRaStats) RecordDownlink(toa time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downlinkCount++
	s.accumulateToALocked(toa)
}

func (s *LoRaStats) accumulateToALocked(toa time.Duration) {
	if toa < s.toaMin {
		s.toaMin = toa
	}
	if toa > s.toaMax {
		s.toaMax = toa
	}
	s.toaSum += toa
}

// Snapshot returns a point-in-time view of the accumulated stats.
func (s *LoRaStats) Snapshot() LoRaSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := LoRaSnapshot{
		Uplinks:         s.uplinkCount,
		Downlinks:       s.downlinkCount,
		SpreadingFactor: s.currentSF,
	}
	if s.uplinkCount > 0 {
		snap.RSSIMin, snap.RSSIMax = s.rssiMin, s.rssiMax
		snap.RSSIAvg = s.rssiSum / float64(s.uplinkCount)
		snap.SNRMin, snap.SNRMax = s.snrMin, s.snrMax
		snap.SNRAvg = s.snrSum / float64(s.uplinkCount)
	}
	if total := s.uplinkCount + s.downlinkCount; total > 0 {
		snap.ToAMin, snap.ToAMax = s.toaMin, s.toaMax
		snap.ToAAvg = s.toaSum / time.Duration(total)
	}
	return snap
}
