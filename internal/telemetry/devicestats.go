package telemetry

import (
	"log"
	"sort"
	"sync"
	"time"
)

// ErrorKind enumerates the per-device error categories the sliding-window
// tracker accounts for separately.
type ErrorKind int

const (
	ErrorCRC ErrorKind = iota
	ErrorBlockCrc
	ErrorTypeA
	ErrorTypeB
	ErrorTimeout
	ErrorInvalidHeader
	ErrorDecryptionFailed
	ErrorFifoOverrun
	ErrorParseError
	ErrorOther
	numErrorKinds
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorCRC:
		return "CRC"
	case ErrorBlockCrc:
		return "BlockCrc"
	case ErrorTypeA:
		return "TypeA"
	case ErrorTypeB:
		return "TypeB"
	case ErrorTimeout:
		return "Timeout"
	case ErrorInvalidHeader:
		return "InvalidHeader"
	case ErrorDecryptionFailed:
		return "DecryptionFailed"
	case ErrorFifoOverrun:
		return "FifoOverrun"
	case ErrorParseError:
		return "ParseError"
	default:
		return "Other"
	}
}

const windowSeconds = 60
const alertLogThrottle = time.Minute

type bucket struct {
	second int64
	counts [numErrorKinds]uint64
}

// DeviceStats accumulates the received/valid frame counts and a 60-second
// sliding window (1-second buckets) of per-error-kind counts for one
// device.
type DeviceStats struct {
	mu           sync.Mutex
	DeviceID     string
	Manufacturer string
	FirstSeen    time.Time
	LastSeen     time.Time

	framesReceived uint64
	framesValid    uint64
	buckets        [windowSeconds]bucket
	lastAlertLog   map[ErrorKind]time.Time
}

func newDeviceStats(deviceID string, now time.Time) *DeviceStats {
	return &DeviceStats{DeviceID: deviceID, FirstSeen: now, LastSeen: now}
}

func (d *DeviceStats) bucketAt(now time.Time) *bucket {
	sec := now.Unix()
	idx := int(((sec % windowSeconds) + windowSeconds) % windowSeconds)
	b := &d.buckets[idx]
	if b.second != sec {
		*b = bucket{second: sec}
	}
	return b
}

// RecordFrame tallies a received frame, and a valid one if valid is true.
func (d *DeviceStats) RecordFrame(valid bool, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FirstSeen.IsZero() {
		d.FirstSeen = now
	}
	d.LastSeen = now
	d.framesReceived++
	if valid {
		d.framesValid++
	}
}

// RecordError tallies one occurrence of kind in the current bucket.
func (d *DeviceStats) RecordError(kind ErrorKind, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastSeen = now
	d.bucketAt(now).counts[kind]++
}

func (d *DeviceStats) ratePerMinuteLocked(kind ErrorKind, now time.Time) float64 {
	var sum uint64
	cutoff := now.Unix() - windowSeconds
	for i := range d.buckets {
		b := &d.buckets[i]
		if b.second > cutoff && b.second <= now.Unix() {
			sum += b.counts[kind]
		}
	}
	return float64(sum)
}

// RatePerMinute reports the events-per-minute rate for kind over the
// trailing 60-second window.
func (d *DeviceStats) RatePerMinute(kind ErrorKind, now time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ratePerMinuteLocked(kind, now)
}

// FrameStatistics snapshots the received/valid tally.
func (d *DeviceStats) FrameStatistics() FrameStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return FrameStatistics{FramesReceived: d.framesReceived, FramesValid: d.framesValid}
}

// SuccessRate is frames_valid / frames_received.
func (d *DeviceStats) SuccessRate() float64 {
	return d.FrameStatistics().SuccessRate()
}

// CheckAlerts reports whether any error kind's rate currently exceeds its
// configured threshold (kinds with a non-positive threshold are treated
// as disabled), logging a throttled warning (at most once per minute per
// kind) the first time a breach is observed in that window.
func (d *DeviceStats) CheckAlerts(thresholds map[ErrorKind]float64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	alerted := false
	for kind, threshold := range thresholds {
		if threshold <= 0 {
			continue
		}
		rate := d.ratePerMinuteLocked(kind, now)
		if rate <= threshold {
			continue
		}
		alerted = true
		if d.lastAlertLog == nil {
			d.lastAlertLog = make(map[ErrorKind]time.Time)
		}
		if now.Sub(d.lastAlertLog[kind]) > alertLogThrottle {
			log.Printf("telemetry: device %s %s rate %.1f/min exceeds threshold %.1f/min", d.DeviceID, kind, rate, threshold)
			d.lastAlertLog[kind] = now
		}
	}
	return alerted
}

// DefaultThresholds returns the documented per-kind defaults; all other
// kinds are left unset (disabled).
func DefaultThresholds() map[ErrorKind]float64 {
	return map[ErrorKind]float64{
		ErrorCRC:              5,
		ErrorBlockCrc:         10,
		ErrorTimeout:          2,
		ErrorDecryptionFailed: 3,
	}
}

// Tracker is the process-wide, mutex-guarded registry of per-device
// stats.
type Tracker struct {
	mu         sync.Mutex
	devices    map[string]*DeviceStats
	thresholds map[ErrorKind]float64
}

// NewTracker constructs a Tracker with the given alert thresholds, or the
// documented defaults if thresholds is nil.
func NewTracker(thresholds map[ErrorKind]float64) *Tracker {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Tracker{devices: make(map[string]*DeviceStats), thresholds: thresholds}
}

func (t *Tracker) deviceLocked(deviceID string, now time.Time) *DeviceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds, ok := t.devices[deviceID]
	if !ok {
		ds = newDeviceStats(deviceID, now)
		t.devices[deviceID] = ds
	}
	return ds
}

// RecordFrame tallies a received (and possibly valid) frame for deviceID,
// creating its DeviceStats on first observation.
func (t *Tracker) RecordFrame(deviceID string, valid bool, now time.Time) {
	t.deviceLocked(deviceID, now).RecordFrame(valid, now)
}

// RecordError tallies one error of kind for deviceID.
func (t *Tracker) RecordError(deviceID string, kind ErrorKind, now time.Time) {
	ds := t.deviceLocked(deviceID, now)
	ds.RecordError(kind, now)
	ds.CheckAlerts(t.thresholds, now)
}

// Stats returns the DeviceStats for deviceID, if it has been observed.
func (t *Tracker) Stats(deviceID string) (*DeviceStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ds, ok := t.devices[deviceID]
	return ds, ok
}

// DevicesWithAlerts lists, in sorted order, every device currently
// exceeding at least one of its error-kind alert thresholds.
func (t *Tracker) DevicesWithAlerts(now time.Time) []string {
	t.mu.Lock()
	devices := make([]*DeviceStats, 0, len(t.devices))
	for _, ds := range t.devices {
		devices = append(devices, ds)
	}
	thresholds := t.thresholds
	t.mu.Unlock()

	var alerted []string
	for _, ds := range devices {
		if ds.CheckAlerts(thresholds, now) {
			alerted = append(alerted, ds.DeviceID)
		}
	}
	sort.Strings(alerted)
	return alerted
}
