package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/mbusgw/mbus-core/internal/record"
	"github.com/mbusgw/mbus-core/internal/vendor"
)

// Publisher is the narrow interface Pipeline ships finished reports to.
// internal/telemetry itself has zero transport dependencies; see
// internal/telemetry/bus for the concrete ZeroMQ and WebSocket bindings.
type Publisher interface {
	PublishMetering(MeteringReport) error
	PublishInstrumentation(UnifiedInstrumentation) error
}

// Pipeline turns parsed records into the dual metering/diagnostics
// projection for one device at a time, updating the shared Tracker and
// forwarding both projections to an injected Publisher. It implements
// internal/frame's Publisher interface, so a frame parser can feed it
// directly.
type Pipeline struct {
	Tracker *Tracker
	LoRa    *LoRaStats

	publisher Publisher

	mu            sync.Mutex
	manufacturers map[string]string
	pendingRadio  map[string]RadioMetrics
	pendingVendor map[string][]vendor.VendorVariable
	pendingHealth map[string]deviceHealth
}

type deviceHealth struct {
	battery float64
	status  string
}

// NewPipeline constructs a Pipeline. A nil tracker gets the documented
// default alert thresholds; a nil publisher means reports are tallied and
// dropped (useful for tests that only care about Tracker/LoRa state).
func NewPipeline(tracker *Tracker, publisher Publisher) *Pipeline {
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	return &Pipeline{
		Tracker:       tracker,
		LoRa:          NewLoRaStats(),
		publisher:     publisher,
		manufacturers: make(map[string]string),
		pendingRadio:  make(map[string]RadioMetrics),
		pendingVendor: make(map[string][]vendor.VendorVariable),
		pendingHealth: make(map[string]deviceHealth),
	}
}

// SetManufacturer records the manufacturer code to stamp on deviceID's
// future reports.
func (p *Pipeline) SetManufacturer(deviceID, manufacturer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manufacturers[deviceID] = manufacturer
}

// RecordRadioMetrics stashes the radio metrics for the frame that will
// next be published for deviceID.
func (p *Pipeline) RecordRadioMetrics(deviceID string, metrics RadioMetrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingRadio[deviceID] = metrics
}

// RecordVendorMetrics stashes vendor-defined variables (typically from
// Extension.DecodeStatusBits) for the next report published for
// deviceID.
func (p *Pipeline) RecordVendorMetrics(deviceID string, vars []vendor.VendorVariable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingVendor[deviceID] = vars
}

// RecordDeviceHealth stashes battery percentage and a free-form status
// string for the next report published for deviceID.
func (p *Pipeline) RecordDeviceHealth(deviceID string, batteryPercent float64, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingHealth[deviceID] = deviceHealth{battery: batteryPercent, status: status}
}

func readingFromRecord(rec record.Record) Reading {
	name := rec.Quantity
	if name == "" {
		name = rec.Function
	}
	quality := QualityGood
	var value float64
	if rec.Value.Kind == record.KindNumeric {
		value = rec.Value.Numeric
	} else {
		quality = "NonNumeric"
	}
	return Reading{Name: name, Value: value, Unit: rec.Unit, Quality: quality}
}

// PublishRecords converts records into readings, splits them into the
// metering and instrumentation projections, updates the device's frame
// and error-rate stats, and forwards both projections to the configured
// Publisher. It satisfies internal/frame's Publisher interface.
func (p *Pipeline) PublishRecords(deviceID string, records []record.Record) {
	now := time.Now()

	readings := make([]Reading, 0, len(records))
	for _, rec := range records {
		readings = append(readings, readingFromRecord(rec))
	}
	good, bad := Split(readings)

	p.Tracker.RecordFrame(deviceID, len(bad) == 0, now)
	frameStats := FrameStatistics{}
	if ds, ok := p.Tracker.Stats(deviceID); ok {
		frameStats = ds.FrameStatistics()
	}

	p.mu.Lock()
	manufacturer := p.manufacturers[deviceID]
	radio, hasRadio := p.pendingRadio[deviceID]
	delete(p.pendingRadio, deviceID)
	vendorVars := p.pendingVendor[deviceID]
	delete(p.pendingVendor, deviceID)
	health, hasHealth := p.pendingHealth[deviceID]
	delete(p.pendingHealth, deviceID)
	p.mu.Unlock()

	metering := MeteringReport{
		Timestamp:    now,
		DeviceID:     deviceID,
		Manufacturer: manufacturer,
		Readings:     toMeteringReadings(good),
	}

	ui := UnifiedInstrumentation{
		Timestamp:     now,
		DeviceID:      deviceID,
		Manufacturer:  manufacturer,
		Readings:      good,
		BadReadings:   bad,
		FrameStats:    frameStats,
		VendorMetrics: vendorVars,
	}
	if hasRadio {
		ui.Radio = &radio
	}
	if hasHealth {
		battery := health.battery
		ui.BatteryPercent = &battery
		ui.DeviceStatus = health.status
	}

	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishMetering(metering); err != nil {
		log.Printf("telemetry: publish metering report failed: %v", err)
	}
	if err := p.publisher.PublishInstrumentation(ui.Clean()); err != nil {
		log.Printf("telemetry: publish instrumentation failed: %v", err)
	}
}
