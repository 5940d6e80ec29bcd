package telemetry

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mbusgw/mbus-core/internal/record"
)

func TestValidateReadingRangeRules(t *testing.T) {
	cases := []struct {
		name  string
		r     Reading
		valid bool
	}{
		{"volume ok", Reading{Name: "Volume", Value: 10, Quality: QualityGood}, true},
		{"volume negative", Reading{Name: "Volume", Value: -1, Quality: QualityGood}, false},
		{"temperature in range", Reading{Name: "Temperature", Value: 20, Quality: QualityGood}, true},
		{"temperature too low", Reading{Name: "Temperature", Value: -51, Quality: QualityGood}, false},
		{"temperature too high", Reading{Name: "Temperature", Value: 101, Quality: QualityGood}, false},
		{"battery in range", Reading{Name: "Battery", Value: 100, Quality: QualityGood}, true},
		{"battery out of range", Reading{Name: "Battery", Value: 101, Quality: QualityGood}, false},
		{"pressure in range", Reading{Name: "Pressure", Value: 2000, Quality: QualityGood}, true},
		{"pressure out of range", Reading{Name: "Pressure", Value: 2001, Quality: QualityGood}, false},
		{"bad quality", Reading{Name: "Volume", Value: 1, Quality: "Uncertain"}, false},
		{"NaN always invalid", Reading{Name: "Volume", Value: math.NaN(), Quality: QualityGood}, false},
		{"Inf always invalid", Reading{Name: "Volume", Value: math.Inf(1), Quality: QualityGood}, false},
		{"unconstrained name", Reading{Name: "Whatever", Value: -99999, Quality: QualityGood}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ValidateReading(c.r); got != c.valid {
				t.Errorf("got %v want %v", got, c.valid)
			}
		})
	}
}

func TestSplitPartitionsGoodAndBad(t *testing.T) {
	readings := []Reading{
		{Name: "Volume", Value: 5, Quality: QualityGood},
		{Name: "Volume", Value: -5, Quality: QualityGood},
		{Name: "Temperature", Value: 20, Quality: QualityGood},
	}
	good, bad := Split(readings)
	if len(good) != 2 || len(bad) != 1 {
		t.Fatalf("got %d good, %d bad", len(good), len(bad))
	}
	if bad[0].Value != -5 {
		t.Errorf("wrong reading classified bad: %+v", bad[0])
	}
}

func TestMeteringReportCSVSchema(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	report := MeteringReport{
		Timestamp:    ts,
		DeviceID:     "12345678",
		Manufacturer: "QDS",
		Readings:     []MeteringReading{{Name: "Volume", Value: 123.456, Unit: "m3"}},
	}
	csv, err := report.CSV()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines want 2", len(lines))
	}
	if lines[0] != "timestamp,device_id,manufacturer,reading_name,value,unit" {
		t.Fatalf("got header %q", lines[0])
	}
	if !strings.Contains(lines[1], "12345678,QDS,Volume,123.456,m3") {
		t.Fatalf("got row %q", lines[1])
	}
}

func TestUnifiedInstrumentationCleanOmitsEmptyBadReadings(t *testing.T) {
	ui := UnifiedInstrumentation{
		DeviceID: "d1",
		Readings: []Reading{{Name: "Volume", Value: 1, Quality: QualityGood}},
	}
	data, err := ui.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "bad_readings") {
		t.Fatalf("expected bad_readings omitted from clean JSON, got %s", data)
	}
	var roundTrip map[string]json.RawMessage
	if err := json.Unmarshal(data, &roundTrip); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
}

func TestUnifiedInstrumentationKeepsNonEmptyBadReadings(t *testing.T) {
	ui := UnifiedInstrumentation{
		DeviceID:    "d1",
		BadReadings: []Reading{{Name: "Volume", Value: -1, Quality: QualityGood}},
	}
	data, err := ui.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "bad_readings") {
		t.Fatalf("expected bad_readings present, got %s", data)
	}
}

func TestDeviceStatsRatePerMinuteWindowsOutStaleBuckets(t *testing.T) {
	ds := newDeviceStats("d1", time.Unix(0, 0))
	base := time.Unix(1000, 0)
	ds.RecordError(ErrorCRC, base)
	ds.RecordError(ErrorCRC, base.Add(10*time.Second))

	if got := ds.RatePerMinute(ErrorCRC, base.Add(10*time.Second)); got != 2 {
		t.Fatalf("got %v want 2", got)
	}
	if got := ds.RatePerMinute(ErrorCRC, base.Add(90*time.Second)); got != 0 {
		t.Fatalf("expected stale buckets windowed out, got %v", got)
	}
}

func TestDeviceStatsSuccessRate(t *testing.T) {
	ds := newDeviceStats("d1", time.Unix(0, 0))
	now := time.Unix(100, 0)
	ds.RecordFrame(true, now)
	ds.RecordFrame(true, now)
	ds.RecordFrame(false, now)
	if got := ds.SuccessRate(); math.Abs(got-2.0/3.0) > 1e-9 {
		t.Fatalf("got %v want 2/3", got)
	}
}

func TestTrackerDevicesWithAlertsDefaultThresholds(t *testing.T) {
	tracker := NewTracker(nil)
	now := time.Unix(1000, 0)
	for i := 0; i < 6; i++ {
		tracker.RecordError("d1", ErrorCRC, now.Add(time.Duration(i)*time.Second))
	}
	alerted := tracker.DevicesWithAlerts(now.Add(5 * time.Second))
	if len(alerted) != 1 || alerted[0] != "d1" {
		t.Fatalf("got %v want [d1]", alerted)
	}
}

func TestTrackerNoAlertBelowThreshold(t *testing.T) {
	tracker := NewTracker(nil)
	now := time.Unix(1000, 0)
	tracker.RecordError("d1", ErrorCRC, now)
	tracker.RecordError("d1", ErrorCRC, now)
	alerted := tracker.DevicesWithAlerts(now)
	if len(alerted) != 0 {
		t.Fatalf("expected no alerts below threshold, got %v", alerted)
	}
}

func TestLoRaStatsSnapshotAverages(t *testing.T) {
	s := NewLoRaStats()
	s.RecordUplink(-60, 10, 50*time.Millisecond, 7)
	s.RecordUplink(-80, 5, 100*time.Millisecond, 9)
	snap := s.Snapshot()
	if snap.RSSIMin != -80 || snap.RSSIMax != -60 {
		t.Fatalf("got min=%v max=%v", snap.RSSIMin, snap.RSSIMax)
	}
	if snap.RSSIAvg != -70 {
		t.Fatalf("got avg %v want -70", snap.RSSIAvg)
	}
	if snap.SpreadingFactor != 9 {
		t.Fatalf("expected spreading factor to latch to most recent uplink, got %v", snap.SpreadingFactor)
	}
	if snap.Uplinks != 2 {
		t.Fatalf("got %d uplinks want 2", snap.Uplinks)
	}
}

func TestLoRaStatsEmptySnapshotHasZeroAverages(t *testing.T) {
	s := NewLoRaStats()
	snap := s.Snapshot()
	if snap.RSSIAvg != 0 || snap.Uplinks != 0 {
		t.Fatalf("expected zero-value snapshot, got %+v", snap)
	}
}

func TestPipelinePublishRecordsSplitsGoodAndBad(t *testing.T) {
	var captured []MeteringReport
	var capturedUI []UnifiedInstrumentation
	pub := &fakePublisher{
		onMetering:       func(r MeteringReport) { captured = append(captured, r) },
		onInstrumentation: func(u UnifiedInstrumentation) { capturedUI = append(capturedUI, u) },
	}
	p := NewPipeline(nil, pub)
	p.SetManufacturer("d1", "QDS")

	records := []record.Record{
		{Quantity: "Volume", Unit: "m3", Value: record.Value{Kind: record.KindNumeric, Numeric: 123.456}},
		{Quantity: "Volume", Unit: "m3", Value: record.Value{Kind: record.KindNumeric, Numeric: -1}},
	}
	p.PublishRecords("d1", records)

	if len(captured) != 1 {
		t.Fatalf("expected one metering report published, got %d", len(captured))
	}
	if len(captured[0].Readings) != 1 {
		t.Fatalf("expected metering report to contain only the valid reading, got %d", len(captured[0].Readings))
	}
	if len(capturedUI) != 1 || len(capturedUI[0].BadReadings) != 1 {
		t.Fatalf("expected instrumentation to retain the bad reading, got %+v", capturedUI)
	}
	if capturedUI[0].Manufacturer != "QDS" {
		t.Fatalf("got manufacturer %q want QDS", capturedUI[0].Manufacturer)
	}
}

type fakePublisher struct {
	onMetering        func(MeteringReport)
	onInstrumentation func(UnifiedInstrumentation)
}

func (f *fakePublisher) PublishMetering(r MeteringReport) error {
	if f.onMetering != nil {
		f.onMetering(r)
	}
	return nil
}

func (f *fakePublisher) PublishInstrumentation(u UnifiedInstrumentation) error {
	if f.onInstrumentation != nil {
		f.onInstrumentation(u)
	}
	return nil
}
