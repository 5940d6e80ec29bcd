// Package mbus wires the protocol core (internal/codec, internal/vif,
// internal/record, internal/frame, internal/radio, internal/vendor,
// internal/telemetry) into the public entry points a gateway process
// uses: parse a wired or wireless frame, route its records through the
// manufacturer-extension dispatcher, and hand the result to the
// instrumentation pipeline. Grounded on the teacher's internal/engine
// package: Engine composes a LoRa driver, a cloud client, an OTA manager,
// and a storage handle behind one struct with a narrow public surface;
// Gateway plays the same role for the M-Bus core's own components.
package mbus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mbusgw/mbus-core/internal/config"
	"github.com/mbusgw/mbus-core/internal/frame"
	"github.com/mbusgw/mbus-core/internal/record"
	"github.com/mbusgw/mbus-core/internal/telemetry"
	"github.com/mbusgw/mbus-core/internal/vendor"
)

// Gateway is the top-level handle a process holds: a compact-frame
// cache, a vendor-extension registry, and an instrumentation pipeline,
// matching spec.md §3's "process-wide shared state with interior
// mutability" for these three registries.
type Gateway struct {
	Cache    *frame.CompactFrameCache
	Vendor   *vendor.Registry
	Pipeline *telemetry.Pipeline

	cachePath string
}

// NewGateway constructs a Gateway from a loaded Config and an optional
// Publisher (nil is valid — reports are tallied but not shipped
// anywhere). If cfg names a compact-frame cache file that already
// exists, it is loaded.
func NewGateway(cfg *config.Config, publisher telemetry.Publisher) (*Gateway, error) {
	capacity := cfg.Cache.CompactFrameCapacity
	if capacity <= 0 {
		capacity = 256
	}
	cache := frame.NewCompactFrameCache(capacity)
	if cfg.Cache.CompactFramePath != "" {
		if err := cache.Load(cfg.Cache.CompactFramePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load compact-frame cache: %w", err)
		}
	}

	tracker := telemetry.NewTracker(cfg.AlertThresholds())
	return &Gateway{
		Cache:     cache,
		Vendor:    vendor.NewDefaultRegistry(),
		Pipeline:  telemetry.NewPipeline(tracker, publisher),
		cachePath: cfg.Cache.CompactFramePath,
	}, nil
}

// SaveCache persists the compact-frame cache to the path configured at
// construction, if any.
func (g *Gateway) SaveCache() error {
	if g.cachePath == "" {
		return nil
	}
	return g.Cache.Save(g.cachePath)
}

func wiredDeviceID(addr byte) string {
	return strconv.Itoa(int(addr))
}

func wirelessDeviceID(addr [4]byte) string {
	return hex.EncodeToString(addr[:])
}

// ParseWiredFrame parses one wired M-Bus frame, routes any payload
// through the record parser, and publishes the result through the
// gateway's instrumentation pipeline, keyed by the frame's primary
// address.
func (g *Gateway) ParseWiredFrame(buf []byte) (frame.Frame, []record.Record, error) {
	f, _, err := frame.ParseWired(buf)
	if err != nil {
		return frame.Frame{}, nil, err
	}

	deviceID := wiredDeviceID(f.Address)
	var records []record.Record
	if (f.Kind == frame.KindLong || f.Kind == frame.KindControl) && len(f.Payload) > 0 {
		records, _, err = record.ParseVariable(f.Payload)
		if err != nil {
			g.Pipeline.Tracker.RecordError(deviceID, telemetry.ErrorParseError, time.Now())
			return f, nil, err
		}
	}

	g.Pipeline.PublishRecords(deviceID, records)
	return f, records, nil
}

// ParseWirelessFrame parses one wM-Bus frame against the gateway's
// compact-frame cache, verifies any Type A encrypted blocks (tolerating
// failures the frame's manufacturer extension says to tolerate), applies
// the manufacturer-block hook to any vendor-specific records, and
// publishes the result.
func (g *Gateway) ParseWirelessFrame(buf []byte) (frame.WirelessFrame, []record.Record, error) {
	wf, _, err := frame.ParseWireless(buf, g.Cache)
	if err != nil {
		return frame.WirelessFrame{}, nil, err
	}

	deviceID := wirelessDeviceID(wf.Address)
	g.Pipeline.SetManufacturer(deviceID, wf.Manufacturer)

	if wf.AwaitingCacheFill {
		// Compact frame missed the cache; caller is expected to send
		// wf.FullFrameRequest and retry once the device responds in full.
		return wf, nil, nil
	}

	handle, hasVendor := g.Vendor.Lookup(wf.Manufacturer)

	payload := wf.Payload
	if len(payload) > 0 && len(payload)%16 == 0 {
		tolerate := func(blockIndex int) bool { return false }
		if hasVendor {
			tolerate = func(blockIndex int) bool {
				return handle.Extension.TolerateCRCFailure(vendor.CRCFailureBlockTypeA, blockIndex)
			}
		}
		blocks := frame.VerifyBlocks(payload, tolerate)
		now := time.Now()
		for _, b := range blocks {
			if !b.Valid {
				g.Pipeline.Tracker.RecordError(deviceID, telemetry.ErrorBlockCrc, now)
			}
		}
		payload = frame.ExtractBlockData(blocks)
	}

	var records []record.Record
	if len(payload) > 0 {
		records, _, err = record.ParseVariable(payload)
		if err != nil {
			g.Pipeline.Tracker.RecordError(deviceID, telemetry.ErrorParseError, time.Now())
			return wf, nil, err
		}
	}

	if hasVendor {
		records = applyManufacturerBlockHook(handle, records)
	}

	g.Pipeline.PublishRecords(deviceID, records)
	return wf, records, nil
}

// applyManufacturerBlockHook runs vendor hook 1 on any manufacturer-
// specific record's raw capture, replacing it with the extension's
// decoded records when it chooses to override.
func applyManufacturerBlockHook(handle *vendor.Handle, records []record.Record) []record.Record {
	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		if rec.ManufacturerSpecific && rec.Value.Kind == record.KindBinary {
			if overrides, ok := handle.Extension.HandleManufacturerBlock(rec.Value.Binary); ok {
				out = append(out, overrides...)
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}
