package frame

import "github.com/mbusgw/mbus-core/internal/record"

// Publisher receives the records decoded from a successfully parsed frame,
// without the caller having to re-parse the payload. internal/telemetry
// implements this interface to hang the dual-path instrumentation pipeline
// directly off frame parsing (see SPEC_FULL.md §4.D/§4.G).
type Publisher interface {
	PublishRecords(deviceID string, records []record.Record)
}

// ParseWiredAndPublish parses a wired frame and, on success, hands any
// records embedded in its payload off to pub in addition to returning the
// frame. Records are only present in Long/Control frames whose payload is a
// well-formed variable-length record stream; parse failures of the payload
// itself do not fail the frame parse (the raw Frame is still returned) but
// are surfaced as the returned error.
func ParseWiredAndPublish(buf []byte, pub Publisher, deviceID string) (Frame, []record.Record, int, error) {
	f, n, err := ParseWired(buf)
	if err != nil {
		return f, nil, n, err
	}
	if f.Kind != KindLong && f.Kind != KindControl {
		return f, nil, n, nil
	}
	if len(f.Payload) == 0 {
		return f, nil, n, nil
	}

	records, _, perr := record.ParseVariable(f.Payload)
	if pub != nil && len(records) > 0 {
		pub.PublishRecords(deviceID, records)
	}
	return f, records, n, perr
}
