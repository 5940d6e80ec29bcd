package frame

import (
	"github.com/google/uuid"
	"github.com/mbusgw/mbus-core/internal/mbuserr"
)

// Kind tags which of the four wired M-Bus frame variants a Frame is.
type Kind int

const (
	KindAck Kind = iota
	KindShort
	KindControl
	KindLong
)

const (
	byteAck      = 0xE5
	byteStartShort = 0x10
	byteStartLong  = 0x68
	byteStop       = 0x16
)

// Frame is a decoded wired M-Bus frame. Fields not meaningful for a given
// Kind are left zero (e.g. Payload is empty for Ack/Short).
type Frame struct {
	Kind     Kind
	Control  byte
	Address  byte
	CI       byte
	Payload  []byte
	Checksum byte
	TraceID  uuid.UUID
}

// ParseWired parses exactly one wired M-Bus frame from the front of buf,
// returning the frame and the number of bytes consumed.
func ParseWired(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "empty buffer")
	}

	switch buf[0] {
	case byteAck:
		return Frame{Kind: KindAck, TraceID: uuid.New()}, 1, nil
	case byteStartShort:
		return parseShort(buf)
	case byteStartLong:
		return parseLongOrControl(buf)
	default:
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "unrecognized start byte 0x%02X", buf[0])
	}
}

func parseShort(buf []byte) (Frame, int, error) {
	if len(buf) < 5 {
		return Frame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "short frame requires 5 bytes, got %d", len(buf))
	}
	control := buf[1]
	address := buf[2]
	checksum := buf[3]
	stop := buf[4]
	if stop != byteStop {
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "short frame stop byte 0x%02X, want 0x16", stop)
	}
	computed := Checksum([]byte{control, address})
	if computed != checksum {
		return Frame{}, 0, mbuserr.New(mbuserr.InvalidChecksum, "short frame checksum 0x%02X, computed 0x%02X", checksum, computed)
	}
	return Frame{
		Kind:     KindShort,
		Control:  control,
		Address:  address,
		Checksum: checksum,
		TraceID:  uuid.New(),
	}, 5, nil
}

func parseLongOrControl(buf []byte) (Frame, int, error) {
	if len(buf) < 4 {
		return Frame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "long/control frame header requires 4 bytes, got %d", len(buf))
	}
	length1 := buf[1]
	length2 := buf[2]
	if length1 != length2 {
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "length bytes mismatch: 0x%02X != 0x%02X", length1, length2)
	}
	if buf[3] != byteStartLong {
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "second start byte 0x%02X, want 0x68", buf[3])
	}

	total := 4 + int(length1) + 2 // header(4) + length payload (control+addr+CI+data) + checksum + stop
	if len(buf) < total {
		return Frame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "frame declares %d bytes, got %d", total, len(buf))
	}

	body := buf[4 : 4+int(length1)] // control, address, CI, payload...
	if len(body) < 3 {
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "length field %d too small for control/address/CI", length1)
	}

	control := body[0]
	address := body[1]
	ci := body[2]
	payload := body[3:]

	checksum := buf[4+int(length1)]
	stop := buf[4+int(length1)+1]
	if stop != byteStop {
		return Frame{}, 0, mbuserr.New(mbuserr.FrameParseError, "stop byte 0x%02X, want 0x16", stop)
	}

	computed := Checksum(body)
	if computed != checksum {
		return Frame{}, 0, mbuserr.New(mbuserr.InvalidChecksum, "checksum 0x%02X, computed 0x%02X", checksum, computed)
	}

	kind := KindLong
	if length1 == 3 {
		kind = KindControl
	}

	return Frame{
		Kind:     kind,
		Control:  control,
		Address:  address,
		CI:       ci,
		Payload:  append([]byte(nil), payload...),
		Checksum: checksum,
		TraceID:  uuid.New(),
	}, total, nil
}

// BuildWired serializes f back into its wire bytes. For Kind==KindAck the
// output is the single Ack byte; Kind==KindControl/KindLong build the
// length-prefixed form, computing the checksum.
func BuildWired(f Frame) ([]byte, error) {
	switch f.Kind {
	case KindAck:
		return []byte{byteAck}, nil
	case KindShort:
		body := []byte{f.Control, f.Address}
		return []byte{byteStartShort, f.Control, f.Address, Checksum(body), byteStop}, nil
	case KindControl, KindLong:
		body := make([]byte, 0, 3+len(f.Payload))
		body = append(body, f.Control, f.Address, f.CI)
		body = append(body, f.Payload...)
		length := byte(len(body))
		out := make([]byte, 0, 6+len(body))
		out = append(out, byteStartLong, length, length, byteStartLong)
		out = append(out, body...)
		out = append(out, Checksum(body), byteStop)
		return out, nil
	default:
		return nil, mbuserr.New(mbuserr.FrameParseError, "unknown frame kind %d", f.Kind)
	}
}
