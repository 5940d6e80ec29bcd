package frame

import "testing"

func TestParseWiredShortFrame(t *testing.T) {
	// Scenario A: REQ_UD2 to address 1.
	buf := []byte{0x10, 0x5B, 0x01, 0x5C, 0x16}
	f, n, err := ParseWired(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 5 {
		t.Fatalf("consumed %d, want 5", n)
	}
	if f.Kind != KindShort || f.Control != 0x5B || f.Address != 0x01 || f.Checksum != 0x5C {
		t.Fatalf("got %+v", f)
	}
}

func TestParseWiredAck(t *testing.T) {
	f, n, err := ParseWired([]byte{0xE5, 0xFF})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || f.Kind != KindAck {
		t.Fatalf("got kind=%v n=%d", f.Kind, n)
	}
}

func TestParseWiredShortBadChecksum(t *testing.T) {
	buf := []byte{0x10, 0x5B, 0x01, 0x00, 0x16}
	if _, _, err := ParseWired(buf); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestParseWiredLongFrameStructure(t *testing.T) {
	// Scenario B's frame, validated structurally: control 0x08, address
	// 0x01, CI 0x72, 6-byte payload, checksum = sum(control..payload) mod 256.
	body := []byte{0x08, 0x01, 0x72, 0x01, 0x13, 0x40, 0xE2, 0x01, 0x00}
	chk := Checksum(body)
	buf := append([]byte{0x68, 0x09, 0x09, 0x68}, body...)
	buf = append(buf, chk, 0x16)

	f, n, err := ParseWired(buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d want %d", n, len(buf))
	}
	if f.Kind != KindLong {
		t.Fatalf("got kind %v want KindLong", f.Kind)
	}
	if f.Control != 0x08 || f.Address != 0x01 || f.CI != 0x72 {
		t.Fatalf("got %+v", f)
	}
	if len(f.Payload) != 6 {
		t.Fatalf("got payload len %d want 6", len(f.Payload))
	}
}

func TestParseWiredLongFrameLengthMismatch(t *testing.T) {
	buf := []byte{0x68, 0x09, 0x08, 0x68, 0x08, 0x01, 0x72, 0x01, 0x13, 0x40, 0xE2, 0x01, 0x00, 0x00, 0x16}
	if _, _, err := ParseWired(buf); err == nil {
		t.Fatal("expected length-mismatch error")
	}
}

func TestBuildWiredRoundTripsShort(t *testing.T) {
	f := Frame{Kind: KindShort, Control: 0x5B, Address: 0x01}
	built, err := BuildWired(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, n, err := ParseWired(built)
	if err != nil {
		t.Fatalf("unexpected error re-parsing: %v", err)
	}
	if n != len(built) || parsed.Control != f.Control || parsed.Address != f.Address {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestBuildWiredRoundTripsLong(t *testing.T) {
	f := Frame{Kind: KindLong, Control: 0x08, Address: 0x01, CI: 0x72, Payload: []byte{0x01, 0x13, 0x40, 0xE2, 0x01, 0x00}}
	built, err := BuildWired(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, _, err := ParseWired(built)
	if err != nil {
		t.Fatalf("unexpected error re-parsing: %v", err)
	}
	if parsed.CI != f.CI || len(parsed.Payload) != len(f.Payload) {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestChecksumAcceleratedMatchesScalar(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0xFF, 0x80, 0x7F}
	if Checksum(data) != ChecksumAccelerated(data) {
		t.Fatal("accelerated checksum diverges from scalar")
	}
}
