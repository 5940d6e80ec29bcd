package codec

import (
	"testing"
)

func TestBCDRoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 42, 99999999, 12345678, 100} {
		enc := EncodeBCD(v)
		dec, err := DecodeBCD(enc)
		if err != nil {
			t.Fatalf("DecodeBCD(%v) error: %v", enc, err)
		}
		if dec != v%100000000 {
			t.Errorf("round trip mismatch: got %d want %d", dec, v%100000000)
		}
	}
}

func TestDecodeBCDRejectsInvalidNibble(t *testing.T) {
	_, err := DecodeBCD([]byte{0xA0, 0x00, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected error for nibble > 9")
	}
}

func TestDecodeBCDWrongLength(t *testing.T) {
	if _, err := DecodeBCD([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for short BCD field")
	}
}

func TestDecodeIntWidths(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{"1 byte positive", []byte{0x7F}, 127},
		{"1 byte negative", []byte{0xFF}, -1},
		{"2 byte", []byte{0x00, 0x01}, 1},
		{"4 byte", []byte{0x00, 0x01, 0xE2, 0x40}, 123456},
		{"6 byte", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, 1},
		{"8 byte", []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInt(tt.data)
			if err != nil {
				t.Fatalf("DecodeInt error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeIntRejectsUnsupportedWidth(t *testing.T) {
	if _, err := DecodeInt([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected error for width 3")
	}
}

func TestDecodeFloat(t *testing.T) {
	// 1.0 in IEEE-754 single precision, big-endian bytes.
	data := []byte{0x3F, 0x80, 0x00, 0x00}
	got, err := DecodeFloat(data)
	if err != nil {
		t.Fatalf("DecodeFloat error: %v", err)
	}
	if got != 1.0 {
		t.Errorf("got %v want 1.0", got)
	}
}

func TestDecodeDateYearHighNibble(t *testing.T) {
	// day=1, month=1, year=35 (2035): low 3 year bits (0b011) in byte0
	// bits 5-7, high 4 year bits (0b0100) in byte1 bits 4-7. The high
	// nibble's top bit (value 4) only survives a correct 4-bit extraction.
	data := []byte{0x61, 0x41}
	year, month, day, err := DecodeDate(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if year != 2035 || month != 1 || day != 1 {
		t.Errorf("got year=%d month=%d day=%d, want year=2035 month=1 day=1", year, month, day)
	}
}

func TestDecodeDateTimeInvalidBit(t *testing.T) {
	data := []byte{0x80, 0x00, 0x00, 0x00}
	_, valid, err := DecodeDateTime(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Fatal("expected invalid CP32 when bit 7 of byte 0 is set")
	}
}

func TestDecodeDateTimeSecInvalidBit(t *testing.T) {
	data := []byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, valid, err := DecodeDateTimeSec(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if valid {
		t.Fatal("expected invalid CP48 when bit 6 of byte 0 is set")
	}
}

func TestManufacturerIDRoundTripAndRange(t *testing.T) {
	for c1 := byte('A'); c1 <= 'Z'; c1++ {
		for c2 := byte('A'); c2 <= 'Z'; c2 += 5 {
			for c3 := byte('A'); c3 <= 'Z'; c3 += 7 {
				id, err := EncodeManufacturerID(c1, c2, c3)
				if err != nil {
					t.Fatalf("EncodeManufacturerID error: %v", err)
				}
				if id < ManufacturerIDMin || id > ManufacturerIDMax {
					t.Fatalf("id 0x%04X out of documented range for %c%c%c", id, c1, c2, c3)
				}
				got := DecodeManufacturerID(id)
				want := string([]byte{c1, c2, c3})
				if got != want {
					t.Errorf("round trip mismatch for %s: got %s", want, got)
				}
			}
		}
	}
}

func TestManufacturerIDSoftAddressBitMasked(t *testing.T) {
	id, err := EncodeManufacturerID('L', 'A', 'S')
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	withSoftBit := id | 0x8000
	if DecodeManufacturerID(withSoftBit) != DecodeManufacturerID(id) {
		t.Fatal("soft-address bit must be masked before decode")
	}
}

func TestManufacturerIDUnknownSentinel(t *testing.T) {
	if got := DecodeManufacturerID(0x0001); got != "UNK" {
		t.Errorf("expected UNK sentinel for out-of-range id, got %s", got)
	}
}

func TestManufacturerIDRejectsNonUppercase(t *testing.T) {
	if _, err := EncodeManufacturerID('a', 'B', 'C'); err == nil {
		t.Fatal("expected error for lowercase letter")
	}
}
