// Package record parses M-Bus Data Information Block / Value Information
// Block (DIB+VIB) sequences into typed, normalized records. It implements
// both the variable-length record format (wired long frames and wM-Bus
// payloads) and the fixed-length record format (wired short-frame header
// data).
package record

import (
	"time"

	"github.com/mbusgw/mbus-core/internal/codec"
	"github.com/mbusgw/mbus-core/internal/mbuserr"
	"github.com/mbusgw/mbus-core/internal/vif"
)

// ValueKind tags which field of a Value is populated.
type ValueKind int

const (
	KindNumeric ValueKind = iota
	KindString
	KindBinary
	KindError
)

// Value is the decoded payload of a record: exactly one of its fields is
// meaningful, selected by Kind.
type Value struct {
	Kind    ValueKind
	Numeric float64
	Str     string
	Binary  []byte
	// ErrorFlags holds the raw error-flag bits when Kind == KindError.
	ErrorFlags uint64
}

// Record is one decoded data record from a DIB+VIB+data sequence.
type Record struct {
	Timestamp          time.Time
	StorageNumber      uint32
	Tariff             int32
	Device             int32
	IsNumeric          bool
	Value              Value
	Unit               string
	Quantity           string
	Function           string
	MoreRecordsFollow  bool
	ManufacturerSpecific bool
}

// function field labels, from DIF bits 4-5.
var functionLabels = [4]string{"instantaneous", "maximum", "minimum", "error"}

const idleFiller = 0x2F
const manufacturerBlockMax = 256

// ParseVariable parses a sequence of variable-length DIB+VIB+data records
// out of buf, returning every record found and the number of bytes
// consumed. It skips leading idle-filler bytes (0x2F) between records.
func ParseVariable(buf []byte) ([]Record, int, error) {
	var records []Record
	offset := 0

	for offset < len(buf) {
		if buf[offset] == idleFiller {
			offset++
			continue
		}

		dif := buf[offset]

		switch dif {
		case 0x0F:
			rec, n := captureManufacturerBlock(buf[offset:], false)
			records = append(records, rec)
			offset += n
			continue
		case 0x1F:
			rec, n := captureManufacturerBlock(buf[offset:], true)
			records = append(records, rec)
			offset += n
			continue
		}

		rec, n, err := parseOneRecord(buf[offset:])
		if err != nil {
			return records, offset, err
		}
		records = append(records, rec)
		offset += n
	}

	return records, offset, nil
}

// captureManufacturerBlock handles DIF 0x0F/0x1F: the remainder of the
// buffer (up to an internal cap) is captured verbatim as a binary record.
func captureManufacturerBlock(buf []byte, moreFollows bool) (Record, int) {
	data := buf[1:]
	if len(data) > manufacturerBlockMax {
		data = data[:manufacturerBlockMax]
	}
	captured := make([]byte, len(data))
	copy(captured, data)

	rec := Record{
		Timestamp:            time.Now(),
		IsNumeric:            false,
		Value:                Value{Kind: KindBinary, Binary: captured},
		Quantity:             "Manufacturer-specific",
		Function:             "instantaneous",
		MoreRecordsFollow:    moreFollows,
		ManufacturerSpecific: true,
	}
	return rec, 1 + len(captured)
}

// dibHeader is the accumulated state from walking a DIF + its DIFEs.
type dibHeader struct {
	dataLenNibble byte
	function      byte
	storageNumber uint32
	tariff        int32
	device        int32
	moreFollows   bool
}

func parseDIB(buf []byte) (dibHeader, int, error) {
	if len(buf) == 0 {
		return dibHeader{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "empty buffer at DIF")
	}
	dif := buf[0]
	h := dibHeader{
		dataLenNibble: dif & 0x0F,
		function:      (dif >> 4) & 0x03,
	}
	storageBit0 := (dif >> 6) & 0x01
	h.storageNumber = uint32(storageBit0)

	offset := 1
	difeShift := uint(1)
	for dif&0x80 != 0 {
		if offset >= len(buf) {
			return h, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated DIFE chain")
		}
		dife := buf[offset]
		offset++

		storageBits := uint32(dife & 0x0F)
		h.storageNumber |= storageBits << difeShift
		difeShift += 4

		tariffBits := int32((dife >> 4) & 0x03)
		h.tariff |= tariffBits << (2 * uint(offset-2))

		deviceBit := int32((dife >> 6) & 0x01)
		h.device |= deviceBit << uint(offset-2)

		dif = dife
	}
	h.moreFollows = false
	return h, offset, nil
}

// parseVIB walks the VIF + chained VIFEs starting at buf[0], returning the
// resolved normalized unit/multiplier/quantity and the number of bytes
// consumed. A custom ASCII VIF (0x7C) and the 0xFD/0xFB extension tables are
// handled here.
func parseVIB(buf []byte) (vif.Normalized, bool, int, error) {
	if len(buf) == 0 {
		return vif.Normalized{}, false, 0, mbuserr.New(mbuserr.PrematureEndAtData, "empty buffer at VIF")
	}

	offset := 0
	first := buf[offset]
	offset++

	var chain []vif.Chain
	manufacturerSpecific := false
	prev := first

	switch first & 0x7F {
	case 0x7C:
		// Custom ASCII VIF: length-prefixed, then that many ASCII bytes
		// stored in reverse (M-Bus convention).
		if offset >= len(buf) {
			return vif.Normalized{}, false, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated custom VIF length")
		}
		length := int(buf[offset])
		offset++
		if offset+length > len(buf) {
			return vif.Normalized{}, false, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated custom VIF text")
		}
		reversed := buf[offset : offset+length]
		offset += length
		chain = append(chain, vif.Chain{Entry: vif.Entry{Quantity: reverseASCII(reversed)}, Ok: true})
	case 0x7F:
		manufacturerSpecific = true
	case 0x7D:
		if offset >= len(buf) {
			return vif.Normalized{}, false, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated FD-extension VIF")
		}
		code := buf[offset]
		offset++
		prev = code
		e, ok := vif.LookupFD(code)
		chain = append(chain, vif.Chain{Entry: e, Ok: ok})
		if !ok {
			return vif.Normalized{}, manufacturerSpecific, offset, mbuserr.New(mbuserr.UnknownVif, "unknown FD-extension VIF 0x%02X", code)
		}
	case 0x7B:
		if offset >= len(buf) {
			return vif.Normalized{}, false, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated FB-extension VIF")
		}
		code := buf[offset]
		offset++
		prev = code
		e, ok := vif.LookupFB(code)
		chain = append(chain, vif.Chain{Entry: e, Ok: ok})
		if !ok {
			return vif.Normalized{}, manufacturerSpecific, offset, mbuserr.New(mbuserr.UnknownVif, "unknown FB-extension VIF 0x%02X", code)
		}
	default:
		e, ok := vif.Lookup(first & 0x7F)
		chain = append(chain, vif.Chain{Entry: e, Ok: ok})
	}

	// Walk VIFEs (bit 7 of the previous byte signals another follows; after
	// an FD/FB prefix that byte is the extension code).
	vifeCount := 0
	for prev&0x80 != 0 {
		if offset >= len(buf) {
			return vif.Normalized{}, manufacturerSpecific, offset, mbuserr.New(mbuserr.PrematureEndAtData, "truncated VIFE chain")
		}
		vifeCount++
		if vifeCount > 10 {
			return vif.Normalized{}, manufacturerSpecific, offset, mbuserr.New(mbuserr.VifTooLong, "VIFE chain exceeds 10 extensions")
		}
		vife := buf[offset]
		offset++
		e, ok := vif.Lookup(vife & 0x7F)
		chain = append(chain, vif.Chain{Entry: e, Ok: ok})
		prev = vife
	}

	return vif.Normalize(chain), manufacturerSpecific, offset, nil
}

func reverseASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return string(out)
}

// dataLength computes the data field length in bytes from the DIF low
// nibble, consuming the length-prefix byte for variable-length (0x0D)
// fields directly from buf (buf[0] is the byte immediately after the VIB).
func dataLength(nibble byte, buf []byte) (length int, consumed int, err error) {
	switch {
	case nibble == 0x00:
		return 0, 0, nil
	case nibble >= 0x01 && nibble <= 0x04:
		return int(nibble), 0, nil
	case nibble == 0x05:
		return 4, 0, nil // 4-byte float
	case nibble == 0x06:
		return 6, 0, nil
	case nibble == 0x07:
		return 8, 0, nil
	case nibble >= 0x09 && nibble <= 0x0C:
		return int(nibble - 0x08), 0, nil // BCD of 1..4 bytes
	case nibble == 0x0E:
		return 6, 0, nil // 6-byte BCD
	case nibble == 0x0D:
		if len(buf) == 0 {
			return 0, 0, mbuserr.New(mbuserr.PrematureEndAtData, "missing variable-length byte")
		}
		b := buf[0]
		switch {
		case b <= 0xBF:
			return int(b), 1, nil
		case b >= 0xC0 && b <= 0xCF:
			return int(b-0xC0) * 2, 1, nil
		case b >= 0xD0 && b <= 0xDF:
			return int(b-0xD0)*2 + 1, 1, nil
		case b >= 0xE0 && b <= 0xEF:
			return int(b-0xE0) * 16, 1, nil
		case b >= 0xF0 && b <= 0xFA:
			return int(b-0xF0) * 128, 1, nil
		default:
			return 0, 1, mbuserr.New(mbuserr.FrameParseError, "reserved variable-length byte 0x%02X", b)
		}
	default:
		return 0, 0, mbuserr.New(mbuserr.UnknownDif, "unsupported DIF length nibble 0x%X", nibble)
	}
}

func parseOneRecord(buf []byte) (Record, int, error) {
	header, headerLen, err := parseDIB(buf)
	if err != nil {
		return Record{}, headerLen, err
	}

	norm, mfgVIF, vibLen, err := parseVIB(buf[headerLen:])
	if err != nil {
		return Record{}, headerLen + vibLen, err
	}
	offset := headerLen + vibLen

	isBCD := header.dataLenNibble >= 0x09 && header.dataLenNibble <= 0x0E && header.dataLenNibble != 0x0D
	length, lengthPrefixLen, err := dataLength(header.dataLenNibble, buf[offset:])
	if err != nil {
		return Record{}, offset, err
	}
	offset += lengthPrefixLen

	if offset+length > len(buf) {
		return Record{}, offset, mbuserr.New(mbuserr.PrematureEndAtData, "DIF declares %d data bytes, only %d remain", length, len(buf)-offset)
	}
	data := buf[offset : offset+length]
	offset += length

	rec := Record{
		Timestamp:            time.Now(),
		StorageNumber:        header.storageNumber,
		Tariff:               header.tariff,
		Device:               header.device,
		Unit:                 norm.Unit,
		Quantity:             norm.Quantity,
		Function:             functionLabels[header.function],
		ManufacturerSpecific: mfgVIF,
	}

	value, isNumeric, err := decodeData(header.dataLenNibble, isBCD, data, norm.Multiplier)
	if err != nil {
		return Record{}, offset, err
	}
	rec.Value = value
	rec.IsNumeric = isNumeric

	return rec, offset, nil
}

func decodeData(nibble byte, isBCD bool, data []byte, multiplier float64) (Value, bool, error) {
	if len(data) == 0 {
		return Value{Kind: KindNumeric, Numeric: 0}, true, nil
	}

	if nibble == 0x0D {
		// Variable-length: always decoded as ASCII text (M-Bus stores it
		// reversed); binary content is not detected or kept as bytes.
		return Value{Kind: KindString, Str: reverseASCII(data)}, false, nil
	}

	if isBCD {
		v, err := codec.DecodeBCDN(data)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindNumeric, Numeric: float64(v) * multiplier}, true, nil
	}

	if nibble == 0x05 {
		f, err := codec.DecodeFloat(data)
		if err != nil {
			return Value{}, false, err
		}
		return Value{Kind: KindNumeric, Numeric: f * multiplier}, true, nil
	}

	v, err := codec.DecodeInt(data)
	if err != nil {
		return Value{}, false, err
	}
	return Value{Kind: KindNumeric, Numeric: float64(v) * multiplier}, true, nil
}

// --- Fixed-length record parsing (wired short-frame header data) ---

// FixedRecord is the decoded wired fixed-data-record header.
type FixedRecord struct {
	DeviceID      uint32
	Manufacturer  string
	Version       uint8
	Medium        uint8
	AccessNumber  uint8
	Status        uint8
	Signature     uint16
	Counter1      uint32
	Counter2      uint32
	Unit          string
	Quantity      string
	Value         float64
}

const fixedRecordLen = 20

var mediumTable = map[uint8]struct {
	Unit     string
	Quantity string
	Exponent int
}{
	0x00: {"Wh", "Energy", 0},
	0x01: {"m³", "Volume", -3},
	0x02: {"kg", "Mass", 0},
	0x03: {"s", "On-time", 0},
	0x04: {"W", "Power", 0},
	0x05: {"m³/h", "Volume-flow", -3},
	0x06: {"kg/h", "Mass-flow", 0},
	0x07: {"°C", "Flow-temperature", -1},
	0x08: {"°C", "Return-temperature", -1},
	0x09: {"bar", "Pressure", -1},
	0x0A: {"", "Fabrication-No", 0},
}

// ParseFixed parses the 20-byte fixed wired record: BCD device ID,
// manufacturer, version, medium, access number, status, 2-byte signature,
// and two 4-byte counters.
func ParseFixed(buf []byte) (FixedRecord, error) {
	if len(buf) < fixedRecordLen {
		return FixedRecord{}, mbuserr.New(mbuserr.PrematureEndAtData, "fixed record requires %d bytes, got %d", fixedRecordLen, len(buf))
	}

	deviceID, err := codec.DecodeBCD(buf[0:4])
	if err != nil {
		return FixedRecord{}, err
	}
	manufacturerRaw := uint16(buf[4]) | uint16(buf[5])<<8
	manufacturer := codec.DecodeManufacturerID(manufacturerRaw)
	version := buf[6]
	medium := buf[7]
	accessNumber := buf[8]
	status := buf[9]
	signature := uint16(buf[10]) | uint16(buf[11])<<8

	var counter1, counter2 uint32
	useBCD := status&0x80 != 0
	if useBCD {
		c1, err := codec.DecodeBCD(buf[12:16])
		if err != nil {
			return FixedRecord{}, err
		}
		counter1 = c1
		c2, err := codec.DecodeBCD(buf[16:20])
		if err != nil {
			return FixedRecord{}, err
		}
		counter2 = c2
	} else {
		v1, err := codec.DecodeUint(buf[12:16])
		if err != nil {
			return FixedRecord{}, err
		}
		counter1 = uint32(v1)
		v2, err := codec.DecodeUint(buf[16:20])
		if err != nil {
			return FixedRecord{}, err
		}
		counter2 = uint32(v2)
	}

	info, ok := mediumTable[medium]
	if !ok {
		info = mediumTable[0x0A]
	}
	scale := 1.0
	if info.Exponent >= 0 {
		for i := 0; i < info.Exponent; i++ {
			scale *= 10
		}
	} else {
		for i := 0; i > info.Exponent; i-- {
			scale /= 10
		}
	}

	// Both counters are folded together scaled by the same unit exponent,
	// preserving the reference firmware's ambiguous but documented
	// behavior (see DESIGN.md): counter 2 is assumed to share counter 1's
	// unit rather than being independently scaled.
	total := float64(counter1) + float64(counter2)

	return FixedRecord{
		DeviceID:     deviceID,
		Manufacturer: manufacturer,
		Version:      version,
		Medium:       medium,
		AccessNumber: accessNumber,
		Status:       status,
		Signature:    signature,
		Counter1:     counter1,
		Counter2:     counter2,
		Unit:         info.Unit,
		Quantity:     info.Quantity,
		Value:        total * scale,
	}, nil
}
