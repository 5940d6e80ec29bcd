package frame

import (
	"time"

	"github.com/google/uuid"
	"github.com/mbusgw/mbus-core/internal/codec"
	"github.com/mbusgw/mbus-core/internal/mbuserr"
)

// WirelessFrame is a decoded wM-Bus frame: length byte, control, 2-byte
// manufacturer ID, 4-byte device address, version, device type,
// control-information, and payload.
type WirelessFrame struct {
	Length          byte
	Control         byte
	ManufacturerRaw uint16
	Manufacturer    string
	Address         [4]byte
	Version         byte
	DeviceType      byte
	CI              byte
	Payload         []byte
	TraceID         uuid.UUID

	// AwaitingCacheFill is set when CI signals a compact frame (0x79) and
	// the signature missed the compact-frame cache; the caller should send
	// the accompanying FullFrameRequest and retry once the cache is filled.
	AwaitingCacheFill bool
	FullFrameRequest  []byte
}

const (
	ciCompactFrame     = 0x79
	ciFullFrameRequest = 0x76
)

// ParseWireless parses one wM-Bus frame. cache may be nil, in which case a
// compact frame (CI 0x79) always misses.
func ParseWireless(buf []byte, cache *CompactFrameCache) (WirelessFrame, int, error) {
	if len(buf) < 1 {
		return WirelessFrame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "empty buffer")
	}
	length := buf[0]
	total := 1 + int(length)
	if len(buf) < total {
		return WirelessFrame{}, 0, mbuserr.New(mbuserr.PrematureEndAtData, "frame declares %d bytes after length, got %d", length, len(buf)-1)
	}
	body := buf[1:total]
	if len(body) < 9 {
		return WirelessFrame{}, 0, mbuserr.New(mbuserr.FrameParseError, "wireless frame body too short: %d bytes", len(body))
	}

	control := body[0]
	mfgRaw := uint16(body[1]) | uint16(body[2])<<8
	var addr [4]byte
	copy(addr[:], body[3:7])
	version := body[7]
	deviceType := body[8]

	offset := 9
	var ci byte
	var payload []byte
	if offset < len(body) {
		ci = body[offset]
		offset++
		payload = body[offset:]
	}

	wf := WirelessFrame{
		Length:          length,
		Control:         control,
		ManufacturerRaw: mfgRaw,
		Manufacturer:    codec.DecodeManufacturerID(mfgRaw),
		Address:         addr,
		Version:         version,
		DeviceType:      deviceType,
		CI:              ci,
		Payload:         append([]byte(nil), payload...),
		TraceID:         uuid.New(),
	}

	if ci == ciCompactFrame {
		if len(payload) < 2 {
			return wf, total, mbuserr.New(mbuserr.FrameParseError, "compact frame payload too short for signature")
		}
		sig := uint16(payload[0]) | uint16(payload[1])<<8
		if cache != nil {
			if entry, ok := cache.Get(sig); ok {
				wf.Manufacturer = codec.DecodeManufacturerID(entry.ManufacturerRaw)
				wf.Address = entry.Address
				wf.Version = entry.Version
				wf.DeviceType = entry.DeviceType
				return wf, total, nil
			}
		}
		wf.AwaitingCacheFill = true
		wf.FullFrameRequest = BuildFullFrameRequest(addr[0], sig)
	}

	return wf, total, nil
}

// BuildFullFrameRequest builds the short frame requesting a full frame for
// the given compact-frame signature: `10 7B addr 76 sig_lo sig_hi chk 16`
// where chk = sum(control..sig_hi) mod 256.
func BuildFullFrameRequest(addr byte, signature uint16) []byte {
	sigLo := byte(signature)
	sigHi := byte(signature >> 8)
	const control = 0x7B
	body := []byte{control, addr, ciFullFrameRequest, sigLo, sigHi}
	chk := Checksum(body)
	return []byte{byteStartShort, control, addr, ciFullFrameRequest, sigLo, sigHi, chk, byteStop}
}

// ComputeSignature generates the compact-frame signature from a device
// address using the fixed rotate-xor sketch: start with 0; for each of the
// four little-endian address bytes, s = (s + b) rotl 1 xor 0xA5A5.
func ComputeSignature(addr [4]byte) uint16 {
	var s uint16
	for _, b := range addr {
		s = s + uint16(b)
		s = (s << 1) | (s >> 15)
		s ^= 0xA5A5
	}
	return s
}

// --- Block integrity ---

// BlockInfo is the result of validating one 16-byte block of a Type A /
// encrypted wM-Bus payload.
type BlockInfo struct {
	Raw         []byte
	Data        []byte
	ReceivedCRC uint16
	ComputedCRC uint16
	Valid       bool
}

const blockSize = 16
const blockDataSize = 14

// VerifyBlocks splits payload into 16-byte blocks of 14 data + 2 CRC bytes,
// validating each block's CRC (polynomial 0x3D65, init 0xFFFF, no final
// XOR). A trailing partial block is tolerated: it is returned with
// Valid==false and CRC fields zeroed rather than rejected outright.
//
// tolerate, if non-nil, is consulted for each block index; when it returns
// true for an otherwise-invalid block, that block's Valid is forced true
// (used by vendor dispatch hook 7, see internal/vendor).
func VerifyBlocks(payload []byte, tolerate func(blockIndex int) bool) []BlockInfo {
	var blocks []BlockInfo
	for offset, idx := 0, 0; offset < len(payload); offset, idx = offset+blockSize, idx+1 {
		end := offset + blockSize
		if end > len(payload) {
			// Partial trailing block: no CRC to validate.
			raw := append([]byte(nil), payload[offset:]...)
			blocks = append(blocks, BlockInfo{Raw: raw, Data: raw, Valid: false})
			break
		}
		raw := payload[offset:end]
		data := raw[:blockDataSize]
		received := uint16(raw[blockDataSize]) | uint16(raw[blockDataSize+1])<<8
		computed := crc16(data)
		valid := received == computed
		if !valid && tolerate != nil && tolerate(idx) {
			valid = true
		}
		blocks = append(blocks, BlockInfo{
			Raw:         append([]byte(nil), raw...),
			Data:        append([]byte(nil), data...),
			ReceivedCRC: received,
			ComputedCRC: computed,
			Valid:       valid,
		})
	}
	return blocks
}

// ExtractBlockData concatenates the data slices of blocks in order,
// regardless of validity (callers decide how to treat invalid blocks).
func ExtractBlockData(blocks []BlockInfo) []byte {
	var out []byte
	for _, b := range blocks {
		out = append(out, b.Data...)
	}
	return out
}

// --- Compact-frame cache ---

// CompactFrameEntry is one cached device-info record keyed by signature.
type CompactFrameEntry struct {
	Signature       uint16
	ManufacturerRaw uint16
	Address         [4]byte
	Version         byte
	DeviceType      byte
	AccessCount     uint64
	LastSeen        time.Time
}

// cacheEntryJSON is the on-disk shape of one CompactFrameEntry, matching
// spec.md §6's documented field names (last_seen_unix rather than an
// RFC3339 timestamp).
type cacheEntryJSON struct {
	ManufacturerRaw uint16 `json:"manufacturer_id"`
	Address         [4]byte `json:"address"`
	Version         byte    `json:"version"`
	DeviceType      byte    `json:"device_type"`
	AccessCount     uint64  `json:"access_count"`
	LastSeenUnix    int64   `json:"last_seen_unix"`
}

// cacheStatsJSON is the cumulative-counters block spec.md §6 documents
// alongside the device map.
type cacheStatsJSON struct {
	Insertions uint64 `json:"insertions"`
	Lookups    uint64 `json:"lookups"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
}

// CompactFrameCacheFile is the JSON-on-disk shape for CompactFrameCache
// persistence, per spec.md §6: a `devices` map keyed by signature, a
// `stats` block of cumulative counters, and `max_size`.
type CompactFrameCacheFile struct {
	Devices map[string]cacheEntryJSON `json:"devices"`
	Stats   cacheStatsJSON            `json:"stats"`
	MaxSize int                       `json:"max_size"`
}
