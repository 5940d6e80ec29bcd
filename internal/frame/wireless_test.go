package frame

import "testing"

func wirelessFrameBytes(ci byte, payload []byte) []byte {
	body := []byte{0x44, 0x2D, 0x2C, 0x01, 0x02, 0x03, 0x04, 0x01, 0x07}
	body = append(body, ci)
	body = append(body, payload...)
	return append([]byte{byte(len(body))}, body...)
}

func TestParseWirelessFullFrame(t *testing.T) {
	buf := wirelessFrameBytes(0x72, []byte{0xAA, 0xBB})
	wf, n, err := ParseWireless(buf, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d want %d", n, len(buf))
	}
	if wf.CI != 0x72 {
		t.Fatalf("got CI 0x%02X", wf.CI)
	}
	if wf.Address != ([4]byte{0x01, 0x02, 0x03, 0x04}) {
		t.Fatalf("got address %v", wf.Address)
	}
}

func TestParseWirelessCompactFrameCacheMiss(t *testing.T) {
	// Scenario F: signature 0xABCD, empty cache.
	buf := wirelessFrameBytes(ciCompactFrame, []byte{0xCD, 0xAB})
	cache := NewCompactFrameCache(16)
	wf, _, err := ParseWireless(buf, cache)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !wf.AwaitingCacheFill {
		t.Fatal("expected AwaitingCacheFill on miss")
	}
	want := []byte{0x10, 0x7B, 0x01, 0x76, 0xCD, 0xAB, byte(0x7B+0x01+0x76+0xCD+0xAB), 0x16}
	if !bytesEqual(wf.FullFrameRequest, want) {
		t.Fatalf("got %X want %X", wf.FullFrameRequest, want)
	}
}

func TestBuildFullFrameRequestMatchesScenarioF(t *testing.T) {
	got := BuildFullFrameRequest(0x01, 0xABCD)
	want := []byte{0x10, 0x7B, 0x01, 0x76, 0xCD, 0xAB, byte((0x7B + 0x01 + 0x76 + 0xCD + 0xAB) % 256), 0x16}
	if !bytesEqual(got, want) {
		t.Fatalf("got %X want %X", got, want)
	}
}

func TestParseWirelessCompactFrameCacheHit(t *testing.T) {
	buf := wirelessFrameBytes(ciCompactFrame, []byte{0xCD, 0xAB})
	cache := NewCompactFrameCache(16)
	cache.Insert(0xABCD, CompactFrameEntry{Address: [4]byte{0x09, 0x08, 0x07, 0x06}, Version: 3, DeviceType: 7})
	wf, _, err := ParseWireless(buf, cache)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.AwaitingCacheFill {
		t.Fatal("expected cache hit, not a miss")
	}
	if wf.Address != ([4]byte{0x09, 0x08, 0x07, 0x06}) {
		t.Fatalf("got address %v", wf.Address)
	}
}

func TestComputeSignatureIsDeterministic(t *testing.T) {
	addr := [4]byte{0x01, 0x02, 0x03, 0x04}
	a := ComputeSignature(addr)
	b := ComputeSignature(addr)
	if a != b {
		t.Fatal("signature generator is not deterministic")
	}
}

func TestVerifyBlocksToleranceOverridesInvalid(t *testing.T) {
	good := make([]byte, 16)
	copy(good[:14], []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14})
	crc := crc16(good[:14])
	good[14] = byte(crc)
	good[15] = byte(crc >> 8)

	bad := make([]byte, 16)
	copy(bad[:14], []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9})
	bad[14] = 0x00
	bad[15] = 0x00

	payload := append(append([]byte{}, good...), bad...)

	blocks := VerifyBlocks(payload, nil)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks want 2", len(blocks))
	}
	if !blocks[0].Valid {
		t.Error("expected block 0 to be CRC-valid")
	}
	if blocks[1].Valid {
		t.Error("expected block 1 to be CRC-invalid without tolerance")
	}

	tolerant := VerifyBlocks(payload, func(idx int) bool { return idx == 1 })
	if !tolerant[1].Valid {
		t.Error("expected block 1 to be tolerated")
	}
}

func TestVerifyBlocksPartialTrailingBlock(t *testing.T) {
	payload := []byte{1, 2, 3}
	blocks := VerifyBlocks(payload, nil)
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks want 1", len(blocks))
	}
	if blocks[0].Valid {
		t.Error("partial trailing block must not be marked valid")
	}
}

func TestExtractBlockDataConcatenatesInOrder(t *testing.T) {
	blocks := []BlockInfo{
		{Data: []byte{1, 2, 3}},
		{Data: []byte{4, 5, 6}},
	}
	got := ExtractBlockData(blocks)
	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytesEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
