package vif

import (
	"math"
	"testing"
)

func TestVolumeVIFMatchesSpecExample(t *testing.T) {
	e, ok := Lookup(0x13)
	if !ok {
		t.Fatal("expected VIF 0x13 to resolve")
	}
	if e.Quantity != "Volume" || e.Unit != "m³" {
		t.Fatalf("got %+v", e)
	}
	value := 123456.0 * e.Multiplier
	if math.Abs(value-123.456) > 1e-9 {
		t.Errorf("got %v want 123.456", value)
	}
}

func TestLookupUnmappedReturnsNotOk(t *testing.T) {
	if _, ok := Lookup(0x01); !ok {
		t.Error("0x01 is within the energy Wh range and should resolve")
	}
	if _, ok := Lookup(0x7D); ok {
		t.Error("0x7D (extension selector) should not resolve in the primary table")
	}
}

func TestNormalizeCompoundsMultipliersAndAdoptsLastNonEmpty(t *testing.T) {
	chain := []Chain{
		{Entry: Entry{Unit: "m³", Multiplier: 0.001, Quantity: "Volume"}, Ok: true},
		{Entry: Entry{Unit: "", Multiplier: 10, Quantity: ""}, Ok: true},
		{Ok: false},
	}
	got := Normalize(chain)
	if got.Multiplier != 0.01 {
		t.Errorf("multiplier got %v want 0.01", got.Multiplier)
	}
	if got.Unit != "m³" || got.Quantity != "Volume" {
		t.Errorf("got unit=%q quantity=%q", got.Unit, got.Quantity)
	}
}

func TestNormalizeEmptyChainStartsAtOne(t *testing.T) {
	got := Normalize(nil)
	if got.Multiplier != 1.0 {
		t.Errorf("got %v want 1.0", got.Multiplier)
	}
}

func TestFDAndFBTablesResolveKnownCodes(t *testing.T) {
	if _, ok := LookupFD(0x12); !ok {
		t.Error("expected FD 0x12 (Manufacturer) to resolve")
	}
	if _, ok := LookupFB(0x28); !ok {
		t.Error("expected FB 0x28 (Pressure) to resolve")
	}
}
