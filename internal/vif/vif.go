// Package vif resolves Value Information Field (VIF) and VIF Extension
// (VIFE) codes into a normalized (unit, multiplier, quantity) triple. It
// holds three static 256-entry tables — primary, FD-extension, and
// FB-extension — and folds a VIF+VIFE chain into one normalized result.
package vif

import "fmt"

// Entry describes what one VIF/VIFE code means.
type Entry struct {
	Unit       string
	Multiplier float64 // decimal scalar, e.g. 0.001 for milli-units
	Quantity   string
}

var (
	primaryTable [256]*Entry
	fdTable      [256]*Entry
	fbTable      [256]*Entry
)

func pow10(e int) float64 {
	m := 1.0
	if e >= 0 {
		for i := 0; i < e; i++ {
			m *= 10
		}
		return m
	}
	for i := 0; i > e; i-- {
		m /= 10
	}
	return m
}

func fillRange(table *[256]*Entry, start, count int, unit, quantity string, expBase int) {
	for i := 0; i < count; i++ {
		table[start+i] = &Entry{
			Unit:       unit,
			Multiplier: pow10(expBase + i),
			Quantity:   quantity,
		}
	}
}

func set(table *[256]*Entry, code byte, unit string, multiplier float64, quantity string) {
	table[code] = &Entry{Unit: unit, Multiplier: multiplier, Quantity: quantity}
}

func init() {
	initPrimaryTable()
	initFDTable()
	initFBTable()
}

// initPrimaryTable populates the 0x00..0x7F range of the primary VIF table
// per EN 13757-3, plus the two alias codes (0xFE "any", 0xFF
// "manufacturer specific") used by normalization.
func initPrimaryTable() {
	fillRange(&primaryTable, 0x00, 8, "Wh", "Energy", -3)
	fillRange(&primaryTable, 0x08, 8, "J", "Energy", 0)
	fillRange(&primaryTable, 0x10, 8, "m³", "Volume", -6)
	fillRange(&primaryTable, 0x18, 8, "kg", "Mass", -3)
	set(&primaryTable, 0x20, "s", 1, "On-time")
	set(&primaryTable, 0x21, "min", 1, "On-time")
	set(&primaryTable, 0x22, "h", 1, "On-time")
	set(&primaryTable, 0x23, "d", 1, "On-time")
	set(&primaryTable, 0x24, "s", 1, "Operating-time")
	set(&primaryTable, 0x25, "min", 1, "Operating-time")
	set(&primaryTable, 0x26, "h", 1, "Operating-time")
	set(&primaryTable, 0x27, "d", 1, "Operating-time")
	fillRange(&primaryTable, 0x28, 8, "W", "Power", -3)
	fillRange(&primaryTable, 0x30, 8, "J/h", "Power", 0)
	fillRange(&primaryTable, 0x38, 8, "m³/h", "Volume-flow", -6)
	fillRange(&primaryTable, 0x40, 8, "m³/min", "Volume-flow-ext", -7)
	fillRange(&primaryTable, 0x48, 8, "m³/s", "Volume-flow-ext", -9)
	fillRange(&primaryTable, 0x50, 8, "kg/h", "Mass-flow", -3)
	fillRange(&primaryTable, 0x58, 4, "°C", "Flow-temperature", -3)
	fillRange(&primaryTable, 0x5C, 4, "°C", "Return-temperature", -3)
	fillRange(&primaryTable, 0x60, 4, "K", "Temperature-difference", -3)
	fillRange(&primaryTable, 0x64, 4, "°C", "External-temperature", -3)
	fillRange(&primaryTable, 0x68, 4, "bar", "Pressure", -3)
	set(&primaryTable, 0x6C, "date", 1, "Date")
	set(&primaryTable, 0x6D, "datetime", 1, "Date-time")
	set(&primaryTable, 0x6E, "HCA", 1, "HCA-units")
	set(&primaryTable, 0x6F, "", 1, "Reserved")
	set(&primaryTable, 0x70, "s", 1, "Averaging-duration")
	set(&primaryTable, 0x71, "min", 1, "Averaging-duration")
	set(&primaryTable, 0x72, "h", 1, "Averaging-duration")
	set(&primaryTable, 0x73, "d", 1, "Averaging-duration")
	set(&primaryTable, 0x74, "s", 1, "Actuality-duration")
	set(&primaryTable, 0x75, "min", 1, "Actuality-duration")
	set(&primaryTable, 0x76, "h", 1, "Actuality-duration")
	set(&primaryTable, 0x77, "d", 1, "Actuality-duration")
	set(&primaryTable, 0x78, "", 1, "Fabrication-No")
	set(&primaryTable, 0x79, "", 1, "Enhanced-identification")
	set(&primaryTable, 0x7A, "", 1, "Bus-address")
	// 0x7B: extension of VIF-codes (second table, handled as FB elsewhere).
	// 0x7C: custom, length-prefixed ASCII VIF (handled by the record parser).
	set(&primaryTable, 0x7E, "", 1, "Any-VIF")
	set(&primaryTable, 0x7F, "", 1, "Manufacturer-specific")
	set(&primaryTable, 0xFE, "", 1, "Any-VIF")
	set(&primaryTable, 0xFF, "", 1, "Manufacturer-specific")
}

// initFDTable populates the 0xFD extension table (second extension, "FD").
func initFDTable() {
	fillRange(&fdTable, 0x00, 8, "Wh", "Credit", -3)
	fillRange(&fdTable, 0x08, 8, "Wh", "Debit", -3)
	set(&fdTable, 0x10, "", 1, "Access-number")
	set(&fdTable, 0x11, "", 1, "Medium")
	set(&fdTable, 0x12, "", 1, "Manufacturer")
	set(&fdTable, 0x13, "", 1, "Parameter-set-identification")
	set(&fdTable, 0x14, "", 1, "Model-version")
	set(&fdTable, 0x15, "", 1, "Hardware-version")
	set(&fdTable, 0x16, "", 1, "Firmware-version")
	set(&fdTable, 0x17, "", 1, "Software-version")
	set(&fdTable, 0x18, "", 1, "Customer-location")
	set(&fdTable, 0x19, "", 1, "Customer")
	set(&fdTable, 0x1A, "", 1, "Access-code-user")
	set(&fdTable, 0x1B, "", 1, "Access-code-operator")
	set(&fdTable, 0x1C, "", 1, "Access-code-system-operator")
	set(&fdTable, 0x1D, "", 1, "Access-code-developer")
	set(&fdTable, 0x1E, "", 1, "Password")
	set(&fdTable, 0x1F, "", 1, "Error-flags")
	set(&fdTable, 0x20, "", 1, "Error-mask")
	set(&fdTable, 0x23, "", 1, "Digital-output")
	set(&fdTable, 0x24, "", 1, "Digital-input")
	set(&fdTable, 0x25, "baud", 1, "Baudrate")
	set(&fdTable, 0x26, "s", 1, "Response-delay-time")
	set(&fdTable, 0x27, "", 1, "Retry")
	set(&fdTable, 0x29, "", 1, "First-storage-number-cyclic")
	set(&fdTable, 0x2A, "", 1, "Last-storage-number-cyclic")
	set(&fdTable, 0x2B, "", 1, "Size-of-storage-block")
	set(&fdTable, 0x2D, "d", 1, "Storage-interval")
	set(&fdTable, 0x2E, "mo", 1, "Storage-interval")
	set(&fdTable, 0x2F, "yr", 1, "Storage-interval")
	fillRange(&fdTable, 0x30, 4, "W", "Power", -3)
	set(&fdTable, 0x31, "min", 1, "Duration-since-last-readout")
	set(&fdTable, 0x32, "h", 1, "Duration-since-last-readout")
	set(&fdTable, 0x33, "d", 1, "Duration-since-last-readout")
	fillRange(&fdTable, 0x48, 4, "", "Voltage", -9)
	fillRange(&fdTable, 0x58, 4, "", "Current", -12)
	set(&fdTable, 0x61, "", 1, "Reset-counter")
	set(&fdTable, 0x62, "", 1, "Cumulation-counter")
	set(&fdTable, 0x68, "%", 1, "Duty-to-read-out")
	set(&fdTable, 0x70, "", 1, "Dimensionless")
	set(&fdTable, 0x74, "", 1, "Reserved")
}

// initFBTable populates the 0xFB extension table (first extension, "FB").
func initFBTable() {
	fillRange(&fbTable, 0x00, 2, "Wh", "Energy", -1)
	fillRange(&fbTable, 0x08, 2, "J", "Energy", 2)
	fillRange(&fbTable, 0x10, 2, "m³", "Volume", -3)
	fillRange(&fbTable, 0x18, 2, "kg", "Mass", -1)
	fillRange(&fbTable, 0x20, 2, "°C", "Flow-temperature", -3)
	fillRange(&fbTable, 0x21, 2, "°C", "Return-temperature", -3)
	set(&fbTable, 0x28, "bar", 1, "Pressure")
	set(&fbTable, 0x29, "bar", 10, "Pressure")
	set(&fbTable, 0x2A, "V", 1, "Voltage")
	set(&fbTable, 0x2B, "A", 1, "Current")
	set(&fbTable, 0x2C, "s", 1, "Duration")
	set(&fbTable, 0x2D, "K", 1, "Temperature-limit")
	set(&fbTable, 0x2E, "kW", 1, "Max-power")
	set(&fbTable, 0x70, "%", 1, "Relative-humidity")
	set(&fbTable, 0x71, "%", 0.1, "Relative-humidity")
}

// Lookup resolves a VIF/VIFE byte against the primary table (codes 0x00..0x7F
// plus aliases 0xFE/0xFF); it reports ok=false for unmapped codes.
func Lookup(code byte) (Entry, bool) {
	e := primaryTable[code]
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// LookupFD resolves a code against the FD (0xFD-prefixed) extension table.
func LookupFD(code byte) (Entry, bool) {
	e := fdTable[code]
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// LookupFB resolves a code against the FB (0xFB-prefixed) extension table.
func LookupFB(code byte) (Entry, bool) {
	e := fbTable[code]
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// Chain is one resolved element (a VIF or one of its VIFEs) to be folded by
// Normalize.
type Chain struct {
	Entry Entry
	Ok    bool
}

// Normalized is the result of folding a VIF+VIFE chain: the last non-empty
// unit and quantity win, and multipliers compound starting from 1.0.
type Normalized struct {
	Unit       string
	Multiplier float64
	Quantity   string
}

// Normalize folds a VIF+VIFE chain: it multiplies every resolved entry's
// multiplier together (starting at 1.0) and adopts the last non-empty unit
// and the last non-empty quantity seen in the chain. Unresolved entries
// (Ok==false) are skipped; normalization never errors — higher layers decide
// how to treat a chain with no resolved entries at all.
func Normalize(chain []Chain) Normalized {
	result := Normalized{Multiplier: 1.0}
	for _, c := range chain {
		if !c.Ok {
			continue
		}
		result.Multiplier *= c.Entry.Multiplier
		if c.Entry.Unit != "" {
			result.Unit = c.Entry.Unit
		}
		if c.Entry.Quantity != "" {
			result.Quantity = c.Entry.Quantity
		}
	}
	return result
}

// String implements fmt.Stringer for debugging/log output.
func (n Normalized) String() string {
	return fmt.Sprintf("%s x%g %s", n.Quantity, n.Multiplier, n.Unit)
}
