// Package debounce implements the PIO IRQ debouncer contract: a backend
// that takes a raw IRQ mask and a debounce window and returns the
// debounced event mask, with reset()/clear_fifo() lifecycle hooks.
// Grounded on the teacher's lora.Driver receiveLoop polling pattern
// (internal/lora/driver.go) — a tight poll loop with a fixed sleep between
// attempts — generalized into an explicit, testable backend interface.
package debounce

import (
	"sync"
	"time"

	"github.com/mbusgw/mbus-core/internal/radio/hal"
)

// Backend is the PIO IRQ debouncer contract. Implementations must be safe
// for concurrent readers; FIFO-style reads are serialized internally.
type Backend interface {
	// Debounce returns the debounced event mask for the given raw mask,
	// having waited debounce for the signal to settle.
	Debounce(mask uint32, debounce time.Duration) uint32
	// Reset clears internal debounce state. Idempotent, safe at any time.
	Reset()
	// ClearFIFO discards any buffered-but-undelivered events.
	ClearFIFO()
}

// Software is the always-available polling backend: it waits debounce,
// reads the transceiver's raw IRQ register once, and keeps only the bits
// set both in that reading and in the caller-supplied mask.
type Software struct {
	mu       sync.Mutex
	tx       hal.Transceiver
	clock    hal.Clock
	fifo     []uint32
	lastMask uint32
}

// NewSoftware constructs a software debounce backend polling tx through
// clock (which may be a hal.FakeClock in tests to avoid real sleeps).
func NewSoftware(tx hal.Transceiver, clock hal.Clock) *Software {
	return &Software{tx: tx, clock: clock}
}

func (s *Software) Debounce(mask uint32, debounce time.Duration) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock.Sleep(debounce)
	confirmed, err := s.tx.PollIRQ()
	if err != nil {
		return 0
	}
	stable := mask & confirmed
	s.lastMask = stable
	if stable != 0 {
		s.fifo = append(s.fifo, stable)
	}
	return stable
}

func (s *Software) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMask = 0
}

func (s *Software) ClearFIFO() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fifo = nil
}

// Hardware is a platform-specific debounce backend stub. Real PIO-assisted
// debouncing requires SPI/GPIO access, which is out of scope for this
// module (see spec.md §1); Probe always reports unavailable so Select
// falls back to Software on every platform this module ships for.
type Hardware struct{}

func (Hardware) Debounce(mask uint32, debounce time.Duration) uint32 { return mask }
func (Hardware) Reset()                                              {}
func (Hardware) ClearFIFO()                                          {}

// Probe reports whether the hardware backend is usable on this platform.
func (Hardware) Probe() bool { return false }

// Select returns the hardware backend when its Probe succeeds, otherwise
// the software backend, matching the automatic-selection contract in
// spec.md §4.E.
func Select(tx hal.Transceiver, clock hal.Clock) Backend {
	hw := Hardware{}
	if hw.Probe() {
		return hw
	}
	return NewSoftware(tx, clock)
}
