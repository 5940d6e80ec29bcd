package radio

import (
	"time"

	"github.com/mbusgw/mbus-core/internal/radio/hal"
)

// Mode is a wM-Bus radio mode candidate.
type Mode string

const (
	ModeT1   Mode = "T1"
	ModeS1   Mode = "S1"
	ModeC1   Mode = "C1"
	ModeNone Mode = "none"
)

// ModeParams carries the fixed chip-rate/line-coding parameters for each
// mode, per spec.md §4.E.
type ModeParams struct {
	ChipRateBps float64
	Encoding    Encoding
}

var modeParams = map[Mode]ModeParams{
	ModeT1: {ChipRateBps: 100000, Encoding: EncodingThreeOutOfSix},
	ModeS1: {ChipRateBps: 32768, Encoding: EncodingManchester},
	ModeC1: {ChipRateBps: 100000, Encoding: EncodingNRZ},
}

// ModeSwitcher cycles through a configured mode sequence (default
// T1 -> S1 -> C1), suspending switch_delay_ms between candidates and
// doubling that delay (capped at 1s) after each unsuccessful full cycle.
// After maxCycles failed cycles it yields ModeNone.
type ModeSwitcher struct {
	sequence     []Mode
	clock        hal.Clock
	switchDelay  time.Duration
	maxCycles    int
	cycleIndex   int
	modeIndex    int
	cyclesDone   int
	established  Mode
}

const (
	defaultSwitchDelay = 100 * time.Millisecond
	maxSwitchDelay     = time.Second
)

// NewModeSwitcher constructs a switcher over sequence (T1,S1,C1 if empty),
// giving up after maxCycles full cycles without establishment.
func NewModeSwitcher(sequence []Mode, maxCycles int, clock hal.Clock) *ModeSwitcher {
	if len(sequence) == 0 {
		sequence = []Mode{ModeT1, ModeS1, ModeC1}
	}
	return &ModeSwitcher{
		sequence:    sequence,
		clock:       clock,
		switchDelay: defaultSwitchDelay,
		maxCycles:   maxCycles,
	}
}

// NextMode suspends for the current switch delay and returns the next
// candidate mode. Once a mode has been established (see
// ModeEstablished), every subsequent call returns it indefinitely.
func (m *ModeSwitcher) NextMode() Mode {
	if m.established != "" {
		return m.established
	}
	if m.cyclesDone >= m.maxCycles {
		return ModeNone
	}

	m.clock.Sleep(m.switchDelay)
	mode := m.sequence[m.modeIndex]
	m.modeIndex++
	if m.modeIndex >= len(m.sequence) {
		m.modeIndex = 0
		m.cyclesDone++
		m.switchDelay *= 2
		if m.switchDelay > maxSwitchDelay {
			m.switchDelay = maxSwitchDelay
		}
	}
	return mode
}

// ModeEstablished latches m as the established mode; all further NextMode
// calls return it.
func (m *ModeSwitcher) ModeEstablished(mode Mode) {
	m.established = mode
}

// Params returns the fixed parameters for mode, or the zero value if mode
// has none (e.g. ModeNone).
func Params(mode Mode) ModeParams {
	return modeParams[mode]
}
