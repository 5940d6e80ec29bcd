package mbus

import (
	"time"

	"github.com/mbusgw/mbus-core/internal/radio"
	"github.com/mbusgw/mbus-core/internal/radio/debounce"
	"github.com/mbusgw/mbus-core/internal/radio/hal"
)

// defaultModeSequence is the T1/S1/C1 cycling order an auto-switching
// receiver steps through while hunting for the mode the nearby devices
// are actually transmitting in.
var defaultModeSequence = []radio.Mode{radio.ModeT1, radio.ModeS1, radio.ModeC1}

// RadioSession bundles a transceiver driver with the mode switcher, duty
// cycle gate, and IRQ debounce backend it needs to run a receive loop,
// mirroring the constructor-time wiring internal/lora/driver.go performs
// for its SX1301 concentrator card.
type RadioSession struct {
	Driver       *radio.Driver
	ModeSwitcher *radio.ModeSwitcher
	DutyGate     *radio.DutyCycleGate
	Debounce     debounce.Backend

	clock hal.Clock
}

// NewRadio constructs a RadioSession around the given transceiver, GPIO,
// and clock HAL implementations, auto-cycling through the T1/S1/C1 modes
// and enforcing dutyCycleLimit (a fraction, e.g. 0.009 for 0.9%) on every
// transmit.
func NewRadio(tx hal.Transceiver, gpio hal.GPIO, clock hal.Clock, dutyCycleLimit float64) *RadioSession {
	if clock == nil {
		clock = hal.RealClock{}
	}
	return &RadioSession{
		Driver:       radio.NewDriver(tx, gpio, clock),
		ModeSwitcher: radio.NewModeSwitcher(defaultModeSequence, 10, clock),
		DutyGate:     radio.NewDutyCycleGate(dutyCycleLimit, clock),
		Debounce:     debounce.Select(tx, clock),
		clock:        clock,
	}
}

// Transmit computes the frame's time on air under the active mode's
// encoding, checks it against the rolling duty-cycle budget, listens
// before talking, and begins the transmission. It returns the gate or
// LBT error without touching the driver state if either refuses.
func (r *RadioSession) Transmit(payload []byte, mode radio.Mode, lbtCfg radio.LBTConfig) error {
	params := radio.Params(mode)
	toa := radio.TimeOnAir(len(payload), 90, 18, params.ChipRateBps, params.Encoding)

	if err := r.DutyGate.Allow(toa); err != nil {
		return err
	}
	if err := r.Driver.ListenBeforeTalk(lbtCfg); err != nil {
		return err
	}
	return r.Driver.BeginTx()
}

// Receive asks the switcher for the mode to try next (NextMode waits out
// the switch delay), then begins reception and returns that mode. No
// mode-specific setting is written to the transceiver; the driver
// receives the same way in every mode. Callers drive HandleIRQ from their IRQ
// pin callback and call ModeEstablished once a frame actually decodes in
// the attempted mode, so NextMode stops cycling.
func (r *RadioSession) Receive() (radio.Mode, error) {
	mode := r.ModeSwitcher.NextMode()
	if err := r.Driver.BeginRx(); err != nil {
		return mode, err
	}
	return mode, nil
}

// Idle returns a fixed 100 ms, equal to the mode switcher's initial delay
// between cycling attempts; it does not follow the longer delay NextMode
// uses after unsuccessful cycles, and does not depend on the mode.
// Grounded on internal/lora/driver.go's fixed poll interval between CAD
// attempts.
func (r *RadioSession) Idle() time.Duration {
	return 100 * time.Millisecond
}
