// Package radio drives an SX126x/RFM69-class transceiver through its
// sleep/standby/RX/TX state machine, enforces Listen-Before-Talk and
// duty-cycle limits, and switches wM-Bus modes. Grounded on the teacher's
// internal/lora.Driver (internal/lora/driver.go): a config struct, a
// mutex-guarded running flag, and hardware access behind small stub
// methods the core owns exclusively — generalized here into an explicit
// state machine with an injected hal.Transceiver/hal.Clock instead of the
// teacher's TODO-stubbed initHardware/transmitPacket.
package radio

import (
	"log"
	"sync"
	"time"

	"github.com/mbusgw/mbus-core/internal/mbuserr"
	"github.com/mbusgw/mbus-core/internal/radio/hal"
)

// State is one of the transceiver's discrete operating states.
type State int

const (
	Sleep State = iota
	StandbyRc
	StandbyXosc
	Tx
	Rx
	FsTx
	FsRx
	CadDone
)

func (s State) String() string {
	switch s {
	case Sleep:
		return "Sleep"
	case StandbyRc:
		return "StandbyRc"
	case StandbyXosc:
		return "StandbyXosc"
	case Tx:
		return "Tx"
	case Rx:
		return "Rx"
	case FsTx:
		return "FsTx"
	case FsRx:
		return "FsRx"
	case CadDone:
		return "CadDone"
	default:
		return "Unknown"
	}
}

// IRQEvent is one of the interrupt conditions the driver reacts to.
type IRQEvent int

const (
	IRQNone IRQEvent = iota
	IRQTxDone
	IRQRxDone
	IRQTimeout
	IRQCrcErr
	IRQOther
)

// Driver owns one transceiver's state exclusively; concurrent calls from
// different goroutines must be serialized by the caller (spec.md §3
// ownership rules), but the driver still guards its own fields since its
// public methods may be invoked from a single caller's multiple
// goroutines (e.g. a receive-loop goroutine racing a Stop call).
type Driver struct {
	mu    sync.Mutex
	state State
	tx    hal.Transceiver
	gpio  hal.GPIO
	clock hal.Clock

	lastIRQLog time.Time
}

// NewDriver constructs a Driver in the Sleep state, wired to the given HAL
// collaborators.
func NewDriver(tx hal.Transceiver, gpio hal.GPIO, clock hal.Clock) *Driver {
	if clock == nil {
		clock = hal.RealClock{}
	}
	return &Driver{state: Sleep, tx: tx, gpio: gpio, clock: clock}
}

// State reports the driver's current state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetStandby transitions the driver to StandbyRc (or StandbyXosc for a
// high-precision clock source) from any state.
func (d *Driver) SetStandby(xosc bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tx.WriteCommand(opSetStandby, []byte{boolByte(xosc)}); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "set-standby command")
	}
	if xosc {
		d.state = StandbyXosc
	} else {
		d.state = StandbyRc
	}
	return nil
}

// SetSleep transitions the driver to Sleep.
func (d *Driver) SetSleep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.tx.WriteCommand(opSetSleep, nil); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "set-sleep command")
	}
	d.state = Sleep
	return nil
}

// BeginTx transitions Standby -> Tx, issuing the set-tx opcode.
func (d *Driver) BeginTx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StandbyRc && d.state != StandbyXosc {
		return mbuserr.New(mbuserr.Other, "BeginTx requires Standby, got %s", d.state)
	}
	if err := d.tx.WriteCommand(opSetTx, nil); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "set-tx command")
	}
	d.state = Tx
	return nil
}

// BeginRx transitions Standby -> Rx, issuing the set-rx opcode.
func (d *Driver) BeginRx() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StandbyRc && d.state != StandbyXosc {
		return mbuserr.New(mbuserr.Other, "BeginRx requires Standby, got %s", d.state)
	}
	if err := d.tx.WriteCommand(opSetRx, nil); err != nil {
		return mbuserr.Wrap(mbuserr.Other, err, "set-rx command")
	}
	d.state = Rx
	return nil
}

const (
	opSetStandby byte = 0x80
	opSetSleep   byte = 0x84
	opSetTx      byte = 0x83
	opSetRx      byte = 0x82
)

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// HandleIRQ applies one IRQ event to the state machine. A TxDone event
// while in Tx returns the driver to StandbyRc; RxDone/Timeout/CrcErr while
// in Rx likewise return to StandbyRc. Unknown/out-of-context events are
// treated as no-ops and throttle-logged rather than causing a panic, per
// spec.md §4.E.
func (d *Driver) HandleIRQ(event IRQEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case event == IRQTxDone && d.state == Tx:
		d.state = StandbyRc
	case (event == IRQRxDone || event == IRQTimeout || event == IRQCrcErr) && d.state == Rx:
		d.state = StandbyRc
	default:
		// Unrecognized or out-of-context IRQ: no-op, throttled log.
		if d.clock.Now().Sub(d.lastIRQLog) > time.Second {
			log.Printf("radio: ignoring IRQ event %d in state %s", event, d.state)
			d.lastIRQLog = d.clock.Now()
		}
	}
}
