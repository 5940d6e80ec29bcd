package hal

import (
	"sync"
	"time"
)

// FakeTransceiver is a deterministic in-memory Transceiver used by the
// radio package's tests. RSSI readings and IRQ masks are scripted by the
// test via RSSISequence/IRQSequence; command/register writes are recorded
// for assertions.
type FakeTransceiver struct {
	mu sync.Mutex

	RSSISequence []float64
	rssiIndex    int

	IRQSequence []uint32
	irqIndex    int

	Commands  []RecordedCommand
	Registers map[uint16][]byte

	ResetCount int
}

// RecordedCommand captures one WriteCommand/WriteRegister call for test
// assertions.
type RecordedCommand struct {
	Opcode byte
	Addr   uint16
	Data   []byte
}

func NewFakeTransceiver() *FakeTransceiver {
	return &FakeTransceiver{Registers: make(map[uint16][]byte)}
}

func (f *FakeTransceiver) WriteCommand(opcode byte, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, RecordedCommand{Opcode: opcode, Data: append([]byte(nil), data...)})
	return nil
}

func (f *FakeTransceiver) ReadCommand(opcode byte, buf []byte) error {
	return nil
}

func (f *FakeTransceiver) WriteRegister(addr uint16, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Registers[addr] = append([]byte(nil), data...)
	return nil
}

func (f *FakeTransceiver) ReadRegister(addr uint16, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(buf, f.Registers[addr])
	return nil
}

func (f *FakeTransceiver) ResetRadio() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResetCount++
	return nil
}

// MeasureRSSI returns the next scripted RSSI reading, or -120 dBm (quiet
// channel) once the sequence is exhausted.
func (f *FakeTransceiver) MeasureRSSI() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rssiIndex < len(f.RSSISequence) {
		v := f.RSSISequence[f.rssiIndex]
		f.rssiIndex++
		return v, nil
	}
	return -120, nil
}

// PollIRQ returns the next scripted IRQ mask, or 0 once exhausted.
func (f *FakeTransceiver) PollIRQ() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.irqIndex < len(f.IRQSequence) {
		v := f.IRQSequence[f.irqIndex]
		f.irqIndex++
		return v, nil
	}
	return 0, nil
}

// FakeGPIO is a deterministic in-memory GPIO.
type FakeGPIO struct {
	mu    sync.Mutex
	pins  map[int]bool
}

func NewFakeGPIO() *FakeGPIO {
	return &FakeGPIO{pins: make(map[int]bool)}
}

func (g *FakeGPIO) Read(pin int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pins[pin], nil
}

func (g *FakeGPIO) Write(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pins[pin] = value
	return nil
}

// FakeClock is a manually-advanced Clock: Sleep records elapsed virtual
// time instead of actually blocking, so radio-timing tests run instantly
// while still exercising the real delay arithmetic.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

// TotalSlept reports the cumulative virtual time slept, for assertions
// like scenario G's "total wall time ≥ 70 ms of delays".
func (c *FakeClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
