package radio

import (
	"time"

	"github.com/mbusgw/mbus-core/internal/mbuserr"
)

// Encoding selects the line-coding overhead factor used by TimeOnAir.
type Encoding int

const (
	EncodingNRZ Encoding = iota
	EncodingManchester
	EncodingThreeOutOfSix
)

func (e Encoding) factor() float64 {
	switch e {
	case EncodingManchester:
		return 2.0
	case EncodingThreeOutOfSix:
		return 1.5
	default:
		return 1.0
	}
}

// TimeOnAir computes the on-air duration for a frame of frameLenBytes at
// bitrateBps, including preambleBits and syncBits overhead, encoded with
// enc.
func TimeOnAir(frameLenBytes, preambleBits, syncBits int, bitrateBps float64, enc Encoding) time.Duration {
	totalBits := float64(preambleBits+syncBits+frameLenBytes*8) * enc.factor()
	seconds := totalBits / bitrateBps
	return time.Duration(seconds * float64(time.Second))
}

// DutyCycleGate enforces the <0.9% per-hour transmit budget described in
// spec.md §4.E/§6. It tracks cumulative on-air time within the trailing
// one-hour window and rejects a transmit that would push the window over
// budget.
type DutyCycleGate struct {
	limit     float64 // fraction of an hour, e.g. 0.009 for 0.9%
	clock     interface{ Now() time.Time }
	entries   []dutyEntry
}

type dutyEntry struct {
	at       time.Time
	duration time.Duration
}

// NewDutyCycleGate creates a gate enforcing the given fractional limit
// (0.009 == 0.9%) using clock for its notion of "now".
func NewDutyCycleGate(limit float64, clock interface{ Now() time.Time }) *DutyCycleGate {
	return &DutyCycleGate{limit: limit, clock: clock}
}

// Allow reports whether a transmit of the given on-air duration fits
// within the rolling one-hour duty-cycle budget, recording it if so.
func (g *DutyCycleGate) Allow(toa time.Duration) error {
	now := g.clock.Now()
	cutoff := now.Add(-time.Hour)

	kept := g.entries[:0]
	var used time.Duration
	for _, e := range g.entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
			used += e.duration
		}
	}
	g.entries = kept

	budget := time.Duration(g.limit * float64(time.Hour))
	if used+toa > budget {
		return mbuserr.New(mbuserr.Other, "duty-cycle budget exceeded: %v used + %v requested > %v budget", used, toa, budget)
	}
	g.entries = append(g.entries, dutyEntry{at: now, duration: toa})
	return nil
}
