package radio

import (
	"time"

	"github.com/mbusgw/mbus-core/internal/mbuserr"
)

// LBTConfig configures Listen-Before-Talk.
type LBTConfig struct {
	ListenDuration time.Duration // default 5ms
	ThresholdDBm   float64       // default -85
	MaxRetries     int           // default 10
}

// DefaultLBTConfig returns the regulatory defaults from spec.md §4.E/§6.
func DefaultLBTConfig() LBTConfig {
	return LBTConfig{
		ListenDuration: 5 * time.Millisecond,
		ThresholdDBm:   -85,
		MaxRetries:     10,
	}
}

// ListenBeforeTalk measures RSSI for cfg.ListenDuration; if the channel is
// at or above cfg.ThresholdDBm (busy), it backs off with exponential delay
// (starting at 10ms, doubling each retry, capped at 1s) up to
// cfg.MaxRetries attempts, returning a channel-busy error after the final
// attempt. It returns nil once a listen finds the channel clear.
func (d *Driver) ListenBeforeTalk(cfg LBTConfig) error {
	delay := 10 * time.Millisecond
	const maxDelay = time.Second

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		d.clock.Sleep(cfg.ListenDuration)
		rssi, err := d.tx.MeasureRSSI()
		if err != nil {
			return mbuserr.Wrap(mbuserr.Other, err, "measure RSSI for LBT")
		}
		if rssi < cfg.ThresholdDBm {
			return nil
		}
		if attempt == cfg.MaxRetries {
			return mbuserr.New(mbuserr.Other, "channel busy after %d LBT attempts (last RSSI %.1f dBm)", attempt+1, rssi)
		}
		d.clock.Sleep(delay)
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return mbuserr.New(mbuserr.Other, "channel busy")
}
