//go:build rp2040

package main

import (
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// Pulses queued per top-up. The PIO FIFO holds four batches.
const referenceBatch = 1 << 16

// reference is a PIO-timed square wave on a spare pin. Put a scope probe on
// it next to a waveform pin to see the scheduler's jitter against an ideal
// edge train.
type reference struct {
	pulsar *piolib.Pulsar
}

// startReference claims a PIO0 state machine and starts a square wave of
// the given period on pin
func startReference(pin machine.Pin, period time.Duration) (*reference, error) {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	pulsar, err := piolib.NewPulsar(sm, pin)
	if err != nil {
		return nil, err
	}
	if err := pulsar.SetPeriod(period); err != nil {
		return nil, err
	}
	r := &reference{pulsar: pulsar}
	r.service()
	return r, nil
}

// service keeps the pulse queue topped up so the wave never stops
func (r *reference) service() {
	if r == nil {
		return
	}
	for !r.pulsar.IsQueueFull() {
		if err := r.pulsar.TryQueue(referenceBatch); err != nil {
			return
		}
	}
}
