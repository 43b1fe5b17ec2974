//go:build rp2040

package main

import (
	"device/rp"
	"machine"

	"wavegen/core"
)

// sioPins writes the SIO set and clear registers, one store per edge batch.
// Every RP2040 pin is fast, so WriteSlow is never used by the scheduler.
type sioPins struct{}

func (sioPins) Set(mask uint32) {
	rp.SIO.GPIO_OUT_SET.Set(mask)
}

func (sioPins) Clear(mask uint32) {
	rp.SIO.GPIO_OUT_CLR.Set(mask)
}

func (sioPins) WriteSlow(pin uint8, high bool) {
	machine.Pin(pin).Set(high)
}

// configureOutputs hands every usable channel pin to SIO as a low output
func configureOutputs(valid func(uint8) bool) {
	for pin := uint8(0); pin < core.MaxChannels; pin++ {
		if !valid(pin) {
			continue
		}
		p := machine.Pin(pin)
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}
}

// NewHardware returns the generator collaborators for this board
func NewHardware(valid func(uint8) bool) core.Hardware {
	configureOutputs(valid)
	return core.Hardware{
		Clock:    hwClock{},
		Timer:    alarm,
		Pins:     sioPins{},
		ValidPin: valid,
	}
}
