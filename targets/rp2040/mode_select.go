//go:build rp2040

package main

import (
	"machine"
	"time"
)

// modeJumper grounded at boot selects the melody demo
const modeJumper = machine.GPIO26

// ModeConfig determines which mode to run
type ModeConfig struct {
	// Standalone plays the built-in melody instead of serving the host
	Standalone bool
}

// GetMode samples the jumper once at boot
func GetMode() ModeConfig {
	modeJumper.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	time.Sleep(time.Millisecond) // Let the pull-up settle
	return ModeConfig{
		Standalone: !modeJumper.Get(),
	}
}
