package core

import (
	"math/bits"
	"sync/atomic"
)

// PeriodicCallback runs once per scheduler firing and returns the number of
// microseconds until it wants to run again.
type PeriodicCallback func() uint32

// Generator is the scheduler context of one hardware timer: the channel
// table, the active and level bitmasks, and the two request mailboxes.
type Generator struct {
	hw     Hardware
	timing Timing

	channels [MaxChannels]Channel

	// Written only by Interrupt
	enabled atomic.Uint32 // Bit i set while channel i is scheduled
	states  atomic.Uint32 // Bit i is the output level of channel i

	toSet     mailbox // Activate or update exactly one channel
	toDisable mailbox // Deactivate exactly one channel

	callback     atomic.Pointer[PeriodicCallback]
	timerRunning atomic.Bool

	// Scan span and round-robin cursor, owned by Interrupt
	startPin uint8
	endPin   uint8
	nextPin  uint8
}

// NewGenerator builds a generator on hw. Only one should exist per hardware
// timer.
func NewGenerator(hw Hardware, timing Timing) *Generator {
	hw.applyDefaults()
	if timing.CyclesPerMicro == 0 {
		timing = DefaultTiming(DefaultCPUMHz)
	}
	return &Generator{hw: hw, timing: timing}
}

// Global singleton used by the command handlers.
var generator *Generator

// SetGenerator is called by target-specific code to register its generator.
func SetGenerator(g *Generator) {
	generator = g
}

// MustGenerator returns the configured generator or panics if missing.
func MustGenerator() *Generator {
	if generator == nil {
		panic("waveform generator not configured")
	}
	return generator
}

// Timing returns the cycle constants the generator was built with
func (g *Generator) Timing() Timing {
	return g.timing
}

// Enabled returns the bitmask of scheduled channels
func (g *Generator) Enabled() uint32 {
	return g.enabled.Load()
}

// Active reports whether pin currently carries a waveform
func (g *Generator) Active(pin uint8) bool {
	return pin < MaxChannels && g.enabled.Load()&(1<<pin) != 0
}

// Level reports the last level the scheduler drove on pin
func (g *Generator) Level(pin uint8) bool {
	return pin < MaxChannels && g.states.Load()&(1<<pin) != 0
}

// TimerRunning reports whether the hardware timer is attached and armed
func (g *Generator) TimerRunning() bool {
	return g.timerRunning.Load()
}

// Snapshot copies the state of pin's channel
func (g *Generator) Snapshot(pin uint8) (ChannelState, bool) {
	if pin >= MaxChannels {
		return ChannelState{}, false
	}
	ch := &g.channels[pin]
	duty, period := ch.loadShape()
	return ChannelState{
		Pin:           pin,
		Active:        g.Active(pin),
		Level:         g.Level(pin),
		Mode:          ch.loadMode(),
		DutyCcys:      duty,
		PeriodCcys:    period,
		NextEventCcy:  ch.nextEventCcy,
		NextPeriodCcy: ch.nextPeriodCcy,
		EndDutyCcy:    ch.endDutyCcy,
		ExpiryCcy:     ch.expiryCcy.Load(),
		AlignPhase:    ch.alignPhase,
		AutoPWM:       ch.autoPwm.Load(),
	}, true
}

// writePin drives one pin, taking the slow path for the read-modify-write pin
func (g *Generator) writePin(pin uint8, high bool) {
	if int8(pin) == g.timing.SlowPin {
		g.hw.Pins.WriteSlow(pin, high)
		return
	}
	if high {
		g.hw.Pins.Set(1 << pin)
	} else {
		g.hw.Pins.Clear(1 << pin)
	}
}

// setSpan caches the lowest and highest enabled pin so the scan only visits
// the occupied range
func (g *Generator) setSpan(enabled uint32) {
	if enabled == 0 {
		g.startPin, g.endPin = 0, 0
		return
	}
	g.startPin = uint8(bits.TrailingZeros32(enabled))
	g.endPin = uint8(bits.Len32(enabled) - 1)
}

// rearmDue reports whether the armed firing is far enough away that an early
// re-arm is worth it. Firings already imminent are left alone so requests
// cluster with them.
func (g *Generator) rearmDue() bool {
	return g.hw.Timer.Remaining() > g.timing.IRQLatencyCcys+g.timing.DeltaIRQCcys
}
