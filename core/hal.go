package core

import "runtime"

// CycleClock is the monotonic wrapping cycle counter the scheduler measures
// every deadline against. All comparisons on its values are wrap-safe.
type CycleClock interface {
	// Cycles returns the current cycle count
	Cycles() uint32
}

// OneShotTimer is the single hardware timer the generator multiplexes.
// Platform-specific implementations handle the actual registers.
type OneShotTimer interface {
	// Attach installs the edge-triggered interrupt handler, nil detaches it
	Attach(handler func())

	// Enable puts the timer in one-shot, edge-triggered mode
	Enable()

	// Disable stops the timer and returns it to its reset mode
	Disable()

	// Arm fires the attached handler once, ccys CPU cycles from now
	Arm(ccys uint32)

	// Remaining returns the CPU cycles left until the armed firing
	Remaining() uint32
}

// PinIO drives output levels for waveform pins.
type PinIO interface {
	// Set drives every pin in mask high
	Set(mask uint32)

	// Clear drives every pin in mask low
	Clear(mask uint32)

	// WriteSlow drives a pin whose register needs read-modify-write access
	WriteSlow(pin uint8, high bool)
}

// Hardware bundles the collaborators a Generator is built on.
type Hardware struct {
	Clock CycleClock
	Timer OneShotTimer
	Pins  PinIO

	// ValidPin rejects reserved or unavailable pins. Nil accepts all pins.
	ValidPin func(pin uint8) bool

	// Yield is called while StartCycles waits for the scheduler to pick up
	// a request. Nil defaults to runtime.Gosched.
	Yield func()

	// Relax is called while Stop spins on the scheduler. It must be safe at
	// interrupt level, so it never yields. Nil is a plain spin.
	Relax func()
}

func (hw *Hardware) applyDefaults() {
	if hw.ValidPin == nil {
		hw.ValidPin = func(uint8) bool { return true }
	}
	if hw.Yield == nil {
		hw.Yield = runtime.Gosched
	}
	if hw.Relax == nil {
		hw.Relax = func() {}
	}
}

// SystemClock reads the firmware tick counter kept by SetTime/GetTime.
type SystemClock struct{}

// Cycles implements CycleClock.
func (SystemClock) Cycles() uint32 {
	return GetTime()
}
