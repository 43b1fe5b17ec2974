// Software waveform generation
// Multiplexes one one-shot timer into up to MaxChannels periodic two-level
// outputs, each synchronized to the CPU cycle counter rather than the timer,
// so interrupt jitter never accumulates into the waveforms.
package core

import "sync/atomic"

// MaxChannels is the number of pins that can carry a waveform
const MaxChannels = 17

// NoAlign disables phase alignment in StartCycles
const NoAlign int8 = -1

// Mode is the per-channel lifecycle state shared with the interrupt scheduler.
type Mode uint32

const (
	// ModeInfinite runs until stopped
	ModeInfinite Mode = iota
	// ModeExpires stops by itself once expiryCcy is reached
	ModeExpires
	// ModeUpdateExpiry asks the scheduler to turn the relative run time in
	// expiryCcy into an absolute cycle and move to ModeExpires
	ModeUpdateExpiry
	// ModeInit asks the scheduler to anchor the first period, then continues
	// as ModeUpdateExpiry when a run time was given
	ModeInit
)

func (m Mode) String() string {
	switch m {
	case ModeInfinite:
		return "infinite"
	case ModeExpires:
		return "expires"
	case ModeUpdateExpiry:
		return "update-expiry"
	case ModeInit:
		return "init"
	default:
		return "unknown"
	}
}

// Channel is the waveform state of one pin.
//
// The scheduling fields (nextEventCcy, nextPeriodCcy, endDutyCcy) belong to
// the interrupt scheduler once the channel is enabled. Fields that normal
// context may touch on a running channel are atomics.
type Channel struct {
	nextEventCcy  uint32 // Cycle of the next edge or expiry check
	nextPeriodCcy uint32 // Cycle the next period begins; relative phase offset in ModeInit
	endDutyCcy    uint32 // Cycle the high phase of the current period ends

	shape     atomic.Uint64 // duty<<32 | period, published together
	expiryCcy atomic.Uint32 // Absolute expiry; relative run time in ModeInit/ModeUpdateExpiry
	mode      atomic.Uint32
	autoPwm   atomic.Bool

	alignPhase int8 // NoAlign or the pin whose period anchor this one locks to
}

func packShape(duty, period uint32) uint64 {
	return uint64(duty)<<32 | uint64(period)
}

// loadShape returns duty and period cycles from one consistent snapshot
func (c *Channel) loadShape() (duty, period uint32) {
	s := c.shape.Load()
	return uint32(s >> 32), uint32(s)
}

func (c *Channel) storeShape(duty, period uint32) {
	c.shape.Store(packShape(duty, period))
}

func (c *Channel) loadMode() Mode {
	return Mode(c.mode.Load())
}

func (c *Channel) storeMode(m Mode) {
	c.mode.Store(uint32(m))
}

// ChannelState is a read-only snapshot of a channel for diagnostics.
// Scheduling fields are only stable while the scheduler is not running.
type ChannelState struct {
	Pin           uint8
	Active        bool
	Level         bool
	Mode          Mode
	DutyCcys      uint32
	PeriodCcys    uint32
	NextEventCcy  uint32
	NextPeriodCcy uint32
	EndDutyCcy    uint32
	ExpiryCcy     uint32
	AlignPhase    int8
	AutoPWM       bool
}
