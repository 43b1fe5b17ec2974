//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts so the timer driver can swap handlers
// without a firing landing in between
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the state saved by disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
