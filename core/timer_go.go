//go:build !tinygo

package core

import "sync/atomic"

// On the host the tick counter is driven by tests and the simulator, which may
// read it from another goroutine than the one advancing it.
var systemTicks atomic.Uint32

// getSystemTicks returns the current system ticks (regular Go implementation)
func getSystemTicks() uint32 {
	return systemTicks.Load()
}

// setSystemTicks sets the system ticks (regular Go implementation)
func setSystemTicks(ticks uint32) {
	systemTicks.Store(ticks)
}
