package core

import (
	"sync/atomic"

	"wavegen/protocol"
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	isShutdown   atomic.Bool
	resetPending atomic.Bool
}

var globalState = &FirmwareState{}

// Global reset handler (set by target-specific code)
var globalResetHandler func()

// SetResetHandler sets the platform-specific reset handler
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// RegisterAllCommands registers the complete message table on r. The host
// calls it too, to learn the IDs, so the order must not change.
func RegisterAllCommands(r *CommandRegistry) {
	InitCoreCommands(r)
	RegisterWaveformCommands(r)
}

// InitCoreCommands registers the housekeeping messages
func InitCoreCommands(r *CommandRegistry) {
	r.Register("get_clock", "", func(data *[]byte) error {
		return r.Respond("clock", protocol.AppendVLQUint(nil, GetTime()))
	})
	r.Register("get_uptime", "", func(data *[]byte) error {
		return r.Respond("uptime", protocol.AppendVLQUint(nil, Uptime()))
	})
	r.Register("emergency_stop", "", func(data *[]byte) error {
		TryShutdown()
		return nil
	})
	r.Register("reset", "", func(data *[]byte) error {
		// Deferred so the ACK goes out first
		globalState.resetPending.Store(true)
		return nil
	})

	r.RegisterResponse("clock", "clock=%u")
	r.RegisterResponse("uptime", "clock=%u")
}

// TryShutdown stops every waveform and refuses new ones until
// ResetFirmwareState
func TryShutdown() {
	globalState.isShutdown.Store(true)
	if generator != nil {
		generator.StopAll()
	}
	DebugAsync("[WAVE] shutdown")
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return globalState.isShutdown.Load()
}

// ResetFirmwareState clears the shutdown state after a host reconnect
func ResetFirmwareState() {
	globalState.isShutdown.Store(false)
	globalState.resetPending.Store(false)
}

// CheckPendingReset runs the reset handler once a reset was requested. Call
// it from the main loop after pending output is flushed.
func CheckPendingReset() {
	if globalState.resetPending.Load() && globalResetHandler != nil {
		globalResetHandler()
	}
}
