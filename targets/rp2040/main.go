//go:build rp2040

package main

import (
	"machine"
	"time"

	"wavegen/config"
	"wavegen/core"
	"wavegen/protocol"
)

// Reference square wave period for the scope
const referencePeriod = time.Millisecond

var (
	transport *protocol.Transport

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Clear a watchdog left running by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitClock()
	core.TimerInit()

	// Debug text goes to UART0, the USB port carries frames only
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
	core.SetDebugWriter(func(s string) {
		machine.UART0.Write([]byte(s))
		machine.UART0.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	board := config.RP2040()
	gen := core.NewGenerator(NewHardware(board.PinValidator()), board.Timing())
	core.SetGenerator(gen)

	var ref *reference
	if pin, err := board.Pin("reference"); err == nil {
		ref, _ = startReference(machine.Pin(pin), referencePeriod)
	}

	if GetMode().Standalone {
		buzzer, _ := board.Pin("buzzer")
		RunStandaloneMode(gen, buzzer, ref)
	}

	registry := core.GetGlobalRegistry()
	core.RegisterAllCommands(registry)

	transport = protocol.NewTransport(writeUSB, registry.Dispatch)
	registry.SetSender(transport.Send)
	transport.SetResetCallback(func() {
		// A new host session starts from a clean state
		gen.StopAll()
		core.ResetFirmwareState()
	})

	core.SetResetHandler(func() {
		// Watchdog reset re-enumerates USB reliably
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	buf := make([]byte, protocol.MessageLengthMax)
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
				}
			}()

			UpdateSystemTime()

			if n := USBRead(buf); n > 0 {
				if usbWasDisconnected {
					usbWasDisconnected = false
					consecutiveWriteFailures = 0
					transport.Reset()
				}
				transport.Receive(buf[:n])
				messagesReceived++
			}

			// The ACK for reset has been written by now
			core.CheckPendingReset()
			ref.service()
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// writeUSB sends one frame, giving up on the link after repeated failures
func writeUSB(frame []byte) {
	written := 0
	for written < len(frame) {
		n, err := USBWriteBytes(frame[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				// Likely disconnected, drop stale output
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
}
