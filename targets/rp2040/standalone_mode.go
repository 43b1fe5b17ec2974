//go:build rp2040

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/tone"

	"wavegen/core"
)

type step struct {
	note tone.Note // Zero is a rest
	beat uint8     // Length in eighth notes
}

var melody = []step{
	{tone.E5, 2}, {tone.D5, 2}, {tone.C5, 2}, {tone.D5, 2},
	{tone.E5, 2}, {tone.E5, 2}, {tone.E5, 4},
	{tone.D5, 2}, {tone.D5, 2}, {tone.D5, 4},
	{tone.E5, 2}, {tone.G5, 2}, {tone.G5, 4},
	{0, 4},
}

const eighth = 150 * time.Millisecond

// RunStandaloneMode plays melody on the buzzer forever. Each note is one
// start_waveform with a run time, so the scheduler ends it without help.
func RunStandaloneMode(gen *core.Generator, buzzer uint8, ref *reference) {
	t := gen.Timing()
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	for {
		for _, s := range melody {
			length := time.Duration(s.beat) * eighth
			if s.note != 0 {
				half := t.CyclesFromMicros(uint32(s.note.Period() / 2000))
				// Leave a gap so repeated notes are heard separately
				run := t.CyclesFromMicros(uint32((length - 20*time.Millisecond) / time.Microsecond))
				if err := gen.StartCycles(buzzer, half, half, run, core.NoAlign, 0, false); err != nil {
					blinkError(led)
				}
			}
			led.Set(s.note != 0)
			deadline := time.Now().Add(length)
			for time.Now().Before(deadline) {
				UpdateSystemTime()
				ref.service()
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// blinkError flashes the LED rapidly forever
func blinkError(led machine.Pin) {
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
