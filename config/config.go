// Package config describes the boards the waveform generator runs on.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"wavegen/core"
	"wavegen/internal/mathx"
)

var (
	ErrInvalidPin = errors.New("config: pin out of range")
	ErrUnknownPin = errors.New("config: unknown pin name")
)

const (
	// NoSlowPin marks a board without a read-modify-write pin
	NoSlowPin int8 = -1

	maxCPUMHz uint32 = 1000
)

// TimingConfig overrides the derived scheduler constants. Zero keeps the
// value derived from the CPU clock.
type TimingConfig struct {
	MaxIRQUS     uint32 `json:"max_irq_us"`     // Heartbeat and longest re-arm
	ISRTimeoutUS uint32 `json:"isr_timeout_us"` // Service budget of one firing
	DeltaIRQCcys uint32 `json:"delta_irq_ccys"` // Dispatch latency
	LatencyCcys  uint32 `json:"latency_ccys"`   // Shortest re-arm
}

// Board is one hardware description
type Board struct {
	Name   string `json:"name"`
	CPUMHz uint32 `json:"cpu_mhz"` // Cycle counter rate, not necessarily the core clock

	// Pins the generator must never drive, e.g. flash or USB lines
	ReservedPins []uint8 `json:"reserved_pins"`

	// Pin written with read-modify-write access, nil for none
	SlowPin *int8 `json:"slow_pin"`

	// Named pins used by the tools, e.g. "buzzer": 4
	Pins map[string]uint8 `json:"pins"`

	Overrides TimingConfig `json:"timing"`
}

// LoadBoard parses a JSON board description
func LoadBoard(jsonData []byte) (*Board, error) {
	var board Board
	if err := json.Unmarshal(jsonData, &board); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	applyDefaults(&board)
	if err := board.validate(); err != nil {
		return nil, err
	}
	return &board, nil
}

// applyDefaults fills in missing values
func applyDefaults(board *Board) {
	if board.Name == "" {
		board.Name = "custom"
	}
	if board.CPUMHz == 0 {
		board.CPUMHz = core.DefaultCPUMHz
	}
	board.CPUMHz = mathx.Clamp(board.CPUMHz, 1, maxCPUMHz)
	if board.SlowPin == nil {
		none := NoSlowPin
		board.SlowPin = &none
	}
	if board.Pins == nil {
		board.Pins = map[string]uint8{}
	}
}

func (b *Board) validate() error {
	for _, pin := range b.ReservedPins {
		if pin >= core.MaxChannels {
			return fmt.Errorf("%w: reserved pin %d", ErrInvalidPin, pin)
		}
	}
	if sp := *b.SlowPin; sp != NoSlowPin && (sp < 0 || sp >= core.MaxChannels) {
		return fmt.Errorf("%w: slow pin %d", ErrInvalidPin, sp)
	}
	return nil
}

// Timing returns the scheduler constants of the board
func (b *Board) Timing() core.Timing {
	t := core.DefaultTiming(b.CPUMHz)
	if b.SlowPin != nil {
		t.SlowPin = *b.SlowPin
	}

	o := b.Overrides
	if o.MaxIRQUS != 0 {
		t.MaxIRQCcys = t.CyclesFromMicros(o.MaxIRQUS)
	}
	if o.DeltaIRQCcys != 0 {
		t.DeltaIRQCcys = o.DeltaIRQCcys
	}
	if o.LatencyCcys != 0 {
		t.IRQLatencyCcys = o.LatencyCcys
	}
	if o.ISRTimeoutUS != 0 {
		t.ISRTimeoutCcys = t.CyclesFromMicros(o.ISRTimeoutUS)
	}
	// The re-arm clamp needs latency+delta < ISR budget < heartbeat
	t.ISRTimeoutCcys = mathx.Clamp(t.ISRTimeoutCcys,
		t.IRQLatencyCcys+t.DeltaIRQCcys+1, t.MaxIRQCcys-1)
	return t
}

// PinValidator returns a function rejecting the reserved pins
func (b *Board) PinValidator() func(pin uint8) bool {
	var reserved uint32
	for _, pin := range b.ReservedPins {
		reserved |= 1 << pin
	}
	return func(pin uint8) bool {
		return pin < core.MaxChannels && reserved&(1<<pin) == 0
	}
}

// Pin resolves a named pin
func (b *Board) Pin(name string) (uint8, error) {
	pin, ok := b.Pins[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPin, name)
	}
	return pin, nil
}

// ESP8266 is the 80 MHz reference board. GPIO6 to GPIO11 carry the flash and
// GPIO16 sits in the RTC block behind a read-modify-write register.
func ESP8266() *Board {
	slow := int8(16)
	return &Board{
		Name:         "esp8266",
		CPUMHz:       80,
		ReservedPins: []uint8{6, 7, 8, 9, 10, 11},
		SlowPin:      &slow,
		Pins:         map[string]uint8{"led": 2, "buzzer": 4, "servo": 5},
	}
}

// RP2040 measures time with the 1 MHz system timer, so one cycle is one
// microsecond. SIO set and clear registers make every pin fast. GPIO0 and
// GPIO1 carry the debug UART.
func RP2040() *Board {
	none := NoSlowPin
	return &Board{
		Name:         "rp2040",
		CPUMHz:       1,
		ReservedPins: []uint8{0, 1},
		SlowPin:      &none,
		Pins:         map[string]uint8{"buzzer": 15, "servo": 14, "scope": 16, "reference": 22},
	}
}

// Preset returns a built-in board by name
func Preset(name string) (*Board, bool) {
	switch name {
	case "esp8266":
		return ESP8266(), true
	case "rp2040":
		return RP2040(), true
	}
	return nil, false
}
