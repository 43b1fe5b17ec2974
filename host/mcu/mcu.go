// Package mcu manages the connection to one waveform board.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"wavegen/config"
	"wavegen/core"
	"wavegen/host/client"
	"wavegen/host/serial"
)

var ErrNotConnected = errors.New("mcu: not connected")

// MCU is a board reached over a serial port
type MCU struct {
	port   io.ReadWriteCloser
	client *client.Client
	board  *config.Board

	// Connection state
	connected bool
	clock     uint32
}

// NewMCU returns an unconnected MCU described by board
func NewMCU(board *config.Board) *MCU {
	return &MCU{board: board}
}

// Connect opens device with the default serial settings
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens the port and reads the board clock to check the
// link
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	// Drop whatever the board printed before we were listening
	if err := port.Flush(); err != nil {
		port.Close()
		return fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	if err := m.Attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// Attach uses an already open port
func (m *MCU) Attach(port io.ReadWriteCloser) error {
	c := client.New(port)
	clock, err := c.Clock()
	if err != nil {
		return fmt.Errorf("board did not answer get_clock: %w", err)
	}
	m.port = port
	m.client = c
	m.clock = clock
	m.connected = true
	return nil
}

// Close closes the port
func (m *MCU) Close() error {
	m.connected = false
	if m.port == nil {
		return nil
	}
	return m.port.Close()
}

// IsConnected reports whether the link check succeeded
func (m *MCU) IsConnected() bool {
	return m.connected
}

// Client returns the command client
func (m *MCU) Client() (*client.Client, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// ConnectClock is the board clock read when the link came up
func (m *MCU) ConnectClock() uint32 {
	return m.clock
}

// Board returns the board description
func (m *MCU) Board() *config.Board {
	return m.board
}

// ResolvePin accepts a pin number or a name from the board's pin map
func (m *MCU) ResolvePin(arg string) (uint8, error) {
	if n, err := strconv.ParseUint(arg, 10, 8); err == nil {
		if !m.board.PinValidator()(uint8(n)) {
			return 0, fmt.Errorf("%w: %d on %s", config.ErrInvalidPin, n, m.board.Name)
		}
		return uint8(n), nil
	}
	return m.board.Pin(arg)
}

// Ticks converts a duration to board cycles
func (m *MCU) Ticks(d time.Duration) uint32 {
	return m.board.Timing().CyclesFromMicros(uint32(d / time.Microsecond))
}

// PrintDictionary writes the message table to w
func (m *MCU) PrintDictionary(w io.Writer) {
	var table string
	if m.client != nil {
		table = m.client.Dictionary()
	} else {
		r := core.NewCommandRegistry()
		core.RegisterAllCommands(r)
		table = r.Dictionary()
	}
	lines := strings.Split(strings.TrimSpace(table), "\n")
	fmt.Fprintf(w, "Message table (%d entries):\n", len(lines))
	for _, line := range lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
