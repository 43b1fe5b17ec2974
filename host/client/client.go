// Package client drives the waveform firmware over a serial link.
package client

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"wavegen/core"
	"wavegen/protocol"
)

var (
	ErrTimeout       = errors.New("client: no reply from firmware")
	ErrUnknownMethod = errors.New("client: message not in the firmware table")
)

// DefaultTimeout bounds the wait for a reply
const DefaultTimeout = 500 * time.Millisecond

// Reply is one decoded firmware message
type Reply struct {
	Name string
	Args []uint32
}

// Waveform is a start_waveform request in firmware cycle counter ticks
type Waveform struct {
	HighTicks   uint32
	LowTicks    uint32
	RunTicks    uint32 // Zero runs until stopped
	Align       int8   // Pin to phase lock to, core.NoAlign for none
	OffsetTicks uint32
	AutoPWM     bool
}

// Status is a waveform_state reply
type Status struct {
	Pin    uint8
	Active bool
	Level  bool
}

// Client sends commands and waits for their replies. It is not safe for
// concurrent use.
type Client struct {
	port     io.ReadWriter
	registry *core.CommandRegistry
	dec      *protocol.Decoder
	clock    core.CycleClock
	timeout  time.Duration
	seq      uint8
	acks     uint32
	replies  []Reply
	buf      []byte
}

// New returns a client on port. The message table is the firmware's,
// rebuilt locally.
func New(port io.ReadWriter) *Client {
	registry := core.NewCommandRegistry()
	core.RegisterAllCommands(registry)
	return &Client{
		port:     port,
		registry: registry,
		dec:      protocol.NewDecoder(),
		clock:    wallClock{start: time.Now()},
		timeout:  DefaultTimeout,
		buf:      make([]byte, 256),
	}
}

// SetTimeout changes how long Call waits for a reply
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Dictionary returns the message table
func (c *Client) Dictionary() string {
	return c.registry.Dictionary()
}

// Acks returns how many acknowledgements arrived
func (c *Client) Acks() uint32 {
	return c.acks
}

// Send frames and writes one command
func (c *Client) Send(name string, args ...int32) error {
	id, ok := c.registry.ID(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	payload := protocol.AppendVLQUint(nil, uint32(id))
	for _, a := range args {
		payload = protocol.AppendVLQInt(payload, a)
	}
	frame, err := protocol.AppendFrame(nil, protocol.MessageDest|c.seq&protocol.MessageSeqMask, payload)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	c.seq++
	if _, err := c.port.Write(frame); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Call sends a command and waits for the reply message named want
func (c *Client) Call(name, want string, args ...int32) (Reply, error) {
	if err := c.Send(name, args...); err != nil {
		return Reply{}, err
	}
	return c.Wait(want)
}

// Wait returns the next reply named want, reading until the timeout
func (c *Client) Wait(want string) (Reply, error) {
	micros := uint32(c.timeout / time.Microsecond)
	deadline := core.NewOneShot(c.clock, micros).WithYield(runtime.Gosched)
	for {
		if r, ok := c.take(want); ok {
			return r, nil
		}
		if deadline.Expired() {
			return Reply{}, fmt.Errorf("%w: waiting for %s", ErrTimeout, want)
		}
		n, err := c.port.Read(c.buf)
		if n > 0 {
			c.dec.Feed(c.buf[:n])
			c.drain()
		}
		// A read timeout surfaces as EOF with no data
		if err != nil && !errors.Is(err, io.EOF) {
			return Reply{}, err
		}
	}
}

func (c *Client) take(want string) (Reply, bool) {
	for i, r := range c.replies {
		if r.Name == want {
			c.replies = append(c.replies[:i], c.replies[i+1:]...)
			return r, true
		}
	}
	return Reply{}, false
}

func (c *Client) drain() {
	for {
		frame, ok := c.dec.Next()
		if !ok {
			return
		}
		if len(frame.Payload) == 0 {
			c.acks++
			continue
		}
		c.decodeReplies(frame.Payload)
	}
}

func (c *Client) decodeReplies(payload []byte) {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return
		}
		cmd, ok := c.registry.Lookup(uint16(id))
		if !ok {
			return // Unknown message: the rest of the frame cannot be parsed
		}
		r := Reply{Name: cmd.Name}
		for n := strings.Count(cmd.Format, "=%"); n > 0; n-- {
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				return
			}
			r.Args = append(r.Args, v)
		}
		c.replies = append(c.replies, r)
	}
}

// Start starts or updates the waveform on pin
func (c *Client) Start(pin uint8, w Waveform) error {
	r, err := c.Call("start_waveform", "waveform_result",
		int32(pin), int32(w.HighTicks), int32(w.LowTicks), int32(w.RunTicks),
		int32(w.Align), int32(w.OffsetTicks), boolArg(w.AutoPWM))
	if err != nil {
		return err
	}
	return resultError(r)
}

// Stop stops the waveform on pin
func (c *Client) Stop(pin uint8) error {
	r, err := c.Call("stop_waveform", "waveform_result", int32(pin))
	if err != nil {
		return err
	}
	return resultError(r)
}

// Status queries the state of pin
func (c *Client) Status(pin uint8) (Status, error) {
	r, err := c.Call("waveform_status", "waveform_state", int32(pin))
	if err != nil {
		return Status{}, err
	}
	if len(r.Args) != 3 {
		return Status{}, fmt.Errorf("client: malformed waveform_state %v", r.Args)
	}
	return Status{Pin: uint8(r.Args[0]), Active: r.Args[1] != 0, Level: r.Args[2] != 0}, nil
}

// Clock reads the firmware cycle counter
func (c *Client) Clock() (uint32, error) {
	r, err := c.Call("get_clock", "clock")
	if err != nil {
		return 0, err
	}
	if len(r.Args) != 1 {
		return 0, fmt.Errorf("client: malformed clock %v", r.Args)
	}
	return r.Args[0], nil
}

// EmergencyStop stops every waveform and puts the firmware in shutdown
func (c *Client) EmergencyStop() error {
	return c.Send("emergency_stop")
}

func resultError(r Reply) error {
	if len(r.Args) != 1 {
		return fmt.Errorf("client: malformed waveform_result %v", r.Args)
	}
	return core.ResultError(uint8(r.Args[0]))
}

func boolArg(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

// wallClock counts microseconds since the client was created
type wallClock struct {
	start time.Time
}

func (w wallClock) Cycles() uint32 {
	return uint32(time.Since(w.start).Microseconds())
}
