// Package sim provides host-side stand-ins for the waveform hardware: a cycle
// counter that advances as it is read, a one-shot timer that fires when the
// simulated time reaches its deadline, and a pin bank that logs every edge.
package sim

import (
	"sync"
	"sync/atomic"

	"wavegen/core"
)

// DefaultReadCost is the cycles one counter read costs, roughly what a
// register read and the surrounding bookkeeping take on an 80 MHz core.
const DefaultReadCost = 8

// Clock is a simulated wrapping cycle counter.
type Clock struct {
	now      atomic.Uint32
	ReadCost uint32
}

// Cycles implements core.CycleClock. Every read moves time forward by
// ReadCost so busy loops in the scheduler terminate.
func (c *Clock) Cycles() uint32 {
	return c.now.Add(c.ReadCost) - c.ReadCost
}

// Now returns the current cycle without advancing it
func (c *Clock) Now() uint32 {
	return c.now.Load()
}

// Set moves the counter to ccy
func (c *Clock) Set(ccy uint32) {
	c.now.Store(ccy)
}

// Advance moves the counter forward by ccys
func (c *Clock) Advance(ccys uint32) {
	c.now.Add(ccys)
}

// Timer is a simulated one-shot timer on top of Clock.
type Timer struct {
	clock    *Clock
	handler  atomic.Pointer[func()]
	enabled  atomic.Bool
	armed    atomic.Bool
	deadline atomic.Uint32
	fired    atomic.Uint32
	lastArm  atomic.Uint32
}

// Attach implements core.OneShotTimer
func (t *Timer) Attach(handler func()) {
	if handler == nil {
		t.handler.Store(nil)
		return
	}
	t.handler.Store(&handler)
}

// Enable implements core.OneShotTimer
func (t *Timer) Enable() {
	t.enabled.Store(true)
}

// Disable implements core.OneShotTimer
func (t *Timer) Disable() {
	t.enabled.Store(false)
	t.armed.Store(false)
}

// Arm implements core.OneShotTimer
func (t *Timer) Arm(ccys uint32) {
	t.lastArm.Store(ccys)
	t.deadline.Store(t.clock.Now() + ccys)
	t.armed.Store(true)
}

// Remaining implements core.OneShotTimer
func (t *Timer) Remaining() uint32 {
	if !t.armed.Load() {
		return 0
	}
	left := int32(t.deadline.Load() - t.clock.Now())
	if left < 0 {
		return 0
	}
	return uint32(left)
}

// Armed reports whether a firing is pending
func (t *Timer) Armed() bool {
	return t.enabled.Load() && t.armed.Load() && t.handler.Load() != nil
}

// Deadline returns the cycle of the pending firing
func (t *Timer) Deadline() uint32 {
	return t.deadline.Load()
}

// LastArm returns the delay passed to the most recent Arm
func (t *Timer) LastArm() uint32 {
	return t.lastArm.Load()
}

// Fired returns how many times the handler ran
func (t *Timer) Fired() uint32 {
	return t.fired.Load()
}

// Edge is one level change on a pin
type Edge struct {
	Pin   uint8
	Cycle uint32
	High  bool
}

// Pins is a simulated output register that logs level changes.
type Pins struct {
	clock *Clock

	mu     sync.Mutex
	levels uint32
	edges  []Edge
	slow   uint32 // WriteSlow calls
}

// Set implements core.PinIO
func (p *Pins) Set(mask uint32) {
	p.write(mask, true)
}

// Clear implements core.PinIO
func (p *Pins) Clear(mask uint32) {
	p.write(mask, false)
}

// WriteSlow implements core.PinIO
func (p *Pins) WriteSlow(pin uint8, high bool) {
	p.mu.Lock()
	p.slow++
	p.mu.Unlock()
	p.write(1<<pin, high)
}

func (p *Pins) write(mask uint32, high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	for pin := uint8(0); pin < 32; pin++ {
		bit := uint32(1) << pin
		if mask&bit == 0 {
			continue
		}
		if (p.levels&bit != 0) == high {
			continue
		}
		p.levels ^= bit
		p.edges = append(p.edges, Edge{Pin: pin, Cycle: now, High: high})
	}
}

// Level returns the current level of pin
func (p *Pins) Level(pin uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels&(1<<pin) != 0
}

// Drive forces a level without going through the scheduler, as leftover
// state from earlier use of the pin would
func (p *Pins) Drive(pin uint8, high bool) {
	p.write(1<<pin, high)
}

// Edges returns the logged edges of pin, or of every pin when pin is negative
func (p *Pins) Edges(pin int) []Edge {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Edge
	for _, e := range p.edges {
		if pin < 0 || int(e.Pin) == pin {
			out = append(out, e)
		}
	}
	return out
}

// SlowWrites returns how many writes took the read-modify-write path
func (p *Pins) SlowWrites() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slow
}

// ResetLog drops the logged edges but keeps the levels
func (p *Pins) ResetLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.edges = nil
}

// Board wires a Clock, Timer and Pins together.
type Board struct {
	Clock *Clock
	Timer *Timer
	Pins  *Pins

	// Reserved pins rejected by the pin validator
	Reserved uint32
}

// NewBoard returns a board whose counter starts at start.
func NewBoard(start uint32) *Board {
	clock := &Clock{ReadCost: DefaultReadCost}
	clock.Set(start)
	return &Board{
		Clock: clock,
		Timer: &Timer{clock: clock},
		Pins:  &Pins{clock: clock},
	}
}

// Hardware returns the collaborators for core.NewGenerator. Waiting in the
// request API is simulated by running the timer forward to its next firing.
func (b *Board) Hardware() core.Hardware {
	return core.Hardware{
		Clock:    b.Clock,
		Timer:    b.Timer,
		Pins:     b.Pins,
		ValidPin: b.validPin,
		Yield:    func() { b.Step() },
		Relax:    func() { b.Step() },
	}
}

func (b *Board) validPin(pin uint8) bool {
	return b.Reserved&(1<<pin) == 0
}

// Step moves time to the pending timer deadline, if it is not already past,
// and runs the handler. It reports whether the timer fired.
func (b *Board) Step() bool {
	t := b.Timer
	if !t.Armed() {
		return false
	}
	deadline := t.deadline.Load()
	if int32(deadline-b.Clock.Now()) > 0 {
		b.Clock.Set(deadline)
	}
	t.armed.Store(false)
	t.fired.Add(1)
	if h := t.handler.Load(); h != nil {
		(*h)()
	}
	return true
}

// RunFor runs every timer firing due in the next ccys cycles and leaves the
// counter at the end of the window.
func (b *Board) RunFor(ccys uint32) {
	end := b.Clock.Now() + ccys
	b.RunUntil(end)
}

// RunUntil runs every timer firing due before cycle end.
func (b *Board) RunUntil(end uint32) {
	for b.Timer.Armed() && int32(end-b.Timer.Deadline()) >= 0 {
		b.Step()
	}
	if int32(end-b.Clock.Now()) > 0 {
		b.Clock.Set(end)
	}
}

// Stall moves the counter forward without firing the timer, as a long
// higher-priority interrupt would.
func (b *Board) Stall(ccys uint32) {
	b.Clock.Advance(ccys)
}
