//go:build rp2040

package main

import (
	"device/rp"
	"runtime/interrupt"

	"wavegen/core"
)

// The TinyGo runtime sleeps on alarm 0, the generator owns alarm 3
const alarmBit = 1 << 3

// InitClock publishes the 1 MHz timer to the core tick counter
func InitClock() {
	UpdateSystemTime()
}

// GetHardwareTime reads the low word of the 1 MHz timer without latching
func GetHardwareTime() uint32 {
	return rp.TIMER.TIMERAWL.Get()
}

// GetHardwareUptime reads the full 64-bit timer
func GetHardwareUptime() uint64 {
	for {
		high1 := rp.TIMER.TIMERAWH.Get()
		low := rp.TIMER.TIMERAWL.Get()
		high2 := rp.TIMER.TIMERAWH.Get()
		// Retry when the low word rolled over between the reads
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}

// UpdateSystemTime updates the core timer with hardware time
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}

// hwClock is the generator's cycle counter. One cycle is one microsecond.
type hwClock struct{}

func (hwClock) Cycles() uint32 {
	return GetHardwareTime()
}

// alarmTimer drives TIMER alarm 3 as the generator's one-shot timer
type alarmTimer struct {
	handler func()
	irq     interrupt.Interrupt
}

var alarm = &alarmTimer{}

func init() {
	alarm.irq = interrupt.New(rp.IRQ_TIMER_IRQ_3, func(interrupt.Interrupt) {
		rp.TIMER.INTF.ClearBits(alarmBit)
		rp.TIMER.INTR.Set(alarmBit)
		if h := alarm.handler; h != nil {
			h()
		}
	})
}

func (t *alarmTimer) Attach(handler func()) {
	t.handler = handler
}

func (t *alarmTimer) Enable() {
	rp.TIMER.INTR.Set(alarmBit)
	rp.TIMER.INTE.SetBits(alarmBit)
	t.irq.SetPriority(0x00)
	t.irq.Enable()
}

func (t *alarmTimer) Disable() {
	rp.TIMER.INTE.ClearBits(alarmBit)
	// Writing the bit to ARMED disarms the alarm
	rp.TIMER.ARMED.Set(alarmBit)
	rp.TIMER.INTR.Set(alarmBit)
}

func (t *alarmTimer) Arm(ccys uint32) {
	target := GetHardwareTime() + ccys
	rp.TIMER.ALARM3.Set(target)
	// The alarm matches on equality only, a target already passed would
	// wait for the counter to wrap
	if int32(GetHardwareTime()-target) >= 0 && rp.TIMER.ARMED.Get()&alarmBit != 0 {
		rp.TIMER.ARMED.Set(alarmBit)
		rp.TIMER.INTF.SetBits(alarmBit)
	}
}

func (t *alarmTimer) Remaining() uint32 {
	if rp.TIMER.ARMED.Get()&alarmBit == 0 {
		return 0
	}
	left := int32(rp.TIMER.ALARM3.Get() - GetHardwareTime())
	if left < 0 {
		return 0
	}
	return uint32(left)
}
