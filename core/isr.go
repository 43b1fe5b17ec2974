package core

import "wavegen/internal/mathx"

// Interrupt is the timer handler. It applies pending requests, services every
// channel whose next event has passed, and re-arms the timer for the earliest
// upcoming event. It keeps going while that event falls inside the service
// budget, then leaves the rest for the next firing.
//
// It must not block, allocate or panic.
func (g *Generator) Interrupt() {
	clock := g.hw.Clock
	isrStartCcy := clock.Cycles()

	setPin, hasSet := g.toSet.take()
	disablePin, hasDisable := g.toDisable.take()
	var setMask, disableMask uint32
	if hasSet {
		setMask = 1 << setPin
	}
	if hasDisable {
		disableMask = 1 << disablePin
	}

	enabled := g.enabled.Load()
	if (setMask != 0 && enabled&setMask == 0) || disableMask != 0 {
		enabled = enabled&^disableMask | setMask
		g.enabled.Store(enabled)
		g.setSpan(enabled)
		if hasDisable {
			g.toDisable.clear()
			RecordTiming(EvtWaveStop, disablePin, isrStartCcy, 0, 0)
		}
	}

	now := clock.Cycles()

	if hasSet {
		g.applyRequest(setPin, enabled, now)
		g.toSet.clear()
	}

	isrTimeoutCcy := isrStartCcy + g.timing.ISRTimeoutCcys
	var nextTimerCcy uint32
	busy := enabled != 0
	if !busy {
		nextTimerCcy = now + g.timing.MaxIRQCcys
	} else if enabled&(1<<g.nextPin) == 0 {
		g.nextPin = g.startPin
	}
	for busy {
		nextTimerCcy = now + g.timing.MaxIRQCcys
		stopPin := g.nextPin
		pin := g.nextPin
		for {
			if enabled&(1<<pin) != 0 {
				ch := &g.channels[pin]
				if int32(now-ch.nextEventCcy) >= 0 {
					if ch.loadMode() == ModeExpires && ch.nextEventCcy == ch.expiryCcy.Load() {
						// Run time is over, retire without an edge
						enabled &^= 1 << pin
						g.enabled.Store(enabled)
						RecordTiming(EvtWaveExpire, pin, now, ch.nextEventCcy, 0)
					} else {
						g.edge(pin, ch, now)
					}
				}
				if int32(nextTimerCcy-ch.nextEventCcy) > 0 {
					nextTimerCcy = ch.nextEventCcy
					g.nextPin = pin
				}
				now = clock.Cycles()
			}
			if pin < g.endPin {
				pin++
			} else {
				pin = g.startPin
			}
			if pin == stopPin {
				break
			}
		}

		// Go around again if the next event is due within the budget,
		// waiting it out here instead of paying for another firing
		busy = int32(isrTimeoutCcy-nextTimerCcy) > 0
		if busy {
			for int32(nextTimerCcy-now) > 0 {
				now = clock.Cycles()
			}
		}
	}

	var nextTimerCcys int32
	if cb := g.callback.Load(); cb != nil {
		callbackCcys := int32(g.timing.CyclesFromMicros((*cb)()))
		// The callback took an unknown amount of time
		nextTimerCcys = mathx.Min(int32(nextTimerCcy-clock.Cycles()), callbackCcys)
	} else {
		nextTimerCcys = int32(nextTimerCcy - now)
	}

	latency := int32(g.timing.IRQLatencyCcys)
	delta := int32(g.timing.DeltaIRQCcys)
	maxIRQ := int32(g.timing.MaxIRQCcys)
	switch {
	case nextTimerCcys <= latency+delta:
		// Any shorter and the timer fires before this handler has returned
		nextTimerCcys = latency
	case nextTimerCcys >= maxIRQ:
		nextTimerCcys = maxIRQ - delta
	default:
		nextTimerCcys -= delta
	}
	g.hw.Timer.Arm(uint32(nextTimerCcys))
}

// applyRequest completes an activation or expiry update posted through toSet
func (g *Generator) applyRequest(pin uint8, enabled uint32, now uint32) {
	ch := &g.channels[pin]
	switch ch.loadMode() {
	case ModeInit:
		g.states.Store(g.states.Load() &^ (1 << pin))
		if ch.alignPhase >= 0 && enabled&(1<<uint8(ch.alignPhase)) != 0 {
			// nextPeriodCcy holds the requested phase offset
			ch.nextPeriodCcy += g.channels[ch.alignPhase].nextPeriodCcy
		} else {
			ch.nextPeriodCcy = now
		}
		ch.nextEventCcy = ch.nextPeriodCcy
		RecordTiming(EvtWaveStart, pin, now, ch.nextPeriodCcy, ch.expiryCcy.Load())
		if ch.expiryCcy.Load() == 0 {
			ch.storeMode(ModeInfinite)
			break
		}
		fallthrough
	case ModeUpdateExpiry:
		// expiryCcy holds the relative run time
		ch.expiryCcy.Add(ch.nextPeriodCcy)
		ch.storeMode(ModeExpires)
	}
}

// edge performs the due transition of one channel and schedules its next
// event. When the firing came late by one or more whole periods, the period
// bookkeeping jumps ahead instead of replaying the missed edges.
func (g *Generator) edge(pin uint8, ch *Channel, now uint32) {
	duty, period := ch.loadShape()
	idle := period - duty
	bit := uint32(1) << pin
	states := g.states.Load()
	high := states&bit != 0
	expires := ch.loadMode() == ModeExpires

	// True accumulated overshoot, never negative here
	var overshoot uint32
	if high {
		overshoot = now - ch.endDutyCcy
	} else {
		overshoot = now - ch.nextPeriodCcy
	}
	var fwdPeriods uint32
	if overshoot >= idle {
		fwdPeriods = (overshoot + duty) / period
	}
	fwdPeriodCcys := fwdPeriods * period
	if fwdPeriods != 0 {
		RecordTiming(EvtWaveOverrun, pin, now, fwdPeriods, overshoot)
	}

	var nextEdgeCcy uint32
	if high {
		// Up to and including this period the duty was 100%
		endOfPeriod := ch.nextPeriodCcy == ch.endDutyCcy
		switch {
		case idle == 0:
			// Still 100% duty, stay high
			ch.nextPeriodCcy += fwdPeriodCcys + period
			ch.endDutyCcy = ch.nextPeriodCcy
			nextEdgeCcy = ch.nextPeriodCcy
		case endOfPeriod:
			// No idle phase in the previous period, go straight into the new duty
			if fwdPeriods != 0 {
				ch.nextPeriodCcy += fwdPeriodCcys
				if expires {
					// Keep the expiry inside the intended period
					ch.expiryCcy.Add(fwdPeriodCcys)
				}
			}
			ch.endDutyCcy = ch.nextPeriodCcy + duty
			ch.nextPeriodCcy += period
			nextEdgeCcy = ch.endDutyCcy
		default:
			g.states.Store(states ^ bit)
			nextEdgeCcy = ch.nextPeriodCcy
			// Stretch the idle phase to approach the duty ratio again
			if ch.autoPwm.Load() && duty >= g.timing.AutoPWMMinCcys {
				nextEdgeCcy += (overshoot / duty) * idle
			}
			g.writePin(pin, false)
		}
	} else {
		if duty == 0 {
			ch.nextPeriodCcy += fwdPeriodCcys + period
			ch.endDutyCcy = ch.nextPeriodCcy
		} else {
			g.states.Store(states ^ bit)
			ch.nextPeriodCcy += period
			ch.endDutyCcy = now + duty
			if fwdPeriods != 0 {
				ch.nextPeriodCcy += fwdPeriodCcys
				if ch.autoPwm.Load() {
					// Keep phase and duty ratio, run at a lower frequency for a while
					ch.endDutyCcy += fwdPeriods * duty
				}
				if expires {
					ch.expiryCcy.Add(fwdPeriodCcys)
				}
			}
			g.writePin(pin, true)
		}
		nextEdgeCcy = ch.endDutyCcy
	}

	if expiry := ch.expiryCcy.Load(); expires && int32(nextEdgeCcy-expiry) > 0 {
		// Truncate the final period at the expiry cycle
		ch.nextEventCcy = expiry
	} else {
		ch.nextEventCcy = nextEdgeCcy
	}
}
