package core

import (
	"errors"

	"wavegen/internal/mathx"
)

var (
	ErrInvalidPin        = errors.New("waveform: invalid pin")
	ErrInvalidAlign      = errors.New("waveform: invalid phase alignment pin")
	ErrInvalidPeriod     = errors.New("waveform: period must be positive")
	ErrDutyExceedsPeriod = errors.New("waveform: high time exceeds period")
	ErrTimerIdle         = errors.New("waveform: timer not running")
)

// Start is StartCycles with times given in microseconds. Each time must fit
// in 32 bits once converted to cycles, about 53 seconds at 80 MHz; longer
// times are rejected with ErrInvalidPeriod.
func (g *Generator) Start(pin uint8, highUS, lowUS, runTimeUS uint32, alignPhase int8, phaseOffsetUS uint32, autoPwm bool) error {
	t := g.timing
	limit := ^uint32(0) / t.CyclesPerMicro
	if highUS > limit || lowUS > limit || runTimeUS > limit || phaseOffsetUS > limit {
		return ErrInvalidPeriod
	}
	return g.StartCycles(pin,
		t.CyclesFromMicros(highUS), t.CyclesFromMicros(lowUS),
		t.CyclesFromMicros(runTimeUS), alignPhase, t.CyclesFromMicros(phaseOffsetUS), autoPwm)
}

// StartCycles starts a waveform on pin, or changes the running one.
//
// A running waveform switches to the new high/low times at its next low to
// high transition, so the output never glitches mid-period. For an immediate
// change, Stop first. runTimeCcys of zero runs until stopped. alignPhase
// locks the first period to the period anchor of another running channel,
// shifted by phaseOffsetCcys; NoAlign starts free running. autoPwm keeps the
// duty ratio approximately intact under overrun at the cost of exact edges.
func (g *Generator) StartCycles(pin uint8, highCcys, lowCcys, runTimeCcys uint32, alignPhase int8, phaseOffsetCcys uint32, autoPwm bool) error {
	periodCcys := highCcys + lowCcys
	highCcys, periodCcys = g.stretchPeriod(highCcys, lowCcys, periodCcys)

	if pin >= MaxChannels || !g.hw.ValidPin(pin) {
		return ErrInvalidPin
	}
	if alignPhase >= MaxChannels {
		return ErrInvalidAlign
	}
	if int32(periodCcys) <= 0 {
		return ErrInvalidPeriod
	}
	if highCcys > periodCcys {
		return ErrDutyExceedsPeriod
	}

	ch := &g.channels[pin]
	ch.storeShape(highCcys, periodCcys)
	ch.autoPwm.Store(autoPwm)

	if g.enabled.Load()&(1<<pin) == 0 {
		// nextPeriodCcy and endDutyCcy are initialized by the scheduler
		ch.nextPeriodCcy = phaseOffsetCcys
		ch.expiryCcy.Store(runTimeCcys)
		ch.storeMode(ModeInit)
		if alignPhase < 0 {
			alignPhase = NoAlign
		}
		ch.alignPhase = alignPhase
		if highCcys == 0 {
			// Zero duty from the start: force the pin off now
			g.writePin(pin, false)
		}
		g.toSet.post(pin, g.hw.Yield)
		if !g.timerRunning.Load() {
			g.startTimer()
		} else if g.rearmDue() {
			g.hw.Timer.Arm(g.timing.CyclesFromMicros(1))
		}
	} else {
		// Drop any pending expiry so the scheduler sees the update atomically
		ch.storeMode(ModeInfinite)
		ch.expiryCcy.Store(runTimeCcys)
		if runTimeCcys == 0 {
			return nil
		}
		ch.storeMode(ModeUpdateExpiry)
		g.toSet.post(pin, g.hw.Yield)
	}
	g.toSet.await(g.hw.Yield)
	return nil
}

// stretchPeriod keeps constant-level outputs from waking the timer more often
// than the heartbeat. A 0% or 100% duty period shorter than MaxIRQCcys is
// widened to the smallest multiple of itself that reaches it.
func (g *Generator) stretchPeriod(highCcys, lowCcys, periodCcys uint32) (uint32, uint32) {
	maxIRQ := g.timing.MaxIRQCcys
	if periodCcys == 0 || periodCcys >= maxIRQ || (highCcys != 0 && lowCcys != 0) {
		return highCcys, periodCcys
	}
	periodCcys *= mathx.CeilDiv(maxIRQ, periodCcys)
	if lowCcys == 0 {
		highCcys = periodCcys
	}
	return highCcys, periodCcys
}

// Stop ends the waveform on pin and returns once the scheduler has applied
// it. It never yields, so it may be called from interrupt handlers.
func (g *Generator) Stop(pin uint8) error {
	// Nothing can be running without the timer
	if !g.timerRunning.Load() {
		return ErrTimerIdle
	}
	if pin < MaxChannels && g.enabled.Load()&(1<<pin) != 0 {
		g.toDisable.post(pin, g.hw.Relax)
		if g.rearmDue() {
			g.hw.Timer.Arm(g.timing.CyclesFromMicros(1))
		}
		g.toDisable.await(g.hw.Relax)
	}
	if g.enabled.Load() == 0 && g.callback.Load() == nil {
		g.stopTimer()
	}
	return nil
}

// SetPeriodicCallback installs fn to run once per scheduler firing, or
// removes the current one when fn is nil.
func (g *Generator) SetPeriodicCallback(fn PeriodicCallback) {
	if fn == nil {
		g.callback.Store(nil)
	} else {
		g.callback.Store(&fn)
	}
	running := g.timerRunning.Load()
	if !running && fn != nil {
		g.startTimer()
	} else if running && fn == nil && g.enabled.Load() == 0 {
		g.stopTimer()
	}
}

// StopAll stops every running waveform
func (g *Generator) StopAll() {
	enabled := g.enabled.Load()
	for pin := uint8(0); pin < MaxChannels; pin++ {
		if enabled&(1<<pin) != 0 {
			g.Stop(pin)
		}
	}
}
