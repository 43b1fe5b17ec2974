package core

// startTimer attaches the scheduler to the hardware timer and fires it
// post-haste
func (g *Generator) startTimer() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	g.hw.Timer.Disable()
	g.hw.Timer.Attach(nil)
	g.hw.Timer.Attach(g.Interrupt)
	g.hw.Timer.Enable()
	g.timerRunning.Store(true)
	g.hw.Timer.Arm(g.timing.CyclesFromMicros(1))

	DebugPrintln("[WAVE] timer started")
}

// stopTimer detaches the scheduler and returns the timer to its reset state
func (g *Generator) stopTimer() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	g.hw.Timer.Attach(nil)
	g.hw.Timer.Disable()
	g.timerRunning.Store(false)

	DebugPrintln("[WAVE] timer stopped")
}
