package core

// Default CPU clock of the reference board
const (
	DefaultCPUMHz = 80
)

var (
	bootTime uint32 // Tick count when TimerInit ran
)

// GetTime returns the current system time in cycle counter ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TimerInit records the boot tick count
func TimerInit() {
	bootTime = GetTime()
}

// Uptime returns the ticks elapsed since TimerInit, modulo 2^32
func Uptime() uint32 {
	return GetTime() - bootTime
}

// Timing holds the cycle-domain constants of one board.
// Every field is in CPU clock cycles unless its name says otherwise.
type Timing struct {
	CyclesPerMicro uint32 // CPU clock cycles per microsecond

	MaxIRQCcys     uint32 // Longest re-arm delay, also the heartbeat interval
	ISRTimeoutCcys uint32 // Service budget of a single firing
	DeltaIRQCcys   uint32 // Dispatch latency subtracted from every re-arm
	IRQLatencyCcys uint32 // Shortest re-arm the hardware can honour
	AutoPWMMinCcys uint32 // Smallest duty that gets autoPwm correction

	// SlowPin is the pin written through PinIO.WriteSlow, -1 for none
	SlowPin int8
}

// DefaultTiming returns the timing for a CPU running at cpuMHz.
// At 160 MHz the interrupt path runs twice as fast, so the latency
// constants are halved.
func DefaultTiming(cpuMHz uint32) Timing {
	if cpuMHz == 0 {
		cpuMHz = DefaultCPUMHz
	}
	t := Timing{
		CyclesPerMicro: cpuMHz,
		MaxIRQCcys:     10000 * cpuMHz,
		ISRTimeoutCcys: 14 * cpuMHz,
		DeltaIRQCcys:   4 * cpuMHz,
		IRQLatencyCcys: 3 * cpuMHz,
		AutoPWMMinCcys: 3 * cpuMHz,
		SlowPin:        16,
	}
	if cpuMHz == 160 {
		t.DeltaIRQCcys >>= 1
		t.IRQLatencyCcys >>= 1
	}
	return t
}

// CyclesFromMicros converts microseconds to CPU cycles
func (t Timing) CyclesFromMicros(us uint32) uint32 {
	return us * t.CyclesPerMicro
}

// MicrosFromCycles converts CPU cycles to microseconds
func (t Timing) MicrosFromCycles(ccys uint32) uint32 {
	return ccys / t.CyclesPerMicro
}
