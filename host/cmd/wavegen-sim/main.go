// Command wavegen-sim runs the waveform scheduler against a simulated board
// and reports what the pins did.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"wavegen/config"
	"wavegen/core"
	"wavegen/sim"
)

var (
	boardName = flag.String("board", "esp8266", "Board preset (esp8266, rp2040)")
	pinName   = flag.String("pin", "buzzer", "Pin number or board pin name")
	high      = flag.Duration("high", 250*time.Microsecond, "High time")
	low       = flag.Duration("low", 750*time.Microsecond, "Low time")
	runTime   = flag.Duration("run", 0, "Run time, 0 runs until the end of the simulation")
	duration  = flag.Duration("duration", 20*time.Millisecond, "Simulated time")
	autoPWM   = flag.Bool("autopwm", false, "Correct the duty cycle after an overrun")
	stallAt   = flag.Duration("stall-at", 0, "Inject an overrun at this time")
	stallFor  = flag.Duration("stall-for", 0, "Length of the injected overrun")
	showEdges = flag.Bool("edges", false, "Print every edge")
	timing    = flag.Bool("timing", false, "Dump the scheduler event ring")
	verbose   = flag.Bool("verbose", false, "Print scheduler debug messages")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	board, ok := config.Preset(*boardName)
	if !ok {
		return fmt.Errorf("unknown board %q", *boardName)
	}
	pin, err := resolvePin(board, *pinName)
	if err != nil {
		return err
	}
	t := board.Timing()
	ticks := func(d time.Duration) uint32 {
		return t.CyclesFromMicros(uint32(d / time.Microsecond))
	}

	core.SetDebugWriter(func(s string) { fmt.Println(s) })
	core.SetDebugEnabled(*verbose)
	core.SetTimingEnabled(*timing)

	hw := sim.NewBoard(0)
	valid := board.PinValidator()
	hwc := hw.Hardware()
	hwc.ValidPin = valid
	gen := core.NewGenerator(hwc, t)

	if err := gen.StartCycles(pin, ticks(*high), ticks(*low), ticks(*runTime), core.NoAlign, 0, *autoPWM); err != nil {
		return fmt.Errorf("start pin %d: %w", pin, err)
	}
	if *stallFor > 0 {
		hw.RunUntil(ticks(*stallAt))
		hw.Stall(ticks(*stallFor))
	}
	hw.RunUntil(ticks(*duration))
	if gen.Active(pin) {
		if err := gen.Stop(pin); err != nil {
			return err
		}
	}

	edges := hw.Pins.Edges(int(pin))
	if *showEdges {
		for _, e := range edges {
			level := "low"
			if e.High {
				level = "high"
			}
			fmt.Printf("%10d  %6dus  pin %d %s\n", e.Cycle, t.MicrosFromCycles(e.Cycle), e.Pin, level)
		}
	}

	s := sim.Measure(edges)
	fmt.Printf("board %s, pin %d, %d edges\n", board.Name, pin, len(edges))
	if s.Periods == 0 {
		fmt.Println("no complete period")
	} else {
		fmt.Printf("periods %d  mean %d  min %d  max %d  jitter %d cycles\n",
			s.Periods, s.MeanPeriod, s.MinPeriod, s.MaxPeriod, s.Jitter())
		fmt.Printf("high %d cycles  duty %d.%d%%\n", s.MeanHigh, s.DutyPermil/10, s.DutyPermil%10)
	}
	if *timing {
		core.DumpTimingRing()
	}
	return nil
}

func resolvePin(board *config.Board, arg string) (uint8, error) {
	var n uint8
	if _, err := fmt.Sscanf(arg, "%d", &n); err == nil {
		return n, nil
	}
	return board.Pin(arg)
}
