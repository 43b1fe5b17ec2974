package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"

	"wavegen/config"
	"wavegen/core"
	"wavegen/host/client"
	"wavegen/host/mcu"
	"wavegen/host/serial"
)

var (
	device    = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud      = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	boardName = flag.String("board", "esp8266", "Board preset (esp8266, rp2040)")
	boardFile = flag.String("board-file", "", "Board description JSON, overrides -board")
	timeout   = flag.Duration("timeout", client.DefaultTimeout, "Reply timeout")
)

var errUsage = errors.New("usage")

func main() {
	flag.Parse()

	board, err := loadBoard()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Waveform Host")
	fmt.Println("=============")
	fmt.Printf("Board %s at %d MHz\n\n", board.Name, board.CPUMHz)

	m := mcu.NewMCU(board)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to board on %s...\n", *device)
	if err := m.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()
	fmt.Printf("Connected, board clock %d\n", m.ConnectClock())

	c, _ := m.Client()
	c.SetTimeout(*timeout)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if args[0] == "quit" || args[0] == "exit" || args[0] == "q" {
			fmt.Println("Goodbye!")
			return
		}
		if err := run(m, c, args); err != nil {
			if errors.Is(err, errUsage) {
				fmt.Fprintf(os.Stderr, "%v (type 'help' for usage)\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func loadBoard() (*config.Board, error) {
	if *boardFile != "" {
		data, err := os.ReadFile(*boardFile)
		if err != nil {
			return nil, err
		}
		return config.LoadBoard(data)
	}
	board, ok := config.Preset(*boardName)
	if !ok {
		return nil, fmt.Errorf("unknown board %q", *boardName)
	}
	return board, nil
}

func run(m *mcu.MCU, c *client.Client, args []string) error {
	switch args[0] {
	case "help", "?":
		printHelp()
		return nil

	case "dict":
		m.PrintDictionary(os.Stdout)
		return nil

	case "clock":
		clock, err := c.Clock()
		if err != nil {
			return err
		}
		fmt.Printf("clock=%d\n", clock)
		return nil

	case "estop":
		if err := c.EmergencyStop(); err != nil {
			return err
		}
		fmt.Println("Emergency stop sent, reconnect to clear")
		return nil

	case "start":
		return startCommand(m, c, args[1:])

	case "stop", "status":
		if len(args) != 2 {
			return fmt.Errorf("%w: %s <pin>", errUsage, args[0])
		}
		pin, err := m.ResolvePin(args[1])
		if err != nil {
			return err
		}
		if args[0] == "stop" {
			return c.Stop(pin)
		}
		st, err := c.Status(pin)
		if err != nil {
			return err
		}
		fmt.Printf("pin=%d active=%v level=%v\n", st.Pin, st.Active, st.Level)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

// startCommand parses: start <pin> <high> <low> [run=D] [align=PIN] [offset=D] [autopwm]
func startCommand(m *mcu.MCU, c *client.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: start <pin> <high> <low> [options]", errUsage)
	}
	pin, err := m.ResolvePin(args[0])
	if err != nil {
		return err
	}
	w := client.Waveform{Align: core.NoAlign}
	if w.HighTicks, err = parseTicks(m, args[1]); err != nil {
		return err
	}
	if w.LowTicks, err = parseTicks(m, args[2]); err != nil {
		return err
	}

	for _, opt := range args[3:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "run":
			w.RunTicks, err = parseTicks(m, value)
		case "offset":
			w.OffsetTicks, err = parseTicks(m, value)
		case "align":
			var align uint8
			align, err = m.ResolvePin(value)
			w.Align = int8(align)
		case "autopwm":
			w.AutoPWM = true
		default:
			err = fmt.Errorf("%w: unknown option %q", errUsage, key)
		}
		if err != nil {
			return err
		}
	}
	return c.Start(pin, w)
}

// parseTicks reads a duration ("250us", "1.5ms") or a bare cycle count
func parseTicks(m *mcu.MCU, s string) (uint32, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: bad duration %q", errUsage, s)
	}
	return m.Ticks(d), nil
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  start <pin> <high> <low> [run=D] [align=PIN] [offset=D] [autopwm]")
	fmt.Println("                 - Start or update a waveform. Times are cycles or")
	fmt.Println("                   durations such as 250us or 1.5ms")
	fmt.Println("  stop <pin>     - Stop the waveform on pin")
	fmt.Println("  status <pin>   - Show whether pin is running and its level")
	fmt.Println("  clock          - Read the board cycle counter")
	fmt.Println("  estop          - Stop everything and shut the board down")
	fmt.Println("  dict           - Print the message table")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println("Pins are numbers or board pin names.")
	fmt.Println()
}
