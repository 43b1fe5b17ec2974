package core_test

import (
	"errors"
	"testing"

	"wavegen/core"
	"wavegen/protocol"
	"wavegen/sim"
)

type reply struct {
	name string
	args []uint32
}

// firmware wires a registry to a simulated generator and collects replies
type firmware struct {
	t        *testing.T
	registry *core.CommandRegistry
	gen      *core.Generator
	board    *sim.Board
	replies  []reply
}

func newFirmware(t *testing.T) *firmware {
	t.Helper()
	core.ResetFirmwareState()
	f := &firmware{t: t, registry: core.NewCommandRegistry()}
	f.gen, f.board = newTestGenerator(t)
	core.SetGenerator(f.gen)
	t.Cleanup(func() { core.SetGenerator(nil) })

	core.RegisterAllCommands(f.registry)
	f.registry.SetSender(func(cmdID uint16, args []byte) error {
		cmd, _ := f.registry.Lookup(cmdID)
		r := reply{name: cmd.Name}
		for len(args) > 0 {
			v, err := protocol.DecodeVLQUint(&args)
			if err != nil {
				return err
			}
			r.args = append(r.args, v)
		}
		f.replies = append(f.replies, r)
		return nil
	})
	return f
}

func (f *firmware) call(name string, args ...int32) error {
	f.t.Helper()
	id, ok := f.registry.ID(name)
	if !ok {
		f.t.Fatalf("%s not registered", name)
	}
	var data []byte
	for _, a := range args {
		data = protocol.AppendVLQInt(data, a)
	}
	err := f.registry.Dispatch(id, &data)
	if len(data) != 0 {
		f.t.Errorf("%s left %d argument bytes", name, len(data))
	}
	return err
}

func (f *firmware) lastReply() reply {
	f.t.Helper()
	if len(f.replies) == 0 {
		f.t.Fatal("no reply sent")
	}
	return f.replies[len(f.replies)-1]
}

func TestStartWaveformCommand(t *testing.T) {
	f := newFirmware(t)

	if err := f.call("start_waveform", 4, 1000, 1000, 0, -1, 0, 0); err != nil {
		t.Fatalf("start_waveform: %v", err)
	}
	if r := f.lastReply(); r.name != "waveform_result" || r.args[0] != uint32(core.ResultOK) {
		t.Errorf("reply %+v", r)
	}
	if !f.gen.Active(4) {
		t.Fatal("pin 4 not running")
	}

	f.board.RunFor(5000)
	if err := f.call("waveform_status", 4); err != nil {
		t.Fatal(err)
	}
	r := f.lastReply()
	if r.name != "waveform_state" || r.args[0] != 4 || r.args[1] != 1 {
		t.Errorf("status reply %+v", r)
	}
	if level := r.args[2] != 0; level != f.gen.Level(4) {
		t.Errorf("reported level %v, generator says %v", level, f.gen.Level(4))
	}

	if err := f.call("stop_waveform", 4); err != nil {
		t.Fatalf("stop_waveform: %v", err)
	}
	if f.gen.Active(4) || f.gen.TimerRunning() {
		t.Error("stop_waveform left the channel or timer running")
	}
}

func TestStartWaveformCommandErrors(t *testing.T) {
	f := newFirmware(t)

	cases := []struct {
		name string
		args []int32
		code uint8
		err  error
	}{
		{"pin out of range", []int32{300, 1000, 1000, 0, -1, 0, 0}, core.ResultInvalidPin, core.ErrInvalidPin},
		{"align out of range", []int32{4, 1000, 1000, 0, 40, 0, 0}, core.ResultInvalidAlign, core.ErrInvalidAlign},
		{"zero period", []int32{4, 0, 0, 0, -1, 0, 0}, core.ResultInvalidPeriod, core.ErrInvalidPeriod},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := f.call("start_waveform", c.args...)
			if !errors.Is(err, c.err) {
				t.Errorf("error %v, want %v", err, c.err)
			}
			if r := f.lastReply(); r.args[0] != uint32(c.code) {
				t.Errorf("code %d, want %d", r.args[0], c.code)
			}
		})
	}

	if err := f.call("stop_waveform", 4); !errors.Is(err, core.ErrTimerIdle) {
		t.Errorf("stop with idle timer: %v", err)
	}

	// Truncated arguments
	id, _ := f.registry.ID("start_waveform")
	data := protocol.AppendVLQUint(nil, 4)
	if err := f.registry.Dispatch(id, &data); !errors.Is(err, protocol.ErrBufferTooSmall) {
		t.Errorf("truncated command: %v", err)
	}
}

func TestStartWaveformNegativeAlignRunsFree(t *testing.T) {
	f := newFirmware(t)

	if err := f.call("start_waveform", 4, 1000, 1000, 0, -7, 0, 0); err != nil {
		t.Fatalf("start_waveform with align -7: %v", err)
	}
	if r := f.lastReply(); r.args[0] != uint32(core.ResultOK) {
		t.Errorf("code %d, want ok", r.args[0])
	}
	st, _ := f.gen.Snapshot(4)
	if !st.Active || st.AlignPhase != core.NoAlign {
		t.Errorf("channel active=%v align=%d", st.Active, st.AlignPhase)
	}
	if err := f.call("stop_waveform", 4); err != nil {
		t.Fatal(err)
	}
}

func TestEmergencyStop(t *testing.T) {
	f := newFirmware(t)
	defer core.ResetFirmwareState()

	for _, pin := range []int32{1, 4} {
		if err := f.call("start_waveform", pin, 1000, 1000, 0, -1, 0, 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.call("emergency_stop"); err != nil {
		t.Fatal(err)
	}
	if f.gen.Enabled() != 0 {
		t.Errorf("channels %#x still enabled", f.gen.Enabled())
	}
	if !core.IsShutdown() {
		t.Error("not shut down")
	}

	err := f.call("start_waveform", 4, 1000, 1000, 0, -1, 0, 0)
	if !errors.Is(err, core.ErrShutdown) {
		t.Errorf("start after shutdown: %v", err)
	}
	if f.gen.Active(4) {
		t.Error("waveform started during shutdown")
	}
}

func TestGetClockCommand(t *testing.T) {
	f := newFirmware(t)
	core.SetTime(123456)
	if err := f.call("get_clock"); err != nil {
		t.Fatal(err)
	}
	if r := f.lastReply(); r.name != "clock" || r.args[0] != 123456 {
		t.Errorf("reply %+v", r)
	}
}
