package protocol

import (
	"errors"
	"testing"
)

type capture struct {
	frames []Frame
}

func (c *capture) write(b []byte) {
	d := NewDecoder()
	d.Feed(b)
	for {
		f, ok := d.Next()
		if !ok {
			return
		}
		c.frames = append(c.frames, Frame{Seq: f.Seq, Payload: append([]byte(nil), f.Payload...)})
	}
}

func hostFrame(t *testing.T, seq uint8, msgs ...[]byte) []byte {
	t.Helper()
	var payload []byte
	for _, m := range msgs {
		payload = append(payload, m...)
	}
	frame, err := AppendFrame(nil, MessageDest|seq, payload)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

func TestTransportDispatchAndAck(t *testing.T) {
	out := &capture{}
	type call struct {
		id  uint16
		arg uint32
	}
	var calls []call
	tr := NewTransport(out.write, func(id uint16, data *[]byte) error {
		arg, err := DecodeVLQUint(data)
		calls = append(calls, call{id, arg})
		return err
	})

	// Two messages in one frame
	msg1 := AppendVLQUint(AppendVLQUint(nil, 2), 800000)
	msg2 := AppendVLQUint(AppendVLQUint(nil, 3), 4)
	tr.Receive(hostFrame(t, 0, msg1, msg2))

	if len(calls) != 2 || calls[0] != (call{2, 800000}) || calls[1] != (call{3, 4}) {
		t.Fatalf("calls = %v", calls)
	}
	if len(out.frames) != 1 || len(out.frames[0].Payload) != 0 {
		t.Fatalf("want one ack, got %v", out.frames)
	}
	if out.frames[0].Seq != MessageDest|1 {
		t.Errorf("ack seq %#x, want %#x", out.frames[0].Seq, MessageDest|1)
	}
}

func TestTransportRejectsOutOfOrder(t *testing.T) {
	out := &capture{}
	calls := 0
	tr := NewTransport(out.write, func(id uint16, data *[]byte) error {
		calls++
		return nil
	})

	tr.Receive(hostFrame(t, 0, AppendVLQUint(nil, 1)))
	tr.Receive(hostFrame(t, 5, AppendVLQUint(nil, 1))) // Skipped ahead
	if calls != 1 {
		t.Errorf("out-of-order frame dispatched, %d calls", calls)
	}
	// The NAK repeats the expected sequence
	if last := out.frames[len(out.frames)-1]; last.Seq != MessageDest|1 {
		t.Errorf("nak seq %#x", last.Seq)
	}
}

func TestTransportSequenceWraps(t *testing.T) {
	out := &capture{}
	calls := 0
	tr := NewTransport(out.write, func(id uint16, data *[]byte) error {
		calls++
		return nil
	})
	for i := 0; i < 20; i++ {
		tr.Receive(hostFrame(t, uint8(i)&MessageSeqMask, AppendVLQUint(nil, 1)))
	}
	if calls != 20 {
		t.Errorf("%d of 20 frames dispatched across the wrap", calls)
	}
}

func TestTransportHostReset(t *testing.T) {
	out := &capture{}
	resets := 0
	tr := NewTransport(out.write, nil)
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(hostFrame(t, 0))
	tr.Receive(hostFrame(t, 1))
	tr.Receive(hostFrame(t, 0)) // Host restarted
	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
	if last := out.frames[len(out.frames)-1]; last.Seq != MessageDest|1 {
		t.Errorf("ack after reset seq %#x", last.Seq)
	}
}

func TestTransportSend(t *testing.T) {
	out := &capture{}
	tr := NewTransport(out.write, nil)
	if err := tr.Send(7, AppendVLQUint(nil, 0)); err != nil {
		t.Fatal(err)
	}
	payload := out.frames[0].Payload
	id, _ := DecodeVLQUint(&payload)
	code, _ := DecodeVLQUint(&payload)
	if id != 7 || code != 0 {
		t.Errorf("reply decoded as %d %d", id, code)
	}
}

func TestTransportHandlerErrors(t *testing.T) {
	errBoom := errors.New("boom")
	out := &capture{}
	tr := NewTransport(out.write, func(id uint16, data *[]byte) error {
		if id == 9 {
			panic("handler bug")
		}
		return errBoom
	})

	tr.Receive(hostFrame(t, 0, AppendVLQUint(nil, 1)))
	if !errors.Is(tr.LastError(), errBoom) {
		t.Errorf("LastError = %v", tr.LastError())
	}
	tr.Receive(hostFrame(t, 1, AppendVLQUint(nil, 9)))
	if !errors.Is(tr.LastError(), ErrHandlerPanic) {
		t.Errorf("LastError = %v", tr.LastError())
	}
	// The link keeps going after a handler panic
	if len(out.frames) != 2 {
		t.Errorf("%d acks, want 2", len(out.frames))
	}
}
