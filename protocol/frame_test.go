package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestAppendFrame(t *testing.T) {
	frame, err := AppendFrame(nil, MessageDest, nil)
	if err != nil {
		t.Fatal(err)
	}
	// An empty frame is the acknowledgement
	want := []byte{5, MessageDest, 0x9E, 0x81, MessageValueSync}
	if !bytes.Equal(frame, want) {
		t.Errorf("ack frame = % x, want % x", frame, want)
	}

	if _, err := AppendFrame(nil, MessageDest, make([]byte, MessagePayloadMax+1)); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("oversized payload: %v", err)
	}
}

func TestDecoderRoundTrip(t *testing.T) {
	var stream []byte
	payloads := [][]byte{{1, 2, 3}, {}, bytes.Repeat([]byte{0x42}, MessagePayloadMax)}
	for i, p := range payloads {
		var err error
		stream, err = AppendFrame(stream, MessageDest|uint8(i), p)
		if err != nil {
			t.Fatal(err)
		}
	}

	d := NewDecoder()
	// Byte at a time, as a slow UART delivers it
	var got []Frame
	for _, b := range stream {
		d.Feed([]byte{b})
		for {
			f, ok := d.Next()
			if !ok {
				break
			}
			got = append(got, Frame{Seq: f.Seq, Payload: append([]byte(nil), f.Payload...)})
		}
	}
	if len(got) != len(payloads) {
		t.Fatalf("decoded %d frames, want %d", len(got), len(payloads))
	}
	for i, f := range got {
		if f.Seq != MessageDest|uint8(i) || !bytes.Equal(f.Payload, payloads[i]) {
			t.Errorf("frame %d = seq %#x payload % x", i, f.Seq, f.Payload)
		}
	}
	if d.Errors() != 0 {
		t.Errorf("%d resyncs on a clean stream", d.Errors())
	}
}

func TestDecoderResync(t *testing.T) {
	good, _ := AppendFrame(nil, MessageDest|3, []byte{9, 8, 7})
	bad := append([]byte(nil), good...)
	bad[3] ^= 0xFF // Corrupt the payload

	d := NewDecoder()
	d.Feed([]byte{0x01, 0x02}) // Line noise
	d.Feed(bad)
	d.Feed(good)

	f, ok := d.Next()
	if !ok {
		t.Fatal("good frame after corruption was lost")
	}
	if !bytes.Equal(f.Payload, []byte{9, 8, 7}) {
		t.Errorf("payload % x", f.Payload)
	}
	if _, ok := d.Next(); ok {
		t.Error("corrupt frame was accepted")
	}
	if d.Errors() == 0 {
		t.Error("corruption not counted")
	}
}

func TestDecoderPartialFrame(t *testing.T) {
	frame, _ := AppendFrame(nil, MessageDest, []byte{1, 2, 3, 4})
	d := NewDecoder()
	d.Feed(frame[:6])
	if _, ok := d.Next(); ok {
		t.Fatal("partial frame decoded")
	}
	d.Feed(frame[6:])
	if _, ok := d.Next(); !ok {
		t.Fatal("completed frame not decoded")
	}
}
