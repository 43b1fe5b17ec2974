package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestVLQRoundTripInt(t *testing.T) {
	values := []int32{
		0, 1, -1, 95, 96, -32, -33, 127, -128,
		1000, -1000, 65535, -65535, 1000000, -1000000,
		1<<31 - 1, -1 << 31,
	}
	for _, want := range values {
		encoded := AppendVLQInt(nil, want)
		data := encoded
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("VLQ mismatch: want %d, got %d (encoded as % x)", want, got, encoded)
		}
		if len(data) != 0 {
			t.Errorf("%d: %d bytes left over", want, len(data))
		}
	}
}

func TestVLQEncoding(t *testing.T) {
	cases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5f}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7f}},
		{-32, []byte{0x60}},
		{-33, []byte{0xff, 0x5f}},
		{1000, []byte{0x87, 0x68}},
		{1<<31 - 1, []byte{0x87, 0xff, 0xff, 0xff, 0x7f}},
	}
	for _, c := range cases {
		if got := AppendVLQInt(nil, c.v); !bytes.Equal(got, c.want) {
			t.Errorf("AppendVLQInt(%d) = % x, want % x", c.v, got, c.want)
		}
	}
}

func TestVLQUintFullRange(t *testing.T) {
	for _, want := range []uint32{0, 800000, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF} {
		data := AppendVLQUint(nil, want)
		if got, err := DecodeVLQUint(&data); err != nil || got != want {
			t.Errorf("DecodeVLQUint = %d, %v; want %d", got, err, want)
		}
	}
}

func TestVLQSequence(t *testing.T) {
	buf := AppendVLQUint(nil, 4)
	buf = AppendVLQBool(buf, true)
	buf = AppendVLQInt(buf, -1)

	pin, _ := DecodeVLQUint(&buf)
	flag, _ := DecodeVLQBool(&buf)
	align, err := DecodeVLQInt(&buf)
	if err != nil || pin != 4 || !flag || align != -1 {
		t.Errorf("decoded %d %v %d %v", pin, flag, align, err)
	}
	if _, err := DecodeVLQUint(&buf); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("decode past end: %v", err)
	}
}

func TestVLQTruncated(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("want ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); !errors.Is(err, ErrInvalidVLQ) {
		t.Errorf("want ErrInvalidVLQ, got %v", err)
	}
}
