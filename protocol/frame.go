package protocol

import (
	"bytes"
	"errors"
)

var ErrFrameTooLong = errors.New("payload does not fit in one frame")

// Frame is one decoded frame
type Frame struct {
	Seq     uint8 // Full sequence byte, MessageDest bits included
	Payload []byte
}

// AppendFrame appends a complete frame carrying payload to buf
func AppendFrame(buf []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > MessagePayloadMax {
		return buf, ErrFrameTooLong
	}
	start := len(buf)
	buf = append(buf, byte(len(payload)+MessageLengthMin), seq)
	buf = append(buf, payload...)
	crc := CRC16(buf[start:])
	return append(buf, byte(crc>>8), byte(crc), MessageValueSync), nil
}

// Decoder reassembles frames from a byte stream. Corrupt or truncated data
// is skipped up to the next sync byte.
type Decoder struct {
	buf    []byte
	synced bool
	errors uint32
}

// NewDecoder returns a decoder that starts synchronized
func NewDecoder() *Decoder {
	return &Decoder{synced: true}
}

// Feed queues received bytes
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Errors returns how many times the stream had to be resynchronized
func (d *Decoder) Errors() uint32 {
	return d.errors
}

// Next returns the next complete frame. The payload aliases the decoder's
// buffer and is valid until the next Feed.
func (d *Decoder) Next() (Frame, bool) {
	for len(d.buf) > 0 {
		if !d.synced {
			i := bytes.IndexByte(d.buf, MessageValueSync)
			if i < 0 {
				d.buf = d.buf[:0]
				break
			}
			d.buf = d.buf[i+1:]
			d.synced = true
			continue
		}
		if d.buf[0] == MessageValueSync {
			d.buf = d.buf[1:]
			continue
		}
		if len(d.buf) < MessageLengthMin {
			break
		}

		msgLen := int(d.buf[MessagePositionLen])
		seq := d.buf[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			d.resync()
			continue
		}
		if len(d.buf) < msgLen {
			break
		}
		if d.buf[msgLen-1] != MessageValueSync {
			d.resync()
			continue
		}
		crc := uint16(d.buf[msgLen-3])<<8 | uint16(d.buf[msgLen-2])
		if crc != CRC16(d.buf[:msgLen-MessageTrailerSize]) {
			d.resync()
			continue
		}

		frame := Frame{Seq: seq, Payload: d.buf[MessageHeaderSize : msgLen-MessageTrailerSize]}
		d.buf = d.buf[msgLen:]
		return frame, true
	}
	d.compact()
	return Frame{}, false
}

func (d *Decoder) resync() {
	d.synced = false
	d.errors++
	d.buf = d.buf[1:]
}

// compact moves pending bytes to the front so the buffer does not grow
// without bound on a long-running link
func (d *Decoder) compact() {
	if cap(d.buf)-len(d.buf) < MessageLengthMax && len(d.buf) < cap(d.buf)/2 {
		d.buf = append(make([]byte, 0, 2*MessageLengthMax), d.buf...)
	}
}
