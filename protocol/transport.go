package protocol

import (
	"errors"
	"sync/atomic"
)

var ErrHandlerPanic = errors.New("command handler panicked")

// CommandHandler handles one message of a received frame. It decodes its
// own arguments from data, leaving the rest for the next message.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware end of the link. It checks the host's sequence
// numbers, acknowledges every frame, dispatches the messages of in-order
// frames and frames outgoing replies.
type Transport struct {
	dec     *Decoder
	nextSeq atomic.Uint32 // Sequence byte expected from the host
	write   func([]byte)
	handler CommandHandler

	resetCallback func()
	lastErr       atomic.Pointer[error]
	out           []byte
}

// NewTransport returns a transport that hands outgoing bytes to write and
// received messages to handler
func NewTransport(write func([]byte), handler CommandHandler) *Transport {
	t := &Transport{
		dec:     NewDecoder(),
		write:   write,
		handler: handler,
		out:     make([]byte, 0, MessageLengthMax),
	}
	t.nextSeq.Store(MessageDest)
	return t
}

// Receive processes bytes read from the serial port
func (t *Transport) Receive(data []byte) {
	t.dec.Feed(data)
	for {
		frame, ok := t.dec.Next()
		if !ok {
			return
		}

		expected := uint8(t.nextSeq.Load())
		if frame.Seq == MessageDest && expected != MessageDest {
			// Host restarted its sequence
			expected = MessageDest
			t.nextSeq.Store(MessageDest)
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}
		if frame.Seq == expected {
			t.nextSeq.Store(uint32((expected+1)&MessageSeqMask | MessageDest))
			t.dispatch(frame.Payload)
		}
		// Out-of-order frames are answered with the expected sequence,
		// which the host reads as a NAK
		t.ack()
	}
}

func (t *Transport) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.setErr(ErrHandlerPanic)
		}
	}()
	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.setErr(err)
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			t.setErr(err)
			return
		}
	}
}

func (t *Transport) ack() {
	t.emit(nil)
}

// Send frames one reply message
func (t *Transport) Send(cmdID uint16, args []byte) error {
	payload := AppendVLQUint(make([]byte, 0, MessagePayloadMax), uint32(cmdID))
	payload = append(payload, args...)
	return t.emit(payload)
}

func (t *Transport) emit(payload []byte) error {
	frame, err := AppendFrame(t.out[:0], uint8(t.nextSeq.Load()), payload)
	if err != nil {
		return err
	}
	t.write(frame)
	return nil
}

// Reset returns to the power-on sequence state
func (t *Transport) Reset() {
	t.nextSeq.Store(MessageDest)
	t.dec = NewDecoder()
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a function to run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// LastError returns the last decode or handler error, if any
func (t *Transport) LastError() error {
	if p := t.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Resyncs returns how many corrupt frames were skipped
func (t *Transport) Resyncs() uint32 {
	return t.dec.Errors()
}

func (t *Transport) setErr(err error) {
	t.lastErr.Store(&err)
}
