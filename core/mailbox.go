package core

import "sync/atomic"

// mailbox is a single-slot request channel from normal context to the
// interrupt scheduler. The zero value is empty.
//
// The producer stages the channel fields, then posts; the atomic store
// publishes them. The scheduler takes the pin with an atomic load before it
// reads those fields and clears the slot once it has applied them, which in
// turn publishes its own writes back to the waiting producer.
type mailbox struct {
	slot atomic.Uint32 // 0 = empty, otherwise pin+1
}

// post publishes pin. A slot still holding an earlier request is waited out
// with wait, since a second request must never overwrite the first.
func (m *mailbox) post(pin uint8, wait func()) {
	for !m.slot.CompareAndSwap(0, uint32(pin)+1) {
		wait()
	}
}

// take returns the pending pin, if any, without clearing the slot
func (m *mailbox) take() (uint8, bool) {
	v := m.slot.Load()
	if v == 0 {
		return 0, false
	}
	return uint8(v - 1), true
}

// clear marks the request as consumed
func (m *mailbox) clear() {
	m.slot.Store(0)
}

// pending reports whether a request is still waiting for the scheduler
func (m *mailbox) pending() bool {
	return m.slot.Load() != 0
}

// await blocks the producer until the scheduler has consumed the request
func (m *mailbox) await(wait func()) {
	for m.pending() {
		wait()
	}
}
