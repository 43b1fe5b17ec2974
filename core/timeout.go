package core

// NeverExpires disables expiry when passed as a timeout
const NeverExpires = ^uint32(0)

// maxTimeoutCcys is the longest timeout the wrapping counter can measure
const maxTimeoutCcys = 1<<31 - 1

// Timeout is a polled timeout on a wrapping cycle clock. A one-shot timeout
// stays expired once it fires; a periodic one re-arms itself on every expiry,
// keeping its cadence even when polled late.
type Timeout struct {
	clock    CycleClock
	yield    func()
	start    uint32
	timeout  uint32
	periodic bool
	never    bool
	fired    bool
}

// NewOneShot returns a timeout that expires once, ccys cycles from now
func NewOneShot(clock CycleClock, ccys uint32) *Timeout {
	t := &Timeout{clock: clock}
	t.Reset(ccys)
	return t
}

// NewPeriodic returns a timeout that expires every ccys cycles
func NewPeriodic(clock CycleClock, ccys uint32) *Timeout {
	t := &Timeout{clock: clock, periodic: true}
	t.Reset(ccys)
	return t
}

// WithYield sets a function to run on every poll that did not expire
func (t *Timeout) WithYield(yield func()) *Timeout {
	t.yield = yield
	return t
}

// Expired polls the timeout
func (t *Timeout) Expired() bool {
	var expired bool
	if t.periodic {
		expired = t.expiredRetrigger()
	} else {
		expired = t.expiredOneShot()
	}
	if !expired && t.yield != nil {
		t.yield()
	}
	return expired
}

func (t *Timeout) expiredOneShot() bool {
	if !t.CanWait() {
		return true
	}
	t.fired = t.checkExpired(t.clock.Cycles())
	return t.fired
}

func (t *Timeout) expiredRetrigger() bool {
	if !t.CanWait() {
		return true
	}
	now := t.clock.Cycles()
	if !t.checkExpired(now) {
		return false
	}
	// Skip every whole period that elapsed, at least one
	n := (now - t.start) / t.timeout
	t.start += n * t.timeout
	return true
}

func (t *Timeout) checkExpired(now uint32) bool {
	return !t.never && now-t.start >= t.timeout
}

// CanWait reports whether polling can still return false
func (t *Timeout) CanWait() bool {
	return t.timeout != 0 && !t.fired
}

// CanExpire reports whether the timeout will ever expire
func (t *Timeout) CanExpire() bool {
	return !t.never
}

// Reset restarts the timeout with a new length
func (t *Timeout) Reset(ccys uint32) {
	t.Restart()
	t.timeout = ccys
	t.never = ccys > maxTimeoutCcys
}

// Restart restarts the timeout with its current length
func (t *Timeout) Restart() {
	t.start = t.clock.Cycles()
	t.fired = false
}

// ResetAndSetExpired restarts the timeout so that the next poll expires
func (t *Timeout) ResetAndSetExpired() {
	t.Restart()
	t.start -= t.timeout
}

// ResetToNeverExpires keeps the timeout waiting forever
func (t *Timeout) ResetToNeverExpires() {
	t.timeout = 1
	t.never = true
	t.fired = false
}

// Remaining returns the cycles left until expiry
func (t *Timeout) Remaining() uint32 {
	if t.never {
		return NeverExpires
	}
	now := t.clock.Cycles()
	if t.checkExpired(now) {
		return 0
	}
	return t.timeout - (now - t.start)
}
