// Package timeutil implements the ancillary timing primitives of
// spec.md §4.15: a polling Timeout state machine, three Quota shapes for
// rate-limiting, and a HeartbeatLimiter that throttles with its own
// deadline (it does not use a Quota).
package timeutil

import "time"

// TimeoutState is the state of a Timeout.
type TimeoutState int

const (
	TimeoutStopped TimeoutState = iota
	TimeoutArmed
	TimeoutExpired
)

// Clock returns the current time; tests substitute a fake clock to make
// timeout behavior deterministic without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Timeout is a polling-based timeout: it does not fire callbacks, it is
// queried. Grounded on the reference implementation's outpost::time::Timeout.
type Timeout struct {
	clock     Clock
	startTime time.Time
	endTime   time.Time
	state     TimeoutState
}

// NewTimeout creates a stopped Timeout; call Restart to arm it.
func NewTimeout(clock Clock) *Timeout {
	return &Timeout{clock: clock, state: TimeoutStopped}
}

// NewArmedTimeout creates a Timeout already armed for duration d from now.
// d must be non-negative.
func NewArmedTimeout(clock Clock, d time.Duration) *Timeout {
	t := NewTimeout(clock)
	t.Restart(d)
	return t
}

// Restart (re-)arms the timeout for d starting now. d must be non-negative.
func (t *Timeout) Restart(d time.Duration) {
	now := t.clock.Now()
	t.startTime = now
	t.endTime = now.Add(d)
	t.state = TimeoutArmed
}

// Stop transitions to stopped; a stopped timeout never expires.
func (t *Timeout) Stop() { t.state = TimeoutStopped }

// ChangeDuration adjusts endTime = startTime + d while armed. A stopped
// timeout is not restarted by this call. Reducing d below the already
// elapsed time causes the next state query to report expired.
func (t *Timeout) ChangeDuration(d time.Duration) {
	if t.state == TimeoutStopped {
		return
	}
	t.endTime = t.startTime.Add(d)
	t.updateState()
}

func (t *Timeout) updateState() {
	if t.state == TimeoutArmed && !t.clock.Now().Before(t.endTime) {
		t.state = TimeoutExpired
	}
}

// GetState returns the current state, resolving armed-but-past-deadline
// into expired.
func (t *Timeout) GetState() TimeoutState {
	t.updateState()
	return t.state
}

// IsStopped reports whether the timeout is in the stopped state.
func (t *Timeout) IsStopped() bool { return t.GetState() == TimeoutStopped }

// IsExpired reports whether the timeout is in the expired state.
func (t *Timeout) IsExpired() bool { return t.GetState() == TimeoutExpired }

// IsArmed reports whether the timeout is in the armed state.
func (t *Timeout) IsArmed() bool { return t.GetState() == TimeoutArmed }

// GetRemainingTime returns the time left until expiration, never negative.
func (t *Timeout) GetRemainingTime() time.Duration {
	if t.GetState() != TimeoutArmed {
		return 0
	}
	remaining := t.endTime.Sub(t.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
