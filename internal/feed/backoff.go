package feed

import "time"

// ConnState is the reconnect state of a single feed connection.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Backoff models the reconnect discipline as an explicit state machine:
// CONNECTING moves to CONNECTED on a successful dial, any failure moves to
// BACKOFF with a capped doubling delay, and a connection that survived the
// liveness period resets the delay to its initial value. It carries no
// network dependencies so the transition table is testable on its own.
type Backoff struct {
	initial  time.Duration
	max      time.Duration
	liveness time.Duration

	state       ConnState
	delay       time.Duration
	connectedAt time.Time
	now         func() time.Time
}

func NewBackoff(initial, max, liveness time.Duration) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial:  initial,
		max:      max,
		liveness: liveness,
		state:    StateConnecting,
		delay:    initial,
		now:      time.Now,
	}
}

func (b *Backoff) State() ConnState {
	return b.state
}

// Connecting marks the start of the next dial attempt.
func (b *Backoff) Connecting() {
	b.state = StateConnecting
}

// Connected records a successful connection.
func (b *Backoff) Connected() {
	b.state = StateConnected
	b.connectedAt = b.now()
}

// Failure records a dial or transport failure and returns how long the
// caller must wait before the next attempt. The delay doubles on every
// consecutive failure up to the cap; a connection held past the liveness
// period counts as recovery and restarts the sequence.
func (b *Backoff) Failure() time.Duration {
	if b.state == StateConnected && b.now().Sub(b.connectedAt) >= b.liveness {
		b.delay = b.initial
	}
	d := b.delay
	b.delay *= 2
	if b.delay > b.max {
		b.delay = b.max
	}
	b.state = StateBackoff
	return d
}
