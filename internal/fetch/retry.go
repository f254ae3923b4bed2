package fetch

import (
	"context"
	"time"
)

// Policy bounds retry behavior for transient fetch failures.
type Policy struct {
	// MaxAttempts is the total number of fetch attempts, including the
	// first. If <= 0, DefaultPolicy's value is used.
	MaxAttempts int
	// InitialBackoff is the delay after the first failure; it doubles on
	// each subsequent failure up to MaxBackoff.
	InitialBackoff time.Duration
	// MaxBackoff caps the doubling.
	MaxBackoff time.Duration
}

// DefaultPolicy is the retry policy the sync engine uses unless told
// otherwise.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	return p
}

// State is a retry machine state.
type State int

const (
	// StateAttempting means a fetch attempt may be made now.
	StateAttempting State = iota
	// StateBackoff means the last attempt failed and the caller should
	// wait Backoff() before proceeding.
	StateBackoff
	// StateFailed is terminal: attempts are exhausted or the failure was
	// permanent.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Machine is an explicit retry state machine:
//
//	Attempting(n) -> Backoff(d) -> Attempting(n+1) -> ... -> Failed
//
// It is a plain value stepped by the caller and carries no timers or
// goroutines of its own, so it works the same under any scheduling.
type Machine struct {
	policy  Policy
	state   State
	attempt int
	backoff time.Duration
}

// NewMachine returns a machine in StateAttempting for attempt 1.
func NewMachine(policy Policy) *Machine {
	p := policy.normalized()
	return &Machine{
		policy:  p,
		state:   StateAttempting,
		attempt: 1,
		backoff: p.InitialBackoff,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Attempt returns the 1-based number of the current (or next) attempt.
func (m *Machine) Attempt() int { return m.attempt }

// Backoff returns the wait before the next attempt. Meaningful only in
// StateBackoff.
func (m *Machine) Backoff() time.Duration { return m.backoff }

// Failure records a failed attempt. A non-retryable failure or exhausted
// attempt budget moves the machine to StateFailed; otherwise it moves to
// StateBackoff with the next delay.
func (m *Machine) Failure(retryable bool) {
	if m.state != StateAttempting {
		return
	}
	if !retryable || m.attempt >= m.policy.MaxAttempts {
		m.state = StateFailed
		return
	}
	m.state = StateBackoff
}

// Proceed moves StateBackoff to StateAttempting for the next attempt and
// doubles the backoff for any failure after that.
func (m *Machine) Proceed() {
	if m.state != StateBackoff {
		return
	}
	m.state = StateAttempting
	m.attempt++
	m.backoff *= 2
	if m.backoff > m.policy.MaxBackoff {
		m.backoff = m.policy.MaxBackoff
	}
}

// WithRetry runs f under the policy, sleeping between attempts and bailing
// out early when ctx is done. The returned error is the last attempt's.
func WithRetry(ctx context.Context, policy Policy, f func() error) error {
	m := NewMachine(policy)
	for {
		err := f()
		if err == nil {
			return nil
		}

		m.Failure(Retryable(err))
		if m.State() == StateFailed {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Backoff()):
		}
		m.Proceed()
	}
}
