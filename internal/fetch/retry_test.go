package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMachine(t *testing.T) {
	policy := Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
	}

	t.Run("starts attempting", func(t *testing.T) {
		m := NewMachine(policy)
		if m.State() != StateAttempting {
			t.Errorf("expected %s, got %s", StateAttempting, m.State())
		}
		if m.Attempt() != 1 {
			t.Errorf("expected attempt 1, got %d", m.Attempt())
		}
	})

	t.Run("retryable failure backs off then attempts again", func(t *testing.T) {
		m := NewMachine(policy)

		m.Failure(true)
		if m.State() != StateBackoff {
			t.Fatalf("expected %s, got %s", StateBackoff, m.State())
		}
		if m.Backoff() != 100*time.Millisecond {
			t.Errorf("expected 100ms backoff, got %v", m.Backoff())
		}

		m.Proceed()
		if m.State() != StateAttempting {
			t.Fatalf("expected %s, got %s", StateAttempting, m.State())
		}
		if m.Attempt() != 2 {
			t.Errorf("expected attempt 2, got %d", m.Attempt())
		}
	})

	t.Run("backoff doubles up to the cap", func(t *testing.T) {
		m := NewMachine(policy)

		m.Failure(true)
		m.Proceed()
		if m.Backoff() != 200*time.Millisecond {
			t.Errorf("expected 200ms after one doubling, got %v", m.Backoff())
		}

		m.Failure(true)
		m.Proceed()
		if m.Backoff() != 300*time.Millisecond {
			t.Errorf("expected backoff capped at 300ms, got %v", m.Backoff())
		}
	})

	t.Run("non-retryable failure is terminal", func(t *testing.T) {
		m := NewMachine(policy)

		m.Failure(false)
		if m.State() != StateFailed {
			t.Errorf("expected %s, got %s", StateFailed, m.State())
		}
	})

	t.Run("exhausting attempts is terminal", func(t *testing.T) {
		m := NewMachine(policy)

		for m.State() == StateAttempting {
			m.Failure(true)
			m.Proceed()
		}
		if m.State() != StateFailed {
			t.Errorf("expected %s, got %s", StateFailed, m.State())
		}
		if m.Attempt() != policy.MaxAttempts {
			t.Errorf("expected %d attempts, got %d", policy.MaxAttempts, m.Attempt())
		}
	})

	t.Run("zero policy falls back to defaults", func(t *testing.T) {
		m := NewMachine(Policy{})
		if m.Backoff() != DefaultPolicy().InitialBackoff {
			t.Errorf("expected default initial backoff, got %v", m.Backoff())
		}
	})
}

func TestWithRetry(t *testing.T) {
	fast := Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	t.Run("returns nil on first success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), fast, func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries transient failures until success", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), fast, func() error {
			calls++
			if calls < 3 {
				return &Error{Kind: Unreachable, URL: "https://example.com"}
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("stops immediately on permanent failure", func(t *testing.T) {
		calls := 0
		want := &Error{Kind: ClientError, URL: "https://example.com"}
		err := WithRetry(context.Background(), fast, func() error {
			calls++
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("expected the client error back, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), fast, func() error {
			calls++
			return &Error{Kind: Timeout, URL: "https://example.com"}
		})
		var fe *Error
		if !errors.As(err, &fe) || fe.Kind != Timeout {
			t.Errorf("expected timeout error, got %v", err)
		}
		if calls != fast.MaxAttempts {
			t.Errorf("expected %d calls, got %d", fast.MaxAttempts, calls)
		}
	})

	t.Run("cancelled context cuts backoff short", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := Policy{MaxAttempts: 3, InitialBackoff: time.Minute, MaxBackoff: time.Minute}

		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- WithRetry(ctx, slow, func() error {
				calls++
				return &Error{Kind: Unreachable, URL: "https://example.com"}
			})
		}()

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("WithRetry did not return after cancellation")
		}
		if calls != 1 {
			t.Errorf("expected 1 call before cancellation, got %d", calls)
		}
	})
}
