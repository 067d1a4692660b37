// Package retry holds the backoff policy used for transient delivery
// failures, such as publishing build outcomes to a broker.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff selects how delays grow between attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Policy is immutable after construction.
type Policy struct {
	Mode       Backoff
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy is exponential from 100ms, capped at 2s, with 3 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffExponential, Initial: 100 * time.Millisecond, Max: 2 * time.Second, MaxRetries: 3}
}

// NewPolicy overlays the given values on DefaultPolicy. Zero durations,
// negative retry counts and unknown modes keep the default.
func NewPolicy(mode Backoff, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based). It is zero for n <= 0.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		return p.Initial
	case BackoffExponential:
		if n > 30 {
			return p.Max
		}
		d = p.Initial << (n - 1)
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("initial must be >0")
	}
	if p.Max <= 0 {
		return fmt.Errorf("max must be >0")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Do calls fn until it succeeds, the retries are spent or ctx is done.
// It returns the last error from fn, or ctx.Err() when canceled while
// waiting.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	err := fn()
	for n := 1; err != nil && n <= p.MaxRetries; n++ {
		t := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		err = fn()
	}
	return err
}
