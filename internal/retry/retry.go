// Package retry provides a bounded polling policy for observing side effects
// that another system produces asynchronously.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Outcome is the typed result of Poll.
type Outcome int

const (
	// Found means the check reported success within the allowed attempts.
	Found Outcome = iota
	// NotFoundAfterRetries means every attempt ran and none succeeded.
	NotFoundAfterRetries
)

func (o Outcome) String() string {
	if o == Found {
		return "found"
	}
	return "not_found_after_retries"
}

// Policy bounds a polling loop.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
	// Multiplier scales Delay after every failed attempt. Values <= 1 keep
	// the delay fixed.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// DefaultPolicy is five attempts one second apart.
var DefaultPolicy = Policy{MaxAttempts: 5, Delay: time.Second}

// Validate reports configuration mistakes.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// delayAfter returns the wait following the given 1-based attempt.
func (p Policy) delayAfter(attempt int) time.Duration {
	d := p.Delay
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
		}
	}
	return d
}

// Check looks once. A non-nil error aborts polling immediately.
type Check func(ctx context.Context, attempt int) (bool, error)

// Poll runs check until it reports true, returns an error, the attempts are
// exhausted or ctx is done. It returns the outcome and the number of
// attempts made. No delay follows the last attempt.
func Poll(ctx context.Context, p Policy, check Check) (Outcome, int, error) {
	if err := p.Validate(); err != nil {
		return NotFoundAfterRetries, 0, err
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		ok, err := check(ctx, attempt)
		if err != nil {
			return NotFoundAfterRetries, attempt, err
		}
		if ok {
			return Found, attempt, nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		if err := Sleep(ctx, p.delayAfter(attempt)); err != nil {
			return NotFoundAfterRetries, attempt, err
		}
	}
	return NotFoundAfterRetries, p.MaxAttempts, nil
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
