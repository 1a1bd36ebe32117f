package core

// run_limiter.go bounds how many imports the server runs at once.
//
// Every run stages hundreds of megabytes and parses multi-gigabyte files, so
// the server admits at most maxConcurrent runs. A request that finds no free
// slot waits up to maxWait and then fails with ErrTooManyRuns.

import (
	"context"
	"errors"
	"time"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait time.
var ErrTooManyRuns = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 2

// DefaultMaxRunWait is how long a request waits for a slot.
const DefaultMaxRunWait = 30 * time.Second

// RunLimiter is a counting semaphore over import runs.
type RunLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
}

// NewRunLimiter allows at most maxConcurrent simultaneous runs.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxRunWait
	}
	return &RunLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. The caller must Release
// after a nil return.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyRuns
	}
}

// Release frees a slot taken by Acquire.
func (l *RunLimiter) Release() {
	<-l.slots
}

// Active is the number of runs holding a slot.
func (l *RunLimiter) Active() int { return len(l.slots) }

// MaxConcurrent is the slot count.
func (l *RunLimiter) MaxConcurrent() int { return cap(l.slots) }

// WaitForDrain blocks until no run holds a slot or ctx ends. Used during
// graceful shutdown.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
