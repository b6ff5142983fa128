package scanner

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// Throttler paces tests against one target. It applies a fixed per-test
// delay, an optional tests-per-second cap and, when adaptive, backs off
// exponentially on 429/503 responses or repeated errors and gradually
// recovers to the base delay once the server looks healthy again.
//
// A nil Throttler never delays.
type Throttler struct {
	mu           sync.Mutex
	baseDelay    time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
	consecutive  int // consecutive throttle signals
	enabled      bool
	quiet        bool
	limiter      *rate.Limiter
}

// NewThrottler creates a throttler. adaptive turns on back-off.
func NewThrottler(baseDelay time.Duration, adaptive, quiet bool) *Throttler {
	return &Throttler{
		baseDelay:    baseDelay,
		currentDelay: baseDelay,
		maxDelay:     30 * time.Second,
		enabled:      adaptive,
		quiet:        quiet,
	}
}

// WithRate caps the number of tests started per second. perSecond <= 0
// removes the cap.
func (t *Throttler) WithRate(perSecond float64) *Throttler {
	if perSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	} else {
		t.limiter = nil
	}
	return t
}

// Delay returns the current per-test delay.
func (t *Throttler) Delay() time.Duration {
	if t == nil {
		return 0
	}
	if !t.enabled {
		return t.baseDelay
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentDelay
}

// Wait blocks for the current delay and the rate cap. It returns early with
// ctx's error when ctx is cancelled.
func (t *Throttler) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	if delay := t.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}
	return ctx.Err()
}

// Record feeds a finished result into the back-off logic. Error verdicts
// count as error signals; anything else is judged by its status code.
func (t *Throttler) Record(res testcase.Result) {
	if t == nil {
		return
	}
	if res.Verdict == testcase.Error {
		t.RecordError()
		return
	}
	t.RecordStatus(res.Status())
}

// RecordStatus updates the throttler based on a response status code. A
// zero code (no response) counts as healthy: silence is a normal reaction
// to malformed input.
func (t *Throttler) RecordStatus(statusCode int) {
	if t == nil || !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if statusCode == 429 || statusCode == 503 {
		t.consecutive++
		// Exponential back-off: double the delay, up to maxDelay.
		newDelay := t.currentDelay * 2
		if newDelay < 500*time.Millisecond {
			newDelay = 500 * time.Millisecond
		}
		if newDelay > t.maxDelay {
			newDelay = t.maxDelay
		}
		if newDelay != t.currentDelay {
			t.currentDelay = newDelay
			if !t.quiet {
				fmt.Fprintf(os.Stderr, "\n[!] Server pushing back (HTTP %d), backing off to %s/test\n", statusCode, t.currentDelay)
			}
		}
	} else {
		if t.consecutive > 0 {
			t.consecutive = 0
			// Gradually recover: halve delay toward base, but not below base.
			newDelay := t.currentDelay / 2
			if newDelay < t.baseDelay {
				newDelay = t.baseDelay
			}
			if newDelay != t.currentDelay {
				t.currentDelay = newDelay
				if !t.quiet && t.currentDelay > t.baseDelay {
					fmt.Fprintf(os.Stderr, "\n[+] Recovering, delay now %s/test\n", t.currentDelay)
				}
			}
		}
	}
}

// RecordError flags a connection failure as a possible overload signal.
// Back-off starts after three in a row.
func (t *Throttler) RecordError() {
	if t == nil || !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutive++
	if t.consecutive >= 3 {
		newDelay := t.currentDelay * 2
		if newDelay < 500*time.Millisecond {
			newDelay = 500 * time.Millisecond
		}
		if newDelay > t.maxDelay {
			newDelay = t.maxDelay
		}
		if newDelay != t.currentDelay {
			t.currentDelay = newDelay
			if !t.quiet {
				fmt.Fprintf(os.Stderr, "\n[!] Repeated connection errors, backing off to %s/test\n", t.currentDelay)
			}
		}
	}
}
