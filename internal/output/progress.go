package output

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// Progress tracks and displays run progress on stderr.
type Progress struct {
	total     atomic.Int64
	completed atomic.Int64
	passed    atomic.Int64
	warned    atomic.Int64
	failed    atomic.Int64
	errors    atomic.Int64
	start     time.Time
	done      chan struct{}
	stopOnce  sync.Once
	mu        sync.Mutex // serializes redraws with ClearLine
	quiet     bool
}

// NewProgress creates a progress tracker. Call Start() to begin display updates.
func NewProgress(total int, quiet bool) *Progress {
	p := &Progress{
		start: time.Now(),
		done:  make(chan struct{}),
		quiet: quiet,
	}
	p.total.Store(int64(total))
	return p
}

// Start begins periodically printing progress to stderr.
func (p *Progress) Start() {
	if p.quiet {
		return
	}
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.Redraw()
			case <-p.done:
				p.Redraw()
				fmt.Fprint(os.Stderr, "\n")
				return
			}
		}
	}()
}

// Increment records a finished test.
func (p *Progress) Increment(v testcase.Verdict) {
	p.completed.Add(1)
	switch v {
	case testcase.Pass:
		p.passed.Add(1)
	case testcase.Warn:
		p.warned.Add(1)
	case testcase.Fail:
		p.failed.Add(1)
	case testcase.Error:
		p.errors.Add(1)
	}
}

// AddTotal grows the expected test count.
func (p *Progress) AddTotal(n int) {
	p.total.Add(int64(n))
}

// ClearLine erases the progress line so a result row can be printed.
func (p *Progress) ClearLine() {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprint(os.Stderr, "\r\033[K")
	p.mu.Unlock()
}

// Redraw prints the progress line again.
func (p *Progress) Redraw() {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprint(os.Stderr, "\r\033[K"+p.Line())
	p.mu.Unlock()
}

// Stop ends the progress display. It is safe to call more than once.
func (p *Progress) Stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

// Line renders the current state without escapes.
func (p *Progress) Line() string {
	completed := p.completed.Load()
	total := p.total.Load()
	elapsed := time.Since(p.start).Seconds()
	rate := float64(0)
	if elapsed > 0 {
		rate = float64(completed) / elapsed
	}

	pct := float64(0)
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}

	eta := ""
	if rate > 0 && completed < total {
		remaining := float64(total-completed) / rate
		eta = fmt.Sprintf(" | ETA: %s", time.Duration(remaining*float64(time.Second)).Round(time.Second))
	}

	return fmt.Sprintf("[%3.0f%%] %d/%d | Pass: %d | Warn: %d | Fail: %d | Errors: %d%s",
		pct, completed, total,
		p.passed.Load(), p.warned.Load(), p.failed.Load(), p.errors.Load(), eta)
}
