package scanner

import (
	"context"
	"sync"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// TargetReport is the outcome of one target in a pool run. Err is set when
// the run stopped early; Report then holds the partial results.
type TargetReport struct {
	Target testcase.Target
	Report *testcase.Report
	Err    error
}

// RunTargetPool fans whole targets out across workers. Each worker owns its
// own Runner and therefore its own connections; tests against one target
// stay strictly sequential. cfg.Target is overwritten per target. onResult
// is called from worker goroutines and must be safe for concurrent use.
// The returned channel is closed when every target has been processed.
func RunTargetPool(
	ctx context.Context,
	targets []testcase.Target,
	cases []testcase.Case,
	cfg Config,
	workers int,
	onResult func(testcase.Result),
) <-chan TargetReport {
	if workers < 1 {
		workers = 1
	}
	if workers > len(targets) && len(targets) > 0 {
		workers = len(targets)
	}
	targetsCh := make(chan testcase.Target, workers*2)
	reportsCh := make(chan TargetReport, workers*2)

	var wg sync.WaitGroup

	// Producer: feed targets into channel.
	go func() {
		defer close(targetsCh)
		for _, t := range targets {
			select {
			case targetsCh <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Workers: probe one target at a time.
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range targetsCh {
				tcfg := cfg
				tcfg.Target = target
				report, err := NewRunner(tcfg).Run(ctx, cases, onResult)
				reportsCh <- TargetReport{Target: target, Report: report, Err: err}
				if ctx.Err() != nil {
					return
				}
			}
		}()
	}

	// Closer: when all workers finish, close the reports channel.
	go func() {
		wg.Wait()
		close(reportsCh)
	}()

	return reportsCh
}
