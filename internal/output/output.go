// Package output renders probe results: a colored console table, JSON and
// CSV reports, plus the progress line and the failure tree on stderr.
package output

import (
	"io"
	"os"
	"time"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// Stats holds aggregate run statistics across all targets.
type Stats struct {
	Targets  int
	Tests    int // definitions executed per target, skips excluded
	Duration time.Duration
}

// Writer is implemented by each output format. WriteResult receives
// executed results as they stream in (possibly interleaved across
// targets); WriteReport receives each target's complete report once the
// target is done.
type Writer interface {
	WriteHeader() error
	WriteResult(result *testcase.Result) error
	WriteReport(report *testcase.Report) error
	WriteFooter(stats Stats) error
	Close() error
}

// openOutput returns stdout, or the created file and its closer.
func openOutput(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// Symbol is the fixed-width verdict marker, with a * suffix for unscored
// tests.
func Symbol(res *testcase.Result) string {
	var sym string
	switch res.Verdict {
	case testcase.Pass:
		sym = "PASS"
	case testcase.Fail:
		sym = "FAIL"
	case testcase.Warn:
		sym = "WARN"
	case testcase.Error:
		sym = "ERR "
	default:
		sym = "SKIP"
	}
	if !res.Meta().Scored() {
		sym += "*"
	}
	return sym
}

// StatusText is the status code, or the connection state when nothing
// parseable came back.
func StatusText(res *testcase.Result) string {
	if res.Response != nil {
		return itoa(res.Response.StatusCode)
	}
	return res.ConnectionState.String()
}

// Detail is the error message, else the reason phrase.
func Detail(res *testcase.Result) string {
	if res.ErrorMessage != "" {
		return res.ErrorMessage
	}
	if res.Response != nil {
		return res.Response.ReasonPhrase
	}
	return ""
}

func truncate(s string, n int, ellipsis bool) string {
	if len(s) <= n {
		return s
	}
	if ellipsis {
		return s[:n] + "..."
	}
	return s[:n]
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
