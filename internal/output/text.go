package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// TextOptions controls the console table.
type TextOptions struct {
	NoColor    bool
	Quiet      bool // drop the header row and the stderr footer
	Verbose    bool // print the note and raw response under each row
	ShowTarget bool // prefix details with the target when probing several
}

// TextWriter writes the colored result table.
type TextWriter struct {
	w      io.Writer
	closer io.Closer
	opts   TextOptions

	verdict map[testcase.Verdict]*color.Color
	dim     *color.Color
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used. Files never get ANSI escapes.
func NewTextWriter(outputFile string, opts TextOptions) (*TextWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	if outputFile != "" {
		opts.NoColor = true
	}
	return newTextWriter(w, closer, opts), nil
}

func newTextWriter(w io.Writer, closer io.Closer, opts TextOptions) *TextWriter {
	t := &TextWriter{
		w:      w,
		closer: closer,
		opts:   opts,
		verdict: map[testcase.Verdict]*color.Color{
			testcase.Pass:  color.New(color.FgGreen),
			testcase.Warn:  color.New(color.FgYellow),
			testcase.Fail:  color.New(color.FgRed),
			testcase.Error: color.New(color.FgMagenta),
			testcase.Skip:  color.New(color.FgWhite),
		},
		dim: color.New(color.Faint),
	}
	if opts.NoColor {
		for _, c := range t.verdict {
			c.DisableColor()
		}
		t.dim.DisableColor()
	}
	return t
}

func (t *TextWriter) WriteHeader() error {
	if t.opts.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(t.w, "\n  %-35s %-10s %-14s %-6s %s\n  %s\n",
		"Test ID", "Verdict", "Expected", "Status", "Details",
		t.dim.Sprint(strings.Repeat("─", 95)))
	return err
}

func (t *TextWriter) WriteResult(result *testcase.Result) error {
	if result.Verdict == testcase.Skip {
		return nil
	}
	meta := result.Meta()

	detail := truncate(Detail(result), 30, true)
	if t.opts.ShowTarget {
		detail = "[" + result.Target.String() + "] " + detail
	}

	_, err := fmt.Fprintf(t.w, "  %-35s %s %-14s %-6s %s\n",
		meta.ID,
		t.verdict[result.Verdict].Sprintf("%-10s", Symbol(result)),
		truncate(testcase.ExpectedText(result.Case), 14, false),
		StatusText(result),
		detail,
	)
	if err != nil || !t.opts.Verbose {
		return err
	}
	return t.writeVerbose(result)
}

func (t *TextWriter) writeVerbose(result *testcase.Result) error {
	var b strings.Builder
	if result.BehavioralNote != "" {
		fmt.Fprintf(&b, "      Note: %s\n", result.BehavioralNote)
	}
	if result.DoubleFlush {
		b.WriteString("      Response arrived in more than one flush\n")
	}
	if result.RawResponse != "" {
		for _, line := range strings.Split(strings.TrimRight(result.RawResponse, "\r\n"), "\n") {
			b.WriteString("      " + t.dim.Sprint(strings.TrimRight(line, "\r")) + "\n")
		}
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

// WriteReport prints the per-target score line.
func (t *TextWriter) WriteReport(report *testcase.Report) error {
	var b strings.Builder
	b.WriteString("  " + t.dim.Sprint(strings.Repeat("─", 80)) + "\n\n")
	if t.opts.ShowTarget {
		fmt.Fprintf(&b, "  Target: %s\n", report.Target)
	}

	pass, fail := report.PassCount(), report.FailCount()
	scoreColor := t.verdict[testcase.Pass]
	if fail > 0 {
		scoreColor = t.verdict[testcase.Fail]
	}
	fmt.Fprintf(&b, "  Score: %s", scoreColor.Sprintf("%d/%d", pass, pass+fail))
	if fail > 0 {
		fmt.Fprintf(&b, " (%s)", t.verdict[testcase.Fail].Sprintf("%d failed", fail))
	}
	if n := report.WarnCount(); n > 0 {
		b.WriteString("  " + t.verdict[testcase.Warn].Sprintf("%d warnings", n))
	}
	if n := report.ErrorCount(); n > 0 {
		b.WriteString("  " + t.verdict[testcase.Error].Sprintf("%d errors", n))
	}
	if n := report.UnscoredCount(); n > 0 {
		fmt.Fprintf(&b, "  %d unscored", n)
	}
	if n := report.SkipCount(); n > 0 {
		fmt.Fprintf(&b, "  %d skipped", n)
	}
	fmt.Fprintf(&b, "  (%d tests, %.1fs)\n\n", len(report.Results)-report.SkipCount(), report.Duration.Seconds())

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.opts.Quiet || stats.Targets < 2 {
		return nil
	}
	_, err := fmt.Fprintf(os.Stderr, "[+] Completed: %d targets | %d tests each | Duration: %s\n",
		stats.Targets, stats.Tests, stats.Duration.Round(time.Millisecond))
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
