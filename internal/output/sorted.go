package output

import (
	"sort"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*testcase.Result
	reports []*testcase.Report
}

// SortKeys lists the accepted --sort values.
var SortKeys = []string{"verdict", "id", "category"}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(result *testcase.Result) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteReport(report *testcase.Report) error {
	w.reports = append(w.reports, report)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.results, func(i, j int) bool {
		a, b := w.results[i], w.results[j]
		switch w.sortBy {
		case "verdict":
			if severity(a.Verdict) != severity(b.Verdict) {
				return severity(a.Verdict) < severity(b.Verdict)
			}
		case "id":
			if a.Meta().ID != b.Meta().ID {
				return a.Meta().ID < b.Meta().ID
			}
		case "category":
			ca, cb := categoryRank(a.Meta().Category), categoryRank(b.Meta().Category)
			if ca != cb {
				return ca < cb
			}
		}
		return a.Target.String() < b.Target.String()
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	for _, r := range w.reports {
		if err := w.inner.WriteReport(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}

// severity orders verdicts worst first.
func severity(v testcase.Verdict) int {
	switch v {
	case testcase.Fail:
		return 0
	case testcase.Error:
		return 1
	case testcase.Warn:
		return 2
	case testcase.Pass:
		return 3
	}
	return 4
}

func categoryRank(c testcase.Category) int {
	for i, known := range testcase.Categories {
		if c == known {
			return i
		}
	}
	return len(testcase.Categories)
}
