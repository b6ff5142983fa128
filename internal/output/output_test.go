package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

var target = testcase.Target{Host: "localhost", Port: 8080}

func def(id string, cat testcase.Category, scored bool) *testcase.TestCase {
	return &testcase.TestCase{
		Meta: testcase.Meta{
			ID:           id,
			Description:  id + " description",
			Category:     cat,
			RFCReference: "RFC 9112 §5",
			Unscored:     !scored,
		},
		Expected: testcase.ExpectStatus(testcase.Range2xx()),
	}
}

func result(id string, cat testcase.Category, scored bool, v testcase.Verdict, raw string) testcase.Result {
	r := testcase.Result{
		Case:            def(id, cat, scored),
		Target:          target,
		Verdict:         v,
		ConnectionState: transport.Open,
		Duration:        12 * time.Millisecond,
	}
	if raw != "" {
		r.Response = response.Parse([]byte(raw))
		r.RawResponse = raw
	} else if v != testcase.Skip {
		r.ConnectionState = transport.ClosedByServer
	}
	return r
}

func sampleReport() *testcase.Report {
	return &testcase.Report{
		Target: target,
		Results: []testcase.Result{
			result("COMP-BASELINE", testcase.Compliance, true, testcase.Pass, "HTTP/1.1 200 OK\r\n\r\n"),
			result("SMUG-CL-TE-BOTH", testcase.Smuggling, true, testcase.Fail, ""),
			result("COOK-ECHO", testcase.Cookies, false, testcase.Warn, "HTTP/1.1 404 Not Found\r\n\r\n"),
			result("CAP-ETAG-304", testcase.Capabilities, false, testcase.Skip, ""),
		},
		Duration: 1500 * time.Millisecond,
	}
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		verdict testcase.Verdict
		scored  bool
		want    string
	}{
		{testcase.Pass, true, "PASS"},
		{testcase.Fail, true, "FAIL"},
		{testcase.Warn, false, "WARN*"},
		{testcase.Error, true, "ERR "},
		{testcase.Error, false, "ERR *"},
	}
	for _, tt := range tests {
		r := result("X", testcase.Compliance, tt.scored, tt.verdict, "")
		if got := Symbol(&r); got != tt.want {
			t.Errorf("Symbol(%v, scored=%v) = %q, want %q", tt.verdict, tt.scored, got, tt.want)
		}
	}
}

func TestTextWriterRow(t *testing.T) {
	var buf bytes.Buffer
	w := newTextWriter(&buf, nil, TextOptions{NoColor: true})

	r := result("COMP-BASELINE", testcase.Compliance, true, testcase.Pass, "HTTP/1.1 200 OK\r\n\r\n")
	if err := w.WriteResult(&r); err != nil {
		t.Fatal(err)
	}
	line := strings.TrimRight(buf.String(), "\n")
	if got := strings.Fields(line); strings.Join(got, "|") != "COMP-BASELINE|PASS|2xx|200|OK" {
		t.Errorf("fields = %v", got)
	}
	if idx := strings.Index(line, "PASS"); idx != 2+35+1 {
		t.Errorf("verdict column at %d, want 38", idx)
	}

	buf.Reset()
	closed := result("SMUG-CL-TE-BOTH", testcase.Smuggling, true, testcase.Fail, "")
	closed.ErrorMessage = strings.Repeat("x", 40)
	if err := w.WriteResult(&closed); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "ClosedByServer") {
		t.Errorf("status should fall back to connection state: %q", buf.String())
	}
	if !strings.Contains(buf.String(), strings.Repeat("x", 30)+"...") || strings.Contains(buf.String(), strings.Repeat("x", 31)) {
		t.Errorf("details should be truncated to 30 chars: %q", buf.String())
	}

	buf.Reset()
	skip := result("CAP-ETAG-304", testcase.Capabilities, false, testcase.Skip, "")
	if err := w.WriteResult(&skip); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("skip rows must not be printed, got %q", buf.String())
	}
}

func TestTextWriterVerbose(t *testing.T) {
	var buf bytes.Buffer
	w := newTextWriter(&buf, nil, TextOptions{NoColor: true, Verbose: true, ShowTarget: true})
	r := result("COMP-BASELINE", testcase.Compliance, true, testcase.Pass, "HTTP/1.1 200 OK\r\nServer: x\r\n\r\n")
	r.BehavioralNote = "Static response"
	r.DoubleFlush = true
	if err := w.WriteResult(&r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"[localhost:8080] OK", "Note: Static response", "more than one flush", "      Server: x"} {
		if !strings.Contains(out, want) {
			t.Errorf("verbose output missing %q:\n%s", want, out)
		}
	}
}

func TestTextWriterScore(t *testing.T) {
	var buf bytes.Buffer
	w := newTextWriter(&buf, nil, TextOptions{NoColor: true})
	if err := w.WriteReport(sampleReport()); err != nil {
		t.Fatal(err)
	}
	want := "  Score: 1/2 (1 failed)  1 unscored  1 skipped  (3 tests, 1.5s)"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("score line missing:\nwant %q\ngot  %q", want, buf.String())
	}
}

func TestJSONWriterSingleTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	report := sampleReport()
	report.Results[0].DoubleFlush = true
	if err := w.WriteReport(report); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFooter(Stats{Targets: 1}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Target  string         `json:"target"`
		Summary map[string]any `json:"summary"`
		Results []map[string]any
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("single target should be an object: %v\n%s", err, data)
	}
	if got.Target != "localhost:8080" {
		t.Errorf("target = %q", got.Target)
	}
	wantSummary := map[string]float64{"total": 4, "scored": 2, "passed": 1, "failed": 1, "warnings": 0, "skipped": 1, "durationMs": 1500}
	for k, v := range wantSummary {
		if got.Summary[k] != v {
			t.Errorf("summary.%s = %v, want %v", k, got.Summary[k], v)
		}
	}
	if len(got.Results) != 4 {
		t.Fatalf("results = %d, want 4", len(got.Results))
	}
	first, second := got.Results[0], got.Results[1]
	if first["statusCode"] != float64(200) || first["doubleFlush"] != true || first["verdict"] != "Pass" || first["rfcLevel"] != "Must" {
		t.Errorf("first result = %v", first)
	}
	if _, ok := second["statusCode"]; ok {
		t.Errorf("statusCode must be omitted without a response: %v", second)
	}
	if _, ok := second["doubleFlush"]; ok {
		t.Errorf("doubleFlush must be omitted when false: %v", second)
	}
	if second["connectionState"] != "ClosedByServer" || second["expected"] != "2xx" {
		t.Errorf("second result = %v", second)
	}
}

func TestJSONWriterMultipleTargets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	a, b := sampleReport(), sampleReport()
	b.Target = testcase.Target{Host: "10.0.0.1", Port: 80}
	w.WriteReport(a)
	w.WriteReport(b)
	if err := w.WriteFooter(Stats{Targets: 2}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	data, _ := os.ReadFile(path)
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("several targets should be an array: %v", err)
	}
	if len(got) != 2 || got[1]["target"] != "10.0.0.1:80" {
		t.Errorf("got %v", got)
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteHeader()
	for _, r := range sampleReport().Results {
		if err := w.WriteResult(&r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.WriteFooter(Stats{}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3 executed results", len(rows))
	}
	if rows[0][0] != "target" || rows[0][9] != "error" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"localhost:8080", "COMP-BASELINE", "Compliance", "Must", "true", "Pass", "200", "Open", "12", ""}
	if strings.Join(rows[1], ",") != strings.Join(want, ",") {
		t.Errorf("row = %v, want %v", rows[1], want)
	}
	if rows[2][6] != "" || rows[2][7] != "ClosedByServer" {
		t.Errorf("row without response = %v", rows[2])
	}
}

type recordingWriter struct {
	ids     []string
	reports int
	footer  bool
}

func (r *recordingWriter) WriteHeader() error { return nil }
func (r *recordingWriter) WriteResult(res *testcase.Result) error {
	r.ids = append(r.ids, res.Meta().ID)
	return nil
}
func (r *recordingWriter) WriteReport(*testcase.Report) error { r.reports++; return nil }
func (r *recordingWriter) WriteFooter(Stats) error            { r.footer = true; return nil }
func (r *recordingWriter) Close() error                       { return nil }

func TestSortedWriter(t *testing.T) {
	tests := []struct {
		sortBy string
		want   string
	}{
		{"verdict", "SMUG-CL-TE-BOTH,COOK-ECHO,COMP-BASELINE"},
		{"id", "COMP-BASELINE,COOK-ECHO,SMUG-CL-TE-BOTH"},
		{"category", "COMP-BASELINE,SMUG-CL-TE-BOTH,COOK-ECHO"},
	}
	for _, tt := range tests {
		t.Run(tt.sortBy, func(t *testing.T) {
			inner := &recordingWriter{}
			w := NewSortedWriter(inner, tt.sortBy)
			report := sampleReport()
			for _, r := range []testcase.Result{report.Results[2], report.Results[0], report.Results[1]} {
				w.WriteResult(&r)
			}
			w.WriteReport(report)
			if len(inner.ids) != 0 {
				t.Fatal("results must be buffered until the footer")
			}
			if err := w.WriteFooter(Stats{}); err != nil {
				t.Fatal(err)
			}
			if got := strings.Join(inner.ids, ","); got != tt.want {
				t.Errorf("order = %s, want %s", got, tt.want)
			}
			if inner.reports != 1 || !inner.footer {
				t.Errorf("reports=%d footer=%v", inner.reports, inner.footer)
			}
		})
	}
}

func TestPrintTree(t *testing.T) {
	var buf bytes.Buffer
	PrintTree(&buf, sampleReport().Results, false)
	out := buf.String()

	for _, want := range []string{"Non-passing tests:", "├── Smuggling (1)", "└── Cookies (1)", "SMUG-CL-TE-BOTH", "WARN*"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"COMP-BASELINE", "CAP-ETAG-304"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("tree should not list %s:\n%s", unwanted, out)
		}
	}

	buf.Reset()
	PrintTree(&buf, sampleReport().Results[:1], false)
	if buf.Len() != 0 {
		t.Errorf("all-pass run should print nothing, got %q", buf.String())
	}
}

func TestProgressLine(t *testing.T) {
	p := NewProgress(4, true)
	p.Increment(testcase.Pass)
	p.Increment(testcase.Fail)
	want := "[ 50%] 2/4 | Pass: 1 | Warn: 0 | Fail: 1 | Errors: 0"
	if got := p.Line(); !strings.HasPrefix(got, want) {
		t.Errorf("Line() = %q, want prefix %q", got, want)
	}
	p.AddTotal(4)
	if got := p.Line(); !strings.HasPrefix(got, "[ 25%] 2/8") {
		t.Errorf("after AddTotal: %q", got)
	}
	p.Stop()
	p.Stop()
}
