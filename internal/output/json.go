package output

import (
	"encoding/json"
	"io"

	"github.com/maxvaer/http11probe/internal/testcase"
)

type jsonSummary struct {
	Total      int     `json:"total"`
	Scored     int     `json:"scored"`
	Passed     int     `json:"passed"`
	Failed     int     `json:"failed"`
	Warnings   int     `json:"warnings"`
	Errors     int     `json:"errors"`
	Skipped    int     `json:"skipped"`
	DurationMs float64 `json:"durationMs"`
}

// jsonEntry mirrors one result. Nil pointers are omitted rather than
// written as null.
type jsonEntry struct {
	ID              string  `json:"id"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	RFCReference    *string `json:"rfcReference,omitempty"`
	Scored          bool    `json:"scored"`
	RFCLevel        string  `json:"rfcLevel"`
	Expected        string  `json:"expected"`
	Verdict         string  `json:"verdict"`
	StatusCode      *int    `json:"statusCode,omitempty"`
	ConnectionState string  `json:"connectionState"`
	Error           *string `json:"error,omitempty"`
	DurationMs      float64 `json:"durationMs"`
	RawRequest      *string `json:"rawRequest,omitempty"`
	RawResponse     *string `json:"rawResponse,omitempty"`
	BehavioralNote  *string `json:"behavioralNote,omitempty"`
	DoubleFlush     bool    `json:"doubleFlush,omitempty"`
}

type jsonReport struct {
	Target  string      `json:"target"`
	Summary jsonSummary `json:"summary"`
	Results []jsonEntry `json:"results"`
}

// JSONWriter collects whole reports and writes them in WriteFooter: one
// object for a single target, an array for several. Skipped tests are
// included so the summary and the results agree.
type JSONWriter struct {
	w       io.Writer
	closer  io.Closer
	reports []jsonReport
}

// NewJSONWriter creates a JSON output writer.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{w: w, closer: closer}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(*testcase.Result) error { return nil }

func (j *JSONWriter) WriteReport(report *testcase.Report) error {
	out := jsonReport{
		Target: report.Target.String(),
		Summary: jsonSummary{
			Total:      len(report.Results),
			Scored:     report.ScoredCount(),
			Passed:     report.PassCount(),
			Failed:     report.FailCount(),
			Warnings:   report.WarnCount(),
			Errors:     report.ErrorCount(),
			Skipped:    report.SkipCount(),
			DurationMs: durationMs(report.Duration),
		},
		Results: make([]jsonEntry, 0, len(report.Results)),
	}
	for i := range report.Results {
		out.Results = append(out.Results, newJSONEntry(&report.Results[i]))
	}
	j.reports = append(j.reports, out)
	return nil
}

func newJSONEntry(r *testcase.Result) jsonEntry {
	meta := r.Meta()
	e := jsonEntry{
		ID:              meta.ID,
		Description:     meta.Description,
		Category:        string(meta.Category),
		RFCReference:    optional(meta.RFCReference),
		Scored:          meta.Scored(),
		RFCLevel:        meta.RFCLevel.String(),
		Expected:        testcase.ExpectedText(r.Case),
		Verdict:         r.Verdict.String(),
		ConnectionState: r.ConnectionState.String(),
		Error:           optional(r.ErrorMessage),
		DurationMs:      durationMs(r.Duration),
		RawRequest:      optional(r.RawRequest),
		RawResponse:     optional(r.RawResponse),
		BehavioralNote:  optional(r.BehavioralNote),
		DoubleFlush:     r.DoubleFlush,
	}
	if r.Response != nil {
		code := r.Response.StatusCode
		e.StatusCode = &code
	}
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (j *JSONWriter) WriteFooter(Stats) error {
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	if len(j.reports) == 1 {
		return enc.Encode(j.reports[0])
	}
	if j.reports == nil {
		j.reports = []jsonReport{}
	}
	return enc.Encode(j.reports)
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
