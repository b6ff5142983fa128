package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// CSVWriter writes one row per executed result.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV output writer.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"target", "id", "category", "rfc_level", "scored", "verdict", "status", "connection_state", "duration_ms", "error"})
}

func (c *CSVWriter) WriteResult(result *testcase.Result) error {
	if result.Verdict == testcase.Skip {
		return nil
	}
	meta := result.Meta()
	status := ""
	if result.Response != nil {
		status = strconv.Itoa(result.Response.StatusCode)
	}
	return c.w.Write([]string{
		result.Target.String(),
		meta.ID,
		string(meta.Category),
		meta.RFCLevel.String(),
		strconv.FormatBool(meta.Scored()),
		result.Verdict.String(),
		status,
		result.ConnectionState.String(),
		strconv.FormatInt(result.Duration.Milliseconds(), 10),
		result.ErrorMessage,
	})
}

func (c *CSVWriter) WriteReport(*testcase.Report) error { return nil }

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
