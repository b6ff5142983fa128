// Package testcase holds the probe's data model: targets, definitions,
// results and verdicts. Definitions are plain structs of function fields,
// built once at startup and never mutated.
package testcase

import (
	"time"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/transport"
)

// Meta is the descriptive part shared by every definition.
type Meta struct {
	// ID is globally unique and stable; reports and docs join on it.
	ID           string
	Description  string
	Category     Category
	RFCReference string
	RFCLevel     RFCLevel
	// Unscored excludes the result from Pass/Fail/Warn totals.
	Unscored bool
}

// Metadata returns m. Both definition kinds embed Meta, so this is how the
// runner reads metadata without a type switch.
func (m Meta) Metadata() Meta { return m }

// Scored reports whether the test counts towards the score.
func (m Meta) Scored() bool { return !m.Unscored }

// Case is either a *TestCase or a *SequenceTestCase.
type Case interface {
	Metadata() Meta
}

// ExpectedText is the expectation column shown in reports.
func ExpectedText(c Case) string {
	switch tc := c.(type) {
	case *TestCase:
		return tc.Expected.Describe()
	case *SequenceTestCase:
		return tc.Expected
	}
	return ""
}

// TestCase is a single request/response probe over a fresh connection.
type TestCase struct {
	Meta

	// Payload must be deterministic for a given target.
	Payload  func(Target) []byte
	Expected Expectation
	// Analyze produces an optional diagnostic note. It never changes the
	// verdict.
	Analyze func(*response.Response) string

	// RequiresConnectionReuse sends FollowUp on the same connection when
	// it is still open after the primary response.
	RequiresConnectionReuse bool
	FollowUp                func(Target) []byte
}

// SequenceTestCase is a scripted conversation over one retained connection.
type SequenceTestCase struct {
	Meta

	// Expected describes the passing outcome for reports.
	Expected string
	Steps    []Step
	// Validate must cope with steps that never executed.
	Validate func([]StepResult) Verdict
	Analyze  func([]StepResult) string
}

// Step is one request of a sequence. Exactly one of Payload, Dynamic or
// Parts is set; Parts wins, then Dynamic, then Payload.
type Step struct {
	Label   string
	Payload func(Target) []byte
	// Dynamic receives the results of every prior step. It is only called
	// when all of them executed.
	Dynamic func(Target, []StepResult) []byte
	// Parts splits the request into separately written pieces.
	Parts func(Target) []SendPart
}

// SendPart is one write of a multi-part step, optionally followed by a
// pause and a liveness check.
type SendPart struct {
	Label      string
	Data       []byte
	DelayAfter time.Duration
}

// StepResult records one step of a sequence.
type StepResult struct {
	Label           string
	Executed        bool
	Response        *response.Response
	ConnectionState transport.ConnectionState
	RawRequest      string
}

// Header is a convenience for dynamic steps and validators: the named header
// of the step's response, if both exist.
func (s StepResult) Header(name string) (string, bool) {
	if s.Response == nil {
		return "", false
	}
	return s.Response.Headers.Get(name)
}

// Status is the response status code, or 0 without a response.
func (s StepResult) Status() int {
	if s.Response == nil {
		return 0
	}
	return s.Response.StatusCode
}
