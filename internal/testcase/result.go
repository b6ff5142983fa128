package testcase

import (
	"time"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/transport"
)

// Result is the outcome of one definition against one target. Skipped
// definitions produce a Result too, with Verdict Skip and nothing else set.
type Result struct {
	Case            Case
	Target          Target
	Verdict         Verdict
	Response        *response.Response
	ConnectionState transport.ConnectionState
	ErrorMessage    string
	BehavioralNote  string
	RawRequest      string

	// RawResponse is the display capture; for sequences it narrates every
	// step.
	RawResponse string
	Duration    time.Duration
	// DoubleFlush reports that the drain phase caught bytes after the
	// headers had arrived.
	DoubleFlush bool
	// FollowUpResponse is the decoded reply to a connection-reuse probe.
	FollowUpResponse *response.Response
	// Steps is set for sequence tests.
	Steps []StepResult
}

func (r Result) Meta() Meta {
	if r.Case == nil {
		return Meta{}
	}
	return r.Case.Metadata()
}

// Status is the response status code, or 0 without a response.
func (r Result) Status() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Report is the ordered set of results for one target.
type Report struct {
	Target   Target
	Results  []Result
	Duration time.Duration
}

func (r *Report) countScored(v Verdict) int {
	n := 0
	for _, res := range r.Results {
		if res.Verdict == v && res.Meta().Scored() {
			n++
		}
	}
	return n
}

func (r *Report) count(v Verdict) int {
	n := 0
	for _, res := range r.Results {
		if res.Verdict == v {
			n++
		}
	}
	return n
}

// PassCount, FailCount and WarnCount only count scored tests.
func (r *Report) PassCount() int { return r.countScored(Pass) }
func (r *Report) FailCount() int { return r.countScored(Fail) }
func (r *Report) WarnCount() int { return r.countScored(Warn) }

func (r *Report) ScoredCount() int {
	return r.PassCount() + r.FailCount() + r.WarnCount()
}

func (r *Report) SkipCount() int  { return r.count(Skip) }
func (r *Report) ErrorCount() int { return r.count(Error) }

// UnscoredCount counts unscored tests that actually ran.
func (r *Report) UnscoredCount() int {
	n := 0
	for _, res := range r.Results {
		if !res.Meta().Scored() && res.Verdict != Skip {
			n++
		}
	}
	return n
}
