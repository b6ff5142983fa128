package testcase

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/transport"
)

// StatusRange is an inclusive range of acceptable status codes.
type StatusRange struct {
	Min, Max int
}

// Exact accepts a single status code.
func Exact(code int) StatusRange { return StatusRange{Min: code, Max: code} }

// Between accepts lo through hi inclusive.
func Between(lo, hi int) StatusRange { return StatusRange{Min: lo, Max: hi} }

// Range2xx accepts any success status.
func Range2xx() StatusRange { return StatusRange{Min: 200, Max: 299} }

// Range4xx accepts any client error.
func Range4xx() StatusRange { return StatusRange{Min: 400, Max: 499} }

func (r StatusRange) IsZero() bool { return r.Min == 0 && r.Max == 0 }

func (r StatusRange) Contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

func (r StatusRange) String() string {
	switch {
	case r.Min == r.Max:
		return fmt.Sprintf("%d", r.Min)
	case r.Min%100 == 0 && r.Max == r.Min+99:
		return fmt.Sprintf("%dxx", r.Min/100)
	default:
		return fmt.Sprintf("%d-%d", r.Min, r.Max)
	}
}

// Evaluator maps a decoded response and the final connection state to a
// verdict. resp is nil when nothing parseable came back.
type Evaluator func(resp *response.Response, state transport.ConnectionState) Verdict

// Expectation is the declared acceptable outcome of a single-shot test.
// When Custom is set it alone decides; otherwise the status ranges and
// the Allow flags do.
type Expectation struct {
	Description string
	// Status lists acceptable ranges. Empty means any parseable response
	// passes.
	Status               []StatusRange
	AllowConnectionClose bool
	AllowTimeout         bool
	Custom               Evaluator
}

// Evaluate derives the verdict. It never returns Error or Skip itself
// unless a Custom evaluator does.
func (e Expectation) Evaluate(resp *response.Response, state transport.ConnectionState) Verdict {
	if e.Custom != nil {
		return e.Custom(resp, state)
	}
	if resp == nil {
		switch {
		case state == transport.ClosedByServer && e.AllowConnectionClose:
			return Pass
		case state == transport.TimedOut && e.AllowTimeout:
			return Pass
		default:
			return Fail
		}
	}
	if len(e.Status) == 0 {
		return Pass
	}
	for _, r := range e.Status {
		if r.Contains(resp.StatusCode) {
			return Pass
		}
	}
	return Fail
}

// Describe renders the expectation for reports, e.g. "400 or close".
func (e Expectation) Describe() string {
	if e.Description != "" {
		return e.Description
	}
	var parts []string
	for _, r := range e.Status {
		parts = append(parts, r.String())
	}
	if e.AllowConnectionClose {
		parts = append(parts, "close")
	}
	if e.AllowTimeout {
		parts = append(parts, "timeout")
	}
	if len(parts) == 0 {
		return "any response"
	}
	return strings.Join(parts, " or ")
}

// ExpectStatus is shorthand for an expectation that only checks status.
func ExpectStatus(ranges ...StatusRange) Expectation {
	return Expectation{Status: ranges}
}

// ExpectRejection accepts a 400 or the server closing the connection, the
// usual safe outcome for malformed input.
func ExpectRejection() Expectation {
	return Expectation{
		Status:               []StatusRange{Exact(400)},
		AllowConnectionClose: true,
	}
}

// ParseStatusRanges reads a comma-separated list such as "400,431" or
// "2xx,400-499".
func ParseStatusRanges(s string) ([]StatusRange, error) {
	var out []StatusRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := parseStatusRange(part)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseStatusRange(s string) (StatusRange, error) {
	lower := strings.ToLower(s)
	if len(lower) == 3 && strings.HasSuffix(lower, "xx") && lower[0] >= '1' && lower[0] <= '5' {
		base := int(lower[0]-'0') * 100
		return Between(base, base+99), nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		a, errA := parseCode(lo)
		b, errB := parseCode(hi)
		if errA != nil || errB != nil || a > b {
			return StatusRange{}, fmt.Errorf("invalid status range %q", s)
		}
		return Between(a, b), nil
	}
	code, err := parseCode(s)
	if err != nil {
		return StatusRange{}, err
	}
	return Exact(code), nil
}

func parseCode(s string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || code < 100 || code > 599 {
		return 0, fmt.Errorf("invalid status code %q", s)
	}
	return code, nil
}
