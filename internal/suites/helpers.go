package suites

import (
	"strconv"
	"strings"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

// req renders a raw request template for a target. {host} becomes the Host
// header value (port omitted for 80) and {hostname} the bare host. The
// template is sent byte for byte, so control and non-ASCII bytes can be
// written as \x escapes.
func req(tmpl string) func(testcase.Target) []byte {
	return func(t testcase.Target) []byte {
		return render(tmpl, t)
	}
}

func render(tmpl string, t testcase.Target) []byte {
	r := strings.NewReplacer("{host}", t.HostHeader(), "{hostname}", t.Host)
	return []byte(r.Replace(tmpl))
}

// plainGet is the well-formed request used for follow-ups and first steps.
const plainGet = "GET / HTTP/1.1\r\nHost: {host}\r\n\r\n"

// keepAliveGet opens a conversation that later steps build on.
const keepAliveGet = "GET / HTTP/1.1\r\nHost: {host}\r\nConnection: keep-alive\r\n\r\n"

// closedElse is the verdict when nothing parseable came back: a server that
// closed the connection rejected the request; anything else is a failure.
func closedElse(state transport.ConnectionState) testcase.Verdict {
	if state == transport.ClosedByServer {
		return testcase.Pass
	}
	return testcase.Fail
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

func hasCode(code int, codes []int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// oneOf passes any of codes, or a close.
func oneOf(codes ...int) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		if hasCode(resp.StatusCode, codes) {
			return testcase.Pass
		}
		return testcase.Fail
	}
}

// oneOfElseWarn passes codes and downgrades everything else to a warning.
// It suits requests the RFC permits but which a strict server may refuse.
func oneOfElseWarn(codes ...int) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		if hasCode(resp.StatusCode, codes) {
			return testcase.Pass
		}
		return testcase.Warn
	}
}

// rejectElseWarn passes 400 and warns on any other answer.
var rejectElseWarn = oneOfElseWarn(400)

// rejectElseWarn2xx passes 400, warns on 2xx and fails anything else.
func rejectElseWarn2xx(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedElse(state)
	}
	switch {
	case resp.StatusCode == 400:
		return testcase.Pass
	case is2xx(resp.StatusCode):
		return testcase.Warn
	}
	return testcase.Fail
}

// noUpgrade fails only a protocol switch.
func noUpgrade(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedElse(state)
	}
	if resp.StatusCode == 101 {
		return testcase.Fail
	}
	return testcase.Pass
}

// silentOr passes a timeout or close regardless of what was read, plus any
// of codes.
func silentOr(codes ...int) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if state == transport.TimedOut || state == transport.ClosedByServer {
			return testcase.Pass
		}
		if resp != nil && hasCode(resp.StatusCode, codes) {
			return testcase.Pass
		}
		return testcase.Fail
	}
}

// desyncSafe is the pipeline probe evaluator: only a 400 or a close proves
// the server refused to pick a framing.
func desyncSafe(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp != nil && resp.StatusCode == 400 {
		return testcase.Pass
	}
	if state == transport.ClosedByServer {
		return testcase.Pass
	}
	return testcase.Fail
}

// custom wraps an evaluator with a report description.
func custom(desc string, eval testcase.Evaluator) testcase.Expectation {
	return testcase.Expectation{Description: desc, Custom: eval}
}

func unexpected(code int) string {
	return "Unexpected: " + strconv.Itoa(code)
}

// echoHeader is one "Name: value" line of an /echo response body. Names are
// kept verbatim, including any whitespace before the colon.
type echoHeader struct {
	name   string
	values []string
}

// parseEchoHeaders reads the header lines an echo endpoint reflects, in
// first-seen order.
func parseEchoHeaders(body string) []echoHeader {
	var out []echoHeader
	index := make(map[string]int)
	for _, line := range strings.Split(body, "\n") {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := line[:colon]
		value := strings.TrimRight(strings.TrimLeft(line[colon+1:], " \t"), "\r")
		if i, ok := index[name]; ok {
			out[i].values = append(out[i].values, value)
			continue
		}
		index[name] = len(out)
		out = append(out, echoHeader{name: name, values: []string{value}})
	}
	return out
}

func (h echoHeader) carries(value string) bool {
	for _, v := range h.values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// looksLikeEcho reports whether body could be a header echo at all.
func looksLikeEcho(body string) bool {
	return strings.TrimSpace(body) != "" && strings.Contains(body, ":")
}

func stepOK(s testcase.StepResult) bool {
	return s.Executed && s.Response != nil
}

// echoBody is the response body with chunked framing removed when the
// server declared it, so echoed lines parse the same either way.
func echoBody(resp *response.Response) string {
	if te, ok := resp.Headers.Get("Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		if decoded, ok := response.DecodeChunked(resp.Body); ok {
			return decoded
		}
	}
	return resp.Body
}
