package suites

import (
	"strings"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

const normExpected = "Reject/drop (pass), normalize (fail), preserve (warn)"

// NormalizationCases sends a malformed twin of a framing header to an echo
// endpoint and reads back which name the server passed on. A server that
// maps the malformed name onto the real one lets a front end and back end
// disagree about framing.
func NormalizationCases() []testcase.Case {
	return suite(testcase.Normalization,
		normalization("NORM-UNDERSCORE-CL", "",
			"Underscore in Content-Length name; checks whether Content_Length becomes Content-Length",
			"POST /echo HTTP/1.1\r\nHost: {host}\r\nContent-Length: 11\r\nContent_Length: 99\r\n\r\nhello world",
			"Content-Length", "Content_Length", "99", testcase.NotApplicable),
		normalization("NORM-SP-BEFORE-COLON-CL", "RFC 9112 §5",
			"Space before colon in Content-Length; checks whether the server strips it",
			"POST /echo HTTP/1.1\r\nHost: {host}\r\nContent-Length: 11\r\nContent-Length : 5\r\n\r\nhello world",
			"Content-Length", "Content-Length ", "5", testcase.Must),
		normalization("NORM-TAB-IN-NAME", "",
			"Tab in header name; checks whether Content\\tLength becomes Content-Length",
			"POST /echo HTTP/1.1\r\nHost: {host}\r\nContent-Length: 11\r\nContent\tLength: 99\r\n\r\nhello world",
			"Content-Length", "Content\tLength", "99", testcase.Must),
		&testcase.TestCase{
			Meta: testcase.Meta{
				ID:          "NORM-CASE-TE",
				Description: "All-uppercase TRANSFER-ENCODING; checks whether the server normalizes name casing",
				RFCLevel:    testcase.NotApplicable,
				Unscored:    true,
			},
			Payload: req("POST /echo HTTP/1.1\r\nHost: {host}\r\nTRANSFER-ENCODING: chunked\r\n\r\nB\r\nhello world\r\n0\r\n\r\n"),
			Expected: custom("Reject/drop (pass), normalize casing (fail), preserve (warn)",
				caseValidator("Transfer-Encoding", "TRANSFER-ENCODING", "chunked")),
			Analyze: caseAnalyzer("Transfer-Encoding", "TRANSFER-ENCODING", "chunked"),
		},
		normalization("NORM-UNDERSCORE-TE", "",
			"Underscore in Transfer-Encoding name; checks whether Transfer_Encoding becomes Transfer-Encoding",
			"POST /echo HTTP/1.1\r\nHost: {host}\r\nTransfer_Encoding: chunked\r\n\r\nB\r\nhello world\r\n0\r\n\r\n",
			"Transfer-Encoding", "Transfer_Encoding", "chunked", testcase.NotApplicable),
	)
}

func normalization(id, ref, desc, tmpl, standard, malformed, probe string, level testcase.RFCLevel) *testcase.TestCase {
	tc := single(id, ref, desc, tmpl, custom(normExpected, normValidator(standard, malformed, probe)))
	tc.RFCLevel = level
	tc.Analyze = normAnalyzer(standard, malformed, probe)
	return tc
}

type echoOutcome int

const (
	echoDropped echoOutcome = iota
	echoNormalized
	echoPreserved
)

// checkEcho looks for the probe value in the echoed headers. It is
// normalized when it comes back under the standard name (any casing, as
// some frameworks lowercase), preserved when under the malformed name.
func checkEcho(body, standard, malformed, probe string) (echoOutcome, string) {
	if !looksLikeEcho(body) {
		return echoDropped, ""
	}
	headers := parseEchoHeaders(body)
	for _, h := range headers {
		if !h.carries(probe) {
			continue
		}
		if h.name == standard && h.name != malformed {
			return echoNormalized, h.name
		}
		if strings.EqualFold(h.name, standard) && !strings.EqualFold(h.name, malformed) {
			return echoNormalized, h.name
		}
	}
	for _, h := range headers {
		if h.carries(probe) && strings.EqualFold(h.name, malformed) {
			return echoPreserved, h.name
		}
	}
	return echoDropped, ""
}

func normValidator(standard, malformed, probe string) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		if resp.StatusCode >= 400 {
			return testcase.Pass
		}
		if !is2xx(resp.StatusCode) {
			return testcase.Fail
		}
		switch outcome, _ := checkEcho(echoBody(resp), standard, malformed, probe); outcome {
		case echoNormalized:
			return testcase.Fail
		case echoPreserved:
			return testcase.Warn
		}
		return testcase.Pass
	}
}

func normAnalyzer(standard, malformed, probe string) func(*response.Response) string {
	return func(resp *response.Response) string {
		if resp == nil || !is2xx(resp.StatusCode) {
			return ""
		}
		if !looksLikeEcho(echoBody(resp)) {
			return "Static response"
		}
		switch outcome, name := checkEcho(echoBody(resp), standard, malformed, probe); outcome {
		case echoNormalized:
			return "Normalized: " + malformed + " → " + name
		case echoPreserved:
			return "Preserved: " + name
		}
		return "Dropped"
	}
}

// checkCase distinguishes names that differ only in casing, so matching is
// exact for the original and case-insensitive for the standard form.
func checkCase(body, standard, original, probe string) (echoOutcome, string) {
	for _, h := range parseEchoHeaders(body) {
		if !h.carries(probe) {
			continue
		}
		if h.name == original {
			return echoPreserved, h.name
		}
		if strings.EqualFold(h.name, standard) {
			return echoNormalized, h.name
		}
	}
	return echoDropped, ""
}

func caseValidator(standard, original, probe string) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		if resp.StatusCode >= 400 {
			return testcase.Pass
		}
		if !is2xx(resp.StatusCode) {
			return testcase.Fail
		}
		if !looksLikeEcho(echoBody(resp)) {
			return testcase.Pass
		}
		switch outcome, _ := checkCase(echoBody(resp), standard, original, probe); outcome {
		case echoPreserved:
			return testcase.Warn
		case echoNormalized:
			return testcase.Fail
		}
		return testcase.Pass
	}
}

func caseAnalyzer(standard, original, probe string) func(*response.Response) string {
	return func(resp *response.Response) string {
		if resp == nil || !is2xx(resp.StatusCode) {
			return ""
		}
		if !looksLikeEcho(echoBody(resp)) {
			return "Static response"
		}
		switch outcome, name := checkCase(echoBody(resp), standard, original, probe); outcome {
		case echoPreserved:
			return "Preserved: " + name
		case echoNormalized:
			return "Normalized: " + original + " → " + name
		}
		return "Dropped"
	}
}
