package suites

import (
	"fmt"
	"strings"

	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

// CookieCases checks Cookie header handling. Echo cases target /echo, which
// every reference server exposes; parsed cases target /cookie, which only
// servers with a framework cookie parser expose, so a 404 there is a
// warning rather than a failure. None are scored.
func CookieCases() []testcase.Case {
	pairs := make([]string, 1000)
	for i := range pairs {
		pairs[i] = fmt.Sprintf("k%d=v%d", i, i)
	}

	return suite(testcase.Cookies,
		cookie("COOK-ECHO",
			"Basic Cookie header echoed back by the /echo endpoint",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: foo=bar\r\n\r\n",
			"2xx with Cookie in body", cookieEcho, func(resp *response.Response) string {
				body := echoBody(resp)
				switch {
				case strings.Contains(body, "foo=bar"):
					return "Cookie echoed: foo=bar"
				case containsFold(body, "Cookie:"):
					return "Cookie header present but value differs"
				}
				return "Cookie header missing from echo"
			}),
		cookie("COOK-OVERSIZED",
			"64KB Cookie header tests header size limits on cookie data",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: big="+strings.Repeat("A", 65_536)+"\r\n\r\n",
			"400/431 (rejected) or 2xx (survived)", survived(400, 431), func(resp *response.Response) string {
				switch {
				case resp.StatusCode == 400 || resp.StatusCode == 431:
					return "Rejected oversized cookie"
				case is2xx(resp.StatusCode):
					return "Accepted 64KB cookie"
				}
				return unexpected(resp.StatusCode)
			}),
		cookie("COOK-EMPTY",
			"Empty Cookie header value tests parser resilience",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: \r\n\r\n",
			"2xx or 400", survived(400), acceptedOrRejected("empty cookie")),
		cookie("COOK-NUL",
			"NUL byte in cookie value is dangerous if preserved by the parser",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: foo=\x00bar\r\n\r\n",
			"400 (rejected) or 2xx without NUL", notReflected("\x00"), reflectionNote("NUL in cookie", "NUL byte", "\x00")),
		cookie("COOK-CONTROL-CHARS",
			"Control characters (0x01-0x03) in cookie value are dangerous if preserved",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: foo=\x01\x02\x03\r\n\r\n",
			"400 (rejected) or 2xx without control chars", notReflected("\x01\x02\x03"), reflectionNote("control chars in cookie", "Control chars", "\x01\x02\x03")),
		cookie("COOK-MANY-PAIRS",
			"1000 cookie key=value pairs test parser performance limits",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: "+strings.Join(pairs, "; ")+"\r\n\r\n",
			"2xx or 400/431", survived(400, 431), acceptedOrRejected("1000 cookie pairs")),
		cookie("COOK-MALFORMED",
			"Completely malformed cookie value (===;;;) tests parser crash resilience",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: ===;;;\r\n\r\n",
			"2xx or 400", survived(400), acceptedOrRejected("malformed cookie")),
		cookie("COOK-MULTI-HEADER",
			"Two separate Cookie headers should be folded (RFC 6265 §5.4)",
			"GET /echo HTTP/1.1\r\nHost: {host}\r\nCookie: a=1\r\nCookie: b=2\r\n\r\n",
			"2xx with both cookies", multiCookie, func(resp *response.Response) string {
				if resp.StatusCode == 400 {
					return "Rejected multiple Cookie headers"
				}
				if !is2xx(resp.StatusCode) {
					return unexpected(resp.StatusCode)
				}
				body := echoBody(resp)
				hasA, hasB := strings.Contains(body, "a=1"), strings.Contains(body, "b=2")
				switch {
				case hasA && hasB:
					return "Both cookies echoed"
				case hasA || hasB:
					return "Only one cookie echoed"
				}
				return "Neither cookie echoed"
			}),

		cookie("COOK-PARSED-BASIC",
			"Basic cookie parsed correctly by the framework",
			"GET /cookie HTTP/1.1\r\nHost: {host}\r\nCookie: foo=bar\r\n\r\n",
			"2xx with foo=bar in body", parsedValidator("foo=bar"), parsedAnalyzer("foo=bar")),
		cookie("COOK-PARSED-MULTI",
			"Multiple cookies parsed correctly by the framework",
			"GET /cookie HTTP/1.1\r\nHost: {host}\r\nCookie: a=1; b=2; c=3\r\n\r\n",
			"2xx with a=1, b=2, c=3 in body", parsedValidator("a=1", "b=2", "c=3"), parsedAnalyzer("a=1", "b=2", "c=3")),
		cookie("COOK-PARSED-EMPTY-VAL",
			"Cookie with empty value parsed without crash",
			"GET /cookie HTTP/1.1\r\nHost: {host}\r\nCookie: foo=\r\n\r\n",
			"2xx (no crash)", parsedSurvived, func(resp *response.Response) string {
				switch {
				case resp.StatusCode == 404:
					return "Endpoint not available"
				case is2xx(resp.StatusCode):
					if strings.Contains(echoBody(resp), "foo=") {
						return "Parsed foo= (empty value)"
					}
					return "Survived (cookie may have been dropped)"
				case resp.StatusCode == 400:
					return "Rejected empty cookie value"
				}
				return unexpected(resp.StatusCode)
			}),
		cookie("COOK-PARSED-SPECIAL",
			"Cookies with spaces and = in values test framework parser edge cases",
			"GET /cookie HTTP/1.1\r\nHost: {host}\r\nCookie: a=hello world; b=x=y\r\n\r\n",
			"2xx (no crash)", parsedSurvived, func(resp *response.Response) string {
				switch {
				case resp.StatusCode == 404:
					return "Endpoint not available"
				case is2xx(resp.StatusCode):
					body := echoBody(resp)
					hasA, hasB := strings.Contains(body, "a="), strings.Contains(body, "b=")
					switch {
					case hasA && hasB:
						return "Both cookies parsed"
					case hasA || hasB:
						return "Partially parsed"
					}
					return "Survived but no cookies parsed"
				case resp.StatusCode == 400:
					return "Rejected special characters in cookie"
				}
				return unexpected(resp.StatusCode)
			}),
	)
}

// cookie builds an unscored cookie definition. note is only called with a
// response.
func cookie(id, desc, tmpl, expected string, eval testcase.Evaluator, note func(*response.Response) string) *testcase.TestCase {
	tc := single(id, "", desc, tmpl, custom(expected, eval))
	tc.RFCLevel = testcase.NotApplicable
	tc.Unscored = true
	tc.Analyze = func(resp *response.Response) string {
		if resp == nil {
			return ""
		}
		return note(resp)
	}
	return tc
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// closedWarn is the no-response verdict for cases that expect content: a
// close is tolerated but noted.
func closedWarn(state transport.ConnectionState) testcase.Verdict {
	if state == transport.ClosedByServer {
		return testcase.Warn
	}
	return testcase.Fail
}

func cookieEcho(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedWarn(state)
	}
	if !is2xx(resp.StatusCode) {
		return testcase.Fail
	}
	if containsFold(echoBody(resp), "Cookie:") {
		return testcase.Pass
	}
	return testcase.Fail
}

// survived passes 2xx and the listed rejection codes. Anything else, a 500
// typically, means the parser fell over.
func survived(codes ...int) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		if is2xx(resp.StatusCode) || hasCode(resp.StatusCode, codes) {
			return testcase.Pass
		}
		return testcase.Fail
	}
}

func acceptedOrRejected(what string) func(*response.Response) string {
	return func(resp *response.Response) string {
		switch {
		case is2xx(resp.StatusCode):
			return "Accepted " + what
		case resp.StatusCode == 400 || resp.StatusCode == 431:
			return "Rejected " + what
		}
		return unexpected(resp.StatusCode)
	}
}

// notReflected passes a 400, or a 2xx whose body carries none of chars.
func notReflected(chars string) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedElse(state)
		}
		switch {
		case resp.StatusCode == 400:
			return testcase.Pass
		case is2xx(resp.StatusCode):
			if strings.ContainsAny(echoBody(resp), chars) {
				return testcase.Fail
			}
			return testcase.Pass
		}
		return testcase.Fail
	}
}

func reflectionNote(rejected, subject, chars string) func(*response.Response) string {
	return func(resp *response.Response) string {
		switch {
		case resp.StatusCode == 400:
			return "Rejected " + rejected
		case is2xx(resp.StatusCode):
			if strings.ContainsAny(echoBody(resp), chars) {
				return subject + " preserved (dangerous)"
			}
			return subject + " stripped or cookie dropped"
		}
		return unexpected(resp.StatusCode)
	}
}

func multiCookie(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedWarn(state)
	}
	switch {
	case is2xx(resp.StatusCode):
		body := echoBody(resp)
		if strings.Contains(body, "a=1") && strings.Contains(body, "b=2") {
			return testcase.Pass
		}
		return testcase.Warn
	case resp.StatusCode == 400:
		return testcase.Warn
	}
	return testcase.Fail
}

func parsedValidator(pairs ...string) testcase.Evaluator {
	return func(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
		if resp == nil {
			return closedWarn(state)
		}
		switch {
		case resp.StatusCode == 404:
			return testcase.Warn
		case is2xx(resp.StatusCode):
			body := echoBody(resp)
			for _, p := range pairs {
				if !strings.Contains(body, p) {
					return testcase.Fail
				}
			}
			return testcase.Pass
		case resp.StatusCode == 400:
			return testcase.Warn
		}
		return testcase.Fail
	}
}

func parsedAnalyzer(pairs ...string) func(*response.Response) string {
	return func(resp *response.Response) string {
		switch {
		case resp.StatusCode == 404:
			return "Endpoint not available"
		case is2xx(resp.StatusCode):
			body := echoBody(resp)
			found := 0
			for _, p := range pairs {
				if strings.Contains(body, p) {
					found++
				}
			}
			if found == len(pairs) {
				return fmt.Sprintf("All %d cookie(s) parsed", found)
			}
			return fmt.Sprintf("%d/%d cookie(s) found", found, len(pairs))
		case resp.StatusCode == 400:
			return "Rejected"
		}
		return unexpected(resp.StatusCode)
	}
}

func parsedSurvived(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedWarn(state)
	}
	switch {
	case resp.StatusCode == 404:
		return testcase.Warn
	case is2xx(resp.StatusCode), resp.StatusCode == 400:
		return testcase.Pass
	}
	return testcase.Fail
}
