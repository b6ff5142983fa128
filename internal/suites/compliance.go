package suites

import (
	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

const wsKey = "Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n"

var (
	reject    = testcase.ExpectRejection()
	only400   = testcase.ExpectStatus(testcase.Exact(400))
	accept2xx = testcase.ExpectStatus(testcase.Range2xx())
)

// accept2xxOrClose passes success or a close for requests that carry no
// body the server needs to answer.
var accept2xxOrClose = testcase.Expectation{
	Status:               []testcase.StatusRange{testcase.Range2xx()},
	AllowConnectionClose: true,
}

// ComplianceCases checks request-line, header and framing grammar.
func ComplianceCases() []testcase.Case {
	return suite(testcase.Compliance,
		single("COMP-BASELINE", "",
			"Valid GET request confirms the server is reachable",
			plainGet, accept2xx),

		single("RFC9112-2.2-BARE-LF-REQUEST-LINE", "RFC 9112 §2.2",
			"Bare LF in request line must be rejected",
			"GET / HTTP/1.1\nHost: {host}\r\n\r\n", reject),
		single("RFC9112-2.2-BARE-LF-HEADER", "RFC 9112 §2.2",
			"Bare LF in header must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\nX-Test: value\r\n\r\n", reject),
		single("RFC9112-5.1-OBS-FOLD", "RFC 9112 §5.1",
			"Obs-fold (line folding) in headers should be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test: value\r\n continued\r\n\r\n", only400),
		single("RFC9110-5.6.2-SP-BEFORE-COLON", "RFC 9112 §5",
			"Whitespace between header name and colon must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test : value\r\n\r\n", only400),
		single("RFC9112-3-MULTI-SP-REQUEST-LINE", "RFC 9112 §3",
			"Multiple spaces between request-line components should be rejected",
			"GET  / HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("RFC9112-7.1-MISSING-HOST", "RFC 9112 §3.2",
			"Request without Host header must be rejected with 400",
			"GET / HTTP/1.1\r\n\r\n", only400),
		single("RFC9112-2.3-INVALID-VERSION", "RFC 9112 §2.3",
			"Invalid HTTP version must be rejected",
			"GET / HTTP/9.9\r\nHost: {host}\r\n\r\n", custom("400 or 505", oneOf(400, 505))),
		single("RFC9112-5-EMPTY-HEADER-NAME", "RFC 9112 §5",
			"Empty header name (leading colon) must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\n: empty-name\r\n\r\n", reject),
		single("RFC9112-3-CR-ONLY-LINE-ENDING", "RFC 9112 §2.2",
			"CR without LF as line ending must be rejected",
			"GET / HTTP/1.1\rHost: {host}\r\n\r\n", only400),
		single("RFC9112-3-MISSING-TARGET", "RFC 9112 §3",
			"Request line with no target must be rejected",
			"GET HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("RFC9112-3.2-FRAGMENT-IN-TARGET", "RFC 9112 §3.2",
			"Fragment (#) in request-target must be rejected",
			"GET /path#frag HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("RFC9112-2.3-HTTP09-REQUEST", "RFC 9112 §2.3",
			"HTTP/0.9 request (no version) must be rejected",
			"GET /\r\n", custom("400, close or timeout", silentOr(400))),
		single("RFC9112-5-INVALID-HEADER-NAME", "RFC 9112 §5",
			"Header name with invalid characters (brackets) must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nBad[Name: value\r\n\r\n", reject),
		single("RFC9112-5-HEADER-NO-COLON", "RFC 9112 §5",
			"Header line without colon must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nNoColonHere\r\n\r\n", reject),
		single("RFC9110-5.4-DUPLICATE-HOST", "RFC 9112 §3.2",
			"Duplicate Host headers with different values must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nHost: other.example.com\r\n\r\n", only400),
		single("RFC9112-6.1-CL-NON-NUMERIC", "RFC 9112 §6.1",
			"Non-numeric Content-Length must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: abc\r\n\r\n", reject),
		single("RFC9112-6.1-CL-PLUS-SIGN", "RFC 9112 §6.1",
			"Content-Length with plus sign must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: +5\r\n\r\nhello", reject),

		single("COMP-WHITESPACE-BEFORE-HEADERS", "RFC 9112 §2.2",
			"Whitespace before first header line must be rejected",
			"GET / HTTP/1.1\r\n \r\nHost: {host}\r\n\r\n", reject),
		single("COMP-DUPLICATE-HOST-SAME", "RFC 9112 §3.2",
			"Duplicate Host headers with identical values must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nHost: {host}\r\n\r\n", only400),
		single("COMP-HOST-WITH-USERINFO", "RFC 9112 §3.2",
			"Host header with userinfo (user@host) must be rejected",
			"GET / HTTP/1.1\r\nHost: user@{host}\r\n\r\n", reject),
		single("COMP-HOST-WITH-PATH", "RFC 9112 §3.2",
			"Host header with path component must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}/path\r\n\r\n", reject),
		single("COMP-ASTERISK-WITH-GET", "RFC 9112 §3.2.4",
			"Asterisk-form (*) request-target with GET must be rejected",
			"GET * HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("COMP-OPTIONS-STAR", "RFC 9112 §3.2.4",
			"OPTIONS * is the only valid asterisk-form request",
			"OPTIONS * HTTP/1.1\r\nHost: {host}\r\n\r\n", accept2xx),
		single("COMP-UNKNOWN-TE-501", "RFC 9112 §6.1",
			"Unknown Transfer-Encoding without CL should be rejected with 501",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: gzip\r\n\r\n", custom("400 or 501", oneOf(400, 501))),
		single("COMP-LEADING-CRLF", "RFC 9112 §2.2",
			"Leading CRLF before request-line; server may ignore per RFC",
			"\r\n\r\nGET / HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("400 or 2xx", rejectElseWarn)),
		single("COMP-ABSOLUTE-FORM", "RFC 9112 §3.2.2",
			"Absolute-form request-target; server should accept per RFC",
			"GET http://{host}/ HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("400 or 2xx", rejectElseWarn)),
		single("COMP-METHOD-CASE", "RFC 9110 §9.1",
			"Lowercase method 'get'; methods are case-sensitive",
			"get / HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("400, 405 or 501", oneOfElseWarn(400, 405, 501))),
		single("COMP-CONNECT-EMPTY-PORT", "RFC 9112 §3.2.3",
			"CONNECT with empty port must be rejected",
			"CONNECT {hostname}: HTTP/1.1\r\nHost: {hostname}:\r\n\r\n", reject),

		single("COMP-POST-CL-BODY", "RFC 9112 §6.2",
			"POST with Content-Length and matching body must be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\n\r\nhello", accept2xx),
		single("COMP-POST-CL-ZERO", "RFC 9112 §6.2",
			"POST with Content-Length: 0 and no body must be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 0\r\n\r\n", accept2xxOrClose),
		single("COMP-POST-NO-CL-NO-TE", "RFC 9112 §6.3",
			"POST with neither Content-Length nor Transfer-Encoding has an implicit zero-length body",
			"POST / HTTP/1.1\r\nHost: {host}\r\n\r\n", accept2xxOrClose),
		single("COMP-POST-CL-UNDERSEND", "RFC 9112 §6.2",
			"POST with Content-Length: 10 but only 5 bytes sent",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 10\r\n\r\nhello", custom("400, close or timeout", silentOr(400))),
		single("COMP-CHUNKED-BODY", "RFC 9112 §7.1",
			"Valid single-chunk POST must be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n", accept2xx),
		single("COMP-CHUNKED-MULTI", "RFC 9112 §7.1",
			"Valid multi-chunk POST must be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n", accept2xx),
		single("COMP-CHUNKED-EMPTY", "RFC 9112 §7.1",
			"Zero-length chunked body (just the terminator) must be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n", accept2xxOrClose),
		single("COMP-CHUNKED-NO-FINAL", "RFC 9112 §7.1",
			"Chunked body without zero terminator is an incomplete transfer",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n", custom("400, close or timeout", silentOr(400))),

		single("COMP-UPGRADE-POST", "RFC 6455 §4.1",
			"WebSocket upgrade via POST must not be accepted",
			"POST / HTTP/1.1\r\nHost: {host}\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n"+wsKey+"Sec-WebSocket-Version: 13\r\n\r\n",
			custom("not 101", noUpgrade)),
		single("COMP-UPGRADE-MISSING-CONN", "RFC 9110 §7.8",
			"Upgrade header without Connection: Upgrade must not switch protocols",
			"GET / HTTP/1.1\r\nHost: {host}\r\nUpgrade: websocket\r\n"+wsKey+"Sec-WebSocket-Version: 13\r\n\r\n",
			custom("not 101", noUpgrade)),
		single("COMP-UPGRADE-UNKNOWN", "RFC 9110 §7.8",
			"Upgrade to unknown protocol must not return 101",
			"GET / HTTP/1.1\r\nHost: {host}\r\nConnection: Upgrade\r\nUpgrade: totally-made-up/1.0\r\n\r\n",
			custom("not 101", noUpgrade)),
		single("COMP-UPGRADE-INVALID-VER", "RFC 6455 §4.4",
			"WebSocket upgrade with unsupported version should return 426",
			"GET / HTTP/1.1\r\nHost: {host}\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n"+wsKey+"Sec-WebSocket-Version: 99\r\n\r\n",
			custom("426", upgradeVersion)),

		single("COMP-METHOD-CONNECT", "RFC 9110 §9.3.6",
			"CONNECT to an origin server must be rejected",
			"CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n", custom("400, 405 or 501", oneOf(400, 405, 501))),
		single("COMP-METHOD-CONNECT-NO-PORT", "RFC 9112 §3.2.3",
			"CONNECT without port in authority-form must be rejected",
			"CONNECT example.com HTTP/1.1\r\nHost: example.com\r\n\r\n", reject),
		single("COMP-EXPECT-UNKNOWN", "RFC 9110 §10.1.1",
			"Unknown Expect value should be rejected with 417",
			"GET / HTTP/1.1\r\nHost: {host}\r\nExpect: 200-ok\r\n\r\n", custom("417", expectUnknown)),
		single("COMP-GET-WITH-CL-BODY", "RFC 9110 §9.3.1",
			"GET with Content-Length and body is semantically unusual",
			"GET / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("COMP-CHUNKED-EXTENSION", "RFC 9112 §7.1.1",
			"Chunk extension is valid; server should accept and may reject",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;ext=value\r\nhello\r\n0\r\n\r\n", custom("2xx", chunkExtension)),
		single("COMP-METHOD-TRACE", "RFC 9110 §9.3.8",
			"TRACE request should be disabled in production",
			"TRACE / HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("405 or 501", oneOfElseWarn(405, 501))),
	)
}

func upgradeVersion(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedElse(state)
	}
	switch resp.StatusCode {
	case 101:
		return testcase.Fail
	case 426:
		return testcase.Pass
	}
	return testcase.Warn
}

func expectUnknown(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedElse(state)
	}
	switch {
	case resp.StatusCode == 417:
		return testcase.Pass
	case is2xx(resp.StatusCode):
		return testcase.Warn
	}
	return testcase.Fail
}

func chunkExtension(resp *response.Response, state transport.ConnectionState) testcase.Verdict {
	if resp == nil {
		return closedElse(state)
	}
	switch {
	case is2xx(resp.StatusCode):
		return testcase.Pass
	case resp.StatusCode == 400:
		return testcase.Warn
	}
	return testcase.Fail
}
