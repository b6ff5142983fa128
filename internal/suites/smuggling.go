package suites

import (
	"fmt"
	"time"

	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

// partialSendPause is how long a partial-send probe waits between writes.
// Long enough for a server that answers early to have done so.
const partialSendPause = 500 * time.Millisecond

// SmugglingCases probes framing ambiguities a front end and back end could
// resolve differently.
func SmugglingCases() []testcase.Case {
	return suite(testcase.Smuggling,
		single("SMUG-CL-TE-BOTH", "RFC 9112 §6.1",
			"Both Content-Length and Transfer-Encoding present must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 6\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n", reject),
		single("SMUG-DUPLICATE-CL", "RFC 9110 §8.6",
			"Duplicate Content-Length with different values must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\nContent-Length: 10\r\n\r\nhello", reject),
		single("SMUG-CL-LEADING-ZEROS", "RFC 9110 §8.6",
			"Content-Length with leading zeros should be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 005\r\n\r\nhello", reject),
		single("SMUG-TE-XCHUNKED", "RFC 9112 §6.1",
			"Transfer-Encoding: xchunked must not be treated as chunked",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: xchunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-TRAILING-SPACE", "RFC 9112 §6.1",
			"Transfer-Encoding: 'chunked ' (trailing space) must not be treated as chunked",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked \r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-SP-BEFORE-COLON", "RFC 9112 §5",
			"Transfer-Encoding with space before colon must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding : chunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-CL-NEGATIVE", "RFC 9110 §8.6",
			"Negative Content-Length must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: -1\r\n\r\n", reject),

		// CL says the body is "0\r\n\r" (4 bytes); chunked says it ended at
		// the zero chunk. Whichever the server picks, the follow-up shows
		// whether the leftover byte desynchronized the connection.
		pipeline("SMUG-CLTE-PIPELINE",
			"CL.TE smuggling probe; the follow-up must not receive a smuggled response",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 4\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\n"),
		pipeline("SMUG-TECL-PIPELINE",
			"TE.CL smuggling probe: TE chunked plus CL 30 with a pipelined GET",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\nContent-Length: 30\r\n\r\n0\r\n\r\n"),

		single("SMUG-CL-TRAILING-SPACE", "RFC 9110 §5.5",
			"Content-Length with trailing space; OWS trimming is valid",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5 \r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-HEADER-INJECTION", "RFC 9110 §5.5",
			"Apparent CRLF injection that is really two valid headers on the wire",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test: val\r\nInjected: yes\r\n\r\n", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-TE-DOUBLE-CHUNKED", "RFC 9112 §6.1",
			"Transfer-Encoding: chunked, chunked with CL is ambiguous",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked, chunked\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-CL-EXTRA-LEADING-SP", "RFC 9110 §5.5",
			"Content-Length with extra leading whitespace (double space OWS)",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length:  5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-TE-CASE-MISMATCH", "RFC 9112 §6.1",
			"Transfer-Encoding: Chunked (capital C) with CL; case-insensitive matching is valid",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: Chunked\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),

		single("SMUG-CL-COMMA-DIFFERENT", "RFC 9110 §8.6",
			"Content-Length with comma-separated different values must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5, 10\r\n\r\nhello", reject),
		single("SMUG-TE-NOT-FINAL-CHUNKED", "RFC 9112 §7",
			"Transfer-Encoding where chunked is not the final encoding must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked, gzip\r\n\r\n0\r\n\r\n", reject),
		single("SMUG-TE-HTTP10", "RFC 9112 §6.1",
			"Transfer-Encoding in HTTP/1.0 request must be rejected",
			"POST / HTTP/1.0\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-CHUNK-BARE-SEMICOLON", "RFC 9112 §7.1.1",
			"Chunk size with bare semicolon and no extension name must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;\r\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-BARE-CR-HEADER-VALUE", "RFC 9112 §2.2",
			"Bare CR in header value must be rejected or replaced with SP",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\nX-Test: val\rue\r\n\r\nhello", reject),
		single("SMUG-CL-OCTAL", "RFC 9110 §8.6",
			"Content-Length with octal prefix (0o5) must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 0o5\r\n\r\nhello", reject),
		single("SMUG-CHUNK-UNDERSCORE", "RFC 9112 §7.1",
			"Chunk size with underscores (1_0) must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n1_0\r\nhello world!!!!!\r\n0\r\n\r\n", reject),
		single("SMUG-TE-EMPTY-VALUE", "RFC 9112 §6.1",
			"Transfer-Encoding with empty value must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: \r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-LEADING-COMMA", "RFC 9112 §6.1",
			"Transfer-Encoding with leading comma (, chunked) must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: , chunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-DUPLICATE-HEADERS", "RFC 9112 §6.1",
			"Two Transfer-Encoding headers with CL present is ambiguous framing",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\nTransfer-Encoding: identity\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-CHUNK-HEX-PREFIX", "RFC 9112 §7.1",
			"Chunk size with 0x prefix must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n0x5\r\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-CL-HEX-PREFIX", "RFC 9110 §8.6",
			"Content-Length with hex prefix (0x5) must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 0x5\r\n\r\nhello", reject),
		single("SMUG-CL-INTERNAL-SPACE", "RFC 9110 §8.6",
			"Content-Length with internal space (1 0) must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 1 0\r\n\r\nhello12345", reject),
		single("SMUG-CHUNK-LEADING-SP", "RFC 9112 §7.1",
			"Chunk size with leading space must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n 5\r\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-CHUNK-MISSING-TRAILING-CRLF", "RFC 9112 §7.1",
			"Chunk data without trailing CRLF must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello0\r\n\r\n", reject),
		single("SMUG-CHUNK-EXT-LF", "RFC 9112 §7.1.1",
			"Bare LF in chunk extension must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-CHUNK-SPILL", "RFC 9112 §7.1",
			"Chunk declares size 5 but sends 7 bytes; oversized chunk data must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello!!\r\n0\r\n\r\n", reject),
		single("SMUG-CHUNK-LF-TERM", "RFC 9112 §7.1",
			"Bare LF as chunk data terminator must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\n0\r\n\r\n", reject),
		single("SMUG-CHUNK-EXT-CTRL", "RFC 9112 §7.1.1",
			"NUL byte in chunk extension must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;\x00ext\r\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-CHUNK-EXT-CR", "RFC 9112 §7.1.1",
			"Bare CR in chunk extension; some parsers treat a lone CR as a line ending",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;a\rX\r\nhello\r\n0\r\n\r\n", reject),
		single("SMUG-TE-VTAB", "RFC 9112 §6.1",
			"Vertical tab before 'chunked' in the TE value",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: \x0bchunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-FORMFEED", "RFC 9112 §6.1",
			"Form feed before 'chunked' in the TE value",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: \x0cchunked\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-TE-NULL", "RFC 9112 §6.1",
			"NUL byte appended to 'chunked' in the TE value (C-string truncation)",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\x00\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-CHUNK-LF-TRAILER", "RFC 9112 §7.1",
			"Bare LF in chunked trailer section termination must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\n", reject),
		single("SMUG-TE-IDENTITY", "RFC 9112 §7",
			"Transfer-Encoding: identity (deprecated) with CL must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: identity\r\nContent-Length: 5\r\n\r\nhello", reject),
		single("SMUG-CHUNK-NEGATIVE", "RFC 9112 §7.1",
			"Negative chunk size must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n-1\r\nhello\r\n0\r\n\r\n", reject),

		single("SMUG-TRANSFER_ENCODING", "RFC 9112 §6.1",
			"Transfer_Encoding (underscore) header with CL is not a valid header but some parsers accept it",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer_Encoding: chunked\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-CL-COMMA-SAME", "RFC 9110 §8.6",
			"Content-Length with comma-separated identical values; some servers merge",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5, 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-CHUNKED-WITH-PARAMS", "RFC 9112 §7",
			"Transfer-Encoding: chunked;ext=val puts parameters on chunked",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked;ext=val\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-EXPECT-100-CL", "RFC 9110 §10.1.1",
			"Expect: 100-continue with Content-Length; server should send 100 then read the body",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\nExpect: 100-continue\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-TRAILER-CL", "RFC 9110 §6.5.1",
			"Content-Length in chunked trailers is a prohibited trailer field and must be ignored",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\nContent-Length: 50\r\n\r\n", custom("400 or 2xx", rejectElseWarn2xx)),
		single("SMUG-TRAILER-TE", "RFC 9110 §6.5.1",
			"Transfer-Encoding in chunked trailers is a prohibited trailer field and must be ignored",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\nTransfer-Encoding: chunked\r\n\r\n", custom("400 or 2xx", rejectElseWarn2xx)),
		single("SMUG-TRAILER-HOST", "RFC 9110 §6.5.2",
			"Host header in chunked trailers must not be used for routing",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\nHost: evil.example.com\r\n\r\n", custom("400 or 2xx", rejectElseWarn2xx)),
		single("SMUG-TRAILER-AUTH", "RFC 9110 §6.5.1",
			"Authorization header in chunked trailers is prohibited",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\nAuthorization: Bearer evil\r\n\r\n", custom("400 or 2xx", rejectElseWarn2xx)),
		single("SMUG-HEAD-CL-BODY", "RFC 9110 §9.3.2",
			"HEAD with Content-Length and body; the body must not be left on the connection",
			"HEAD / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),
		single("SMUG-OPTIONS-CL-BODY", "RFC 9110 §9.3.7",
			"OPTIONS with Content-Length and body; server should consume or reject the body",
			"OPTIONS / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\n\r\nhello", custom("400 or 2xx", rejectElseWarn)),

		clteDesync(),
		pausedBody(),
	)
}

// pipeline builds a connection-reuse probe: the ambiguous request, then a
// plain GET on the same connection if the server kept it open.
func pipeline(id, desc, tmpl string) *testcase.TestCase {
	tc := single(id, "RFC 9112 §6.1", desc, tmpl, custom("400 or close", desyncSafe))
	tc.RequiresConnectionReuse = true
	tc.FollowUp = req(plainGet)
	return tc
}

// clteDesync leaves one byte past the zero chunk. A server that frames by
// Content-Length consumes it; one that frames by chunked leaves it to
// prefix the next request.
func clteDesync() *testcase.SequenceTestCase {
	return &testcase.SequenceTestCase{
		Meta: testcase.Meta{
			ID:           "SMUG-CLTE-DESYNC",
			Description:  "Byte left after the zero chunk must not poison the next request on the connection",
			RFCReference: "RFC 9112 §6.1",
		},
		Expected: "400 or close",
		Steps: []testcase.Step{
			{
				Label:   "Ambiguous POST (CL 6 + chunked, trailing byte)",
				Payload: req("POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 6\r\nTransfer-Encoding: chunked\r\n\r\n0\r\n\r\nX"),
			},
			{Label: "Follow-up GET", Payload: req(plainGet)},
		},
		Validate: func(steps []testcase.StepResult) testcase.Verdict {
			first, second := steps[0], steps[1]
			if !stepOK(first) {
				if first.ConnectionState == transport.ClosedByServer {
					return testcase.Pass
				}
				return testcase.Fail
			}
			if first.Status() == 400 {
				return testcase.Pass
			}
			if !stepOK(second) || is2xx(second.Status()) {
				return testcase.Warn
			}
			return testcase.Fail
		},
		Analyze: func(steps []testcase.StepResult) string {
			first, second := steps[0], steps[1]
			switch {
			case !stepOK(first):
				return "No response to the ambiguous request"
			case first.Status() == 400:
				return "Rejected ambiguous framing"
			case !stepOK(second):
				return "Accepted ambiguous framing, then closed"
			case is2xx(second.Status()):
				return "Accepted ambiguous framing; follow-up stayed in sync"
			}
			return fmt.Sprintf("Follow-up got %d: leftover byte reached the next request", second.Status())
		},
	}
}

// pausedBody writes the headers, waits, then writes the body. A server that
// answers before the body arrives and then parses the body as a new request
// is desynchronized.
func pausedBody() *testcase.SequenceTestCase {
	return &testcase.SequenceTestCase{
		Meta: testcase.Meta{
			ID:           "SMUG-PAUSED-BODY",
			Description:  "Content-Length body sent after a pause must be read as body, not as the next request",
			RFCReference: "RFC 9112 §6.2",
			RFCLevel:     testcase.Should,
			Unscored:     true,
		},
		Expected: "2xx then 2xx",
		Steps: []testcase.Step{
			{
				Label: "POST with delayed body",
				Parts: func(t testcase.Target) []testcase.SendPart {
					return []testcase.SendPart{
						{
							Label:      "headers",
							Data:       render("POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 5\r\n\r\n", t),
							DelayAfter: partialSendPause,
						},
						{Label: "body", Data: []byte("hello")},
					}
				},
			},
			{Label: "Follow-up GET", Payload: req(plainGet)},
		},
		Validate: func(steps []testcase.StepResult) testcase.Verdict {
			first, second := steps[0], steps[1]
			if !stepOK(first) {
				if first.ConnectionState == transport.TimedOut {
					return testcase.Fail
				}
				return testcase.Warn
			}
			if !stepOK(second) {
				return testcase.Warn
			}
			if second.Status() == 400 {
				return testcase.Fail
			}
			return testcase.Pass
		},
		Analyze: func(steps []testcase.StepResult) string {
			first, second := steps[0], steps[1]
			switch {
			case !first.Executed:
				return "Connection closed during the pause"
			case first.Response == nil:
				return "No response to the delayed POST"
			case !stepOK(second):
				return "Connection closed after the POST"
			case second.Status() == 400:
				return "Body bytes were parsed as a request"
			}
			return fmt.Sprintf("POST %d, follow-up %d", first.Status(), second.Status())
		},
	}
}
