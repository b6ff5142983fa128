package suites

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// hugeLen is the size of oversized request components.
const hugeLen = 100_000

// MalformedInputCases sends input no parser should accept: garbage, huge
// components and stray control bytes.
func MalformedInputCases() []testcase.Case {
	huge := func(c byte) string { return strings.Repeat(string(c), hugeLen) }

	return suite(testcase.MalformedInput,
		&testcase.TestCase{
			Meta: testcase.Meta{
				ID:          "MAL-BINARY-GARBAGE",
				Description: "Random binary garbage should be rejected or the connection closed",
			},
			Payload:  binaryGarbage,
			Expected: custom("400, close or timeout", silentOr(400)),
		},
		single("MAL-LONG-URL", "",
			"100KB URL should be rejected with 414 URI Too Long",
			"GET /"+huge('A')+" HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("400, 414 or 431", oneOf(400, 414, 431))),
		single("MAL-LONG-HEADER-VALUE", "",
			"100KB header value should be rejected with 431",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Big: "+huge('B')+"\r\n\r\n", custom("400 or 431", oneOf(400, 431))),
		&testcase.TestCase{
			Meta: testcase.Meta{
				ID:          "MAL-MANY-HEADERS",
				Description: "10,000 headers should be rejected with 431",
			},
			Payload:  manyHeaders,
			Expected: custom("400 or 431", oneOf(400, 431)),
		},
		single("MAL-NUL-IN-URL", "",
			"NUL byte in URL should be rejected",
			"GET /\x00test HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("MAL-CONTROL-CHARS-HEADER", "",
			"Control characters in header value should be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test: abc\x07\x08\x0bdef\r\n\r\n", reject),
		single("MAL-INCOMPLETE-REQUEST", "",
			"Partial request: request-line and headers but no final CRLF",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test: value", custom("400, close or timeout", silentOr(400))),
		single("MAL-EMPTY-REQUEST", "",
			"Zero bytes: connection established without sending any data",
			"", custom("400, close or timeout", silentOr(400))),
		single("MAL-LONG-HEADER-NAME", "",
			"100KB header name should be rejected with 400 or 431",
			"GET / HTTP/1.1\r\nHost: {host}\r\n"+huge('A')+": val\r\n\r\n", custom("400 or 431", oneOf(400, 431))),
		single("MAL-LONG-METHOD", "",
			"100KB method name should be rejected",
			huge('A')+" / HTTP/1.1\r\nHost: {host}\r\n\r\n", custom("400", oneOf(400))),
		single("MAL-NON-ASCII-HEADER-NAME", "",
			"Non-ASCII bytes (UTF-8 ë) in header name must be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-T\xc3\xabst: value\r\n\r\n", reject),
		single("MAL-NON-ASCII-URL", "",
			"Non-ASCII bytes (UTF-8 é) in URL must be rejected",
			"GET /caf\xc3\xa9 HTTP/1.1\r\nHost: {host}\r\n\r\n", reject),
		single("MAL-CL-OVERFLOW", "",
			"Content-Length with integer overflow value must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nContent-Length: 99999999999999999999\r\n\r\n", reject),
		single("MAL-WHITESPACE-ONLY-LINE", "",
			"Whitespace-only request line should be rejected or time out",
			"   \r\n\r\n", custom("400, close or timeout", silentOr(400))),
		single("MAL-NUL-IN-HEADER-VALUE", "",
			"NUL byte in header value should be rejected",
			"GET / HTTP/1.1\r\nHost: {host}\r\nX-Test: val\x00ue\r\n\r\n", reject),
		single("MAL-CHUNK-SIZE-OVERFLOW", "",
			"Chunk size with integer overflow must be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\nFFFFFFFFFFFFFFFF0\r\nhello\r\n0\r\n\r\n", reject),
		single("MAL-H2-PREFACE", "",
			"HTTP/2 connection preface sent to an HTTP/1.1 server must be rejected",
			"PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n", custom("400, 505, close or timeout", silentOr(400, 505))),
		single("MAL-CHUNK-EXTENSION-LONG", "",
			"Chunk extension with 100KB value should be rejected",
			"POST / HTTP/1.1\r\nHost: {host}\r\nTransfer-Encoding: chunked\r\n\r\n5;ext="+huge('A')+"\r\nhello\r\n0\r\n\r\n", custom("400 or 431", oneOf(400, 431))),
	)
}

// binaryGarbage is 256 pseudo-random bytes from a fixed seed, so every run
// sends the same payload.
func binaryGarbage(testcase.Target) []byte {
	b := make([]byte, 256)
	rand.New(rand.NewSource(42)).Read(b)
	return b
}

func manyHeaders(t testcase.Target) []byte {
	var sb strings.Builder
	sb.WriteString("GET / HTTP/1.1\r\nHost: " + t.HostHeader() + "\r\n")
	for i := 0; i < 10_000; i++ {
		fmt.Fprintf(&sb, "X-H-%d: value\r\n", i)
	}
	sb.WriteString("\r\n")
	return []byte(sb.String())
}
