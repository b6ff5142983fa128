// Package response decodes raw captures from a server under test.
//
// Parsing is best effort and never fails: malformed server output is a
// finding for the evaluator, not an error for the caller. Bytes are decoded
// one byte per character (Latin-1) so binary garbage always survives as
// renderable text.
package response

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// MaxBodyChars caps the stored body.
	MaxBodyChars = 4096
	// MaxRawChars caps the stored raw capture.
	MaxRawChars = 8192
)

// Response is a decoded HTTP response.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	HTTPVersion  string
	Headers      Headers

	// Body holds whatever followed the first CRLFCRLF, capped at
	// MaxBodyChars. Content-Length and Transfer-Encoding are not applied.
	Body string
	// HasBody distinguishes an empty body from no bytes at all.
	HasBody bool

	// Raw is the whole capture, capped at MaxRawChars with a marker.
	Raw       string
	Truncated bool
}

// Parse decodes data into a Response. It returns nil when data is empty or
// carries no usable status line.
func Parse(data []byte) *Response {
	if len(data) == 0 {
		return nil
	}
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd < 0 {
		return nil
	}
	statusLine := bytes.TrimRight(data[:lineEnd], "\r")

	sp := bytes.IndexByte(statusLine, ' ')
	if sp < 0 {
		return nil
	}
	version := statusLine[:sp]
	rest := statusLine[sp+1:]
	codeText, reason := rest, []byte(nil)
	if sp2 := bytes.IndexByte(rest, ' '); sp2 >= 0 {
		codeText, reason = rest[:sp2], rest[sp2+1:]
	}
	code, ok := parseStatusCode(codeText)
	if !ok {
		return nil
	}

	resp := &Response{
		StatusCode:   code,
		ReasonPhrase: Latin1(reason),
		HTTPVersion:  Latin1(version),
	}

	pos := lineEnd + 1
	for pos < len(data) {
		next := bytes.IndexByte(data[pos:], '\n')
		end := len(data)
		if next >= 0 {
			end = pos + next
		}
		line := bytes.TrimRight(data[pos:end], "\r")
		if len(line) == 0 {
			break
		}
		// Lines without a colon are skipped; a single malformed header
		// must not hide the rest of the response.
		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			name := strings.TrimSpace(Latin1(line[:colon]))
			value := strings.TrimSpace(Latin1(line[colon+1:]))
			resp.Headers.Add(name, value)
		}
		pos = end + 1
	}

	if hdrEnd := bytes.Index(data, []byte("\r\n\r\n")); hdrEnd >= 0 {
		if body := data[hdrEnd+4:]; len(body) > 0 {
			if len(body) > MaxBodyChars {
				body = body[:MaxBodyChars]
			}
			resp.Body = Latin1(body)
			resp.HasBody = true
		}
	}

	resp.Raw, resp.Truncated = RawText(data)
	return resp
}

// RawText renders a capture for display, capped at MaxRawChars.
func RawText(data []byte) (string, bool) {
	if len(data) <= MaxRawChars {
		return Latin1(data), false
	}
	return Latin1(data[:MaxRawChars]) +
		fmt.Sprintf("\n\n[Truncated: showing %d of %d bytes]", MaxRawChars, len(data)), true
}

func parseStatusCode(b []byte) (int, bool) {
	if len(b) == 0 || len(b) > 9 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Latin1 maps every byte to the rune of the same value.
func Latin1(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + len(b)/2)
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
