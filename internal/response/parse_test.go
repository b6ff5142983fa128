package response

import (
	"math/rand"
	"strings"
	"testing"
)

func TestParseStatusLine(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantNil bool
		code    int
		reason  string
		version string
	}{
		{name: "ok", raw: "HTTP/1.1 200 OK\r\n\r\n", code: 200, reason: "OK", version: "HTTP/1.1"},
		{name: "no reason", raw: "HTTP/1.1 204\r\n\r\n", code: 204, reason: "", version: "HTTP/1.1"},
		{name: "multi word reason", raw: "HTTP/1.0 400 Bad Request\r\n\r\n", code: 400, reason: "Bad Request", version: "HTTP/1.0"},
		{name: "bare LF", raw: "HTTP/1.1 301 Moved\nLocation: /x\n\n", code: 301, reason: "Moved", version: "HTTP/1.1"},
		{name: "not a status line", raw: "not-a-status-line\r\n\r\n", wantNil: true},
		{name: "non numeric code", raw: "HTTP/1.1 abc OK\r\n\r\n", wantNil: true},
		{name: "signed code", raw: "HTTP/1.1 +200 OK\r\n\r\n", wantNil: true},
		{name: "no newline", raw: "HTTP/1.1 200 OK", wantNil: true},
		{name: "empty", raw: "", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse([]byte(tt.raw))
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Parse(%q) = %+v, want nil", tt.raw, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Parse(%q) = nil", tt.raw)
			}
			if got.StatusCode != tt.code || got.ReasonPhrase != tt.reason || got.HTTPVersion != tt.version {
				t.Errorf("got (%d, %q, %q), want (%d, %q, %q)",
					got.StatusCode, got.ReasonPhrase, got.HTTPVersion, tt.code, tt.reason, tt.version)
			}
		})
	}
}

func TestParseHeaderFolding(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nX-Dup: a\r\nContent-Type: text/plain\r\nx-dup: b\r\n\r\n"
	resp := Parse([]byte(raw))
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Headers.Len() != 2 {
		t.Fatalf("expected 2 header entries, got %d: %+v", resp.Headers.Len(), resp.Headers.All())
	}
	v, ok := resp.Headers.Get("X-DUP")
	if !ok || v != "a, b" {
		t.Errorf("X-Dup = %q (%v), want %q", v, ok, "a, b")
	}
	if all := resp.Headers.All(); all[0].Name != "X-Dup" || all[1].Name != "Content-Type" {
		t.Errorf("order not preserved: %+v", all)
	}
}

func TestParseSkipsMalformedHeaderLines(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nno colon here\r\n: empty name\r\nServer:  probe \r\n\r\nbody"
	resp := Parse([]byte(raw))
	if resp == nil {
		t.Fatal("malformed header line must not reject the response")
	}
	if resp.Headers.Len() != 1 {
		t.Fatalf("expected only Server header, got %+v", resp.Headers.All())
	}
	if v, _ := resp.Headers.Get("server"); v != "probe" {
		t.Errorf("Server = %q, want trimmed %q", v, "probe")
	}
	if resp.Body != "body" || !resp.HasBody {
		t.Errorf("Body = %q (HasBody %v)", resp.Body, resp.HasBody)
	}
}

func TestParseBodyIgnoresFraming(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhello\r\nHTTP/1.1 404 Not Found\r\n\r\n"
	resp := Parse([]byte(raw))
	if resp == nil {
		t.Fatal("expected response")
	}
	want := "hello\r\nHTTP/1.1 404 Not Found\r\n\r\n"
	if resp.Body != want {
		t.Errorf("Body = %q, want everything after the terminator %q", resp.Body, want)
	}
}

func TestParseNoBody(t *testing.T) {
	resp := Parse([]byte("HTTP/1.1 204 No Content\r\n\r\n"))
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.HasBody || resp.Body != "" {
		t.Errorf("expected no body, got %q", resp.Body)
	}
}

func TestParseCaps(t *testing.T) {
	body := strings.Repeat("x", 10000)
	raw := "HTTP/1.1 200 OK\r\n\r\n" + body
	resp := Parse([]byte(raw))
	if resp == nil {
		t.Fatal("expected response")
	}
	if len(resp.Body) != MaxBodyChars {
		t.Errorf("body length = %d, want %d", len(resp.Body), MaxBodyChars)
	}
	if !resp.Truncated {
		t.Error("expected Truncated for oversized capture")
	}
	if !strings.HasPrefix(resp.Raw, raw[:MaxRawChars]) || !strings.Contains(resp.Raw, "[Truncated") {
		t.Errorf("raw text not capped with marker: ...%q", resp.Raw[len(resp.Raw)-60:])
	}
}

func TestParseLatin1(t *testing.T) {
	raw := []byte("HTTP/1.1 200 \xe9t\xe9\r\nX-Bin: \xff\x00\r\n\r\n\x80")
	resp := Parse(raw)
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.ReasonPhrase != "été" {
		t.Errorf("ReasonPhrase = %q, want %q", resp.ReasonPhrase, "été")
	}
	if v, _ := resp.Headers.Get("X-Bin"); v != "ÿ\x00" {
		t.Errorf("X-Bin = %q", v)
	}
	if resp.Body != "\u0080" {
		t.Errorf("Body = %q", resp.Body)
	}
}

func TestParseNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := [][]byte{
		nil,
		{},
		[]byte("\r\n"),
		[]byte(" \n"),
		[]byte("HTTP/1.1 \n"),
		[]byte("HTTP/1.1 200 OK\r\nHeader"),
		[]byte("HTTP/1.1 200 OK\r\n\r"),
		[]byte("HTTP/1.1 99999999999999999999 X\r\n\r\n"),
	}
	for i := 0; i < 500; i++ {
		b := make([]byte, rng.Intn(300))
		rng.Read(b)
		inputs = append(inputs, b)
		// Truncated prefixes of a valid response.
		valid := []byte("HTTP/1.1 200 OK\r\nA: b\r\n\r\nbody")
		inputs = append(inputs, valid[:rng.Intn(len(valid))])
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Parse(%q) panicked: %v", in, r)
				}
			}()
			Parse(in)
		}()
	}
}
