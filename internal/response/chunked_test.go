package response

import "testing"

func TestDecodeChunked(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{name: "single chunk", body: "5\r\nhello\r\n0\r\n\r\n", want: "hello", wantOK: true},
		{name: "multi chunk", body: "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n", want: "hello world", wantOK: true},
		{name: "uppercase hex", body: "B\r\nhello world\r\n0\r\n\r\n", want: "hello world", wantOK: true},
		{name: "extension stripped", body: "5;ext=val\r\nhello\r\n0\r\n\r\n", want: "hello", wantOK: true},
		{name: "trailers ignored", body: "3\r\nabc\r\n0\r\nX-Trailer: 1\r\n\r\n", want: "abc", wantOK: true},
		{name: "empty", body: "0\r\n\r\n", want: "", wantOK: true},
		{name: "missing CRLF after data", body: "3\r\nabcX4\r\nwxyz\r\n0\r\n\r\n", want: "abcwxyz", wantOK: true},
		{name: "short final chunk", body: "a\r\nabc", want: "abc", wantOK: true},
		{name: "invalid hex", body: "zz\r\nhello\r\n0\r\n\r\n", wantOK: false},
		{name: "signed size", body: "+5\r\nhello\r\n0\r\n\r\n", wantOK: false},
		{name: "overflow", body: "fffffffffffffffffff\r\nx\r\n", wantOK: false},
		{name: "plain text without CRLF", body: "hello world", wantOK: false},
		{name: "non-hex size without CRLF", body: "zz", wantOK: false},
		{name: "header line with bare LF", body: "X-Test: 1\n", wantOK: false},
		{name: "truncated hex size line", body: "5;ext", want: "", wantOK: true},
		{name: "garbage after first chunk", body: "3\r\nabc\r\nnot-a-size", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeChunked(tt.body)
			if ok != tt.wantOK {
				t.Fatalf("DecodeChunked(%q) ok = %v, want %v", tt.body, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("DecodeChunked(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}
