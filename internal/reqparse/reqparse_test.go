package reqparse

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFile_BurpExport(t *testing.T) {
	content := "POST /login HTTP/1.1\r\n" +
		"Host: target.com:8080\r\n" +
		"Content-Length: 7\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"user=ab"

	path := writeTempFile(t, content)
	req, err := ParseFile(path, Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if req.Method != "POST" {
		t.Errorf("method = %q, want POST", req.Method)
	}
	if req.Target != "/login" {
		t.Errorf("target = %q, want /login", req.Target)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("version = %q, want HTTP/1.1", req.Version)
	}
	if len(req.Headers) != 3 {
		t.Fatalf("headers = %d, want 3", len(req.Headers))
	}
	if req.Headers[2].Name != "Transfer-Encoding" {
		t.Errorf("header order: third = %q, want Transfer-Encoding", req.Headers[2].Name)
	}
	if string(req.Body) != "user=ab" {
		t.Errorf("body = %q, want user=ab", req.Body)
	}
	if string(req.Raw) != content {
		t.Errorf("raw = %q, want file content unchanged", req.Raw)
	}

	host, port, err := req.HostPort()
	if err != nil {
		t.Fatalf("HostPort: %v", err)
	}
	if host != "target.com" || port != 8080 {
		t.Errorf("HostPort = %s:%d, want target.com:8080", host, port)
	}
}

func TestParseFile_NormalizesLF(t *testing.T) {
	content := "GET / HTTP/1.1\nHost: {{host}}\nX-Probe: 1\n\n"
	path := writeTempFile(t, content)

	req, err := ParseFile(path, Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	want := "GET / HTTP/1.1\r\nHost: {{host}}\r\nX-Probe: 1\r\n\r\n"
	if string(req.Raw) != want {
		t.Errorf("raw = %q, want %q", req.Raw, want)
	}
	got := string(req.Render("example.com:8081"))
	if got != "GET / HTTP/1.1\r\nHost: example.com:8081\r\nX-Probe: 1\r\n\r\n" {
		t.Errorf("Render = %q", got)
	}
	if _, _, err := req.HostPort(); err == nil {
		t.Error("expected HostPort error for placeholder host")
	}
}

func TestParseFile_Verbatim(t *testing.T) {
	content := "GET / HTTP/1.1\nHost: a.com\n\n"
	path := writeTempFile(t, content)

	req, err := ParseFile(path, Options{Verbatim: true})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if string(req.Raw) != content {
		t.Errorf("raw = %q, want %q", req.Raw, content)
	}
}

func TestParse_MissingBlankLine(t *testing.T) {
	req, err := Parse([]byte("GET / HTTP/1.1\r\nHost: a.com\r\n"), Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(req.Raw) != "GET / HTTP/1.1\r\nHost: a.com\r\n\r\n" {
		t.Errorf("raw = %q", req.Raw)
	}
	if len(req.Body) != 0 {
		t.Errorf("body = %q, want empty", req.Body)
	}
}

func TestParse_MalformedHeadersKept(t *testing.T) {
	data := "GET / HTTP/1.1\r\nHost: a.com\r\nContent-Length : 5\r\n folded\r\n\r\n"
	req, err := Parse([]byte(data), Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(req.Raw) != data {
		t.Errorf("raw = %q, want %q", req.Raw, data)
	}
	if v, ok := req.Header("content-length"); !ok || v != "5" {
		t.Errorf("Header(content-length) = %q, %v", v, ok)
	}
	if len(req.Headers) != 2 {
		t.Errorf("headers = %d, want 2", len(req.Headers))
	}
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"default port", "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n", "example.com", 80, false},
		{"explicit port", "GET / HTTP/1.1\r\nHost: example.com:9000\r\n\r\n", "example.com", 9000, false},
		{"ipv6", "GET / HTTP/1.1\r\nHost: [::1]:8080\r\n\r\n", "::1", 8080, false},
		{"ipv6 no port", "GET / HTTP/1.1\r\nHost: [::1]\r\n\r\n", "::1", 80, false},
		{"absolute form", "GET http://proxy.local:3128/x HTTP/1.1\r\n\r\n", "proxy.local", 3128, false},
		{"missing host", "GET / HTTP/1.1\r\nAccept: */*\r\n\r\n", "", 0, true},
		{"bad port", "GET / HTTP/1.1\r\nHost: a.com:99999\r\n\r\n", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse([]byte(tt.data), Options{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			host, port, err := req.HostPort()
			if (err != nil) != tt.wantErr {
				t.Fatalf("HostPort error = %v, wantErr %v", err, tt.wantErr)
			}
			if host != tt.wantHost || port != tt.wantPort {
				t.Errorf("HostPort = %s:%d, want %s:%d", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestParseFile_Errors(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParseFile(writeTempFile(t, "\r\n\r\n"), Options{}); err == nil {
		t.Error("expected error for empty file")
	}
	if _, err := ParseFile(writeTempFile(t, "GARBAGE\r\n\r\n"), Options{}); err == nil {
		t.Error("expected error for invalid request line")
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "request.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}
