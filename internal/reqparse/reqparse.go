// Package reqparse loads raw HTTP request files (e.g. a Burp Suite export or
// a hand-written probe) so they can be replayed byte for byte as custom
// tests.
package reqparse

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// HostPlaceholder is replaced with the target's Host header value when the
// request is rendered.
const HostPlaceholder = "{{host}}"

// Header is one header line as it appeared in the file.
type Header struct {
	Name  string
	Value string
}

// ParsedRequest holds a raw request file split into its parts. Raw is what
// gets sent; the other fields are for display and target defaults.
type ParsedRequest struct {
	Method  string
	Target  string // request-target as written, e.g. /path?x=1
	Version string
	Headers []Header
	Body    []byte

	// Raw is the request with head line endings normalized to CRLF unless
	// the file was loaded verbatim.
	Raw []byte
}

// Options controls how a request file is interpreted.
type Options struct {
	// Verbatim sends the file exactly as stored. Without it, bare LF in
	// the head becomes CRLF, which is what editors and exports usually
	// break.
	Verbatim bool
}

// ParseFile reads a raw HTTP request file.
func ParseFile(path string, opts Options) (*ParsedRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	req, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	return req, nil
}

// Parse splits data into request line, headers and body. Malformed header
// lines are kept in Raw but skipped in Headers: a probe file is allowed to
// be invalid HTTP.
func Parse(data []byte, opts Options) (*ParsedRequest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("request file is empty")
	}

	head, body, sep := splitHead(data)
	if !opts.Verbatim {
		head = normalizeCRLF(head)
		sep = "\r\n\r\n"
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	requestLine := strings.TrimSpace(lines[0])
	parts := strings.SplitN(requestLine, " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid request line: %q", requestLine)
	}

	req := &ParsedRequest{
		Method: parts[0],
		Target: parts[1],
		Body:   body,
	}
	if len(parts) == 3 {
		req.Version = parts[2]
	}

	for _, line := range lines[1:] {
		colonIdx := strings.Index(line, ":")
		if colonIdx <= 0 {
			continue
		}
		req.Headers = append(req.Headers, Header{
			Name:  strings.TrimSpace(line[:colonIdx]),
			Value: strings.TrimSpace(line[colonIdx+1:]),
		})
	}

	raw := make([]byte, 0, len(head)+len(sep)+len(body))
	raw = append(raw, head...)
	raw = append(raw, sep...)
	raw = append(raw, body...)
	req.Raw = raw
	return req, nil
}

// Header returns the first header named name, case-insensitively.
func (r *ParsedRequest) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Render returns the bytes to send with every HostPlaceholder replaced.
func (r *ParsedRequest) Render(hostHeader string) []byte {
	return bytes.ReplaceAll(r.Raw, []byte(HostPlaceholder), []byte(hostHeader))
}

// HostPort derives a default target from the Host header, or from an
// absolute-form request-target when some proxy wrote one. The port
// defaults to 80.
func (r *ParsedRequest) HostPort() (string, int, error) {
	host, ok := r.Header("Host")
	if strings.HasPrefix(r.Target, "http://") {
		host, ok = strings.TrimPrefix(r.Target, "http://"), true
		if i := strings.IndexByte(host, '/'); i >= 0 {
			host = host[:i]
		}
	}
	if !ok || host == "" || strings.Contains(host, HostPlaceholder) {
		return "", 0, fmt.Errorf("request file has no usable Host header")
	}

	h, p, err := net.SplitHostPort(host)
	if err != nil {
		// No port present.
		return strings.Trim(host, "[]"), 80, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in Host header: %q", host)
	}
	return h, port, nil
}

// splitHead finds the first blank line, tolerating bare LF.
func splitHead(data []byte) (head, body []byte, sep string) {
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	lf := bytes.Index(data, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return data[:crlf], data[crlf+4:], "\r\n\r\n"
	case lf >= 0:
		return data[:lf], data[lf+2:], "\n\n"
	}
	// Files often lack the final blank line.
	return bytes.TrimRight(data, "\r\n"), nil, "\r\n\r\n"
}

func normalizeCRLF(head []byte) []byte {
	head = bytes.ReplaceAll(head, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(head, []byte("\n"), []byte("\r\n"))
}
