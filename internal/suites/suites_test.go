package suites

import (
	"bytes"
	"strings"
	"testing"

	"github.com/maxvaer/http11probe/internal/reqparse"
	"github.com/maxvaer/http11probe/internal/response"
	"github.com/maxvaer/http11probe/internal/testcase"
	"github.com/maxvaer/http11probe/internal/transport"
)

var target = testcase.Target{Host: "localhost", Port: 8080}

func parse(raw string) *response.Response {
	return response.Parse([]byte(raw))
}

func step(raw string) testcase.StepResult {
	return testcase.StepResult{Executed: true, Response: parse(raw), ConnectionState: transport.Open}
}

func mustFind(t *testing.T, id string) testcase.Case {
	t.Helper()
	c, ok := Find(All(), id)
	if !ok {
		t.Fatalf("case %s not in catalog", id)
	}
	return c
}

func TestAllUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range All() {
		m := c.Metadata()
		if m.ID == "" {
			t.Errorf("case with empty ID: %q", m.Description)
		}
		if seen[m.ID] {
			t.Errorf("duplicate ID %s", m.ID)
		}
		seen[m.ID] = true
		if m.Category == "" {
			t.Errorf("%s: category not stamped", m.ID)
		}
		if m.Description == "" {
			t.Errorf("%s: empty description", m.ID)
		}
	}
}

func TestCatalogShape(t *testing.T) {
	for _, c := range All() {
		switch tc := c.(type) {
		case *testcase.TestCase:
			if tc.Payload == nil {
				t.Errorf("%s: nil payload", tc.ID)
			}
			if tc.RequiresConnectionReuse && tc.FollowUp == nil {
				t.Errorf("%s: connection reuse without follow-up", tc.ID)
			}
		case *testcase.SequenceTestCase:
			if len(tc.Steps) == 0 || tc.Validate == nil {
				t.Errorf("%s: sequence without steps or validator", tc.ID)
			}
			for i, s := range tc.Steps {
				if s.Payload == nil && s.Dynamic == nil && s.Parts == nil {
					t.Errorf("%s: step %d has nothing to send", tc.ID, i)
				}
			}
		default:
			t.Errorf("unexpected case type %T", c)
		}
	}
}

func TestPayloadsDeterministic(t *testing.T) {
	for _, c := range All() {
		tc, ok := c.(*testcase.TestCase)
		if !ok {
			continue
		}
		a, b := tc.Payload(target), tc.Payload(target)
		if !bytes.Equal(a, b) {
			t.Errorf("%s: payload differs between calls", tc.ID)
		}
		if bytes.Contains(a, []byte("{host}")) || bytes.Contains(a, []byte("{hostname}")) {
			t.Errorf("%s: unrendered placeholder in payload", tc.ID)
		}
	}
}

func TestPayloadHost(t *testing.T) {
	tc := mustFind(t, "COMP-BASELINE").(*testcase.TestCase)
	if got := string(tc.Payload(target)); !strings.Contains(got, "Host: localhost:8080\r\n") {
		t.Errorf("payload = %q, want Host: localhost:8080", got)
	}
	got := string(tc.Payload(testcase.Target{Host: "example.com", Port: 80}))
	if !strings.Contains(got, "Host: example.com\r\n") {
		t.Errorf("payload = %q, want port omitted for 80", got)
	}
}

func TestSuiteSizes(t *testing.T) {
	groups := ByCategory(All())
	tests := []struct {
		cat  testcase.Category
		want int
	}{
		{testcase.MalformedInput, 18},
		{testcase.Normalization, 5},
		{testcase.Cookies, 12},
		{testcase.Capabilities, 9},
	}
	for _, tt := range tests {
		if got := len(groups[tt.cat]); got != tt.want {
			t.Errorf("%s: %d cases, want %d", tt.cat, got, tt.want)
		}
	}
	if len(groups[testcase.Compliance]) == 0 || len(groups[testcase.Smuggling]) == 0 {
		t.Error("compliance and smuggling suites must not be empty")
	}
}

func TestFind(t *testing.T) {
	if _, ok := Find(All(), "comp-baseline"); !ok {
		t.Error("Find should match case-insensitively")
	}
	if _, ok := Find(All(), "NOPE-NOT-HERE"); ok {
		t.Error("Find returned a case for an unknown id")
	}
}

func TestPipelineEvaluator(t *testing.T) {
	tc := mustFind(t, "SMUG-CLTE-PIPELINE").(*testcase.TestCase)
	if !tc.RequiresConnectionReuse {
		t.Fatal("pipeline probe must reuse the connection")
	}
	tests := []struct {
		name  string
		resp  *response.Response
		state transport.ConnectionState
		want  testcase.Verdict
	}{
		{"rejected", parse("HTTP/1.1 400 Bad Request\r\n\r\n"), transport.Open, testcase.Pass},
		{"accepted", parse("HTTP/1.1 200 OK\r\n\r\n"), transport.Open, testcase.Fail},
		{"closed", nil, transport.ClosedByServer, testcase.Pass},
		{"accepted then closed", parse("HTTP/1.1 200 OK\r\n\r\n"), transport.ClosedByServer, testcase.Pass},
		{"timeout", nil, transport.TimedOut, testcase.Fail},
	}
	for _, tt := range tests {
		if got := tc.Expected.Evaluate(tt.resp, tt.state); got != tt.want {
			t.Errorf("%s: verdict = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBinaryGarbageStable(t *testing.T) {
	tc := mustFind(t, "MAL-BINARY-GARBAGE").(*testcase.TestCase)
	a := tc.Payload(target)
	if len(a) != 256 {
		t.Fatalf("len = %d, want 256", len(a))
	}
	if !bytes.Equal(a, tc.Payload(testcase.Target{Host: "other", Port: 1})) {
		t.Error("garbage must not depend on the target")
	}
}

func TestNormalizationEvaluator(t *testing.T) {
	tc := mustFind(t, "NORM-UNDERSCORE-CL").(*testcase.TestCase)
	tests := []struct {
		name     string
		resp     *response.Response
		state    transport.ConnectionState
		want     testcase.Verdict
		wantNote string
	}{
		{"normalized", parse("HTTP/1.1 200 OK\r\n\r\nHost: x\nContent-Length: 99\n"), transport.Open,
			testcase.Fail, "Normalized: Content_Length → Content-Length"},
		{"normalized lowercase", parse("HTTP/1.1 200 OK\r\n\r\ncontent-length: 99\n"), transport.Open,
			testcase.Fail, "Normalized: Content_Length → content-length"},
		{"preserved", parse("HTTP/1.1 200 OK\r\n\r\nContent-Length: 11\nContent_Length: 99\n"), transport.Open,
			testcase.Warn, "Preserved: Content_Length"},
		{"dropped", parse("HTTP/1.1 200 OK\r\n\r\nContent-Length: 11\n"), transport.Open,
			testcase.Pass, "Dropped"},
		{"static", parse("HTTP/1.1 200 OK\r\n\r\nhello"), transport.Open,
			testcase.Pass, "Static response"},
		{"chunked echo", parse("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n13\r\nContent-Length: 99\n\r\n0\r\n\r\n"), transport.Open,
			testcase.Fail, "Normalized: Content_Length → Content-Length"},
		{"rejected", parse("HTTP/1.1 400 Bad Request\r\n\r\n"), transport.Open, testcase.Pass, ""},
		{"redirect", parse("HTTP/1.1 301 Moved\r\n\r\n"), transport.Open, testcase.Fail, ""},
		{"closed", nil, transport.ClosedByServer, testcase.Pass, ""},
		{"timeout", nil, transport.TimedOut, testcase.Fail, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tc.Expected.Evaluate(tt.resp, tt.state); got != tt.want {
				t.Errorf("verdict = %v, want %v", got, tt.want)
			}
			if got := tc.Analyze(tt.resp); got != tt.wantNote {
				t.Errorf("note = %q, want %q", got, tt.wantNote)
			}
		})
	}
}

func TestCaseNormalization(t *testing.T) {
	tc := mustFind(t, "NORM-CASE-TE").(*testcase.TestCase)
	tests := []struct {
		body string
		want testcase.Verdict
	}{
		{"TRANSFER-ENCODING: chunked\n", testcase.Warn},
		{"Transfer-Encoding: chunked\n", testcase.Fail},
		{"transfer-encoding: chunked\n", testcase.Fail},
		{"Host: x\n", testcase.Pass},
	}
	for _, tt := range tests {
		resp := parse("HTTP/1.1 200 OK\r\n\r\n" + tt.body)
		if got := tc.Expected.Evaluate(resp, transport.Open); got != tt.want {
			t.Errorf("body %q: verdict = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestCookieEvaluators(t *testing.T) {
	tests := []struct {
		id    string
		resp  *response.Response
		state transport.ConnectionState
		want  testcase.Verdict
	}{
		{"COOK-ECHO", parse("HTTP/1.1 200 OK\r\n\r\nCookie: foo=bar\n"), transport.Open, testcase.Pass},
		{"COOK-ECHO", parse("HTTP/1.1 200 OK\r\n\r\nHost: x\n"), transport.Open, testcase.Fail},
		{"COOK-ECHO", nil, transport.ClosedByServer, testcase.Warn},
		{"COOK-NUL", parse("HTTP/1.1 200 OK\r\n\r\nCookie: foo=\x00bar\n"), transport.Open, testcase.Fail},
		{"COOK-NUL", parse("HTTP/1.1 200 OK\r\n\r\nCookie: foo=bar\n"), transport.Open, testcase.Pass},
		{"COOK-NUL", parse("HTTP/1.1 400 Bad Request\r\n\r\n"), transport.Open, testcase.Pass},
		{"COOK-MULTI-HEADER", parse("HTTP/1.1 200 OK\r\n\r\nCookie: a=1; b=2\n"), transport.Open, testcase.Pass},
		{"COOK-MULTI-HEADER", parse("HTTP/1.1 200 OK\r\n\r\nCookie: a=1\n"), transport.Open, testcase.Warn},
		{"COOK-OVERSIZED", parse("HTTP/1.1 431 Too Large\r\n\r\n"), transport.Open, testcase.Pass},
		{"COOK-OVERSIZED", parse("HTTP/1.1 500 Oops\r\n\r\n"), transport.Open, testcase.Fail},
		{"COOK-PARSED-MULTI", parse("HTTP/1.1 404 Not Found\r\n\r\n"), transport.Open, testcase.Warn},
		{"COOK-PARSED-MULTI", parse("HTTP/1.1 200 OK\r\n\r\na=1\nb=2\nc=3\n"), transport.Open, testcase.Pass},
		{"COOK-PARSED-MULTI", parse("HTTP/1.1 200 OK\r\n\r\na=1\n"), transport.Open, testcase.Fail},
	}
	for _, tt := range tests {
		tc := mustFind(t, tt.id).(*testcase.TestCase)
		if tc.Scored() {
			t.Errorf("%s: cookie cases are unscored", tt.id)
		}
		if got := tc.Expected.Evaluate(tt.resp, tt.state); got != tt.want {
			t.Errorf("%s (%v): verdict = %v, want %v", tt.id, tt.resp != nil, got, tt.want)
		}
	}
	// A nil response must not reach the note builders.
	if note := mustFind(t, "COOK-ECHO").(*testcase.TestCase).Analyze(nil); note != "" {
		t.Errorf("note for nil response = %q", note)
	}
}

func TestConditionalSequence(t *testing.T) {
	tc := mustFind(t, "CAP-ETAG-304").(*testcase.SequenceTestCase)
	first := step("HTTP/1.1 200 OK\r\nETag: \"abc\"\r\n\r\nhi")

	payload := tc.Steps[1].Dynamic(target, []testcase.StepResult{first})
	if !bytes.Contains(payload, []byte("If-None-Match: \"abc\"\r\n")) {
		t.Errorf("conditional request = %q", payload)
	}

	tests := []struct {
		name  string
		steps []testcase.StepResult
		want  testcase.Verdict
		note  string
	}{
		{"304", []testcase.StepResult{first, step("HTTP/1.1 304 Not Modified\r\n\r\n")}, testcase.Pass, `ETag: "abc" → 304`},
		{"ignored", []testcase.StepResult{first, step("HTTP/1.1 200 OK\r\n\r\n")}, testcase.Warn, `ETag: "abc" → 200`},
		{"error", []testcase.StepResult{first, step("HTTP/1.1 500 Oops\r\n\r\n")}, testcase.Fail, `ETag: "abc" → 500`},
		{"no etag", []testcase.StepResult{step("HTTP/1.1 200 OK\r\n\r\n"), step("HTTP/1.1 200 OK\r\n\r\n")}, testcase.Warn, "No ETag header in response"},
		{"first failed", []testcase.StepResult{{Executed: true}, {}}, testcase.Error, "Step 1 failed"},
		{"first not 2xx", []testcase.StepResult{step("HTTP/1.1 404 Not Found\r\nETag: \"x\"\r\n\r\n"), step("HTTP/1.1 304 Not Modified\r\n\r\n")}, testcase.Error, `ETag: "x" → 304`},
		{"closed", []testcase.StepResult{first, {ConnectionState: transport.ClosedByServer}}, testcase.Warn, "Connection closed before conditional request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tc.Validate(tt.steps); got != tt.want {
				t.Errorf("verdict = %v, want %v", got, tt.want)
			}
			if got := tc.Analyze(tt.steps); got != tt.note {
				t.Errorf("note = %q, want %q", got, tt.note)
			}
		})
	}
}

func TestConditionalWithoutCapture(t *testing.T) {
	tc := mustFind(t, "CAP-IMS-FUTURE").(*testcase.SequenceTestCase)
	if tc.Steps[1].Payload == nil || tc.Steps[1].Dynamic != nil {
		t.Fatal("future-date probe should not depend on the first response")
	}
	steps := []testcase.StepResult{step("HTTP/1.1 200 OK\r\n\r\n"), step("HTTP/1.1 304 Not Modified\r\n\r\n")}
	if got := tc.Validate(steps); got != testcase.Warn {
		t.Errorf("verdict = %v, want Warn", got)
	}
}

func TestCLTEDesync(t *testing.T) {
	tc := mustFind(t, "SMUG-CLTE-DESYNC").(*testcase.SequenceTestCase)
	ok := step("HTTP/1.1 200 OK\r\n\r\n")
	tests := []struct {
		name  string
		steps []testcase.StepResult
		want  testcase.Verdict
	}{
		{"rejected", []testcase.StepResult{step("HTTP/1.1 400 Bad Request\r\n\r\n"), {}}, testcase.Pass},
		{"closed", []testcase.StepResult{{Executed: true, ConnectionState: transport.ClosedByServer}, {}}, testcase.Pass},
		{"silent", []testcase.StepResult{{Executed: true, ConnectionState: transport.TimedOut}, {}}, testcase.Fail},
		{"in sync", []testcase.StepResult{ok, ok}, testcase.Warn},
		{"poisoned", []testcase.StepResult{ok, step("HTTP/1.1 405 Method Not Allowed\r\n\r\n")}, testcase.Fail},
	}
	for _, tt := range tests {
		if got := tc.Validate(tt.steps); got != tt.want {
			t.Errorf("%s: verdict = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestETagHelpers(t *testing.T) {
	tests := []struct {
		in, unquoted, weak string
	}{
		{`"abc"`, "abc", `W/"abc"`},
		{`W/"abc"`, "abc", `W/"abc"`},
		{"abc", "abc", "W/abc"},
		{`"`, `"`, `W/"`},
	}
	for _, tt := range tests {
		if got := unquoteETag(tt.in); got != tt.unquoted {
			t.Errorf("unquoteETag(%q) = %q, want %q", tt.in, got, tt.unquoted)
		}
		if got := weakETag(tt.in); got != tt.weak {
			t.Errorf("weakETag(%q) = %q, want %q", tt.in, got, tt.weak)
		}
	}
}

func TestParseEchoHeaders(t *testing.T) {
	got := parseEchoHeaders("Host: a\r\nX-Dup: 1\nContent-Length : 5\nX-Dup:\t2\nnoise\n")
	if len(got) != 3 {
		t.Fatalf("headers = %+v, want 3 distinct names", got)
	}
	if got[1].name != "X-Dup" || len(got[1].values) != 2 || got[1].values[1] != "2" {
		t.Errorf("duplicate handling: %+v", got[1])
	}
	if got[2].name != "Content-Length " {
		t.Errorf("name %q should keep the space before the colon", got[2].name)
	}
	if got[0].values[0] != "a" {
		t.Errorf("value %q should have CR trimmed", got[0].values[0])
	}
}

func TestCustom(t *testing.T) {
	r, err := reqparse.Parse([]byte("GET /x HTTP/1.1\nHost: {{host}}\n\n"), reqparse.Options{})
	if err != nil {
		t.Fatal(err)
	}
	tc := Custom("probes/te space.txt", r, []testcase.StatusRange{testcase.Exact(400)}, true)
	if tc.ID != "CUSTOM-TE-SPACE" {
		t.Errorf("ID = %q", tc.ID)
	}
	if tc.Category != testcase.Custom || tc.Scored() {
		t.Errorf("meta = %+v, want unscored Custom", tc.Meta)
	}
	if got := string(tc.Payload(target)); got != "GET /x HTTP/1.1\r\nHost: localhost:8080\r\n\r\n" {
		t.Errorf("payload = %q", got)
	}
	if got := tc.Expected.Describe(); got != "400 or close" {
		t.Errorf("expected = %q", got)
	}
	if v := tc.Expected.Evaluate(nil, transport.ClosedByServer); v != testcase.Pass {
		t.Errorf("close verdict = %v, want Pass", v)
	}
}

func TestEchoBodyFallsBackOnBadFraming(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"chunked", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n9\r\nX-Test: 1\r\n0\r\n\r\n", "X-Test: 1"},
		{"declared chunked but plain", "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\nX-Test: 1\n", "X-Test: 1\n"},
		{"not chunked", "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := echoBody(parse(tt.raw)); got != tt.want {
				t.Errorf("echoBody = %q, want %q", got, tt.want)
			}
		})
	}
}
