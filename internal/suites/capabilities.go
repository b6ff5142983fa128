package suites

import (
	"fmt"
	"strings"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// CapabilityCases are unscored two-step conditional-request conversations:
// a plain GET to learn the validators, then a conditional GET built from
// them on the same connection.
func CapabilityCases() []testcase.Case {
	return suite(testcase.Capabilities,
		conditional(conditionalDef{
			id:       "CAP-ETAG-304",
			desc:     "ETag conditional GET returns 304 Not Modified",
			ref:      "RFC 9110 §13.1.2",
			expected: "304",
			capture:  "ETag",
			label:    "Conditional GET (If-None-Match)",
			request: func(etag string, found bool) string {
				if !found {
					etag = `"no-etag"`
				}
				return "If-None-Match: " + etag
			},
			judge: prefer304,
			note: func(etag string, second testcase.StepResult) string {
				return fmt.Sprintf("ETag: %s → %d", etag, second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-LAST-MODIFIED-304",
			desc:     "Last-Modified conditional GET returns 304 Not Modified",
			ref:      "RFC 9110 §13.1.3",
			expected: "304",
			capture:  "Last-Modified",
			label:    "Conditional GET (If-Modified-Since)",
			request: func(lm string, found bool) string {
				if !found {
					lm = "Thu, 01 Jan 2099 00:00:00 GMT"
				}
				return "If-Modified-Since: " + lm
			},
			judge: prefer304,
			note: func(lm string, second testcase.StepResult) string {
				return fmt.Sprintf("Last-Modified: %s → %d", lm, second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-ETAG-IN-304",
			desc:     "304 response includes ETag header",
			ref:      "RFC 9110 §15.4.5",
			expected: "304 with ETag",
			capture:  "ETag",
			label:    "Conditional GET (If-None-Match)",
			request: func(etag string, found bool) string {
				if !found {
					etag = `"no-etag"`
				}
				return "If-None-Match: " + etag
			},
			judge: func(second testcase.StepResult) testcase.Verdict {
				if second.Status() != 304 {
					return testcase.Warn
				}
				if _, ok := second.Header("ETag"); ok {
					return testcase.Pass
				}
				return testcase.Warn
			},
			note: func(_ string, second testcase.StepResult) string {
				if second.Status() != 304 {
					return fmt.Sprintf("Step 2 returned %d (no conditional support)", second.Status())
				}
				if etag, ok := second.Header("ETag"); ok {
					return "304 includes ETag: " + etag
				}
				return "304 response missing ETag header"
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-INM-PRECEDENCE",
			desc:     "If-None-Match takes precedence over If-Modified-Since",
			ref:      "RFC 9110 §13.1.2",
			expected: "304",
			capture:  "ETag",
			label:    "Conditional GET (INM + stale IMS)",
			request: func(etag string, found bool) string {
				if !found {
					etag = `"no-etag"`
				}
				// The epoch is far enough back that IMS alone never yields 304.
				return "If-None-Match: " + etag + "\r\nIf-Modified-Since: Thu, 01 Jan 1970 00:00:00 GMT"
			},
			judge: prefer304,
			note: func(_ string, second testcase.StepResult) string {
				switch {
				case second.Status() == 304:
					return "If-None-Match took precedence (correct)"
				case is2xx(second.Status()):
					return "If-Modified-Since took precedence (INM ignored)"
				}
				return unexpected(second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-INM-WILDCARD",
			desc:     "If-None-Match: * on existing resource returns 304",
			ref:      "RFC 9110 §13.1.2",
			expected: "304",
			label:    "Conditional GET (If-None-Match: *)",
			request:  func(string, bool) string { return "If-None-Match: *" },
			judge:    prefer304,
			note: func(_ string, second testcase.StepResult) string {
				switch {
				case second.Status() == 304:
					return "Wildcard If-None-Match recognized"
				case is2xx(second.Status()):
					return "Server ignores If-None-Match: *"
				}
				return unexpected(second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-IMS-FUTURE",
			desc:     "If-Modified-Since with future date ignored",
			ref:      "RFC 9110 §13.1.3",
			expected: "200",
			label:    "Conditional GET (If-Modified-Since: future date)",
			request:  func(string, bool) string { return "If-Modified-Since: Thu, 01 Jan 2099 00:00:00 GMT" },
			judge:    prefer2xx,
			note: func(_ string, second testcase.StepResult) string {
				switch {
				case is2xx(second.Status()):
					return "Correctly ignored future If-Modified-Since"
				case second.Status() == 304:
					return "Server returned 304 for future date (didn't validate)"
				}
				return unexpected(second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-IMS-INVALID",
			desc:     "If-Modified-Since with garbage date ignored",
			ref:      "RFC 9110 §13.1.3",
			expected: "200",
			label:    "Conditional GET (If-Modified-Since: garbage)",
			request:  func(string, bool) string { return "If-Modified-Since: not-a-date" },
			judge:    prefer2xx,
			note: func(_ string, second testcase.StepResult) string {
				switch {
				case is2xx(second.Status()):
					return "Correctly ignored invalid If-Modified-Since"
				case second.Status() == 304:
					return "Server returned 304 for garbage date (treated as valid)"
				}
				return unexpected(second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-INM-UNQUOTED",
			desc:     "If-None-Match with unquoted ETag",
			ref:      "RFC 9110 §8.8.3",
			expected: "200",
			capture:  "ETag",
			label:    "Conditional GET (If-None-Match: unquoted)",
			request: func(etag string, found bool) string {
				if !found {
					return "If-None-Match: no-etag"
				}
				return "If-None-Match: " + unquoteETag(etag)
			},
			judge: prefer2xx,
			note: func(_ string, second testcase.StepResult) string {
				switch {
				case is2xx(second.Status()):
					return "Correctly rejected unquoted ETag syntax"
				case second.Status() == 304:
					return "Accepted unquoted ETag (lenient parsing)"
				}
				return unexpected(second.Status())
			},
		}),
		conditional(conditionalDef{
			id:       "CAP-ETAG-WEAK",
			desc:     "Weak ETag comparison for GET",
			ref:      "RFC 9110 §13.1.2",
			expected: "304",
			capture:  "ETag",
			label:    "Conditional GET (If-None-Match: W/etag)",
			request: func(etag string, found bool) string {
				if !found {
					return `If-None-Match: W/"no-etag"`
				}
				return "If-None-Match: " + weakETag(etag)
			},
			judge: prefer304,
			note: func(etag string, second testcase.StepResult) string {
				switch {
				case second.Status() == 304:
					return fmt.Sprintf("Weak comparison matched: %s → 304", weakETag(etag))
				case is2xx(second.Status()):
					return fmt.Sprintf("Weak comparison not matched: %s → %d", weakETag(etag), second.Status())
				}
				return unexpected(second.Status())
			},
		}),
	)
}

// conditionalDef describes one two-step conditional conversation.
type conditionalDef struct {
	id, desc, ref, expected string

	// capture names the validator header the first response must carry.
	// Empty means the second step does not depend on one.
	capture string
	label   string
	// request renders the conditional header lines from the captured value.
	request func(value string, found bool) string
	// judge rates the second response once both steps produced one.
	judge func(second testcase.StepResult) testcase.Verdict
	note  func(value string, second testcase.StepResult) string
}

func conditional(def conditionalDef) *testcase.SequenceTestCase {
	cond := testcase.Step{Label: def.label}
	build := func(t testcase.Target, prior []testcase.StepResult) []byte {
		var value string
		var found bool
		if def.capture != "" {
			value, found = prior[0].Header(def.capture)
		}
		return render("GET / HTTP/1.1\r\nHost: {host}\r\n"+def.request(value, found)+"\r\n\r\n", t)
	}
	if def.capture == "" {
		cond.Payload = func(t testcase.Target) []byte { return build(t, nil) }
	} else {
		cond.Dynamic = build
	}

	firstLabel := "Initial GET (confirm 2xx)"
	if def.capture != "" {
		firstLabel = "Initial GET (capture " + def.capture + ")"
	}

	return &testcase.SequenceTestCase{
		Meta: testcase.Meta{
			ID:           def.id,
			Description:  def.desc,
			RFCReference: def.ref,
			RFCLevel:     testcase.Should,
			Unscored:     true,
		},
		Expected: def.expected,
		Steps: []testcase.Step{
			{Label: firstLabel, Payload: req(keepAliveGet)},
			cond,
		},
		Validate: func(steps []testcase.StepResult) testcase.Verdict {
			first, second := steps[0], steps[1]
			if !stepOK(first) || !is2xx(first.Status()) {
				return testcase.Error
			}
			if def.capture != "" {
				if _, ok := first.Header(def.capture); !ok {
					return testcase.Warn
				}
			}
			if !stepOK(second) {
				return testcase.Warn
			}
			return def.judge(second)
		},
		Analyze: func(steps []testcase.StepResult) string {
			first, second := steps[0], steps[1]
			if !stepOK(first) {
				return "Step 1 failed"
			}
			var value string
			if def.capture != "" {
				var ok bool
				if value, ok = first.Header(def.capture); !ok {
					return "No " + def.capture + " header in response"
				}
			} else if !is2xx(first.Status()) {
				return fmt.Sprintf("Step 1: %d", first.Status())
			}
			if !stepOK(second) {
				return "Connection closed before conditional request"
			}
			return def.note(value, second)
		},
	}
}

// prefer304 passes a 304, warns when the condition was ignored and fails
// anything else.
func prefer304(second testcase.StepResult) testcase.Verdict {
	switch {
	case second.Status() == 304:
		return testcase.Pass
	case is2xx(second.Status()):
		return testcase.Warn
	}
	return testcase.Fail
}

// prefer2xx is the inverse, for conditions that must be ignored.
func prefer2xx(second testcase.StepResult) testcase.Verdict {
	switch {
	case is2xx(second.Status()):
		return testcase.Pass
	case second.Status() == 304:
		return testcase.Warn
	}
	return testcase.Fail
}

// unquoteETag strips a weak prefix and the surrounding quotes.
func unquoteETag(etag string) string {
	etag = strings.TrimPrefix(etag, "W/")
	if len(etag) >= 2 && strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) {
		etag = etag[1 : len(etag)-1]
	}
	return etag
}

func weakETag(etag string) string {
	if strings.HasPrefix(etag, "W/") {
		return etag
	}
	return "W/" + etag
}
