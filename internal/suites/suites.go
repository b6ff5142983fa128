// Package suites is the probe catalog: every built-in definition, grouped by
// category. Definitions are built once per call and are safe to share
// across runners because they hold no mutable state.
package suites

import (
	"strings"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// All returns the full catalog in run order: compliance, smuggling,
// malformed input, normalization, cookies, then capabilities.
func All() []testcase.Case {
	var out []testcase.Case
	out = append(out, ComplianceCases()...)
	out = append(out, SmugglingCases()...)
	out = append(out, MalformedInputCases()...)
	out = append(out, NormalizationCases()...)
	out = append(out, CookieCases()...)
	out = append(out, CapabilityCases()...)
	return out
}

// ByCategory groups cases by category, keeping catalog order within each.
func ByCategory(cases []testcase.Case) map[testcase.Category][]testcase.Case {
	out := make(map[testcase.Category][]testcase.Case)
	for _, c := range cases {
		cat := c.Metadata().Category
		out[cat] = append(out[cat], c)
	}
	return out
}

// Find looks up a case by id, case-insensitively.
func Find(cases []testcase.Case, id string) (testcase.Case, bool) {
	for _, c := range cases {
		if strings.EqualFold(c.Metadata().ID, id) {
			return c, true
		}
	}
	return nil, false
}

// single builds a one-shot definition. Category is stamped by the suite.
func single(id, ref, desc, tmpl string, exp testcase.Expectation) *testcase.TestCase {
	return &testcase.TestCase{
		Meta: testcase.Meta{
			ID:           id,
			Description:  desc,
			RFCReference: ref,
		},
		Payload:  req(tmpl),
		Expected: exp,
	}
}

// suite stamps cat on every definition and widens them to testcase.Case.
func suite(cat testcase.Category, defs ...testcase.Case) []testcase.Case {
	for _, d := range defs {
		switch tc := d.(type) {
		case *testcase.TestCase:
			tc.Category = cat
		case *testcase.SequenceTestCase:
			tc.Category = cat
		}
	}
	return defs
}
