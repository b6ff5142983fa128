package testcase

import (
	"fmt"
	"strings"
)

// Verdict classifies one test outcome.
type Verdict int

const (
	Pass Verdict = iota
	Warn
	Fail
	// Error means the test could not run at all (transport failure or a
	// panicking definition).
	Error
	// Skip means the test was excluded by selection and never executed.
	Skip
)

var verdictNames = [...]string{"Pass", "Warn", "Fail", "Error", "Skip"}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "Unknown"
	}
	return verdictNames[v]
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVerdict accepts a verdict name in any case.
func ParseVerdict(s string) (Verdict, error) {
	for i, name := range verdictNames {
		if strings.EqualFold(s, name) {
			return Verdict(i), nil
		}
	}
	if strings.EqualFold(s, "err") {
		return Error, nil
	}
	return 0, fmt.Errorf("unknown verdict %q (want pass, warn, fail, error, skip)", s)
}

// RFCLevel is the strength of the requirement a test checks.
type RFCLevel int

const (
	Must RFCLevel = iota
	Should
	OughtTo
	May
	NotApplicable
)

func (l RFCLevel) String() string {
	switch l {
	case Must:
		return "Must"
	case Should:
		return "Should"
	case OughtTo:
		return "OughtTo"
	case May:
		return "May"
	case NotApplicable:
		return "NotApplicable"
	default:
		return "Unknown"
	}
}

func (l RFCLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Category groups tests for selection and reporting.
type Category string

const (
	Compliance     Category = "Compliance"
	Smuggling      Category = "Smuggling"
	MalformedInput Category = "MalformedInput"
	Normalization  Category = "Normalization"
	Cookies        Category = "Cookies"
	Capabilities   Category = "Capabilities"
	Custom         Category = "Custom"
)

// Categories lists every known category in catalog order.
var Categories = []Category{Compliance, Smuggling, MalformedInput, Normalization, Cookies, Capabilities, Custom}

// ParseCategory matches a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
