package suites

import (
	"path/filepath"
	"strings"

	"github.com/maxvaer/http11probe/internal/reqparse"
	"github.com/maxvaer/http11probe/internal/testcase"
)

// Custom builds an unscored definition that replays a raw request file.
// With no status ranges any parseable response passes; a close passes only
// when allowClose is set.
func Custom(path string, r *reqparse.ParsedRequest, status []testcase.StatusRange, allowClose bool) *testcase.TestCase {
	return &testcase.TestCase{
		Meta: testcase.Meta{
			ID:          CustomID(path),
			Description: "Custom request " + r.Method + " " + r.Target + " from " + filepath.Base(path),
			Category:    testcase.Custom,
			RFCLevel:    testcase.NotApplicable,
			Unscored:    true,
		},
		Payload: func(t testcase.Target) []byte {
			return r.Render(t.HostHeader())
		},
		Expected: testcase.Expectation{
			Status:               status,
			AllowConnectionClose: allowClose,
		},
	}
}

// CustomID derives a stable ID from the file name: probes/te-space.txt
// becomes CUSTOM-TE-SPACE.
func CustomID(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '-'
	}, name)
	return "CUSTOM-" + strings.Trim(name, "-")
}
