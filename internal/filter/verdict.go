package filter

import "github.com/maxvaer/http11probe/internal/testcase"

// VerdictFilter includes or excludes results based on their verdict.
type VerdictFilter struct {
	include map[testcase.Verdict]struct{}
	exclude map[testcase.Verdict]struct{}
}

// NewVerdictFilter creates a verdict filter. If include is non-empty, only
// those verdicts pass through. If exclude is non-empty, those verdicts are
// filtered.
func NewVerdictFilter(include, exclude []testcase.Verdict) *VerdictFilter {
	f := &VerdictFilter{
		include: make(map[testcase.Verdict]struct{}, len(include)),
		exclude: make(map[testcase.Verdict]struct{}, len(exclude)),
	}
	for _, v := range include {
		f.include[v] = struct{}{}
	}
	for _, v := range exclude {
		f.exclude[v] = struct{}{}
	}
	return f
}

func (f *VerdictFilter) Name() string { return "verdict" }

func (f *VerdictFilter) ShouldFilter(result *testcase.Result) bool {
	if len(f.include) > 0 {
		_, ok := f.include[result.Verdict]
		return !ok // filter if NOT in include list
	}
	if len(f.exclude) > 0 {
		_, ok := f.exclude[result.Verdict]
		return ok // filter if in exclude list
	}
	return false
}

// UnscoredFilter hides results of tests that do not count towards the score.
type UnscoredFilter struct{}

func (UnscoredFilter) Name() string { return "unscored" }

func (UnscoredFilter) ShouldFilter(result *testcase.Result) bool {
	return !result.Meta().Scored()
}
