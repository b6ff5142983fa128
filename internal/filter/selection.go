package filter

import (
	"strings"

	"github.com/maxvaer/http11probe/internal/testcase"
)

// Selection decides which definitions run. Definitions it rejects are
// reported as Skip and never open a connection.
type Selection struct {
	categories map[testcase.Category]struct{}
	ids        map[string]struct{}
}

// NewSelection builds a selection from a category filter and an id
// allow-list. Empty slices select everything; ids match case-insensitively.
func NewSelection(categories []testcase.Category, ids []string) *Selection {
	s := &Selection{
		categories: make(map[testcase.Category]struct{}, len(categories)),
		ids:        make(map[string]struct{}, len(ids)),
	}
	for _, c := range categories {
		s.categories[c] = struct{}{}
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			s.ids[strings.ToUpper(id)] = struct{}{}
		}
	}
	return s
}

// Includes reports whether the definition should execute. A nil Selection
// includes everything.
func (s *Selection) Includes(m testcase.Meta) bool {
	if s == nil {
		return true
	}
	if len(s.categories) > 0 {
		if _, ok := s.categories[m.Category]; !ok {
			return false
		}
	}
	if len(s.ids) > 0 {
		if _, ok := s.ids[strings.ToUpper(m.ID)]; !ok {
			return false
		}
	}
	return true
}

// Empty reports whether the selection accepts every definition.
func (s *Selection) Empty() bool {
	return s == nil || len(s.categories) == 0 && len(s.ids) == 0
}
