package response

import "strings"

// Header is one header field as it appeared first on the wire, with the
// values of any repeats folded in.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered multimap keyed case-insensitively. Repeated names
// are folded into the first entry, joined with ", " (RFC 9110 §5.3).
type Headers struct {
	entries []Header
	index   map[string]int
}

// Add appends a field, folding it into an existing entry of the same name.
func (h *Headers) Add(name, value string) {
	key := strings.ToLower(name)
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.entries[i].Value += ", " + value
		return
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, Header{Name: name, Value: value})
}

// Get returns the folded value for name.
func (h *Headers) Get(name string) (string, bool) {
	if h == nil || h.index == nil {
		return "", false
	}
	i, ok := h.index[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return h.entries[i].Value, true
}

// Has reports whether name was present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// All returns the fields in first-seen order.
func (h *Headers) All() []Header {
	if h == nil {
		return nil
	}
	out := make([]Header, len(h.entries))
	copy(out, h.entries)
	return out
}
