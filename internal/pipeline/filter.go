package pipeline

import (
	"mime"
	"strings"
)

// MIMEFilter checks the MIME type a client declared for a file part.
// Declared types are untrusted; this is a cheap pre-filter only.
type MIMEFilter struct {
	allowed map[string]struct{}
}

// NewMIMEFilter builds a filter from an allow-list such as "image/png".
func NewMIMEFilter(types []string) *MIMEFilter {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &MIMEFilter{allowed: allowed}
}

// Allow reports whether declared is on the allow-list. Parameters such as
// "; charset=utf-8" are ignored.
func (f *MIMEFilter) Allow(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return false
	}
	_, ok := f.allowed[mediaType]
	return ok
}
