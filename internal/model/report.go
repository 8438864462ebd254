package model

import (
	"sort"
	"time"
)

// Segment is one citation inside a string citation, or a standalone region
type Segment struct {
	Text     string `json:"text"`
	Span     Span   `json:"span"`
	GroupID  string `json:"string_group_id,omitempty"`
	Position *int   `json:"position_in_string,omitempty"`
	Boundary bool   `json:"boundary"`
}

// Report is the assembled result of compiling one document
type Report struct {
	DocumentID DocumentID        `json:"document_id"`
	Source     string            `json:"source,omitempty"`      // File path or URL the text came from
	CompiledAt time.Time         `json:"compiled_at"`           // When compilation finished
	Citations  map[string]*Entry `json:"citations"`             // Keyed by ResourceKey.String()
	Summary    Summary           `json:"summary"`               // Per-status counts
	Warnings   []string          `json:"warnings,omitempty"`    // Degradations that did not abort the compile
}

// Summary counts entries by verification status
type Summary struct {
	Total         int     `json:"total"`
	Occurrences   int     `json:"occurrences"`
	Verified      int     `json:"verified"`
	Warning       int     `json:"warning"`
	NoMatch       int     `json:"no_match"`
	Pending       int     `json:"pending"`
	Error         int     `json:"error"`
	VerifiedRatio float64 `json:"verified_ratio"`
	Confidence    string  `json:"confidence"` // "low", "medium", "high"
}

// Keys returns the report's resource keys in insertion-independent sorted order
func (r *Report) Keys() []string {
	keys := make([]string, 0, len(r.Citations))
	for k := range r.Citations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
