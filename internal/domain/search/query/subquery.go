package query

import (
	"errors"
	"maps"
	"strings"
)

// Subquery limits.
const (
	MaxSubqueryLength = 500
	MaxIntentLength   = 200
	// OriginalIntent labels the single subquery used when decomposition is unavailable.
	OriginalIntent = "original query"
)

// ErrEmptySubquery is returned for a subquery without text.
var ErrEmptySubquery = errors.New("subquery text is required")

// Subquery is one focused search request derived from the question.
type Subquery struct {
	text    string
	intent  string
	filters map[string]string
}

// NewSubquery trims and truncates text and intent. Filters default to an empty map.
func NewSubquery(text, intent string, filters map[string]string) (Subquery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Subquery{}, ErrEmptySubquery
	}
	f := maps.Clone(filters)
	if f == nil {
		f = map[string]string{}
	}
	return Subquery{
		text:    Truncate(text, MaxSubqueryLength),
		intent:  Truncate(strings.TrimSpace(intent), MaxIntentLength),
		filters: f,
	}, nil
}

// Original is the non-decomposed subquery for question.
func Original(question string) Subquery {
	return Subquery{text: question, intent: OriginalIntent, filters: map[string]string{}}
}

// Text returns the search text.
func (s Subquery) Text() string { return s.text }

// Intent returns the short label of what the subquery looks for.
func (s Subquery) Intent() string { return s.intent }

// Filters returns the filter overrides.
func (s Subquery) Filters() map[string]string { return s.filters }
