// Package query holds the validated inputs of one retrieval run.
package query

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"
)

// Query limits.
const (
	// MaxQuestionLength is the maximum question length in runes.
	MaxQuestionLength = 4096
	DefaultTopK       = 10
	MaxTopK           = 100
	// MaxHistoryMessages bounds how much conversation history a request may carry.
	MaxHistoryMessages = 50
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Query is a validated question plus its conversational context.
type Query struct {
	text    string
	history []Message
	filters map[string]string
	topK    int
}

// New validates and normalizes search parameters.
// Defaults: topK=10. History keeps only the most recent MaxHistoryMessages turns.
func New(text string, history []Message, filters map[string]string, topK int) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("question is required")
	}
	if utf8.RuneCountInString(text) > MaxQuestionLength {
		return Query{}, fmt.Errorf("question too long (max %d chars)", MaxQuestionLength)
	}
	if topK < 0 {
		return Query{}, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}

	return Query{
		text:    text,
		history: append([]Message(nil), history...),
		filters: maps.Clone(filters),
		topK:    topK,
	}, nil
}

// Text returns the question.
func (q *Query) Text() string { return q.text }

// History returns the conversation turns, oldest first.
func (q *Query) History() []Message { return q.history }

// Filters returns the base filters applied to every subquery.
func (q *Query) Filters() map[string]string { return q.filters }

// TopK returns the number of documents to return.
func (q *Query) TopK() int { return q.topK }

// RecentHistory returns at most n of the latest turns.
func RecentHistory(history []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// MergeFilters overlays override on base. Neither input is modified.
func MergeFilters(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	maps.Copy(merged, base)
	maps.Copy(merged, override)
	return merged
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
