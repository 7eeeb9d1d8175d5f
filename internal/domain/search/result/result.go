// Package result holds per-subquery and synthesized retrieval results.
package result

import (
	"time"

	"github.com/kailas-cloud/retriever/internal/domain/search/mode"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
)

// Headers are the section headings a chunk was cut from.
type Headers struct {
	H1 string
	H2 string
	H3 string
}

// Document is a single chunk returned by the search index.
// ID is the de-duplication key across subqueries.
type Document struct {
	ID            string
	ParentID      string
	Content       string
	ChunkIndex    int
	Headers       Headers
	Tags          map[string]string
	Score         float64
	RerankerScore float64 // 0 when semantic ranking is unavailable
	Captions      []string
	CombinedScore float64 // set during synthesis
}

// Answer is a span the search index identified as directly answering the query.
type Answer struct {
	Text  string
	Score *float64
}

// NewAnswer creates an answer with a known score.
func NewAnswer(text string, score float64) Answer {
	return Answer{Text: text, Score: &score}
}

// SubqueryResult is the outcome of one subquery. Err is set and Documents empty on failure.
type SubqueryResult struct {
	Subquery   query.Subquery
	Documents  []Document
	Answers    []Answer
	TotalCount int
	Err        string
	Duration   time.Duration
}

// Failed reports whether the subquery ended in error.
func (r *SubqueryResult) Failed() bool { return r.Err != "" }

// Failure builds the terminal error state for a subquery.
func Failure(sq query.Subquery, err error, took time.Duration) SubqueryResult {
	return SubqueryResult{Subquery: sq, Documents: []Document{}, Err: err.Error(), Duration: took}
}

// SubquerySummary describes how one subquery contributed to the result.
type SubquerySummary struct {
	Query          string
	Intent         string
	DocumentsFound int
	HasAnswers     bool
	Error          string
}

// Grounding describes how a result was assembled.
type Grounding struct {
	TotalDocumentsFound int
	DocumentsReturned   int
	TotalAnswers        int
	SubqueriesExecuted  []SubquerySummary
}

// Metadata records execution details of the run.
type Metadata struct {
	RunID               string
	Mode                mode.Mode
	Duration            time.Duration
	SubqueriesExecuted  int
	SubqueriesSucceeded int
	PlannerDegraded     bool
	EmbeddingTokens     int
	Timestamp           time.Time
}

// Synthesized is the fused, ranked output of a retrieval run.
type Synthesized struct {
	Documents []Document
	Answers   []Answer
	Grounding Grounding
	Metadata  Metadata
}
