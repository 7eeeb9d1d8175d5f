// Package hybrid describes one combined keyword + vector search call against the index.
package hybrid

import (
	"github.com/kailas-cloud/retriever/internal/domain/search/filter"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// Limits applied by index adapters.
const (
	MaxCaptions = 2
	MaxAnswers  = 3
	MaxKNN      = 50
)

// Request is a hybrid search request. Vector is optional; without it only
// the keyword/semantic leg runs.
type Request struct {
	Text       string
	Filter     string            // OData rendering of Conditions; empty = unfiltered
	Conditions filter.Expression // the same filter, structured
	Vector     []float32
	KNN        int
	Top        int
	Semantic   bool
	Captions   bool
	Answers    bool
}

// HasVector reports whether the vector leg should run.
func (r *Request) HasVector() bool { return len(r.Vector) > 0 && r.KNN > 0 }

// Response is what the index returned for one Request.
type Response struct {
	Documents []result.Document
	Answers   []result.Answer
	Count     int // total matches reported by the service, -1 if unknown
}
