package db

import "github.com/kailas-cloud/retriever/internal/domain/search/filter"

// Default FT schema field names.
const (
	DefaultVectorField = "vector"
	DefaultTextField   = "content"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	VectorField  string // default: DefaultVectorField
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	TextField    string // default: DefaultTextField
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
