package chi

import (
	"time"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// ErrorCode is a machine-readable error code in API responses.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeSearchUnavailable ErrorCode = "search_unavailable"
	ErrorCodeUpstreamError     ErrorCode = "upstream_error"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Question string            `json:"question"`
	History  []query.Message   `json:"history,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
	TopK     *int              `json:"top_k,omitempty"`
}

// SearchResponse is the synthesized retrieval result.
type SearchResponse struct {
	Documents []DocumentItem `json:"documents"`
	Answers   []AnswerItem   `json:"semantic_answers"`
	Grounding GroundingData  `json:"grounding_data"`
	Metadata  MetadataData   `json:"metadata"`
}

// DocumentItem is one returned chunk.
type DocumentItem struct {
	ChunkID       string            `json:"chunk_id"`
	ParentID      string            `json:"parent_id,omitempty"`
	Content       string            `json:"content"`
	ChunkIndex    int               `json:"chunk_index"`
	Headers       HeadersItem       `json:"headers"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Score         float64           `json:"score"`
	RerankerScore float64           `json:"reranker_score"`
	CombinedScore float64           `json:"combined_score"`
	Captions      []string          `json:"captions,omitempty"`
}

// HeadersItem are the section headings of a chunk.
type HeadersItem struct {
	H1 string `json:"h1,omitempty"`
	H2 string `json:"h2,omitempty"`
	H3 string `json:"h3,omitempty"`
}

// AnswerItem is an extracted answer; Score is null when the index did not score it.
type AnswerItem struct {
	Text  string   `json:"text"`
	Score *float64 `json:"score"`
}

// GroundingData describes how the result was assembled.
type GroundingData struct {
	TotalDocumentsFound int               `json:"total_documents_found"`
	DocumentsReturned   int               `json:"documents_returned"`
	TotalAnswers        int               `json:"total_semantic_answers"`
	SubqueriesExecuted  []SubquerySummary `json:"subqueries_executed"`
}

// SubquerySummary is one subquery's contribution.
type SubquerySummary struct {
	Query          string `json:"query"`
	Intent         string `json:"intent"`
	DocumentsFound int    `json:"documents_found"`
	HasAnswers     bool   `json:"has_semantic_answers"`
	Error          string `json:"error,omitempty"`
}

// MetadataData records execution details.
type MetadataData struct {
	RunID                string  `json:"run_id"`
	RetrievalMode        string  `json:"retrieval_mode"`
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	SubqueriesExecuted   int     `json:"subqueries_executed"`
	SubqueriesSuccessful int     `json:"subqueries_successful"`
	PlannerDegraded      bool    `json:"planner_degraded"`
	EmbeddingTokens      int     `json:"embedding_tokens"`
	Timestamp            string  `json:"timestamp"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func searchResponseFrom(s *result.Synthesized) SearchResponse {
	docs := make([]DocumentItem, len(s.Documents))
	for i := range s.Documents {
		docs[i] = documentItemFrom(&s.Documents[i])
	}
	answers := make([]AnswerItem, len(s.Answers))
	for i, a := range s.Answers {
		answers[i] = AnswerItem{Text: a.Text, Score: a.Score}
	}
	summaries := make([]SubquerySummary, len(s.Grounding.SubqueriesExecuted))
	for i, sq := range s.Grounding.SubqueriesExecuted {
		summaries[i] = SubquerySummary{
			Query:          sq.Query,
			Intent:         sq.Intent,
			DocumentsFound: sq.DocumentsFound,
			HasAnswers:     sq.HasAnswers,
			Error:          sq.Error,
		}
	}
	m := s.Metadata
	return SearchResponse{
		Documents: docs,
		Answers:   answers,
		Grounding: GroundingData{
			TotalDocumentsFound: s.Grounding.TotalDocumentsFound,
			DocumentsReturned:   s.Grounding.DocumentsReturned,
			TotalAnswers:        s.Grounding.TotalAnswers,
			SubqueriesExecuted:  summaries,
		},
		Metadata: MetadataData{
			RunID:                m.RunID,
			RetrievalMode:        string(m.Mode),
			ExecutionTimeSeconds: m.Duration.Seconds(),
			SubqueriesExecuted:   m.SubqueriesExecuted,
			SubqueriesSuccessful: m.SubqueriesSucceeded,
			PlannerDegraded:      m.PlannerDegraded,
			EmbeddingTokens:      m.EmbeddingTokens,
			Timestamp:            m.Timestamp.Format(time.RFC3339Nano),
		},
	}
}

func documentItemFrom(d *result.Document) DocumentItem {
	return DocumentItem{
		ChunkID:       d.ID,
		ParentID:      d.ParentID,
		Content:       d.Content,
		ChunkIndex:    d.ChunkIndex,
		Headers:       HeadersItem{H1: d.Headers.H1, H2: d.Headers.H2, H3: d.Headers.H3},
		Metadata:      d.Tags,
		Score:         d.Score,
		RerankerScore: d.RerankerScore,
		CombinedScore: d.CombinedScore,
		Captions:      d.Captions,
	}
}
