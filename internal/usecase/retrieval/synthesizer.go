package retrieval

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// answerKeyRunes is the prefix length used to detect duplicate answers.
const answerKeyRunes = 100

// Synthesizer fuses subquery results into one ranked, de-duplicated set.
type Synthesizer struct {
	scoreWeight    float64
	rerankerWeight float64
	maxAnswers     int
}

// NewSynthesizer creates a Synthesizer from the weight and answer-cap options.
func NewSynthesizer(opts Options) *Synthesizer {
	opts.applyDefaults()
	return &Synthesizer{
		scoreWeight:    opts.ScoreWeight,
		rerankerWeight: opts.RerankerWeight,
		maxAnswers:     opts.MaxAnswers,
	}
}

// Combined blends index and reranker scores. Without a reranker score the index score is used as-is.
func (s *Synthesizer) Combined(d *result.Document) float64 {
	if d.RerankerScore > 0 {
		return s.scoreWeight*d.Score + s.rerankerWeight*d.RerankerScore
	}
	return d.Score
}

// Synthesize is pure and deterministic for a given input order.
// Metadata is left for the caller to fill in.
func (s *Synthesizer) Synthesize(results []result.SubqueryResult, topK int) result.Synthesized {
	var (
		docs      []result.Document
		answers   []result.Answer
		summaries = make([]result.SubquerySummary, 0, len(results))
		seen      = make(map[string]bool)
	)

	for i := range results {
		r := &results[i]
		summary := result.SubquerySummary{
			Query:  r.Subquery.Text(),
			Intent: r.Subquery.Intent(),
		}
		if r.Failed() {
			summary.Error = r.Err
			summaries = append(summaries, summary)
			continue
		}
		summary.DocumentsFound = len(r.Documents)
		summary.HasAnswers = len(r.Answers) > 0
		summaries = append(summaries, summary)

		for _, d := range r.Documents {
			if d.ID == "" || seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			d.CombinedScore = s.Combined(&d)
			docs = append(docs, d)
		}
		answers = append(answers, r.Answers...)
	}

	slices.SortStableFunc(docs, func(a, b result.Document) int {
		return cmp.Compare(b.CombinedScore, a.CombinedScore)
	})
	total := len(docs)
	if topK >= 0 && len(docs) > topK {
		docs = docs[:topK]
	}

	answers = dedupeAnswers(answers)
	totalAnswers := len(answers)
	if len(answers) > s.maxAnswers {
		answers = answers[:s.maxAnswers]
	}

	if docs == nil {
		docs = []result.Document{}
	}
	if answers == nil {
		answers = []result.Answer{}
	}

	return result.Synthesized{
		Documents: docs,
		Answers:   answers,
		Grounding: result.Grounding{
			TotalDocumentsFound: total,
			DocumentsReturned:   len(docs),
			TotalAnswers:        totalAnswers,
			SubqueriesExecuted:  summaries,
		},
	}
}

// dedupeAnswers drops answers whose normalized prefix was already seen,
// then orders by score descending with unscored answers last.
func dedupeAnswers(answers []result.Answer) []result.Answer {
	seen := make(map[string]bool, len(answers))
	out := make([]result.Answer, 0, len(answers))
	for _, a := range answers {
		key := answerKey(a.Text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b result.Answer) int {
		switch {
		case a.Score == nil && b.Score == nil:
			return 0
		case a.Score == nil:
			return 1
		case b.Score == nil:
			return -1
		}
		return cmp.Compare(*b.Score, *a.Score)
	})
	return out
}

func answerKey(text string) string {
	return strings.TrimSpace(strings.ToLower(query.Truncate(text, answerKeyRunes)))
}
