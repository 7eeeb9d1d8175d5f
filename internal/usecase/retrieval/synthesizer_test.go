package retrieval

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

func ok(text string, docs []result.Document, answers ...result.Answer) result.SubqueryResult {
	sq, _ := query.NewSubquery(text, "intent "+text, nil)
	return result.SubqueryResult{Subquery: sq, Documents: docs, Answers: answers}
}

func failed(text, err string) result.SubqueryResult {
	sq, _ := query.NewSubquery(text, "intent "+text, nil)
	return result.SubqueryResult{Subquery: sq, Documents: []result.Document{}, Err: err}
}

func TestCombined_FusionFormula(t *testing.T) {
	s := NewSynthesizer(testOptions())

	d := doc("a", 0.4, 0.8)
	if got := s.Combined(&d); math.Abs(got-0.68) > 1e-9 {
		t.Errorf("combined = %v, want 0.68", got)
	}
	d = doc("b", 0.4, 0)
	if got := s.Combined(&d); got != 0.4 {
		t.Errorf("combined without reranker = %v, want 0.4", got)
	}
}

func TestCombined_CustomWeights(t *testing.T) {
	opts := testOptions()
	opts.ScoreWeight, opts.RerankerWeight = 0.5, 0.5
	d := doc("a", 0.4, 0.8)
	if got := NewSynthesizer(opts).Combined(&d); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("combined = %v, want 0.6", got)
	}
}

func TestSynthesize_DedupFirstWins(t *testing.T) {
	s := NewSynthesizer(testOptions())
	res := s.Synthesize([]result.SubqueryResult{
		ok("one", []result.Document{doc("x", 0.2, 0), doc("y", 0.1, 0)}),
		ok("two", []result.Document{doc("x", 0.1, 3.0), doc("", 5, 0)}),
	}, 10)

	if len(res.Documents) != 2 {
		t.Fatalf("expected 2 unique documents, got %d", len(res.Documents))
	}
	seen := map[string]bool{}
	for _, d := range res.Documents {
		if seen[d.ID] {
			t.Errorf("duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	if res.Documents[0].ID != "x" || res.Documents[0].CombinedScore != 0.2 {
		t.Errorf("x must keep its first occurrence score, got %+v", res.Documents[0])
	}
}

func TestSynthesize_TopKBound(t *testing.T) {
	docs := make([]result.Document, 0, 30)
	for i := range 30 {
		docs = append(docs, doc(strings.Repeat("i", i+1), float64(i), 0))
	}
	res := NewSynthesizer(testOptions()).Synthesize([]result.SubqueryResult{ok("q", docs)}, 5)

	if len(res.Documents) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(res.Documents))
	}
	if res.Grounding.TotalDocumentsFound != 30 || res.Grounding.DocumentsReturned != 5 {
		t.Errorf("grounding = %+v", res.Grounding)
	}
	for i := 1; i < len(res.Documents); i++ {
		if res.Documents[i-1].CombinedScore < res.Documents[i].CombinedScore {
			t.Fatal("documents must be sorted by combined score descending")
		}
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	input := []result.SubqueryResult{
		ok("one", []result.Document{doc("a", 0.5, 0), doc("b", 0.5, 0), doc("c", 0.1, 0.9)}),
		ok("two", []result.Document{doc("d", 0.5, 0), doc("a", 0.9, 0)}),
	}
	s := NewSynthesizer(testOptions())
	first := s.Synthesize(input, 10)
	second := s.Synthesize(input, 10)

	if !reflect.DeepEqual(first.Documents, second.Documents) {
		t.Error("synthesis must be deterministic")
	}
	// ties keep first-seen order
	var ids []string
	for _, d := range first.Documents {
		ids = append(ids, d.ID)
	}
	if strings.Join(ids, ",") != "c,a,b,d" {
		t.Errorf("order = %v, want c,a,b,d", ids)
	}
}

func TestSynthesize_FailedSubqueriesInGrounding(t *testing.T) {
	res := NewSynthesizer(testOptions()).Synthesize([]result.SubqueryResult{
		ok("one", []result.Document{doc("a", 1, 0)}, result.NewAnswer("answer", 0.5)),
		failed("two", "hybrid search: boom"),
		ok("three", []result.Document{doc("b", 1, 0)}),
	}, 10)

	g := res.Grounding
	if len(g.SubqueriesExecuted) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(g.SubqueriesExecuted))
	}
	first, second := g.SubqueriesExecuted[0], g.SubqueriesExecuted[1]
	if first.Query != "one" || first.Intent != "intent one" || first.DocumentsFound != 1 || !first.HasAnswers {
		t.Errorf("summary 0 = %+v", first)
	}
	if second.Error == "" || second.DocumentsFound != 0 || second.HasAnswers {
		t.Errorf("failed summary = %+v", second)
	}
	if len(res.Documents) != 2 || g.TotalAnswers != 1 {
		t.Errorf("documents %d / answers %d", len(res.Documents), g.TotalAnswers)
	}
}

func TestSynthesize_AnswerPrefixDedup(t *testing.T) {
	prefix := strings.Repeat("El equipo DLS-168 se encuentra en el pozo LACh-1030 ", 3)[:100]
	res := NewSynthesizer(testOptions()).Synthesize([]result.SubqueryResult{
		ok("one", nil, result.NewAnswer(prefix+" desde marzo", 0.7)),
		ok("two", nil, result.NewAnswer(strings.ToUpper(prefix)+" y luego", 0.9)),
	}, 10)

	if len(res.Answers) != 1 {
		t.Fatalf("expected answers to collapse, got %d", len(res.Answers))
	}
	if *res.Answers[0].Score != 0.7 {
		t.Error("first occurrence must win")
	}
}

func TestSynthesize_AnswerOrderingAndCap(t *testing.T) {
	res := NewSynthesizer(testOptions()).Synthesize([]result.SubqueryResult{
		ok("one", nil,
			result.Answer{Text: "unscored"},
			result.NewAnswer("low", 0.1),
			result.NewAnswer("", 0.99),
		),
		ok("two", nil, result.NewAnswer("high", 0.9), result.NewAnswer("mid", 0.5)),
	}, 10)

	if res.Grounding.TotalAnswers != 4 {
		t.Errorf("total answers = %d, want 4", res.Grounding.TotalAnswers)
	}
	var texts []string
	for _, a := range res.Answers {
		texts = append(texts, a.Text)
	}
	if strings.Join(texts, ",") != "high,mid,low" {
		t.Errorf("answers = %v, want high,mid,low", texts)
	}
}

func TestSynthesize_Empty(t *testing.T) {
	res := NewSynthesizer(testOptions()).Synthesize(nil, 10)
	if res.Documents == nil || res.Answers == nil || len(res.Documents) != 0 {
		t.Error("empty synthesis must return empty, non-nil slices")
	}
}
