package query

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew_Defaults(t *testing.T) {
	q, err := New("  equipo DLS-168 ubicación  ", nil, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "equipo DLS-168 ubicación" {
		t.Errorf("Text() = %q", q.Text())
	}
	if q.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", q.TopK(), DefaultTopK)
	}
	if q.Filters() != nil {
		t.Errorf("Filters() = %v, want nil", q.Filters())
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("   ", nil, nil, 5); err == nil {
		t.Error("expected error for blank question")
	}
	if _, err := New(strings.Repeat("a", MaxQuestionLength+1), nil, nil, 5); err == nil {
		t.Error("expected error for long question")
	}
	if _, err := New("q", nil, nil, -1); err == nil {
		t.Error("expected error for negative top_k")
	}
}

func TestNew_ClampsTopK(t *testing.T) {
	q, err := New("q", nil, nil, MaxTopK+50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TopK() != MaxTopK {
		t.Errorf("TopK() = %d, want %d", q.TopK(), MaxTopK)
	}
}

func TestNew_CopiesInputs(t *testing.T) {
	filters := map[string]string{"pozo": "A-1"}
	history := []Message{{Role: "user", Content: "hola"}}
	q, _ := New("q", history, filters, 3)

	filters["pozo"] = "B-2"
	history[0].Content = "changed"

	if q.Filters()["pozo"] != "A-1" {
		t.Error("query filters must not alias the caller map")
	}
	if q.History()[0].Content != "hola" {
		t.Error("query history must not alias the caller slice")
	}
}

func TestNew_KeepsLatestHistory(t *testing.T) {
	history := make([]Message, MaxHistoryMessages+5)
	for i := range history {
		history[i] = Message{Role: "user", Content: strings.Repeat("x", i)}
	}
	q, _ := New("q", history, nil, 1)
	if len(q.History()) != MaxHistoryMessages {
		t.Fatalf("history len = %d", len(q.History()))
	}
	if len(q.History()[0].Content) != 5 {
		t.Errorf("expected oldest kept turn to be #5, got content len %d", len(q.History()[0].Content))
	}
}

func TestRecentHistory(t *testing.T) {
	h := []Message{{Content: "1"}, {Content: "2"}, {Content: "3"}, {Content: "4"}}
	got := RecentHistory(h, 3)
	if len(got) != 3 || got[0].Content != "2" {
		t.Errorf("RecentHistory = %v", got)
	}
	if len(RecentHistory(h[:2], 3)) != 2 {
		t.Error("short history must be returned whole")
	}
	if RecentHistory(h, 0) != nil {
		t.Error("n=0 must return nil")
	}
}

func TestMergeFilters_OverrideWins(t *testing.T) {
	base := map[string]string{"pozo": "A-1", "yacimiento": "LC"}
	override := map[string]string{"pozo": "B-2", "equipo": "DLS-168"}

	got := MergeFilters(base, override)
	if got["pozo"] != "B-2" || got["yacimiento"] != "LC" || got["equipo"] != "DLS-168" {
		t.Errorf("MergeFilters = %v", got)
	}
	if base["pozo"] != "A-1" || len(base) != 2 {
		t.Error("base must not be modified")
	}
	if len(MergeFilters(nil, nil)) != 0 {
		t.Error("merging nils must give an empty map")
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := strings.Repeat("ñ", 10)
	got := Truncate(s, 4)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 4 {
		t.Errorf("Truncate = %q", got)
	}
	if Truncate("abc", 10) != "abc" {
		t.Error("short strings must pass through")
	}
	if Truncate("abc", 0) != "" {
		t.Error("n=0 must give empty string")
	}
}
