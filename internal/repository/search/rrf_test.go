package search

import (
	"math"
	"testing"

	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

func makeDoc(id string) result.Document {
	return result.Document{ID: id, Content: "content-" + id}
}

func TestFuseRRF_DisjointLists(t *testing.T) {
	knn := []result.Document{makeDoc("a"), makeDoc("b")}
	bm25 := []result.Document{makeDoc("c"), makeDoc("d")}

	results := fuseRRF(knn, bm25, 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	// equal ranks tie; ties keep knn-first order
	want := []string{"a", "c", "b", "d"}
	for i, id := range want {
		if results[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, results[i].ID, id)
		}
	}
}

func TestFuseRRF_OverlappingLists(t *testing.T) {
	knn := []result.Document{makeDoc("a"), makeDoc("b"), makeDoc("c")}
	bm25 := []result.Document{makeDoc("b"), makeDoc("d"), makeDoc("a")}

	results := fuseRRF(knn, bm25, 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	// "b": 1/62 + 1/61 beats "a": 1/61 + 1/63
	if results[0].ID != "b" || results[1].ID != "a" {
		t.Fatalf("unexpected order: %s, %s", results[0].ID, results[1].ID)
	}
	wantB := 1.0/62 + 1.0/61
	if math.Abs(results[0].Score-wantB) > 1e-9 {
		t.Errorf("b score: got %v, want %v", results[0].Score, wantB)
	}
}

func TestFuseRRF_TopK(t *testing.T) {
	knn := []result.Document{makeDoc("a"), makeDoc("b"), makeDoc("c")}
	if got := fuseRRF(knn, nil, 2); len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}

func TestFuseRRF_Empty(t *testing.T) {
	if got := fuseRRF(nil, nil, 5); len(got) != 0 {
		t.Fatalf("expected empty, got %d", len(got))
	}
}
