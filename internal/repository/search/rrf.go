package search

import (
	"sort"

	"github.com/kailas-cloud/retriever/internal/domain/search/result"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges KNN and BM25 results via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each ranking where d appears.
// When a document appears in both lists, the KNN copy is kept. Ties keep
// first-seen order (KNN list first), so the output is deterministic.
func fuseRRF(knn, bm25 []result.Document, topK int) []result.Document {
	type scored struct {
		doc   result.Document
		score float64
	}

	merged := make([]*scored, 0, len(knn)+len(bm25))
	byID := make(map[string]*scored, len(knn)+len(bm25))

	add := func(list []result.Document) {
		for rank, d := range list {
			s := 1.0 / float64(rrfK+rank+1)
			if existing, ok := byID[d.ID]; ok {
				existing.score += s
				continue
			}
			entry := &scored{doc: d, score: s}
			byID[d.ID] = entry
			merged = append(merged, entry)
		}
	}
	add(knn)
	add(bm25)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}

	out := make([]result.Document, len(merged))
	for i, s := range merged {
		out[i] = s.doc
		out[i].Score = s.score
	}
	return out
}
