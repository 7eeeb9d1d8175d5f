package azsearch

import "encoding/json"

type searchRequest struct {
	Search                string        `json:"search"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	Captions              string        `json:"captions,omitempty"`
	Answers               string        `json:"answers,omitempty"`
	SearchMode            string        `json:"searchMode,omitempty"`
	Count                 bool          `json:"count"`
	Top                   int           `json:"top"`
	Select                string        `json:"select,omitempty"`
	Filter                string        `json:"filter,omitempty"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
	Fields string    `json:"fields"`
}

type searchResponse struct {
	Count   *int                         `json:"@odata.count"`
	Answers []answer                     `json:"@search.answers"`
	Value   []map[string]json.RawMessage `json:"value"`
}

type answer struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Highlights string   `json:"highlights"`
	Score      *float64 `json:"score"`
}

type caption struct {
	Text       string `json:"text"`
	Highlights string `json:"highlights"`
}
