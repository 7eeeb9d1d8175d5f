// Package mode names the retrieval path that produced a result.
package mode

// Mode is the retrieval strategy that assembled a result.
type Mode string

// Retrieval mode constants.
const (
	// Agentic decomposes the question and fuses concurrent subquery results.
	Agentic Mode = "agentic"
	// Fallback is a single non-decomposed hybrid search.
	Fallback Mode = "fallback"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Agentic || m == Fallback
}
