package retrieval

import "time"

// Orchestration defaults.
const (
	DefaultMaxSubqueries      = 5
	DefaultMaxDocsPerSubquery = 50
	DefaultMaxAnswers         = 3
	DefaultHistoryTurns       = 3
	DefaultScoreWeight        = 0.3
	DefaultRerankerWeight     = 0.7
	DefaultSubqueryTimeout    = 30 * time.Second
	DefaultPlannerTimeout     = 20 * time.Second
	DefaultFallbackTimeout    = 30 * time.Second
	DefaultPlannerTemperature = 0.3
	DefaultPlannerMaxTokens   = 500
)

// Options tune a retrieval run. Zero values take the defaults above.
type Options struct {
	MaxSubqueries      int
	MaxDocsPerSubquery int
	MaxAnswers         int
	HistoryTurns       int
	ScoreWeight        float64
	RerankerWeight     float64
	SubqueryTimeout    time.Duration
	PlannerTimeout     time.Duration
	FallbackTimeout    time.Duration
	PlannerTemperature *float32 // nil = DefaultPlannerTemperature; 0 is kept
	PlannerMaxTokens   int
}

// DefaultOptions returns Options with every field at its default.
func DefaultOptions() Options {
	var o Options
	o.applyDefaults()
	return o
}

func (o *Options) applyDefaults() {
	if o.MaxSubqueries <= 0 {
		o.MaxSubqueries = DefaultMaxSubqueries
	}
	if o.MaxDocsPerSubquery <= 0 {
		o.MaxDocsPerSubquery = DefaultMaxDocsPerSubquery
	}
	if o.MaxAnswers <= 0 {
		o.MaxAnswers = DefaultMaxAnswers
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = DefaultHistoryTurns
	}
	if o.ScoreWeight == 0 && o.RerankerWeight == 0 {
		o.ScoreWeight = DefaultScoreWeight
		o.RerankerWeight = DefaultRerankerWeight
	}
	if o.SubqueryTimeout <= 0 {
		o.SubqueryTimeout = DefaultSubqueryTimeout
	}
	if o.PlannerTimeout <= 0 {
		o.PlannerTimeout = DefaultPlannerTimeout
	}
	if o.FallbackTimeout <= 0 {
		o.FallbackTimeout = DefaultFallbackTimeout
	}
	if o.PlannerTemperature == nil {
		t := float32(DefaultPlannerTemperature)
		o.PlannerTemperature = &t
	}
	if o.PlannerMaxTokens <= 0 {
		o.PlannerMaxTokens = DefaultPlannerMaxTokens
	}
}
