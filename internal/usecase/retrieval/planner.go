package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain"
	"github.com/kailas-cloud/retriever/internal/domain/search/query"
	"github.com/kailas-cloud/retriever/internal/metrics"
)

// historyContentRunes bounds each history turn quoted in the planning prompt.
const historyContentRunes = 200

// PlanOutcome says how the subquery list was produced.
type PlanOutcome string

// Plan outcomes.
const (
	PlanDecomposed  PlanOutcome = "decomposed"
	PlanUnparsable  PlanOutcome = "unparsable"
	PlanUnavailable PlanOutcome = "unavailable"
)

// Plan is the planner result: 1..MaxSubqueries subqueries, never empty.
type Plan struct {
	Subqueries []query.Subquery
	Outcome    PlanOutcome
}

// Degraded reports whether the question was not decomposed.
func (p Plan) Degraded() bool { return p.Outcome != PlanDecomposed }

// Planner decomposes a question into focused subqueries with a completion model.
type Planner struct {
	completer Completer
	opts      Options
	logger    *zap.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(completer Completer, opts Options, logger *zap.Logger) *Planner {
	opts.applyDefaults()
	return &Planner{completer: completer, opts: opts, logger: logger}
}

// Plan never fails: any completion or parsing problem yields the original question as the only subquery.
func (p *Planner) Plan(ctx context.Context, question string, history []query.Message) Plan {
	log := logFor(ctx, p.logger)

	ctx, cancel := context.WithTimeout(ctx, p.opts.PlannerTimeout)
	defer cancel()

	content, err := p.completer.Complete(ctx, domain.CompletionRequest{
		System:      plannerSystemPrompt,
		User:        p.userPrompt(question, history),
		Temperature: *p.opts.PlannerTemperature,
		MaxTokens:   p.opts.PlannerMaxTokens,
		JSON:        true,
	})
	if err != nil {
		log.Warn("query planning failed", zap.Error(err))
		return p.single(question, PlanUnavailable)
	}

	subqueries, err := parsePlan(content, p.opts.MaxSubqueries)
	if err != nil {
		log.Warn("unparsable plan", zap.Error(err), zap.Int("response_len", len(content)))
		return p.single(question, PlanUnparsable)
	}

	metrics.PlannerOutcomesTotal.WithLabelValues(string(PlanDecomposed)).Inc()
	log.Debug("query planned", zap.Int("subqueries", len(subqueries)))
	return Plan{Subqueries: subqueries, Outcome: PlanDecomposed}
}

func (p *Planner) single(question string, outcome PlanOutcome) Plan {
	metrics.PlannerOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return Plan{Subqueries: []query.Subquery{query.Original(question)}, Outcome: outcome}
}

func (p *Planner) userPrompt(question string, history []query.Message) string {
	recent := query.RecentHistory(history, p.opts.HistoryTurns)
	convo := "No previous context"
	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, m := range recent {
			lines = append(lines, m.Role+": "+query.Truncate(m.Content, historyContentRunes))
		}
		convo = strings.Join(lines, "\n")
	}
	return fmt.Sprintf(plannerUserPrompt, convo, question, p.opts.MaxSubqueries, p.opts.MaxSubqueries)
}

type rawPlan struct {
	Subqueries []json.RawMessage `json:"subqueries"`
}

type rawSubquery struct {
	Query   any             `json:"query"`
	Intent  any             `json:"intent"`
	Filters json.RawMessage `json:"filters"`
}

// parsePlan decodes the planner response. Malformed entries are skipped;
// an error means nothing usable came back.
func parsePlan(content string, limit int) ([]query.Subquery, error) {
	var plan rawPlan
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}

	out := make([]query.Subquery, 0, min(len(plan.Subqueries), limit))
	for _, raw := range plan.Subqueries {
		if len(out) == limit {
			break
		}
		var rs rawSubquery
		if err := json.Unmarshal(raw, &rs); err != nil {
			continue
		}
		text, ok := rs.Query.(string)
		if !ok {
			continue
		}
		intent, _ := rs.Intent.(string)
		sq, err := query.NewSubquery(text, intent, stringFilters(rs.Filters))
		if err != nil {
			continue
		}
		out = append(out, sq)
	}
	if len(out) == 0 {
		return nil, errors.New("no valid subqueries in plan")
	}
	return out, nil
}

// stringFilters keeps scalar filter values as strings and drops the rest.
func stringFilters(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
