package retrieval

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/retriever/internal/domain/search/query"
)

func TestPlan_Decomposed(t *testing.T) {
	c := &mockCompleter{response: `{"subqueries":[
		{"query":"ubicación equipo DLS-168","intent":"location","filters":{"equipo":"DLS-168"}},
		{"query":"novedades DLS-168","intent":"incidents"}
	]}`}
	p := NewPlanner(c, testOptions(), zap.NewNop())

	plan := p.Plan(context.Background(), "equipment DLS-168 location", nil)
	if plan.Outcome != PlanDecomposed {
		t.Fatalf("expected decomposed, got %s", plan.Outcome)
	}
	if len(plan.Subqueries) != 2 {
		t.Fatalf("expected 2 subqueries, got %d", len(plan.Subqueries))
	}
	if plan.Subqueries[0].Filters()["equipo"] != "DLS-168" {
		t.Errorf("filters not kept: %v", plan.Subqueries[0].Filters())
	}
	if plan.Subqueries[1].Filters() == nil || len(plan.Subqueries[1].Filters()) != 0 {
		t.Errorf("missing filters must default to empty map, got %v", plan.Subqueries[1].Filters())
	}
	if plan.Degraded() {
		t.Error("decomposed plan is not degraded")
	}

	req := c.requests[0]
	if !req.JSON || req.Temperature != DefaultPlannerTemperature || req.MaxTokens != DefaultPlannerMaxTokens {
		t.Errorf("unexpected completion params: %+v", req)
	}
}

func TestPlan_ZeroTemperatureKept(t *testing.T) {
	c := &mockCompleter{response: `{"subqueries":[{"query":"ubicación DLS-168"}]}`}
	opts := testOptions()
	zero := float32(0)
	opts.PlannerTemperature = &zero
	p := NewPlanner(c, opts, zap.NewNop())

	p.Plan(context.Background(), "equipment DLS-168 location", nil)

	if len(c.requests) != 1 || c.requests[0].Temperature != 0 {
		t.Errorf("expected temperature 0, got %+v", c.requests)
	}
}

func TestPlan_TruncatesToMax(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"subqueries":[`)
	for i := range 8 {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"query":"q`)
		b.WriteByte(byte('0' + i))
		b.WriteString(`"}`)
	}
	b.WriteString(`]}`)

	opts := testOptions()
	opts.MaxSubqueries = 3
	p := NewPlanner(&mockCompleter{response: b.String()}, opts, zap.NewNop())

	plan := p.Plan(context.Background(), "q", nil)
	if len(plan.Subqueries) != 3 {
		t.Fatalf("expected 3 subqueries, got %d", len(plan.Subqueries))
	}
	if plan.Subqueries[2].Text() != "q2" {
		t.Errorf("expected first subqueries kept, got %q", plan.Subqueries[2].Text())
	}
}

func TestPlan_SkipsInvalidEntries(t *testing.T) {
	c := &mockCompleter{response: `{"subqueries":[
		"not an object",
		{"intent":"no query"},
		{"query":""},
		{"query":42},
		{"query":"  producción pozo LACh-1030  ","intent":"production"}
	]}`}
	plan := NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)

	if plan.Outcome != PlanDecomposed || len(plan.Subqueries) != 1 {
		t.Fatalf("expected one valid subquery, got %s / %d", plan.Outcome, len(plan.Subqueries))
	}
	if plan.Subqueries[0].Text() != "producción pozo LACh-1030" {
		t.Errorf("text not trimmed: %q", plan.Subqueries[0].Text())
	}
}

func TestPlan_Unparsable(t *testing.T) {
	cases := map[string]string{
		"not json":        "I think you should search for...",
		"no subqueries":   `{"queries":[]}`,
		"empty list":      `{"subqueries":[]}`,
		"all invalid":     `{"subqueries":[{"intent":"x"}]}`,
		"wrong list type": `{"subqueries":"ubicación"}`,
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			plan := NewPlanner(&mockCompleter{response: response}, testOptions(), zap.NewNop()).
				Plan(context.Background(), "equipment DLS-168 location", nil)
			assertOriginal(t, plan, "equipment DLS-168 location", PlanUnparsable)
		})
	}
}

func TestPlan_Unavailable(t *testing.T) {
	plan := NewPlanner(&mockCompleter{err: errBoom}, testOptions(), zap.NewNop()).
		Plan(context.Background(), "equipment DLS-168 location", nil)
	assertOriginal(t, plan, "equipment DLS-168 location", PlanUnavailable)
	if !plan.Degraded() {
		t.Error("unavailable plan must be degraded")
	}
}

func TestPlan_StringifiesFilters(t *testing.T) {
	c := &mockCompleter{response: `{"subqueries":[{"query":"q","filters":
		{"pozo":"LACh-1030","turno":2,"activo":true,"rango":{"desde":"x"},"nada":null,"lista":[1]}}]}`}
	plan := NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)

	f := plan.Subqueries[0].Filters()
	if f["pozo"] != "LACh-1030" || f["turno"] != "2" || f["activo"] != "true" {
		t.Errorf("scalars not stringified: %v", f)
	}
	if len(f) != 3 {
		t.Errorf("non-scalar values must be dropped: %v", f)
	}
}

func TestPlan_NonObjectFiltersIgnored(t *testing.T) {
	c := &mockCompleter{response: `{"subqueries":[{"query":"q","filters":"pozo=1"}]}`}
	plan := NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)
	if plan.Outcome != PlanDecomposed || len(plan.Subqueries[0].Filters()) != 0 {
		t.Errorf("expected subquery with empty filters, got %+v", plan)
	}
}

func TestPlan_CodeFence(t *testing.T) {
	c := &mockCompleter{response: "```json\n{\"subqueries\":[{\"query\":\"q1\"}]}\n```"}
	plan := NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)
	if plan.Outcome != PlanDecomposed || plan.Subqueries[0].Text() != "q1" {
		t.Errorf("fenced JSON not accepted: %+v", plan)
	}
}

func TestPlan_PromptHistory(t *testing.T) {
	c := &mockCompleter{err: errBoom}
	p := NewPlanner(c, testOptions(), zap.NewNop())

	history := []query.Message{
		{Role: "user", Content: "turn-one"},
		{Role: "assistant", Content: "turn-two"},
		{Role: "user", Content: "turn-three"},
		{Role: "assistant", Content: strings.Repeat("x", 300)},
	}
	p.Plan(context.Background(), "equipment DLS-168 location", history)

	prompt := c.requests[0].User
	if strings.Contains(prompt, "turn-one") {
		t.Error("only the last 3 turns belong in the prompt")
	}
	if !strings.Contains(prompt, "assistant: turn-two\nuser: turn-three") {
		t.Errorf("history not rendered as role: content lines:\n%s", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("x", 201)) || !strings.Contains(prompt, strings.Repeat("x", 200)) {
		t.Error("history content must be cut to 200 runes")
	}
	if !strings.Contains(prompt, "User Query: equipment DLS-168 location") {
		t.Error("question missing from prompt")
	}
	if !strings.Contains(prompt, "Maximum 5 subqueries") {
		t.Error("max subqueries missing from prompt")
	}
}

func TestPlan_PromptWithoutHistory(t *testing.T) {
	c := &mockCompleter{err: errBoom}
	NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)
	if !strings.Contains(c.requests[0].User, "No previous context") {
		t.Error("empty history must render as 'No previous context'")
	}
}

func TestPlan_AppliesTimeout(t *testing.T) {
	var hasDeadline bool
	c := &mockCompleter{
		response: `{"subqueries":[{"query":"q"}]}`,
		ctxErr: func(ctx context.Context) {
			_, hasDeadline = ctx.Deadline()
		},
	}
	NewPlanner(c, testOptions(), zap.NewNop()).Plan(context.Background(), "q", nil)
	if !hasDeadline {
		t.Error("completion call must carry a deadline")
	}
}

func assertOriginal(t *testing.T, plan Plan, question string, outcome PlanOutcome) {
	t.Helper()
	if plan.Outcome != outcome {
		t.Errorf("expected outcome %s, got %s", outcome, plan.Outcome)
	}
	if len(plan.Subqueries) != 1 {
		t.Fatalf("expected exactly one subquery, got %d", len(plan.Subqueries))
	}
	sq := plan.Subqueries[0]
	if sq.Text() != question || sq.Intent() != query.OriginalIntent || len(sq.Filters()) != 0 {
		t.Errorf("expected original subquery, got %q / %q / %v", sq.Text(), sq.Intent(), sq.Filters())
	}
}
