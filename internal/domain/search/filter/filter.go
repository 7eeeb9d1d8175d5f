// Package filter turns structured key/value filters into search index filter expressions.
package filter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// MaxConditions is the maximum number of equality conditions in one expression.
const MaxConditions = 32

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Condition is a single equality clause.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if !fieldNameRe.MatchString(key) {
		return Condition{}, fmt.Errorf("invalid filter key %q", key)
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Expression is an AND of equality conditions, ordered by key.
type Expression struct {
	conditions []Condition
}

// NewExpression validates and creates an Expression. Conditions are sorted by key.
func NewExpression(conditions []Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many filter conditions (max %d)", MaxConditions)
	}
	sorted := slices.Clone(conditions)
	slices.SortFunc(sorted, func(a, b Condition) int { return strings.Compare(a.key, b.key) })
	return Expression{conditions: sorted}, nil
}

// Conditions returns the conditions in key order.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Builder converts filter maps into expressions.
// Empty values and malformed keys are skipped; with an allow-list, unknown keys are skipped too.
type Builder struct {
	dateFields map[string]bool
	allowed    map[string]bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithDateFields marks fields whose YYYY-MM-DD values are expanded to midnight UTC timestamps.
func WithDateFields(fields ...string) Option {
	return func(b *Builder) {
		for _, f := range fields {
			b.dateFields[f] = true
		}
	}
}

// WithAllowedFields restricts the builder to the given field names.
func WithAllowedFields(fields ...string) Option {
	return func(b *Builder) {
		if len(fields) == 0 {
			return
		}
		b.allowed = make(map[string]bool, len(fields))
		for _, f := range fields {
			b.allowed[f] = true
		}
	}
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{dateFields: make(map[string]bool)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Expression converts a filter map into an Expression.
func (b *Builder) Expression(filters map[string]string) Expression {
	conditions := make([]Condition, 0, len(filters))
	for key, value := range filters {
		if b.allowed != nil && !b.allowed[key] {
			continue
		}
		c, err := NewMatch(key, strings.TrimSpace(value))
		if err != nil {
			continue
		}
		conditions = append(conditions, c)
	}
	// Deterministic truncation: sort first, then cap.
	slices.SortFunc(conditions, func(a, c Condition) int { return strings.Compare(a.key, c.key) })
	if len(conditions) > MaxConditions {
		conditions = conditions[:MaxConditions]
	}
	expr, _ := NewExpression(conditions)
	return expr
}

// Build renders an OData filter such as `equipo eq 'DLS-168' and fecha eq '2024-03-01T00:00:00Z'`.
// ok is false when no clause survives.
func (b *Builder) Build(filters map[string]string) (string, bool) {
	expr := b.Expression(filters)
	if expr.IsEmpty() {
		return "", false
	}
	parts := make([]string, 0, len(expr.conditions))
	for _, c := range expr.conditions {
		parts = append(parts, b.odataClause(c))
	}
	return strings.Join(parts, " and "), true
}

func (b *Builder) odataClause(c Condition) string {
	value := c.match
	if b.dateFields[c.key] && isoDateRe.MatchString(value) {
		value += "T00:00:00Z"
	}
	return fmt.Sprintf("%s eq '%s'", c.key, strings.ReplaceAll(value, "'", "''"))
}
