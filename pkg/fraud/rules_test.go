package fraud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCondition(t *testing.T) {
	tests := []struct {
		name     string
		actual   interface{}
		op       Op
		expected interface{}
		want     bool
	}{
		{"eq numbers", 3, OpEq, 3, true},
		{"eq cross numeric types", int64(3), OpEq, 3.0, true},
		{"eq strings", "credit", OpEq, "credit", true},
		{"eq mismatch", "credit", OpEq, "debit", false},
		{"ne", 3, OpNe, 4, true},
		{"ne mismatched types is true", nil, OpNe, 5, true},
		{"lt", 2, OpLt, 3, true},
		{"lt false", 3, OpLt, 3, false},
		{"le", 3, OpLe, 3, true},
		{"gt", 4.5, OpGt, 4, true},
		{"ge equal", 3.0, OpGe, 3, true},
		{"strings order", "a", OpLt, "b", true},
		{"mismatched ordering fails", "a", OpGt, 3, false},
		{"nil ordering fails", nil, OpGt, 3, false},
		{"unknown op", 3, Op(42), 3, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, checkCondition(tc.actual, tc.op, tc.expected))
		})
	}
}

func TestEvaluateFiresMatchingRules(t *testing.T) {
	engine := NewRuleEngine([]RuleConfig{
		{Name: "large_txn", Conditions: []Condition{
			{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 30000},
		}},
		{Name: "velocity", Conditions: []Condition{
			{Source: SourceFeatures, Field: "count_txn_1h", Op: OpGe, Value: 3},
			{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 10000},
		}},
	})

	event := map[string]interface{}{"amount": 50000}
	features := map[string]interface{}{"count_txn_1h": int64(5)}

	fired := engine.Evaluate(event, features)
	assert.Equal(t, []string{"large_txn", "velocity"}, fired)
}

func TestEvaluateShortCircuits(t *testing.T) {
	engine := NewRuleEngine([]RuleConfig{
		{Name: "velocity", Conditions: []Condition{
			{Source: SourceFeatures, Field: "count_txn_1h", Op: OpGe, Value: 3},
			{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 10000},
		}},
	})

	// first condition fails, second never matters
	fired := engine.Evaluate(
		map[string]interface{}{"amount": 50000},
		map[string]interface{}{"count_txn_1h": int64(1)},
	)
	assert.Empty(t, fired)
}

func TestEvaluateMissingFeatureDefaultsToZero(t *testing.T) {
	engine := NewRuleEngine([]RuleConfig{
		{Name: "first_credit", Conditions: []Condition{
			{Source: SourceFeatures, Field: "count_credit_24h", Op: OpEq, Value: 0},
		}},
	})

	fired := engine.Evaluate(map[string]interface{}{}, map[string]interface{}{})
	assert.Equal(t, []string{"first_credit"}, fired)
}

func TestEvaluateMissingEventAttribute(t *testing.T) {
	engine := NewRuleEngine([]RuleConfig{
		{Name: "big", Conditions: []Condition{
			{Source: SourceEvent, Field: "amount", Op: OpGt, Value: 100},
		}},
	})

	// absent event attribute has no ordering, the condition is false
	fired := engine.Evaluate(map[string]interface{}{}, map[string]interface{}{})
	assert.Empty(t, fired)
}

func TestEvaluateOrderIsDeclarationOrder(t *testing.T) {
	engine := NewRuleEngine([]RuleConfig{
		{Name: "b_rule", Conditions: []Condition{{Source: SourceEvent, Field: "x", Op: OpEq, Value: 1}}},
		{Name: "a_rule", Conditions: []Condition{{Source: SourceEvent, Field: "x", Op: OpEq, Value: 1}}},
	})

	fired := engine.Evaluate(map[string]interface{}{"x": 1}, nil)
	assert.Equal(t, []string{"b_rule", "a_rule"}, fired)
}
