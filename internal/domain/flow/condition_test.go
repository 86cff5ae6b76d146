package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateNumberOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator Operator
		value    interface{}
		second   interface{}
		field    interface{}
		want     bool
	}{
		{name: "gt true", operator: OpGT, value: float64(5000), field: float64(6000), want: true},
		{name: "gt false on equal", operator: OpGT, value: float64(5000), field: float64(5000), want: false},
		{name: "gte true on equal", operator: OpGTE, value: float64(5000), field: float64(5000), want: true},
		{name: "lt true", operator: OpLT, value: float64(5000), field: float64(4000), want: true},
		{name: "lte false", operator: OpLTE, value: float64(5000), field: float64(5001), want: false},
		{name: "eq true", operator: OpEQ, value: float64(42), field: float64(42), want: true},
		{name: "neq true", operator: OpNEQ, value: float64(42), field: float64(41), want: true},
		{name: "between inclusive low", operator: OpBetween, value: float64(10), second: float64(20), field: float64(10), want: true},
		{name: "between inclusive high", operator: OpBetween, value: float64(10), second: float64(20), field: float64(20), want: true},
		{name: "between outside", operator: OpBetween, value: float64(10), second: float64(20), field: float64(21), want: false},
		{name: "string field coerces", operator: OpGT, value: float64(100), field: "150", want: true},
		{name: "non-numeric field counts as zero", operator: OpLT, value: float64(1), field: "not a number", want: true},
		{name: "unknown operator fails open", operator: Operator("sqrt"), value: float64(1), field: float64(0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &ConditionNode{
				NodeID:      "cond",
				Field:       "amount",
				FieldType:   FieldNumber,
				Operator:    tt.operator,
				Value:       tt.value,
				SecondValue: tt.second,
			}
			got := Evaluate(n, map[string]interface{}{"amount": tt.field})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDateOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator Operator
		value    interface{}
		second   interface{}
		field    interface{}
		want     bool
	}{
		{name: "before", operator: OpBefore, value: "2026-06-01", field: "2026-05-20", want: true},
		{name: "after", operator: OpAfter, value: "2026-06-01", field: "2026-06-15", want: true},
		{name: "on same day", operator: OpOn, value: "2026-06-01", field: "2026-06-01 09:30:00", want: true},
		{name: "on different day", operator: OpOn, value: "2026-06-01", field: "2026-06-02", want: false},
		{name: "between", operator: OpBetween, value: "2026-01-01", second: "2026-12-31", field: "2026-06-01", want: true},
		{name: "unparseable field fails open", operator: OpBefore, value: "2026-06-01", field: "yesterday-ish", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &ConditionNode{
				NodeID:      "cond",
				Field:       "purchaseDate",
				FieldType:   FieldDate,
				Operator:    tt.operator,
				Value:       tt.value,
				SecondValue: tt.second,
			}
			got := Evaluate(n, map[string]interface{}{"purchaseDate": tt.field})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateTextOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator Operator
		value    interface{}
		field    interface{}
		want     bool
	}{
		{name: "eq", operator: OpEQ, value: "Engineering", field: "Engineering", want: true},
		{name: "neq", operator: OpNEQ, value: "Engineering", field: "Finance", want: true},
		{name: "contains", operator: OpContains, value: "laptop", field: "one laptop stand", want: true},
		{name: "not_contains", operator: OpNotContains, value: "laptop", field: "office chair", want: true},
		{name: "starts_with", operator: OpStartsWith, value: "PO-", field: "PO-2026-001", want: true},
		{name: "starts_with miss", operator: OpStartsWith, value: "PO-", field: "RB-2026-001", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &ConditionNode{
				NodeID:    "cond",
				Field:     "title",
				FieldType: FieldText,
				Operator:  tt.operator,
				Value:     tt.value,
			}
			got := Evaluate(n, map[string]interface{}{"title": tt.field})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateEnumOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator Operator
		value    interface{}
		field    interface{}
		want     bool
	}{
		{name: "eq", operator: OpEQ, value: "Engineering", field: "Engineering", want: true},
		{name: "in hit", operator: OpIn, value: []interface{}{"Engineering", "Finance"}, field: "Finance", want: true},
		{name: "in miss", operator: OpIn, value: []interface{}{"Engineering", "Finance"}, field: "Sales", want: false},
		{name: "in non-list fails open", operator: OpIn, value: "Engineering", field: "Sales", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &ConditionNode{
				NodeID:    "cond",
				Field:     "department",
				FieldType: FieldEnum,
				Operator:  tt.operator,
				Value:     tt.value,
			}
			got := Evaluate(n, map[string]interface{}{"department": tt.field})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateFailsOpen(t *testing.T) {
	n := &ConditionNode{
		NodeID:    "cond",
		Field:     "amount",
		FieldType: FieldNumber,
		Operator:  OpGT,
		Value:     float64(5000),
	}

	assert.True(t, Evaluate(n, nil), "nil context must evaluate to true")
	assert.True(t, Evaluate(nil, map[string]interface{}{}), "nil node must evaluate to true")
}

func TestEvaluateUnknownFieldTypeUsesNumericPath(t *testing.T) {
	n := &ConditionNode{
		NodeID:    "cond",
		Field:     "amount",
		FieldType: FieldType("mystery"),
		Operator:  OpGT,
		Value:     float64(10),
	}

	assert.True(t, Evaluate(n, map[string]interface{}{"amount": float64(20)}))
	assert.False(t, Evaluate(n, map[string]interface{}{"amount": float64(5)}))
}
