package flow

import (
	"strconv"
	"strings"
	"time"
)

// FieldType declares how a condition field is compared.
type FieldType string

const (
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldText   FieldType = "text"
	FieldEnum   FieldType = "enum"
)

// Operator is a comparison operator. The valid set depends on the field type.
type Operator string

const (
	OpGT          Operator = "gt"
	OpGTE         Operator = "gte"
	OpLT          Operator = "lt"
	OpLTE         Operator = "lte"
	OpEQ          Operator = "eq"
	OpNEQ         Operator = "neq"
	OpBetween     Operator = "between"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
	OpOn          Operator = "on"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpIn          Operator = "in"
)

// dateLayouts accepted for date-typed fields, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Evaluate decides which branch a condition node takes for the given field
// snapshot.
//
// The evaluator is deliberately fail-open: a nil context, an unknown
// operator, or an unparseable comparison value all evaluate to true. Flows
// are frequently authored without a full variable context, and a condition
// node must never block a document action because of a configuration gap.
// This is an explicit contract relied upon by existing workflow definitions,
// not a fallback of last resort.
func Evaluate(n *ConditionNode, context map[string]interface{}) bool {
	if n == nil || context == nil {
		return true
	}

	switch n.FieldType {
	case FieldDate:
		return evaluateDate(n, context)
	case FieldText:
		return evaluateText(n, context)
	case FieldEnum:
		return evaluateEnum(n, context)
	default:
		// Unknown field types fall back to numeric comparison, which casts
		// both sides to a number and treats anything unreadable as zero.
		return evaluateNumber(n, context)
	}
}

func evaluateNumber(n *ConditionNode, context map[string]interface{}) bool {
	lhs := toNumber(context[n.Field])
	rhs := toNumber(n.Value)

	switch n.Operator {
	case OpGT:
		return lhs > rhs
	case OpGTE:
		return lhs >= rhs
	case OpLT:
		return lhs < rhs
	case OpLTE:
		return lhs <= rhs
	case OpEQ:
		return lhs == rhs
	case OpNEQ:
		return lhs != rhs
	case OpBetween:
		hi := toNumber(n.SecondValue)
		return lhs >= rhs && lhs <= hi
	default:
		return true
	}
}

func evaluateDate(n *ConditionNode, context map[string]interface{}) bool {
	lhs, ok := toTime(context[n.Field])
	if !ok {
		return true
	}
	rhs, ok := toTime(n.Value)
	if !ok {
		return true
	}

	switch n.Operator {
	case OpBefore:
		return lhs.Before(rhs)
	case OpAfter:
		return lhs.After(rhs)
	case OpOn:
		return sameDay(lhs, rhs)
	case OpBetween:
		hi, ok := toTime(n.SecondValue)
		if !ok {
			return true
		}
		return !lhs.Before(rhs) && !lhs.After(hi)
	default:
		return true
	}
}

func evaluateText(n *ConditionNode, context map[string]interface{}) bool {
	lhs := toText(context[n.Field])
	rhs := toText(n.Value)

	switch n.Operator {
	case OpEQ:
		return lhs == rhs
	case OpNEQ:
		return lhs != rhs
	case OpContains:
		return strings.Contains(lhs, rhs)
	case OpNotContains:
		return !strings.Contains(lhs, rhs)
	case OpStartsWith:
		return strings.HasPrefix(lhs, rhs)
	default:
		return true
	}
}

func evaluateEnum(n *ConditionNode, context map[string]interface{}) bool {
	lhs := toText(context[n.Field])

	switch n.Operator {
	case OpEQ:
		return lhs == toText(n.Value)
	case OpNEQ:
		return lhs != toText(n.Value)
	case OpIn:
		members, ok := n.Value.([]interface{})
		if !ok {
			return true
		}
		for _, m := range members {
			if lhs == toText(m) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// toNumber casts a snapshot or comparison value to float64. Missing and
// non-numeric values count as zero.
func toNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func toText(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
