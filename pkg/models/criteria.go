package models

// MatchType controls how a list of entry conditions combines.
type MatchType string

const (
	MatchAll MatchType = "all"
	MatchAny MatchType = "any"
)

// ConditionOperator is the comparison applied by an entry condition or a
// decision step.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorIsNull      ConditionOperator = "is_null"
	OperatorIsNotNull   ConditionOperator = "is_not_null"
	OperatorThisWeek    ConditionOperator = "this_week"
	OperatorThisMonth   ConditionOperator = "this_month"
	OperatorThisQuarter ConditionOperator = "this_quarter"
)

// ConditionOperators lists every supported operator.
var ConditionOperators = []ConditionOperator{
	OperatorEquals,
	OperatorNotEquals,
	OperatorContains,
	OperatorGreaterThan,
	OperatorLessThan,
	OperatorIsNull,
	OperatorIsNotNull,
	OperatorThisWeek,
	OperatorThisMonth,
	OperatorThisQuarter,
}

// RequiresValue reports whether the operator compares against a configured
// value. The null checks and the date-window operators ignore Value.
func (op ConditionOperator) RequiresValue() bool {
	switch op {
	case OperatorIsNull, OperatorIsNotNull, OperatorThisWeek, OperatorThisMonth, OperatorThisQuarter:
		return false
	default:
		return true
	}
}

// EntryCondition is one predicate over a record field.
type EntryCondition struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value,omitempty"`
}

// EntryCriteria gates which records may start a run of a workflow. An empty
// condition list is only legal with MatchAll (every record qualifies);
// validation rejects an empty list under MatchAny.
type EntryCriteria struct {
	MatchType  MatchType        `json:"match_type" validate:"required,oneof=all any"`
	Conditions []EntryCondition `json:"conditions"`
}
