// Package criteria evaluates workflow entry criteria and decision conditions
// against CRM record field snapshots.
package criteria

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// Evaluator applies entry criteria to record snapshots. The zero value is not
// usable; construct with NewEvaluator. Time-relative operators (this_week,
// this_month, this_quarter) are anchored to the clock supplied at
// construction so tests can pin evaluation time.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an evaluator anchored to the wall clock.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// NewEvaluatorAt returns an evaluator with a fixed clock.
func NewEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Matches reports whether a record snapshot satisfies the criteria.
//
// match_type=all is vacuously true for an empty condition list: every record
// qualifies. match_type=any with an empty list never occurs at runtime (the
// graph validator rejects it) and evaluates to false here.
func (e *Evaluator) Matches(criteria models.EntryCriteria, fields map[string]any) bool {
	if criteria.MatchType == models.MatchAny {
		for _, condition := range criteria.Conditions {
			if e.Condition(condition, fields) {
				return true
			}
		}

		return false
	}

	for _, condition := range criteria.Conditions {
		if !e.Condition(condition, fields) {
			return false
		}
	}

	return true
}

// Condition evaluates a single condition against a record snapshot. A missing
// field satisfies is_null and not_equals and fails every other operator; the
// evaluator never errors on absent or oddly-typed data.
func (e *Evaluator) Condition(condition models.EntryCondition, fields map[string]any) bool {
	value, present := fields[condition.Field]
	if !present || value == nil {
		switch condition.Operator {
		case models.OperatorIsNull, models.OperatorNotEquals:
			return true
		default:
			return false
		}
	}

	switch condition.Operator {
	case models.OperatorEquals:
		return equals(value, condition.Value)
	case models.OperatorNotEquals:
		return !equals(value, condition.Value)
	case models.OperatorContains:
		return contains(value, condition.Value)
	case models.OperatorGreaterThan:
		return ordered(value, condition.Value, func(cmp int) bool { return cmp > 0 })
	case models.OperatorLessThan:
		return ordered(value, condition.Value, func(cmp int) bool { return cmp < 0 })
	case models.OperatorIsNull:
		return false
	case models.OperatorIsNotNull:
		return true
	case models.OperatorThisWeek:
		start := startOfWeek(e.now())

		return inWindow(value, start, start.AddDate(0, 0, 7))
	case models.OperatorThisMonth:
		now := e.now()
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

		return inWindow(value, start, start.AddDate(0, 1, 0))
	case models.OperatorThisQuarter:
		now := e.now()
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location())

		return inWindow(value, start, start.AddDate(0, 3, 0))
	default:
		return false
	}
}

// equals compares loosely: numeric values compare numerically regardless of
// concrete type, everything else through string form or deep equality.
func equals(fieldValue, conditionValue any) bool {
	if fieldNum, ok := toFloat(fieldValue); ok {
		if condNum, ok := toFloat(conditionValue); ok {
			return fieldNum == condNum
		}
	}

	if reflect.DeepEqual(fieldValue, conditionValue) {
		return true
	}

	return stringify(fieldValue) == stringify(conditionValue)
}

// contains is substring match for strings and membership for slices.
func contains(fieldValue, conditionValue any) bool {
	switch v := fieldValue.(type) {
	case string:
		return strings.Contains(v, stringify(conditionValue))
	case []any:
		for _, item := range v {
			if equals(item, conditionValue) {
				return true
			}
		}

		return false
	case []string:
		for _, item := range v {
			if item == stringify(conditionValue) {
				return true
			}
		}

		return false
	default:
		return false
	}
}

// ordered compares numerically when both sides parse as numbers, otherwise by
// date when both sides parse as dates.
func ordered(fieldValue, conditionValue any, accept func(cmp int) bool) bool {
	fieldNum, fieldOK := toFloat(fieldValue)
	condNum, condOK := toFloat(conditionValue)

	if fieldOK && condOK {
		switch {
		case fieldNum > condNum:
			return accept(1)
		case fieldNum < condNum:
			return accept(-1)
		default:
			return accept(0)
		}
	}

	fieldTime, fieldOK := toTime(fieldValue)
	condTime, condOK := toTime(conditionValue)

	if fieldOK && condOK {
		switch {
		case fieldTime.After(condTime):
			return accept(1)
		case fieldTime.Before(condTime):
			return accept(-1)
		default:
			return accept(0)
		}
	}

	return false
}

func inWindow(value any, start, end time.Time) bool {
	at, ok := toTime(value)
	if !ok {
		return false
	}

	return !at.Before(start) && at.Before(end)
}

// startOfWeek returns Monday 00:00 of the week containing t.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())

	return day.AddDate(0, 0, -(weekday - 1))
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(v, 64)

		return num, err == nil
	default:
		return 0, false
	}
}

// toTime accepts time.Time and the date formats the CRM stores use.
func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if at, err := time.Parse(layout, v); err == nil {
				return at, true
			}
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
