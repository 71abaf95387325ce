package workflow

import (
	"encoding/json"
	"strings"

	"github.com/soporteware/helpdesk/internal/model"
)

// conditionGroups indexes a rule's conditions by or-group. Entries within
// a group combine with OR; distinct groups combine with AND.
type conditionGroups map[int][]model.WorkflowCondition

// groupConditions builds the explicit group structure the match logic
// iterates over.
func groupConditions(conditions []model.WorkflowCondition) conditionGroups {
	groups := make(conditionGroups, len(conditions))
	for _, c := range conditions {
		groups[c.OrGroup] = append(groups[c.OrGroup], c)
	}
	return groups
}

// match reports whether every group has at least one satisfied condition.
// A rule with zero conditions always matches.
func (g conditionGroups) match(snap Snapshot) bool {
	for _, conditions := range g {
		satisfied := false
		for _, c := range conditions {
			if evalCondition(c, snap) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// evalCondition applies one predicate to the snapshot.
func evalCondition(c model.WorkflowCondition, snap Snapshot) bool {
	value, known := snap[c.Field]
	if !known {
		value = nil
	}

	switch c.Operator {
	case model.OpIsNull:
		return value == nil
	case model.OpIsNotNull:
		return value != nil
	case model.OpEquals:
		return value != nil && *value == c.Value
	case model.OpNotEquals:
		return value == nil || *value != c.Value
	case model.OpIn:
		return value != nil && containsValue(parseValueList(c.Value), *value)
	case model.OpNotIn:
		return value == nil || !containsValue(parseValueList(c.Value), *value)
	case model.OpContains:
		return value != nil && strings.Contains(*value, c.Value)
	case model.OpStartsWith:
		return value != nil && strings.HasPrefix(*value, c.Value)
	}
	return false
}

// parseValueList decodes an in/not-in value. JSON arrays are preferred;
// a plain comma-separated list is accepted as a fallback.
func parseValueList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err == nil {
			return values
		}
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

func containsValue(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
