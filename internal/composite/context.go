// Package composite implements the Composite endpoint execution strategy:
// sequential step execution against other endpoints in the same
// environment, sharing a $guid/$prev scratch context, with isArray
// sub-step fan-out and best-effort atomicity (first failure short-
// circuits the run).
package composite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Scratch is the per-request template evaluation context: a stable
// request-wide $guid plus every prior step's result, addressable by
// $prev.{stepName}.{jsonPath} (or $prev.{stepName}.{N}.{jsonPath} for an
// isArray step's Nth sub-result).
type Scratch struct {
	guid    string
	results map[string]any // stepName -> result (an object or []any of sub-results)
}

func NewScratch() *Scratch {
	return &Scratch{guid: uuid.NewString(), results: map[string]any{}}
}

func (s *Scratch) SetStepResult(stepName string, result any) {
	s.results[stepName] = result
}

// Resolve evaluates one template expression ("$guid" or
// "$prev.step.path.to.field" or "$prev.step.2.field") against the scratch
// context. An unknown reference is a CompositeTemplateError at the caller.
func (s *Scratch) Resolve(expr string) (any, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "$guid" {
		return s.guid, true
	}
	if !strings.HasPrefix(expr, "$prev.") {
		return nil, false
	}
	segments := strings.Split(strings.TrimPrefix(expr, "$prev."), ".")
	if len(segments) == 0 {
		return nil, false
	}
	stepName := segments[0]
	cur, ok := s.results[stepName]
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		cur, ok = descend(cur, seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func descend(cur any, segment string) (any, bool) {
	if idx, err := strconv.Atoi(segment); err == nil {
		arr, ok := cur.([]any)
		if !ok || idx < 0 || idx >= len(arr) {
			return nil, false
		}
		return arr[idx], true
	}
	obj, ok := cur.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[segment]
	return v, ok
}

// stringify renders a resolved value for substitution into a string
// template field.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
