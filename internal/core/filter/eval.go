package filter

import (
	"strings"

	"github.com/aevon-lab/nqlflow/internal/core/document"
)

// Eval evaluates n against payload. Comparisons on absent fields or on
// values of mismatched types are false.
func Eval(n Node, payload map[string]interface{}) bool {
	switch n := n.(type) {
	case *And:
		return Eval(n.Left, payload) && Eval(n.Right, payload)
	case *Or:
		return Eval(n.Left, payload) || Eval(n.Right, payload)
	case *Not:
		return !Eval(n.Operand, payload)
	case *Compare:
		return n.eval(payload)
	}
	return false
}

func (c *Compare) eval(payload map[string]interface{}) bool {
	actual, ok := document.Lookup(payload, c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpMatch:
		s, ok := actual.(string)
		return ok && c.Pattern.MatchString(s)
	case OpNMatch:
		s, ok := actual.(string)
		return ok && !c.Pattern.MatchString(s)
	case OpIn:
		for _, item := range c.List {
			if cmp, ok := compareValues(actual, item); ok && cmp == 0 {
				return true
			}
		}
		return false
	case OpContains:
		return contains(actual, c.Value)
	}

	cmp, ok := compareValues(actual, c.Value)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	}
	if cmp == unordered {
		return false
	}
	switch c.Op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

// unordered marks two unequal values without an ordering, such as false
// and true.
const unordered = 2

// compareValues orders a payload value against a literal. Numbers compare
// numerically regardless of integer or float representation.
func compareValues(actual, lit interface{}) (int, bool) {
	switch l := lit.(type) {
	case string:
		s, ok := actual.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, l), true
	case bool:
		b, ok := actual.(bool)
		if !ok {
			return 0, false
		}
		if b == l {
			return 0, true
		}
		return unordered, true
	case int64, float64:
		if ai, ok := document.Int(actual); ok {
			if li, ok := lit.(int64); ok {
				return cmpOrdered(ai, li), true
			}
		}
		a, ok := document.Float(actual)
		if !ok {
			return 0, false
		}
		b, _ := document.Float(lit)
		return cmpOrdered(a, b), true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func contains(actual, lit interface{}) bool {
	switch a := actual.(type) {
	case string:
		s, ok := lit.(string)
		return ok && strings.Contains(a, s)
	case []interface{}:
		for _, elem := range a {
			if cmp, ok := compareValues(elem, lit); ok && cmp == 0 {
				return true
			}
		}
	}
	return false
}
