package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is one candidate extractor in an ordered chain. Transform, when set,
// post-processes a raw match; returning ok=false rejects the match and moves
// the chain on to the next step.
type Step struct {
	Expression string
	Transform  func(value any) (any, bool)
}

// Chain is an ordered list of extractors evaluated first-match-wins
type Chain []Step

// First evaluates the chain against data and returns the first step that
// yields a non-nil, non-empty value. Returns ok=false when no step matched.
func (c Chain) First(e *Evaluator, data any) (any, bool) {
	for _, step := range c {
		result, err := e.Evaluate(step.Expression, data)
		if err != nil || isEmpty(result) {
			continue
		}
		if step.Transform != nil {
			transformed, ok := step.Transform(result)
			if !ok {
				continue
			}
			result = transformed
		}
		if isEmpty(result) {
			continue
		}
		return result, true
	}
	return nil, false
}

// FirstString evaluates the chain and stringifies the first match
func (c Chain) FirstString(e *Evaluator, data any) (string, bool) {
	result, ok := c.First(e, data)
	if !ok {
		return "", false
	}
	s := Stringify(result)
	if s == "" {
		return "", false
	}
	return s, true
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Stringify renders a scalar extraction result as a string. Floats that carry
// integral values print without a decimal point, matching how numeric IDs
// arrive from JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}

// ToFloat coerces a JSON scalar to a float64
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToInt coerces a JSON scalar to an int
func ToInt(v any) (int, bool) {
	f, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
