package graph

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpMatches     = "matches"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

// ConditionResult is the output of a condition node. Result selects which
// tagged outgoing edges fire. It renders as the upstream input so data flows
// through the condition unchanged.
type ConditionResult struct {
	Result   bool   `json:"result"`
	Left     string `json:"left"`
	Operator string `json:"operator"`
	Right    string `json:"right"`
	Input    any    `json:"input,omitempty"`
}

// String renders the forwarded input.
func (c ConditionResult) String() string { return Render(c.Input) }

func evaluateCondition(_ context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*ConditionConfig)
	input := inv.Combined()

	left := Render(input)
	if cfg.Left != "" {
		left = gjson.Get(jsonText(input), cfg.Left).String()
	}

	ok, err := compare(cfg.Operator, left, cfg.Value)
	if err != nil {
		return nil, err
	}
	return ConditionResult{
		Result:   ok,
		Left:     left,
		Operator: cfg.Operator,
		Right:    cfg.Value,
		Input:    input,
	}, nil
}

// jsonText returns the JSON form of v. Strings holding JSON are used as is.
func jsonText(v any) string {
	if s, ok := v.(string); ok {
		if gjson.Valid(s) {
			return s
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func compare(op, left, right string) (bool, error) {
	switch op {
	case OpEquals:
		return left == right, nil
	case OpNotEquals:
		return left != right, nil
	case OpContains:
		return strings.Contains(left, right), nil
	case OpNotContains:
		return !strings.Contains(left, right), nil
	case OpStartsWith:
		return strings.HasPrefix(left, right), nil
	case OpEndsWith:
		return strings.HasSuffix(left, right), nil
	case OpMatches:
		re, err := regexp.Compile(right)
		if err != nil {
			return false, &EvalError{Code: CodeInvalidOperator, Message: "invalid pattern " + strconv.Quote(right), Cause: err}
		}
		return re.MatchString(left), nil
	case OpGreaterThan, OpLessThan:
		l, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
		r, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if lerr != nil || rerr != nil {
			return false, evalErr(CodeNonComparable, "cannot compare "+strconv.Quote(left)+" and "+strconv.Quote(right)+" numerically")
		}
		if op == OpGreaterThan {
			return l > r, nil
		}
		return l < r, nil
	case OpIsEmpty:
		return strings.TrimSpace(left) == "", nil
	case OpIsNotEmpty:
		return strings.TrimSpace(left) != "", nil
	}
	return false, evalErr(CodeInvalidOperator, "unknown operator "+strconv.Quote(op))
}
