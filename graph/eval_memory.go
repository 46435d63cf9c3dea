package graph

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// Memory data types.
const (
	DataString  = "string"
	DataNumber  = "number"
	DataBoolean = "boolean"
	DataJSON    = "json"
)

// evaluateMemoryCell reads or writes one key.
//
// A write stores the upstream input converted to DataType and passes the input
// on unchanged. A write with nothing upstream, such as one in the first wave or
// one released from a feedback cycle, stores its converted default value and
// returns that. A read returns the stored value, or the converted default when
// the key is absent.
func evaluateMemoryCell(ctx context.Context, inv Invocation) (any, error) {
	cfg := inv.Node.Config.(*MemoryCellConfig)

	if cfg.Operation == MemoryWrite {
		var out, value any
		if len(inv.Inputs) > 0 {
			out = inv.Combined()
			value = coerce(cfg.DataType, out)
		} else {
			value = coerce(cfg.DataType, cfg.DefaultValue)
			out = value
		}
		if err := inv.Memory.Set(ctx, cfg.Key, value); err != nil {
			return nil, &EvalError{Code: CodeMemoryError, Message: "write " + cfg.Key, Cause: err}
		}
		return out, nil
	}

	v, ok, err := inv.Memory.Get(ctx, cfg.Key)
	if err != nil {
		return nil, &EvalError{Code: CodeMemoryError, Message: "read " + cfg.Key, Cause: err}
	}
	if !ok {
		return coerce(cfg.DataType, cfg.DefaultValue), nil
	}
	return v, nil
}

// coerce converts v to the memory data type. Values that do not convert are
// kept in their rendered string form.
func coerce(dataType string, v any) any {
	switch dataType {
	case DataNumber:
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(Render(v)), 64); err == nil {
			return f
		}
		if Render(v) == "" {
			return float64(0)
		}
	case DataBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
		s := strings.TrimSpace(Render(v))
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return s != ""
	case DataJSON:
		if s, ok := v.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
			return s
		}
		data, err := json.Marshal(v)
		if err != nil {
			return Render(v)
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return Render(v)
		}
		return decoded
	}
	return Render(v)
}
