package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Placeholder is the token Resolve substitutes with the upstream value.
const Placeholder = "{{input}}"

// Resolve replaces every occurrence of Placeholder in template with the
// rendered input. A template without the placeholder is returned unchanged.
//
//	Resolve("prefix {{input}} suffix", "X") // "prefix X suffix"
func Resolve(template string, input any) string {
	if !strings.Contains(template, Placeholder) {
		return template
	}
	return strings.ReplaceAll(template, Placeholder, Render(input))
}

// Render is the stable text form of a node output.
//
// Strings and fmt.Stringers render as themselves, scalars through strconv,
// and anything else as JSON; encoding/json sorts map keys, so equal values
// always render identically.
func Render(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// inputSeparator joins several upstream values into one.
const inputSeparator = "\n\n"

// combine folds resolved inputs into a single value. One input keeps its raw
// output so structured values survive; several are rendered and joined.
func combine(inputs []NodeResult) any {
	switch len(inputs) {
	case 0:
		return nil
	case 1:
		return inputs[0].Output
	}
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = Render(in.Output)
	}
	return strings.Join(parts, inputSeparator)
}
