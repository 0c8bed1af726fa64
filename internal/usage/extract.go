package usage

// Extracted is the normalized shape pulled out of a provider's raw
// response envelope.
type Extracted struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
	Model        string
	OK           bool
}

// aliasPaths lists, per logical field, the dotted paths the handler
// tolerates across provider response shapes (§4.M/§6: "multiple key
// aliases tolerated"). Each path is tried against a nested
// map[string]interface{} in order; the first match wins.
var aliasPaths = map[string][][]string{
	"input": {
		{"token_usage", "prompt_tokens"},
		{"usage", "prompt_tokens"},
		{"usage", "input_tokens"},
		{"input_tokens"},
		{"prompt_tokens"},
	},
	"output": {
		{"token_usage", "completion_tokens"},
		{"usage", "completion_tokens"},
		{"usage", "output_tokens"},
		{"output_tokens"},
		{"completion_tokens"},
	},
	"cached": {
		{"token_usage", "cached_tokens"},
		{"usage", "cached_tokens"},
		{"usage", "cache_read_input_tokens"},
		{"cached_tokens"},
	},
	"model": {
		{"model"},
		{"response_model"},
	},
}

// ExtractTokens pulls (input, output, cached, model) out of a raw
// provider response envelope, tolerating the key aliases different
// providers use. It never panics on malformed input; extraction failures
// leave the corresponding field at its zero value and OK reflects whether
// at least a token count was found (§4.M: "On extraction errors, the
// handler must not raise").
func ExtractTokens(raw map[string]any) Extracted {
	var out Extracted

	if v, ok := lookupInt(raw, aliasPaths["input"]); ok {
		out.InputTokens = v
		out.OK = true
	}
	if v, ok := lookupInt(raw, aliasPaths["output"]); ok {
		out.OutputTokens = v
		out.OK = true
	}
	if v, ok := lookupInt(raw, aliasPaths["cached"]); ok {
		out.CachedTokens = v
	}
	if v, ok := lookupString(raw, aliasPaths["model"]); ok {
		out.Model = v
	}
	return out
}

func lookupInt(raw map[string]any, paths [][]string) (int, bool) {
	for _, path := range paths {
		if v, ok := walk(raw, path); ok {
			if n, ok := toInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func lookupString(raw map[string]any, paths [][]string) (string, bool) {
	for _, path := range paths {
		if v, ok := walk(raw, path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func walk(raw map[string]any, path []string) (any, bool) {
	cur := any(raw)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
