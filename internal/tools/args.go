package tools

import (
	"encoding/json"
	"strings"
)

// decodeArgs unmarshals tool arguments into dst. Empty arguments decode as {}.
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidArgs("arguments are not valid JSON: %v", err)
	}
	return nil
}

// domainArg picks the explicit domain argument, falling back to the caller's
// selected domain.
func domainArg(arg string, caller Caller) (string, error) {
	d := NormalizeDomain(arg)
	if d == "" {
		d = caller.Domain
	}
	if d == "" {
		return "", invalidArgs("domain is required and no domain is selected")
	}
	return d, nil
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// schema helpers for handler definitions

func object(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func strList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}
