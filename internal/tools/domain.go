package tools

import "strings"

// NormalizeDomain reduces a URL or host to a bare lowercase hostname:
// scheme, credentials, "www.", port, path, query, whitespace and trailing
// dots are removed. The result is a fixed point: normalizing it again
// returns it unchanged.
func NormalizeDomain(raw string) string {
	d := raw
	for i := 0; i < 8; i++ {
		next := normalizeOnce(d)
		if next == d {
			break
		}
		d = next
	}
	return d
}

func normalizeOnce(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	d = strings.TrimPrefix(d, "//")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 && !strings.Contains(d[i:], "]") {
		d = d[:i]
	}
	d = strings.TrimRight(strings.TrimSpace(d), ".")
	for strings.HasPrefix(d, "www.") {
		d = strings.TrimPrefix(d, "www.")
	}
	return strings.TrimSpace(d)
}

// normalizeDomains normalizes each entry and drops blanks.
func normalizeDomains(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if d := NormalizeDomain(r); d != "" {
			out = append(out, d)
		}
	}
	return out
}
