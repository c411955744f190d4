package model

import "strings"

// MergeStrings returns the union of existing and incoming, keeping the first
// spelling seen for values that differ only in case or surrounding space.
// Blank values are dropped.
func MergeStrings(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Apply merges patch into c.
func (c *DomainContext) Apply(patch ContextPatch) {
	if s := strings.TrimSpace(patch.BusinessName); s != "" {
		c.BusinessName = s
	}
	if s := strings.TrimSpace(patch.PrimaryKeyword); s != "" {
		c.PrimaryKeyword = s
	}
	if s := strings.TrimSpace(patch.Tone); s != "" {
		c.Tone = s
	}
	c.Services = MergeStrings(c.Services, patch.Services)
	c.ServiceAreas = MergeStrings(c.ServiceAreas, patch.ServiceAreas)
	c.Competitors = MergeStrings(c.Competitors, patch.Competitors)

	if len(patch.Research) > 0 && c.Research == nil {
		c.Research = make(map[string][]string, len(patch.Research))
	}
	for kind, items := range patch.Research {
		kind = strings.TrimSpace(kind)
		if kind == "" {
			continue
		}
		c.Research[kind] = MergeStrings(c.Research[kind], items)
	}
}
