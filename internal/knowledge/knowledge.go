// Package knowledge serves the static glossary, guides and feature catalog.
package knowledge

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Term is a glossary entry.
type Term struct {
	Term       string   `yaml:"term" json:"term"`
	Aliases    []string `yaml:"aliases" json:"aliases,omitempty"`
	Definition string   `yaml:"definition" json:"definition"`
}

// Guide is a short how-to.
type Guide struct {
	Slug    string   `yaml:"slug" json:"slug"`
	Title   string   `yaml:"title" json:"title"`
	Summary string   `yaml:"summary" json:"summary"`
	Steps   []string `yaml:"steps" json:"steps"`
}

// Feature describes a product feature.
type Feature struct {
	Name        string `yaml:"name" json:"name"`
	Slug        string `yaml:"slug" json:"slug"`
	Description string `yaml:"description" json:"description"`
	Paid        bool   `yaml:"paid" json:"paid"`
}

// Base holds the parsed knowledge data.
type Base struct {
	terms    []Term
	guides   []Guide
	features []Feature
}

// Load parses the embedded data files.
func Load() (*Base, error) {
	b := &Base{}
	if err := decode("data/glossary.yaml", &b.terms); err != nil {
		return nil, err
	}
	if err := decode("data/guides.yaml", &b.guides); err != nil {
		return nil, err
	}
	if err := decode("data/features.yaml", &b.features); err != nil {
		return nil, err
	}
	return b, nil
}

// MustLoad is Load for data known to be valid at build time.
func MustLoad() *Base {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

func decode(name string, out any) error {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// LookupTerm finds a glossary term by name or alias, case-insensitively.
// With no exact match it returns terms whose name contains query.
func (b *Base) LookupTerm(query string) []Term {
	q := normalize(query)
	if q == "" {
		return nil
	}
	for _, t := range b.terms {
		if normalize(t.Term) == q {
			return []Term{t}
		}
		for _, alias := range t.Aliases {
			if normalize(alias) == q {
				return []Term{t}
			}
		}
	}

	var partial []Term
	for _, t := range b.terms {
		if strings.Contains(normalize(t.Term), q) || strings.Contains(q, normalize(t.Term)) {
			partial = append(partial, t)
		}
	}
	return partial
}

// Terms returns every glossary term sorted by name.
func (b *Base) Terms() []string {
	names := make([]string, 0, len(b.terms))
	for _, t := range b.terms {
		names = append(names, t.Term)
	}
	sort.Strings(names)
	return names
}

// Guide finds a guide by slug or by a word in its title.
func (b *Base) Guide(topic string) (Guide, bool) {
	q := normalize(topic)
	for _, g := range b.guides {
		if g.Slug == q || normalize(g.Title) == q {
			return g, true
		}
	}
	for _, g := range b.guides {
		if q != "" && (strings.Contains(g.Slug, strings.ReplaceAll(q, " ", "-")) || strings.Contains(normalize(g.Title), q)) {
			return g, true
		}
	}
	return Guide{}, false
}

// GuideSlugs lists available guides.
func (b *Base) GuideSlugs() []string {
	slugs := make([]string, 0, len(b.guides))
	for _, g := range b.guides {
		slugs = append(slugs, g.Slug)
	}
	return slugs
}

// Feature finds a feature by name or slug. An empty query returns all.
func (b *Base) Feature(name string) []Feature {
	q := normalize(name)
	if q == "" {
		return b.features
	}
	for _, f := range b.features {
		if f.Slug == q || normalize(f.Name) == q {
			return []Feature{f}
		}
	}
	var matches []Feature
	for _, f := range b.features {
		if strings.Contains(normalize(f.Name), q) {
			matches = append(matches, f)
		}
	}
	return matches
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
