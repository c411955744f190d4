// Package prompt assembles the system prompt for a chat turn.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

const persona = `You are an SEO assistant for small and local businesses. You help owners understand their search visibility, research keywords, study competitors and plan content.

## Response style
- Be concise and practical. Lead with the answer, then the supporting numbers.
- Explain SEO jargon in plain language the first time you use it.
- Use tools for any figure you quote. Never invent search volumes, rankings or backlink counts.
- When a tool returns an error, say what you could not fetch and continue with what you have.
- Format lists and tables in Markdown.
`

const noDomainInstruction = "No domain is selected. Before running any domain-specific analysis, ask the user which of their domains to work on. Do not guess a domain."

// Store reads the cached context for a domain.
type Store interface {
	GetDomainContext(ctx context.Context, userID, domain string) (*model.DomainContext, error)
	GetDomainRecord(ctx context.Context, userID, domain string) (*model.DomainRecord, error)
}

// Builder assembles system prompts.
type Builder struct {
	store       Store
	toolSummary string
	log         *logger.Logger
}

// NewBuilder creates a builder. toolSummary is the rendered tool catalog.
func NewBuilder(store Store, toolSummary string, log *logger.Logger) *Builder {
	return &Builder{store: store, toolSummary: toolSummary, log: log}
}

// Build returns the system prompt for a caller and the selected domain,
// which must already be normalized. Sections whose data cannot be loaded
// are left out.
func (b *Builder) Build(ctx context.Context, userID, domain string) string {
	var sb strings.Builder
	sb.WriteString(persona)

	if b.toolSummary != "" {
		sb.WriteString("\n")
		sb.WriteString(b.toolSummary)
	}

	sb.WriteString("\n## Selected domain\n")
	if domain == "" {
		sb.WriteString(noDomainInstruction)
		sb.WriteString("\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "The user is working on %s. Use this domain for every domain-specific tool call unless the user names another one. Do not ask which domain to use.\n", domain)

	if section := b.businessSection(ctx, userID, domain); section != "" {
		sb.WriteString("\n## Business context\n")
		sb.WriteString(section)
	}
	if section := b.auditSection(ctx, userID, domain); section != "" {
		sb.WriteString("\n## Latest domain audit\n")
		sb.WriteString(section)
	}
	return sb.String()
}

func (b *Builder) businessSection(ctx context.Context, userID, domain string) string {
	c, err := b.store.GetDomainContext(ctx, userID, domain)
	if err != nil {
		b.log.Warn("failed to load business context", zap.String("user_id", userID), zap.String("domain", domain), zap.Error(err))
		return ""
	}
	if c == nil {
		return ""
	}

	var sb strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", label, value)
		}
	}
	line("Business name", c.BusinessName)
	line("Primary keyword", c.PrimaryKeyword)
	line("Services", strings.Join(c.Services, ", "))
	line("Service areas", strings.Join(c.ServiceAreas, ", "))
	line("Competitors", strings.Join(c.Competitors, ", "))
	line("Tone", c.Tone)
	return sb.String()
}

func (b *Builder) auditSection(ctx context.Context, userID, domain string) string {
	rec, err := b.store.GetDomainRecord(ctx, userID, domain)
	if err != nil {
		b.log.Warn("failed to load domain record", zap.String("user_id", userID), zap.String("domain", domain), zap.Error(err))
		return ""
	}
	if rec == nil || rec.AuditedAt == nil {
		return ""
	}
	return fmt.Sprintf("- Authority score: %d/100\n- Estimated monthly organic traffic: %d\n- Backlinks: %d\n- Audited: %s\n",
		rec.AuthorityScore, rec.TrafficEstimate, rec.BacklinkCount, rec.AuditedAt.Format("2006-01-02"))
}
