package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/provider"
)

// SEOProvider is the external keyword, ranking and backlink data source.
type SEOProvider interface {
	KeywordMetrics(ctx context.Context, keywords []string) ([]provider.KeywordMetric, error)
	KeywordSuggestions(ctx context.Context, seed string, limit int) ([]provider.KeywordSuggestion, error)
	RankedKeywords(ctx context.Context, domain string, limit int) (*provider.DomainRankings, error)
	BacklinkSummary(ctx context.Context, domain string) (*provider.BacklinkSummary, error)
	CompetitorKeywords(ctx context.Context, domain, competitor string, limit int) ([]provider.SharedKeyword, error)
	CompetitorDomains(ctx context.Context, domain string, limit int) ([]provider.CompetitorDomain, error)
	DomainAudit(ctx context.Context, domain string) (*provider.DomainAudit, error)
}

// Store is the datastore surface the tools read and write.
type Store interface {
	GetDomainContext(ctx context.Context, userID, domain string) (*model.DomainContext, error)
	MergeDomainContext(ctx context.Context, userID, domain string, patch model.ContextPatch) (*model.DomainContext, error)
	SaveDomainAudit(ctx context.Context, rec *model.DomainRecord) error
	CreateVaultEntry(ctx context.Context, e *model.VaultEntry) error
	ListVaultEntries(ctx context.Context, userID, domain, reportType string, limit int) ([]model.VaultEntry, error)
	VisitorSummary(ctx context.Context, userID, domain string, since time.Time, top int) (*model.VisitorSummary, error)
	ListGeneratedContent(ctx context.Context, userID, domain, contentType string, limit int) ([]model.GeneratedContent, error)
}

// funcHandler adapts a definition and a function to Handler.
type funcHandler struct {
	def Definition
	fn  func(ctx context.Context, args json.RawMessage, caller Caller) (any, error)
}

func (h funcHandler) Definition() Definition { return h.def }

func (h funcHandler) Execute(ctx context.Context, args json.RawMessage, caller Caller) (any, error) {
	return h.fn(ctx, args, caller)
}
