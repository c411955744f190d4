// Package tools holds the catalog of model-callable tools, the per-tool
// access policy and the dispatcher that runs invocations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/entitlement"
)

// ID identifies a tool in the catalog.
type ID string

const (
	KeywordMetrics       ID = "get_keyword_metrics"
	KeywordSuggestions   ID = "get_keyword_suggestions"
	DomainRankings       ID = "get_domain_rankings"
	BacklinkAnalysis     ID = "get_backlink_analysis"
	CompetitorKeywords   ID = "get_competitor_keywords"
	PartnerOpportunities ID = "find_partner_opportunities"
	DomainAudit          ID = "run_domain_audit"
	VisitorIntelligence  ID = "get_visitor_intelligence"
	GeneratedContent     ID = "get_generated_content"
	BusinessContext      ID = "get_business_context"
	SaveResearch         ID = "save_research_to_context"
	SaveCompetitors      ID = "save_competitors"
	LookupGlossary       ID = "lookup_glossary"
	GetGuide             ID = "get_guide"
	GetFeatureInfo       ID = "get_feature_info"
	SaveToVault          ID = "save_to_vault"
	GetVaultEntries      ID = "get_vault_entries"
)

// IDs lists the catalog in presentation order.
var IDs = []ID{
	KeywordMetrics, KeywordSuggestions, DomainRankings, BacklinkAnalysis,
	CompetitorKeywords, PartnerOpportunities, DomainAudit, VisitorIntelligence,
	GeneratedContent, BusinessContext, SaveResearch, SaveCompetitors,
	LookupGlossary, GetGuide, GetFeatureInfo, SaveToVault, GetVaultEntries,
}

var knownIDs = func() map[ID]struct{} {
	m := make(map[ID]struct{}, len(IDs))
	for _, id := range IDs {
		m[id] = struct{}{}
	}
	return m
}()

// ParseID validates a tool name requested by the model.
func ParseID(name string) (ID, bool) {
	id := ID(name)
	_, ok := knownIDs[id]
	return id, ok
}

// Definition describes a tool to the model.
type Definition struct {
	Name        ID
	Description string
	Parameters  map[string]any
	Paid        bool
}

// Handler executes one tool.
type Handler interface {
	Definition() Definition
	Execute(ctx context.Context, args json.RawMessage, caller Caller) (any, error)
}

// Caller is the identity a tool runs on behalf of.
type Caller struct {
	UserID string
	Email  string
	Tier   entitlement.Tier
	// Domain is the domain currently selected in the UI, normalized.
	Domain string
}

// Invocation is a tool call requested by the model.
type Invocation struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Error codes reported back to the model.
const (
	CodeUpgradeRequired  = "upgrade_required"
	CodeInvalidArguments = "invalid_arguments"
	CodeUnknownTool      = "unknown_tool"
	CodeProviderError    = "provider_error"
	CodeTimeout          = "timeout"
	CodeToolFailed       = "tool_failed"
)

// Error is the structured failure of a single invocation.
type Error struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func invalidArgs(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArguments, Message: fmt.Sprintf(format, args...)}
}

func upgradeRequired(id ID) *Error {
	return &Error{
		Code:    CodeUpgradeRequired,
		Message: fmt.Sprintf("%s is available on paid plans. Upgrade to unlock it.", id),
	}
}

// Result is the outcome of one invocation. Exactly one of Payload and Err is set.
type Result struct {
	InvocationID string
	Name         string
	Payload      any
	Err          *Error
}

// Content renders the result as the JSON text of a tool message.
func (r Result) Content() string {
	var v any = r.Payload
	if r.Err != nil {
		v = r.Err
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(&Error{Code: CodeToolFailed, Message: "result could not be encoded"})
	}
	return string(b)
}

// Outcome is the metrics label for the result.
func (r Result) Outcome() string {
	if r.Err != nil {
		return r.Err.Code
	}
	return "ok"
}
