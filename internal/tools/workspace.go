package tools

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

func workspaceHandlers(store Store, now func() time.Time) []Handler {
	return []Handler{
		funcHandler{
			def: Definition{
				Name:        VisitorIntelligence,
				Description: "Summarize recent website visitors for a domain: visits, unique visitors, top pages, referrers and identified companies.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain, defaults to the selected domain"),
					"days":   integer("Look-back window in days, default 30, max 90"),
				}),
				Paid: true,
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain string `json:"domain"`
					Days   int    `json:"days"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				days := clampLimit(args.Days, 30, 90)
				since := now().AddDate(0, 0, -days)
				return store.VisitorSummary(ctx, caller.UserID, domain, since, 10)
			},
		},
		funcHandler{
			def: Definition{
				Name:        GeneratedContent,
				Description: "List blog posts and pages previously generated for a domain, newest first.",
				Parameters: object(nil, map[string]any{
					"domain":       str("Domain, defaults to the selected domain"),
					"content_type": str("Filter by type, for example blog or landing_page"),
					"limit":        integer("Maximum items, default 10, max 50"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain      string `json:"domain"`
					ContentType string `json:"content_type"`
					Limit       int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				items, err := store.ListGeneratedContent(ctx, caller.UserID, domain,
					strings.TrimSpace(args.ContentType), clampLimit(args.Limit, 10, 50))
				if err != nil {
					return nil, err
				}
				if items == nil {
					items = []model.GeneratedContent{}
				}
				return map[string]any{"domain": domain, "content": items}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        BusinessContext,
				Description: "Read the saved business context for a domain: business name, primary keyword, services, service areas, competitors, tone and saved research.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain, defaults to the selected domain"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain string `json:"domain"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				c, err := store.GetDomainContext(ctx, caller.UserID, domain)
				if err != nil {
					return nil, err
				}
				if c == nil {
					return map[string]any{"domain": domain, "found": false}, nil
				}
				return map[string]any{"domain": domain, "found": true, "context": c}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        SaveResearch,
				Description: "Save business details or research findings to the domain's context so later conversations can use them. Lists are merged with what is already saved.",
				Parameters: object(nil, map[string]any{
					"domain":          str("Domain, defaults to the selected domain"),
					"business_name":   str("Business name"),
					"primary_keyword": str("Main keyword the business targets"),
					"tone":            str("Preferred writing tone"),
					"services":        strList("Services offered"),
					"service_areas":   strList("Cities or regions served"),
					"research_type":   str("Kind of finding, for example target_keywords or content_ideas"),
					"findings":        strList("Findings to save under research_type"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain         string   `json:"domain"`
					BusinessName   string   `json:"business_name"`
					PrimaryKeyword string   `json:"primary_keyword"`
					Tone           string   `json:"tone"`
					Services       []string `json:"services"`
					ServiceAreas   []string `json:"service_areas"`
					ResearchType   string   `json:"research_type"`
					Findings       []string `json:"findings"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				patch := model.ContextPatch{
					BusinessName:   args.BusinessName,
					PrimaryKeyword: args.PrimaryKeyword,
					Tone:           args.Tone,
					Services:       cleanStrings(args.Services),
					ServiceAreas:   cleanStrings(args.ServiceAreas),
				}
				if findings := cleanStrings(args.Findings); len(findings) > 0 {
					kind := strings.TrimSpace(args.ResearchType)
					if kind == "" {
						kind = "notes"
					}
					patch.Research = map[string][]string{kind: findings}
				}
				if emptyPatch(patch) {
					return nil, invalidArgs("nothing to save")
				}
				c, err := store.MergeDomainContext(ctx, caller.UserID, domain, patch)
				if err != nil {
					return nil, err
				}
				return map[string]any{"saved": true, "context": c}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        SaveCompetitors,
				Description: "Add competitor domains to the domain's saved context. Existing competitors are kept.",
				Parameters: object([]string{"competitors"}, map[string]any{
					"domain":      str("Domain, defaults to the selected domain"),
					"competitors": strList("Competitor domains or URLs"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain      string   `json:"domain"`
					Competitors []string `json:"competitors"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				var competitors []string
				for _, d := range normalizeDomains(args.Competitors) {
					if d != domain {
						competitors = append(competitors, d)
					}
				}
				if len(competitors) == 0 {
					return nil, invalidArgs("at least one competitor domain is required")
				}
				c, err := store.MergeDomainContext(ctx, caller.UserID, domain, model.ContextPatch{Competitors: competitors})
				if err != nil {
					return nil, err
				}
				return map[string]any{"domain": domain, "competitors": c.Competitors}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        SaveToVault,
				Description: "Save a report or finding to the user's research vault so they can find it later.",
				Parameters: object([]string{"title", "report_type", "content"}, map[string]any{
					"title":       str("Short title"),
					"report_type": str("Kind of report, for example keyword_research, audit or competitor_analysis"),
					"content":     map[string]any{"type": "object", "description": "Structured report data"},
					"summary":     str("One or two sentence summary"),
					"tags":        strList("Tags"),
					"domain":      str("Domain the report is about, defaults to the selected domain"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Title      string          `json:"title"`
					ReportType string          `json:"report_type"`
					Content    json.RawMessage `json:"content"`
					Summary    string          `json:"summary"`
					Tags       []string        `json:"tags"`
					Domain     string          `json:"domain"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				title := strings.TrimSpace(args.Title)
				reportType := strings.TrimSpace(args.ReportType)
				if title == "" || reportType == "" {
					return nil, invalidArgs("title and report_type are required")
				}
				if len(args.Content) == 0 || string(args.Content) == "null" {
					return nil, invalidArgs("content is required")
				}
				domain := NormalizeDomain(args.Domain)
				if domain == "" {
					domain = caller.Domain
				}
				entry := &model.VaultEntry{
					UserID:     caller.UserID,
					Domain:     domain,
					Title:      title,
					ReportType: reportType,
					Content:    args.Content,
					Summary:    strings.TrimSpace(args.Summary),
					Tags:       model.MergeStrings(nil, args.Tags),
				}
				if err := store.CreateVaultEntry(ctx, entry); err != nil {
					return nil, err
				}
				return map[string]any{"saved": true, "id": entry.ID, "title": entry.Title}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        GetVaultEntries,
				Description: "List reports saved in the user's research vault, newest first.",
				Parameters: object(nil, map[string]any{
					"domain":      str("Only entries about this domain"),
					"report_type": str("Only entries of this report type"),
					"limit":       integer("Maximum entries, default 10, max 50"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain     string `json:"domain"`
					ReportType string `json:"report_type"`
					Limit      int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				entries, err := store.ListVaultEntries(ctx, caller.UserID, NormalizeDomain(args.Domain),
					strings.TrimSpace(args.ReportType), clampLimit(args.Limit, 10, 50))
				if err != nil {
					return nil, err
				}
				if entries == nil {
					entries = []model.VaultEntry{}
				}
				return map[string]any{"entries": entries}, nil
			},
		},
	}
}

func emptyPatch(p model.ContextPatch) bool {
	return strings.TrimSpace(p.BusinessName) == "" &&
		strings.TrimSpace(p.PrimaryKeyword) == "" &&
		strings.TrimSpace(p.Tone) == "" &&
		len(p.Services) == 0 && len(p.ServiceAreas) == 0 &&
		len(p.Competitors) == 0 && len(p.Research) == 0
}
