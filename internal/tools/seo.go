package tools

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
	"github.com/capitalize-ai/seo-assistant-gateway/internal/provider"
	"github.com/capitalize-ai/seo-assistant-gateway/pkg/logger"
)

const maxKeywordsPerCall = 20

// platformDomains are never suggested as partners.
var platformDomains = map[string]struct{}{
	"google.com": {}, "youtube.com": {}, "facebook.com": {}, "instagram.com": {},
	"wikipedia.org": {}, "en.wikipedia.org": {}, "amazon.com": {}, "reddit.com": {},
	"yelp.com": {}, "linkedin.com": {}, "pinterest.com": {}, "twitter.com": {},
	"x.com": {}, "tiktok.com": {}, "angi.com": {}, "homeadvisor.com": {},
	"thumbtack.com": {}, "nextdoor.com": {}, "bbb.org": {}, "yellowpages.com": {},
	"quora.com": {}, "medium.com": {}, "apple.com": {}, "microsoft.com": {},
}

// partnerOverlapRatio is the share of a domain's keywords it may share with
// the target before it counts as a competitor rather than a partner.
const partnerOverlapRatio = 0.15

func seoHandlers(p SEOProvider, store Store, log *logger.Logger) []Handler {
	return []Handler{
		funcHandler{
			def: Definition{
				Name:        KeywordMetrics,
				Description: "Get monthly search volume, cost per click and competition for up to 20 keywords. Use when the user asks how many people search for a term or what it costs to advertise on it.",
				Parameters: object([]string{"keywords"}, map[string]any{
					"keywords": strList("Keywords to look up"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Keywords []string `json:"keywords"`
					Keyword  string   `json:"keyword"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				keywords := cleanStrings(append(args.Keywords, args.Keyword))
				if len(keywords) == 0 {
					return nil, invalidArgs("at least one keyword is required")
				}
				if len(keywords) > maxKeywordsPerCall {
					keywords = keywords[:maxKeywordsPerCall]
				}
				metrics, err := p.KeywordMetrics(ctx, keywords)
				if err != nil {
					return nil, err
				}
				return map[string]any{"keywords": metrics}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        KeywordSuggestions,
				Description: "Find related keyword ideas for a seed keyword with volume, CPC and difficulty. Use for keyword research and content planning.",
				Parameters: object([]string{"keyword"}, map[string]any{
					"keyword": str("Seed keyword"),
					"limit":   integer("Maximum suggestions, default 20, max 50"),
				}),
				Paid: true,
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Keyword string `json:"keyword"`
					Limit   int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				seed := strings.TrimSpace(args.Keyword)
				if seed == "" {
					return nil, invalidArgs("keyword is required")
				}
				suggestions, err := p.KeywordSuggestions(ctx, seed, clampLimit(args.Limit, 20, 50))
				if err != nil {
					return nil, err
				}
				return map[string]any{"seed": seed, "suggestions": suggestions}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        DomainRankings,
				Description: "List the keywords a domain ranks for in organic search with positions and volume. Defaults to the selected domain.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain to check, defaults to the selected domain"),
					"limit":  integer("Maximum keywords, default 20, max 100"),
				}),
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain string `json:"domain"`
					Limit  int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				return p.RankedKeywords(ctx, domain, clampLimit(args.Limit, 20, 100))
			},
		},
		funcHandler{
			def: Definition{
				Name:        BacklinkAnalysis,
				Description: "Analyze the backlink profile of a domain: total backlinks, referring domains, rank and broken links.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain to analyze, defaults to the selected domain"),
				}),
				Paid: true,
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
				return p.BacklinkSummary(ctx, domain)
			},
		},
		funcHandler{
			def: Definition{
				Name:        CompetitorKeywords,
				Description: "Compare keywords between the selected domain and a competitor, showing where each ranks. Use to find keyword gaps.",
				Parameters: object([]string{"competitor"}, map[string]any{
					"competitor": str("Competitor domain"),
					"domain":     str("Your domain, defaults to the selected domain"),
					"limit":      integer("Maximum keywords, default 30, max 100"),
				}),
				Paid: true,
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain     string `json:"domain"`
					Competitor string `json:"competitor"`
					Limit      int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				competitor := NormalizeDomain(args.Competitor)
				if competitor == "" {
					return nil, invalidArgs("competitor is required")
				}
				if competitor == domain {
					return nil, invalidArgs("competitor must differ from %s", domain)
				}
				shared, err := p.CompetitorKeywords(ctx, domain, competitor, clampLimit(args.Limit, 30, 100))
				if err != nil {
					return nil, err
				}
				return map[string]any{"domain": domain, "competitor": competitor, "shared_keywords": shared}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        PartnerOpportunities,
				Description: "Find related but non-competing websites that share part of your audience, as candidates for link or referral partnerships.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain to find partners for, defaults to the selected domain"),
					"limit":  integer("Maximum partners, default 10, max 25"),
				}),
				Paid: true,
			},
			fn: func(ctx context.Context, raw json.RawMessage, caller Caller) (any, error) {
				var args struct {
					Domain string `json:"domain"`
					Limit  int    `json:"limit"`
				}
				if err := decodeArgs(raw, &args); err != nil {
					return nil, err
				}
				domain, err := domainArg(args.Domain, caller)
				if err != nil {
					return nil, err
				}
				candidates, err := p.CompetitorDomains(ctx, domain, 100)
				if err != nil {
					return nil, err
				}
				return map[string]any{"domain": domain, "partners": partnerCandidates(domain, candidates, clampLimit(args.Limit, 10, 25))}, nil
			},
		},
		funcHandler{
			def: Definition{
				Name:        DomainAudit,
				Description: "Run a quick audit of a domain: authority score, estimated organic traffic, backlinks and keyword footprint. Results are saved for future conversations.",
				Parameters: object(nil, map[string]any{
					"domain": str("Domain to audit, defaults to the selected domain"),
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
				audit, err := p.DomainAudit(ctx, domain)
				if err != nil {
					return nil, err
				}
				rec := &model.DomainRecord{
					UserID:          caller.UserID,
					Domain:          domain,
					AuthorityScore:  int(audit.AuthorityScore),
					TrafficEstimate: int(audit.TrafficEstimate),
					BacklinkCount:   int(audit.BacklinkCount),
				}
				if err := store.SaveDomainAudit(ctx, rec); err != nil {
					log.Warn("failed to cache domain audit",
						zap.String("user_id", caller.UserID),
						zap.String("domain", domain),
						zap.Error(err),
					)
				}
				return audit, nil
			},
		},
	}
}

// partnerCandidate is a suggested partner domain.
type partnerCandidate struct {
	Domain         string  `json:"domain"`
	SharedKeywords int64   `json:"shared_keywords"`
	OverlapRatio   float64 `json:"overlap_ratio"`
	Traffic        float64 `json:"traffic"`
}

// partnerCandidates keeps domains whose keyword overlap with the target is a
// small share of their own footprint, dropping large platforms.
func partnerCandidates(domain string, candidates []provider.CompetitorDomain, limit int) []partnerCandidate {
	partners := []partnerCandidate{}
	for _, c := range candidates {
		name := NormalizeDomain(c.Domain)
		if name == "" || name == domain || c.Intersections <= 0 || c.OrganicKeywords <= 0 {
			continue
		}
		if _, platform := platformDomains[name]; platform {
			continue
		}
		ratio := float64(c.Intersections) / float64(c.OrganicKeywords)
		if ratio > partnerOverlapRatio {
			continue
		}
		partners = append(partners, partnerCandidate{
			Domain:         name,
			SharedKeywords: c.Intersections,
			OverlapRatio:   ratio,
			Traffic:        c.Traffic,
		})
	}

	sort.SliceStable(partners, func(i, j int) bool {
		return partners[i].SharedKeywords > partners[j].SharedKeywords
	})
	if len(partners) > limit {
		partners = partners[:limit]
	}
	return partners
}
