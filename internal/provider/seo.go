package provider

import (
	"context"

	"github.com/tidwall/gjson"
)

// KeywordMetric is the search volume and cost profile of a keyword.
type KeywordMetric struct {
	Keyword          string  `json:"keyword"`
	SearchVolume     int64   `json:"search_volume"`
	CPC              float64 `json:"cpc"`
	Competition      string  `json:"competition"`
	CompetitionIndex int64   `json:"competition_index"`
}

// KeywordSuggestion is a related keyword with its metrics.
type KeywordSuggestion struct {
	Keyword      string  `json:"keyword"`
	SearchVolume int64   `json:"search_volume"`
	CPC          float64 `json:"cpc"`
	Difficulty   int64   `json:"difficulty"`
}

// RankedKeyword is a keyword a domain ranks for.
type RankedKeyword struct {
	Keyword      string `json:"keyword"`
	Position     int64  `json:"position"`
	SearchVolume int64  `json:"search_volume"`
	URL          string `json:"url,omitempty"`
}

// DomainRankings lists a domain's ranked keywords.
type DomainRankings struct {
	Domain        string          `json:"domain"`
	TotalKeywords int64           `json:"total_keywords"`
	Keywords      []RankedKeyword `json:"keywords"`
}

// BacklinkSummary is the backlink profile of a domain.
type BacklinkSummary struct {
	Domain           string `json:"domain"`
	Rank             int64  `json:"rank"`
	Backlinks        int64  `json:"backlinks"`
	ReferringDomains int64  `json:"referring_domains"`
	BrokenBacklinks  int64  `json:"broken_backlinks"`
	DofollowLinks    int64  `json:"dofollow_links"`
}

// SharedKeyword is a keyword both domains rank for.
type SharedKeyword struct {
	Keyword            string `json:"keyword"`
	SearchVolume       int64  `json:"search_volume"`
	Position           int64  `json:"position"`
	CompetitorPosition int64  `json:"competitor_position"`
}

// CompetitorDomain is an organic search competitor of a domain.
type CompetitorDomain struct {
	Domain          string  `json:"domain"`
	AvgPosition     float64 `json:"avg_position"`
	Intersections   int64   `json:"intersections"`
	OrganicKeywords int64   `json:"organic_keywords"`
	Traffic         float64 `json:"traffic"`
}

// DomainOverview summarizes a domain's organic footprint.
type DomainOverview struct {
	Domain          string  `json:"domain"`
	OrganicKeywords int64   `json:"organic_keywords"`
	Traffic         float64 `json:"traffic"`
	Top3            int64   `json:"top_3"`
	Top10           int64   `json:"top_10"`
}

// KeywordMetrics returns volume, CPC and competition for each keyword.
func (c *Client) KeywordMetrics(ctx context.Context, keywords []string) ([]KeywordMetric, error) {
	result, err := c.post(ctx, "/keywords_data/google_ads/search_volume/live",
		c.localeTask(map[string]any{"keywords": keywords}))
	if err != nil {
		return nil, err
	}

	metrics := []KeywordMetric{}
	result.ForEach(func(_, item gjson.Result) bool {
		metrics = append(metrics, KeywordMetric{
			Keyword:          item.Get("keyword").String(),
			SearchVolume:     item.Get("search_volume").Int(),
			CPC:              item.Get("cpc").Float(),
			Competition:      item.Get("competition").String(),
			CompetitionIndex: item.Get("competition_index").Int(),
		})
		return true
	})
	return metrics, nil
}

// KeywordSuggestions returns keywords related to seed.
func (c *Client) KeywordSuggestions(ctx context.Context, seed string, limit int) ([]KeywordSuggestion, error) {
	result, err := c.post(ctx, "/dataforseo_labs/google/keyword_suggestions/live",
		c.localeTask(map[string]any{"keyword": seed, "limit": limit}))
	if err != nil {
		return nil, err
	}

	suggestions := []KeywordSuggestion{}
	result.Get("0.items").ForEach(func(_, item gjson.Result) bool {
		suggestions = append(suggestions, KeywordSuggestion{
			Keyword:      item.Get("keyword").String(),
			SearchVolume: item.Get("keyword_info.search_volume").Int(),
			CPC:          item.Get("keyword_info.cpc").Float(),
			Difficulty:   item.Get("keyword_properties.keyword_difficulty").Int(),
		})
		return true
	})
	return suggestions, nil
}

// RankedKeywords returns the keywords a domain ranks for, best first.
func (c *Client) RankedKeywords(ctx context.Context, domain string, limit int) (*DomainRankings, error) {
	result, err := c.post(ctx, "/dataforseo_labs/google/ranked_keywords/live",
		c.localeTask(map[string]any{
			"target":   domain,
			"limit":    limit,
			"order_by": []string{"ranked_serp_element.serp_item.rank_group,asc"},
		}))
	if err != nil {
		return nil, err
	}

	rankings := &DomainRankings{
		Domain:        domain,
		TotalKeywords: result.Get("0.total_count").Int(),
		Keywords:      []RankedKeyword{},
	}
	result.Get("0.items").ForEach(func(_, item gjson.Result) bool {
		rankings.Keywords = append(rankings.Keywords, RankedKeyword{
			Keyword:      item.Get("keyword_data.keyword").String(),
			SearchVolume: item.Get("keyword_data.keyword_info.search_volume").Int(),
			Position:     item.Get("ranked_serp_element.serp_item.rank_group").Int(),
			URL:          item.Get("ranked_serp_element.serp_item.url").String(),
		})
		return true
	})
	return rankings, nil
}

// BacklinkSummary returns the backlink profile of a domain.
func (c *Client) BacklinkSummary(ctx context.Context, domain string) (*BacklinkSummary, error) {
	result, err := c.post(ctx, "/backlinks/summary/live", map[string]any{
		"target":                domain,
		"include_subdomains":    true,
		"backlinks_status_type": "live",
	})
	if err != nil {
		return nil, err
	}

	item := result.Get("0")
	return &BacklinkSummary{
		Domain:           domain,
		Rank:             item.Get("rank").Int(),
		Backlinks:        item.Get("backlinks").Int(),
		ReferringDomains: item.Get("referring_domains").Int(),
		BrokenBacklinks:  item.Get("broken_backlinks").Int(),
		DofollowLinks:    item.Get("referring_links_attributes.dofollow").Int(),
	}, nil
}

// CompetitorKeywords returns keywords domain shares with competitor.
func (c *Client) CompetitorKeywords(ctx context.Context, domain, competitor string, limit int) ([]SharedKeyword, error) {
	result, err := c.post(ctx, "/dataforseo_labs/google/domain_intersection/live",
		c.localeTask(map[string]any{
			"target1":      domain,
			"target2":      competitor,
			"intersection": true,
			"limit":        limit,
		}))
	if err != nil {
		return nil, err
	}

	shared := []SharedKeyword{}
	result.Get("0.items").ForEach(func(_, item gjson.Result) bool {
		shared = append(shared, SharedKeyword{
			Keyword:            item.Get("keyword_data.keyword").String(),
			SearchVolume:       item.Get("keyword_data.keyword_info.search_volume").Int(),
			Position:           item.Get("first_domain_serp_element.rank_group").Int(),
			CompetitorPosition: item.Get("second_domain_serp_element.rank_group").Int(),
		})
		return true
	})
	return shared, nil
}

// CompetitorDomains returns domains competing with domain in organic search.
func (c *Client) CompetitorDomains(ctx context.Context, domain string, limit int) ([]CompetitorDomain, error) {
	result, err := c.post(ctx, "/dataforseo_labs/google/competitors_domain/live",
		c.localeTask(map[string]any{"target": domain, "limit": limit}))
	if err != nil {
		return nil, err
	}

	competitors := []CompetitorDomain{}
	result.Get("0.items").ForEach(func(_, item gjson.Result) bool {
		name := item.Get("domain").String()
		if name == "" || name == domain {
			return true
		}
		competitors = append(competitors, CompetitorDomain{
			Domain:          name,
			AvgPosition:     item.Get("avg_position").Float(),
			Intersections:   item.Get("intersections").Int(),
			OrganicKeywords: item.Get("full_domain_metrics.organic.count").Int(),
			Traffic:         item.Get("full_domain_metrics.organic.etv").Float(),
		})
		return true
	})
	return competitors, nil
}

// DomainOverview returns organic keyword and traffic totals for a domain.
func (c *Client) DomainOverview(ctx context.Context, domain string) (*DomainOverview, error) {
	result, err := c.post(ctx, "/dataforseo_labs/google/domain_rank_overview/live",
		c.localeTask(map[string]any{"target": domain}))
	if err != nil {
		return nil, err
	}

	organic := result.Get("0.items.0.metrics.organic")
	return &DomainOverview{
		Domain:          domain,
		OrganicKeywords: organic.Get("count").Int(),
		Traffic:         organic.Get("etv").Float(),
		Top3:            organic.Get("pos_1").Int() + organic.Get("pos_2_3").Int(),
		Top10:           organic.Get("pos_1").Int() + organic.Get("pos_2_3").Int() + organic.Get("pos_4_10").Int(),
	}, nil
}

// DomainAudit is a snapshot of a domain's authority, traffic and links.
type DomainAudit struct {
	Domain           string  `json:"domain"`
	AuthorityScore   int64   `json:"authority_score"`
	TrafficEstimate  float64 `json:"traffic_estimate"`
	BacklinkCount    int64   `json:"backlink_count"`
	ReferringDomains int64   `json:"referring_domains"`
	BrokenBacklinks  int64   `json:"broken_backlinks"`
	OrganicKeywords  int64   `json:"organic_keywords"`
	Top10Keywords    int64   `json:"top_10_keywords"`
}

// DomainAudit combines the organic overview and backlink summary of a domain.
// The backlink rank (0-1000) is scaled to a 0-100 authority score.
func (c *Client) DomainAudit(ctx context.Context, domain string) (*DomainAudit, error) {
	overview, err := c.DomainOverview(ctx, domain)
	if err != nil {
		return nil, err
	}
	links, err := c.BacklinkSummary(ctx, domain)
	if err != nil {
		return nil, err
	}

	authority := links.Rank / 10
	if authority > 100 {
		authority = 100
	}
	return &DomainAudit{
		Domain:           domain,
		AuthorityScore:   authority,
		TrafficEstimate:  overview.Traffic,
		BacklinkCount:    links.Backlinks,
		ReferringDomains: links.ReferringDomains,
		BrokenBacklinks:  links.BrokenBacklinks,
		OrganicKeywords:  overview.OrganicKeywords,
		Top10Keywords:    overview.Top10,
	}, nil
}
