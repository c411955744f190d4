package model

import (
	"encoding/json"
	"time"
)

// Subscription is a caller's paid plan as stored in the datastore.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// DomainContext is the business context saved for one of a caller's domains.
type DomainContext struct {
	UserID         string              `json:"user_id"`
	Domain         string              `json:"domain"`
	BusinessName   string              `json:"business_name,omitempty"`
	PrimaryKeyword string              `json:"primary_keyword,omitempty"`
	Services       []string            `json:"services,omitempty"`
	ServiceAreas   []string            `json:"service_areas,omitempty"`
	Competitors    []string            `json:"competitors,omitempty"`
	Tone           string              `json:"tone,omitempty"`
	Research       map[string][]string `json:"research,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// ContextPatch carries the fields a tool wants merged into a DomainContext.
// Empty scalars leave the stored value untouched; lists are unioned.
type ContextPatch struct {
	BusinessName   string
	PrimaryKeyword string
	Tone           string
	Services       []string
	ServiceAreas   []string
	Competitors    []string
	Research       map[string][]string
}

// DomainRecord caches the latest audit summary for a caller's domain.
type DomainRecord struct {
	UserID          string     `json:"user_id"`
	Domain          string     `json:"domain"`
	AuthorityScore  int        `json:"authority_score"`
	TrafficEstimate int        `json:"traffic_estimate"`
	BacklinkCount   int        `json:"backlink_count"`
	AuditedAt       *time.Time `json:"audited_at,omitempty"`
}

// VaultEntry is a saved research artifact.
type VaultEntry struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Domain     string          `json:"domain,omitempty"`
	Title      string          `json:"title"`
	ReportType string          `json:"report_type"`
	Content    json.RawMessage `json:"content"`
	Summary    string          `json:"summary,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	IsFavorite bool            `json:"is_favorite"`
	CreatedAt  time.Time       `json:"created_at"`
}

// VisitorEvent is one page view recorded by the tracking snippet.
type VisitorEvent struct {
	UserID    string    `json:"user_id"`
	Domain    string    `json:"domain"`
	VisitorID string    `json:"visitor_id"`
	Page      string    `json:"page"`
	Referrer  string    `json:"referrer,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CountedValue is a value with its occurrence count.
type CountedValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// VisitorSummary aggregates visitor events over a period.
type VisitorSummary struct {
	Domain         string         `json:"domain"`
	Since          time.Time      `json:"since"`
	TotalVisits    int            `json:"total_visits"`
	UniqueVisitors int            `json:"unique_visitors"`
	TopPages       []CountedValue `json:"top_pages"`
	TopReferrers   []CountedValue `json:"top_referrers"`
	TopCompanies   []CountedValue `json:"top_companies"`
}

// GeneratedContent is an article or page produced earlier for the caller.
type GeneratedContent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Domain      string    `json:"domain"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
