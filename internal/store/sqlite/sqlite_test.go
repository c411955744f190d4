package sqlite

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRolesAndSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AssignRole(ctx, "u1", "admin"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := s.AssignRole(ctx, "u1", "admin"); err != nil {
		t.Fatalf("AssignRole twice: %v", err)
	}
	roles, err := s.ListRoles(ctx, "u1")
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("roles = %v, want [admin]", roles)
	}

	sub, err := s.LatestActiveSubscription(ctx, "u2")
	if err != nil || sub != nil {
		t.Fatalf("LatestActiveSubscription with none = (%v, %v), want (nil, nil)", sub, err)
	}

	old := time.Now().Add(-48 * time.Hour)
	s.CreateSubscription(ctx, &model.Subscription{UserID: "u2", Tier: "basic", Status: "active", CreatedAt: old})
	s.CreateSubscription(ctx, &model.Subscription{UserID: "u2", Tier: "business", Status: "active"})
	s.CreateSubscription(ctx, &model.Subscription{UserID: "u2", Tier: "super_reseller", Status: "canceled"})

	sub, err = s.LatestActiveSubscription(ctx, "u2")
	if err != nil {
		t.Fatalf("LatestActiveSubscription: %v", err)
	}
	if sub == nil || sub.Tier != "business" {
		t.Errorf("latest subscription = %+v, want business", sub)
	}
}

func TestUsageUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUsageMinutes(ctx, "u1", "2026-10-12")
	if err != nil || got != 0 {
		t.Fatalf("GetUsageMinutes on empty = (%d, %v), want (0, nil)", got, err)
	}

	if err := s.AddUsageMinutes(ctx, "u1", "2026-10-12", 1); err != nil {
		t.Fatalf("AddUsageMinutes: %v", err)
	}
	if err := s.AddUsageMinutes(ctx, "u1", "2026-10-12", 2); err != nil {
		t.Fatalf("AddUsageMinutes: %v", err)
	}
	if err := s.AddUsageMinutes(ctx, "u1", "2026-10-19", 5); err != nil {
		t.Fatalf("AddUsageMinutes next week: %v", err)
	}

	if got, _ := s.GetUsageMinutes(ctx, "u1", "2026-10-12"); got != 3 {
		t.Errorf("week 1 minutes = %d, want 3", got)
	}
	if got, _ := s.GetUsageMinutes(ctx, "u1", "2026-10-19"); got != 5 {
		t.Errorf("week 2 minutes = %d, want 5", got)
	}
}

func TestUsageUpsertConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AddUsageMinutes(ctx, "u1", "2026-10-12", 2); err != nil {
				t.Errorf("AddUsageMinutes: %v", err)
			}
		}()
	}
	wg.Wait()

	if got, _ := s.GetUsageMinutes(ctx, "u1", "2026-10-12"); got != workers*2 {
		t.Errorf("minutes = %d, want %d", got, workers*2)
	}
}

func TestMergeDomainContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.GetDomainContext(ctx, "u1", "example.com")
	if err != nil || c != nil {
		t.Fatalf("GetDomainContext on empty = (%v, %v)", c, err)
	}

	if _, err := s.MergeDomainContext(ctx, "u1", "example.com", model.ContextPatch{
		BusinessName: "Example Co",
		Competitors:  []string{"a.com"},
	}); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	merged, err := s.MergeDomainContext(ctx, "u1", "example.com", model.ContextPatch{
		Competitors: []string{"a.com", "b.com"},
		Research:    map[string][]string{"keywords": {"plumber"}},
	})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if len(merged.Competitors) != 2 {
		t.Errorf("merged competitors = %v", merged.Competitors)
	}

	got, err := s.GetDomainContext(ctx, "u1", "example.com")
	if err != nil {
		t.Fatalf("GetDomainContext: %v", err)
	}
	if got.BusinessName != "Example Co" {
		t.Errorf("BusinessName = %q", got.BusinessName)
	}
	if len(got.Competitors) != 2 || got.Competitors[0] != "a.com" || got.Competitors[1] != "b.com" {
		t.Errorf("Competitors = %v, want [a.com b.com]", got.Competitors)
	}
	if kw := got.Research["keywords"]; len(kw) != 1 || kw[0] != "plumber" {
		t.Errorf("Research = %v", got.Research)
	}
}

func TestMergeKeepsCorruptContextUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.MergeDomainContext(ctx, "u1", "example.com", model.ContextPatch{
		Research: map[string][]string{"keywords": {"plumber"}},
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	for _, column := range []string{"research", "competitors"} {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE domain_contexts SET `+column+` = '{not json' WHERE user_id = ? AND domain = ?`,
			"u1", "example.com"); err != nil {
			t.Fatalf("corrupt %s: %v", column, err)
		}

		if _, err := s.GetDomainContext(ctx, "u1", "example.com"); err == nil {
			t.Errorf("%s: GetDomainContext on corrupt row returned no error", column)
		}
		if _, err := s.MergeDomainContext(ctx, "u1", "example.com", model.ContextPatch{
			Research:    map[string][]string{"keywords": {"roofer"}},
			Competitors: []string{"a.com"},
		}); err == nil {
			t.Errorf("%s: MergeDomainContext on corrupt row returned no error", column)
		}

		var raw string
		if err := s.db.QueryRowContext(ctx,
			`SELECT `+column+` FROM domain_contexts WHERE user_id = ? AND domain = ?`,
			"u1", "example.com").Scan(&raw); err != nil {
			t.Fatalf("read %s: %v", column, err)
		}
		if raw != "{not json" {
			t.Errorf("%s column = %q, want it left as stored", column, raw)
		}

		if _, err := s.db.ExecContext(ctx,
			`UPDATE domain_contexts SET `+column+` = '' WHERE user_id = ? AND domain = ?`,
			"u1", "example.com"); err != nil {
			t.Fatalf("reset %s: %v", column, err)
		}
	}
}

func TestDomainAudit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if rec, err := s.GetDomainRecord(ctx, "u1", "example.com"); err != nil || rec != nil {
		t.Fatalf("GetDomainRecord on empty = (%v, %v)", rec, err)
	}

	rec := &model.DomainRecord{UserID: "u1", Domain: "example.com", AuthorityScore: 31, TrafficEstimate: 1200, BacklinkCount: 450}
	if err := s.SaveDomainAudit(ctx, rec); err != nil {
		t.Fatalf("SaveDomainAudit: %v", err)
	}
	rec.AuthorityScore = 35
	if err := s.SaveDomainAudit(ctx, rec); err != nil {
		t.Fatalf("SaveDomainAudit update: %v", err)
	}

	got, err := s.GetDomainRecord(ctx, "u1", "example.com")
	if err != nil {
		t.Fatalf("GetDomainRecord: %v", err)
	}
	if got.AuthorityScore != 35 || got.BacklinkCount != 450 || got.AuditedAt == nil {
		t.Errorf("record = %+v", got)
	}
}

func TestVaultEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, rt := range []string{"keyword_research", "audit", "keyword_research"} {
		e := &model.VaultEntry{
			UserID:     "u1",
			Domain:     "example.com",
			Title:      "Report",
			ReportType: rt,
			Content:    json.RawMessage(`{"n":` + string(rune('0'+i)) + `}`),
			Tags:       []string{"seo"},
		}
		if err := s.CreateVaultEntry(ctx, e); err != nil {
			t.Fatalf("CreateVaultEntry: %v", err)
		}
		if e.ID == "" {
			t.Fatal("expected generated ID")
		}
	}

	all, err := s.ListVaultEntries(ctx, "u1", "", "", 10)
	if err != nil {
		t.Fatalf("ListVaultEntries: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	filtered, err := s.ListVaultEntries(ctx, "u1", "example.com", "keyword_research", 10)
	if err != nil {
		t.Fatalf("ListVaultEntries filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered len = %d, want 2", len(filtered))
	}
	if len(filtered[0].Tags) != 1 || filtered[0].Tags[0] != "seo" {
		t.Errorf("Tags = %v", filtered[0].Tags)
	}

	limited, _ := s.ListVaultEntries(ctx, "u1", "", "", 1)
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}
}

func TestVisitorSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	events := []model.VisitorEvent{
		{VisitorID: "v1", Page: "/", Referrer: "google.com", Company: "Acme"},
		{VisitorID: "v1", Page: "/pricing", Referrer: "google.com"},
		{VisitorID: "v2", Page: "/", Company: "Acme"},
		{VisitorID: "v3", Page: "/", Referrer: "bing.com", Company: "Globex"},
	}
	for i := range events {
		events[i].UserID = "u1"
		events[i].Domain = "example.com"
		events[i].CreatedAt = now.Add(-time.Duration(i) * time.Hour)
		if err := s.RecordVisitorEvent(ctx, &events[i]); err != nil {
			t.Fatalf("RecordVisitorEvent: %v", err)
		}
	}
	old := model.VisitorEvent{UserID: "u1", Domain: "example.com", VisitorID: "v9", Page: "/old", CreatedAt: now.Add(-60 * 24 * time.Hour)}
	s.RecordVisitorEvent(ctx, &old)

	summary, err := s.VisitorSummary(ctx, "u1", "example.com", now.Add(-30*24*time.Hour), 5)
	if err != nil {
		t.Fatalf("VisitorSummary: %v", err)
	}
	if summary.TotalVisits != 4 || summary.UniqueVisitors != 3 {
		t.Errorf("visits = %d unique = %d, want 4 and 3", summary.TotalVisits, summary.UniqueVisitors)
	}
	if len(summary.TopPages) == 0 || summary.TopPages[0].Value != "/" || summary.TopPages[0].Count != 3 {
		t.Errorf("TopPages = %+v", summary.TopPages)
	}
	if len(summary.TopCompanies) != 2 || summary.TopCompanies[0].Value != "Acme" {
		t.Errorf("TopCompanies = %+v", summary.TopCompanies)
	}
}

func TestGeneratedContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateGeneratedContent(ctx, &model.GeneratedContent{UserID: "u1", Domain: "example.com", ContentType: "blog", Title: "A"})
	s.CreateGeneratedContent(ctx, &model.GeneratedContent{UserID: "u1", Domain: "example.com", ContentType: "landing_page", Title: "B"})
	s.CreateGeneratedContent(ctx, &model.GeneratedContent{UserID: "u2", Domain: "example.com", ContentType: "blog", Title: "C"})

	all, err := s.ListGeneratedContent(ctx, "u1", "example.com", "", 10)
	if err != nil {
		t.Fatalf("ListGeneratedContent: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
	blogs, _ := s.ListGeneratedContent(ctx, "u1", "example.com", "blog", 10)
	if len(blogs) != 1 || blogs[0].Title != "A" {
		t.Errorf("blogs = %+v", blogs)
	}
}
