package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDomainContext(row rowScanner) (*model.DomainContext, error) {
	var (
		c                                         model.DomainContext
		services, areas, competitors, researchRaw string
	)
	if err := row.Scan(&c.UserID, &c.Domain, &c.BusinessName, &c.PrimaryKeyword,
		&services, &areas, &competitors, &c.Tone, &researchRaw, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if c.Services, err = decodeList("services", services); err != nil {
		return nil, err
	}
	if c.ServiceAreas, err = decodeList("service_areas", areas); err != nil {
		return nil, err
	}
	if c.Competitors, err = decodeList("competitors", competitors); err != nil {
		return nil, err
	}
	if researchRaw != "" && researchRaw != "{}" {
		if err := json.Unmarshal([]byte(researchRaw), &c.Research); err != nil {
			return nil, fmt.Errorf("decode research: %w", err)
		}
	}
	return &c, nil
}

const domainContextColumns = `user_id, domain, business_name, primary_keyword, services, service_areas, competitors, tone, research, updated_at`

// GetDomainContext returns the saved context for a domain, or nil when none exists.
func (s *Store) GetDomainContext(ctx context.Context, userID, domain string) (*model.DomainContext, error) {
	c, err := scanDomainContext(s.db.QueryRowContext(ctx,
		`SELECT `+domainContextColumns+` FROM domain_contexts WHERE user_id = ? AND domain = ?`,
		userID, domain))
	if notFound(err) {
		return nil, nil
	}
	return c, err
}

// MergeDomainContext applies patch to the stored context, creating the row if
// needed, and returns the merged result. Read and write share one transaction.
func (s *Store) MergeDomainContext(ctx context.Context, userID, domain string, patch model.ContextPatch) (*model.DomainContext, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := scanDomainContext(tx.QueryRowContext(ctx,
		`SELECT `+domainContextColumns+` FROM domain_contexts WHERE user_id = ? AND domain = ?`,
		userID, domain))
	if notFound(err) {
		current = &model.DomainContext{UserID: userID, Domain: domain}
	} else if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	current.Apply(patch)
	current.UpdatedAt = time.Now().UTC()

	research := []byte("{}")
	if len(current.Research) > 0 {
		research, _ = json.Marshal(current.Research)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO domain_contexts (`+domainContextColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, domain) DO UPDATE SET
			business_name = excluded.business_name,
			primary_keyword = excluded.primary_keyword,
			services = excluded.services,
			service_areas = excluded.service_areas,
			competitors = excluded.competitors,
			tone = excluded.tone,
			research = excluded.research,
			updated_at = excluded.updated_at`,
		userID, domain, current.BusinessName, current.PrimaryKeyword,
		marshalList(current.Services), marshalList(current.ServiceAreas), marshalList(current.Competitors),
		current.Tone, string(research), current.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save context: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return current, nil
}

// GetDomainRecord returns the cached audit summary for a domain, or nil.
func (s *Store) GetDomainRecord(ctx context.Context, userID, domain string) (*model.DomainRecord, error) {
	var (
		rec       model.DomainRecord
		auditedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, domain, authority_score, traffic_estimate, backlink_count, audited_at
		 FROM domains WHERE user_id = ? AND domain = ?`, userID, domain,
	).Scan(&rec.UserID, &rec.Domain, &rec.AuthorityScore, &rec.TrafficEstimate, &rec.BacklinkCount, &auditedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.AuditedAt = nullTime(auditedAt)
	return &rec, nil
}

// SaveDomainAudit upserts the audit summary of a domain.
func (s *Store) SaveDomainAudit(ctx context.Context, rec *model.DomainRecord) error {
	now := time.Now().UTC()
	rec.AuditedAt = &now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO domains (user_id, domain, authority_score, traffic_estimate, backlink_count, audited_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, domain) DO UPDATE SET
			authority_score = excluded.authority_score,
			traffic_estimate = excluded.traffic_estimate,
			backlink_count = excluded.backlink_count,
			audited_at = excluded.audited_at`,
		rec.UserID, rec.Domain, rec.AuthorityScore, rec.TrafficEstimate, rec.BacklinkCount, now)
	return err
}
