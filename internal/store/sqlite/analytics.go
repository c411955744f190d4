package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

// RecordVisitorEvent stores one page view.
func (s *Store) RecordVisitorEvent(ctx context.Context, e *model.VisitorEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitor_events (user_id, domain, visitor_id, page, referrer, company, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Domain, e.VisitorID, e.Page, e.Referrer, e.Company, e.CreatedAt.UTC())
	return err
}

// VisitorSummary aggregates visits for a domain since the given time,
// returning at most top values per ranked list.
func (s *Store) VisitorSummary(ctx context.Context, userID, domain string, since time.Time, top int) (*model.VisitorSummary, error) {
	since = since.UTC()
	summary := &model.VisitorSummary{Domain: domain, Since: since}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT visitor_id) FROM visitor_events
		 WHERE user_id = ? AND domain = ? AND created_at >= ?`,
		userID, domain, since,
	).Scan(&summary.TotalVisits, &summary.UniqueVisitors)
	if err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}

	if summary.TopPages, err = s.topValues(ctx, "page", userID, domain, since, top); err != nil {
		return nil, err
	}
	if summary.TopReferrers, err = s.topValues(ctx, "referrer", userID, domain, since, top); err != nil {
		return nil, err
	}
	if summary.TopCompanies, err = s.topValues(ctx, "company", userID, domain, since, top); err != nil {
		return nil, err
	}
	return summary, nil
}

// topValues ranks non-empty values of column. column is always a literal
// chosen by VisitorSummary.
func (s *Store) topValues(ctx context.Context, column, userID, domain string, since time.Time, top int) ([]model.CountedValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(*) AS n FROM visitor_events
		 WHERE user_id = ? AND domain = ? AND created_at >= ? AND `+column+` != ''
		 GROUP BY `+column+` ORDER BY n DESC, `+column+` ASC LIMIT ?`,
		userID, domain, since, top)
	if err != nil {
		return nil, fmt.Errorf("top %s: %w", column, err)
	}
	defer rows.Close()

	values := []model.CountedValue{}
	for rows.Next() {
		var v model.CountedValue
		if err := rows.Scan(&v.Value, &v.Count); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// CreateGeneratedContent stores a generated article or page.
func (s *Store) CreateGeneratedContent(ctx context.Context, c *model.GeneratedContent) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generated_content (id, user_id, domain, content_type, title, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Domain, c.ContentType, c.Title, c.Body, c.CreatedAt.UTC())
	return err
}

// ListGeneratedContent returns the newest content for a domain. An empty
// contentType matches every type.
func (s *Store) ListGeneratedContent(ctx context.Context, userID, domain, contentType string, limit int) ([]model.GeneratedContent, error) {
	query := `SELECT id, user_id, domain, content_type, title, body, created_at
		FROM generated_content WHERE user_id = ? AND domain = ?`
	args := []any{userID, domain}
	if contentType != "" {
		query += ` AND content_type = ?`
		args = append(args, contentType)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GeneratedContent
	for rows.Next() {
		var c model.GeneratedContent
		if err := rows.Scan(&c.ID, &c.UserID, &c.Domain, &c.ContentType, &c.Title, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
