package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

// CreateVaultEntry appends a research artifact to the caller's vault.
func (s *Store) CreateVaultEntry(ctx context.Context, e *model.VaultEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()
	content := string(e.Content)
	if content == "" {
		content = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_entries (id, user_id, domain, title, report_type, content, summary, tags, is_favorite, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Domain, e.Title, e.ReportType, content, e.Summary,
		marshalList(e.Tags), e.IsFavorite, e.CreatedAt,
	)
	return err
}

// ListVaultEntries returns the newest entries first. Empty domain or
// reportType means no filter on that column.
func (s *Store) ListVaultEntries(ctx context.Context, userID, domain, reportType string, limit int) ([]model.VaultEntry, error) {
	query := `SELECT id, user_id, domain, title, report_type, content, summary, tags, is_favorite, created_at
		FROM vault_entries WHERE user_id = ?`
	args := []any{userID}
	var where strings.Builder
	if domain != "" {
		where.WriteString(` AND domain = ?`)
		args = append(args, domain)
	}
	if reportType != "" {
		where.WriteString(` AND report_type = ?`)
		args = append(args, reportType)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query+where.String()+` ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.VaultEntry
	for rows.Next() {
		var (
			e             model.VaultEntry
			content, tags string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Domain, &e.Title, &e.ReportType,
			&content, &e.Summary, &tags, &e.IsFavorite, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Content = []byte(content)
		e.Tags = unmarshalList(tags)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
