package sqlite

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/seo-assistant-gateway/internal/model"
)

// ListRoles returns the roles assigned to a user.
func (s *Store) ListRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// AssignRole grants a role to a user. Assigning an existing role is a no-op.
func (s *Store) AssignRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		userID, role)
	return err
}

// CreateSubscription stores a subscription record.
func (s *Store) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, tier, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.Tier, sub.Status, sub.CreatedAt.UTC())
	return err
}

// LatestActiveSubscription returns the most recently created active
// subscription, or nil when the user has none.
func (s *Store) LatestActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, tier, status, created_at FROM subscriptions
		 WHERE user_id = ? AND status = 'active'
		 ORDER BY created_at DESC LIMIT 1`, userID,
	).Scan(&sub.ID, &sub.UserID, &sub.Tier, &sub.Status, &sub.CreatedAt)
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
