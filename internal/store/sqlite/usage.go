package sqlite

import (
	"context"
	"time"
)

// GetUsageMinutes returns the minutes recorded for a user in the week
// starting at weekStart. A missing record counts as zero.
func (s *Store) GetUsageMinutes(ctx context.Context, userID, weekStart string) (int, error) {
	var minutes int
	err := s.db.QueryRowContext(ctx,
		`SELECT minutes FROM usage_records WHERE user_id = ? AND week_start = ?`,
		userID, weekStart,
	).Scan(&minutes)
	if notFound(err) {
		return 0, nil
	}
	return minutes, err
}

// AddUsageMinutes creates the week's record with delta or adds delta to it,
// in a single statement.
func (s *Store) AddUsageMinutes(ctx context.Context, userID, weekStart string, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (user_id, week_start, minutes, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, week_start) DO UPDATE SET
			minutes = usage_records.minutes + excluded.minutes,
			updated_at = excluded.updated_at`,
		userID, weekStart, delta, time.Now().UTC())
	return err
}
