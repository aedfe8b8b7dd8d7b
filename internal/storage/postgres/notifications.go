package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/models"
)

// InsertNotification appends a notification row.
func (s *PostgresStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		"INSERT INTO notifications (id, group_id, type, created_at) VALUES ($1, $2, $3, $4)",
		n.ID, n.GroupID, n.Type, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns up to limit notifications, newest first.
func (s *PostgresStore) ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, group_id, type, created_at FROM notifications WHERE group_id = $1 ORDER BY created_at DESC LIMIT $2",
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.GroupID, &n.Type, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, n)
	}
	return out, rows.Err()
}
