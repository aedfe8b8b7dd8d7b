package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/models"
)

// InsertNotification appends a notification row.
func (s *SQLiteStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (id, group_id, type, created_at) VALUES (?, ?, ?, ?)",
		n.ID, n.GroupID, n.Type, unix(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// ListNotifications returns up to limit notifications, newest first.
func (s *SQLiteStore) ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, type, created_at FROM notifications WHERE group_id = ? ORDER BY created_at DESC LIMIT ?",
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.GroupID, &n.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.CreatedAt = fromUnix(createdAt)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return out, nil
}
