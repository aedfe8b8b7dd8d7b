package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// CreateGroup persists the group, its creator participant row and the
// initial invite in one transaction.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group, invite *models.Invite) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if invite.Token == "" {
		invite.Token = uuid.New().String()
	}
	invite.GroupID = group.ID
	invite.CreatedBy = group.CreatedBy
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = group.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, created_by, created_at) VALUES (?, ?, ?)",
		group.ID, group.CreatedBy, unix(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_participants (group_id, user_id, role) VALUES (?, ?, ?)",
		group.ID, group.CreatedBy, models.RoleCreator,
	)
	if err != nil {
		return fmt.Errorf("failed to insert creator participant: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO invites (token, group_id, created_by, created_at, used_at) VALUES (?, ?, ?, ?, NULL)",
		invite.Token, invite.GroupID, invite.CreatedBy, unix(invite.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_by, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	group.CreatedAt = fromUnix(createdAt)
	return group, nil
}

// ListParticipants returns the group's participants.
func (s *SQLiteStore) ListParticipants(ctx context.Context, groupID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_id, user_id, role FROM group_participants WHERE group_id = ? ORDER BY role",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.GroupID, &p.UserID, &p.Role); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// GetInvite retrieves an invite by token.
func (s *SQLiteStore) GetInvite(ctx context.Context, token string) (*models.Invite, error) {
	invite := &models.Invite{}
	var createdAt int64
	var usedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT token, group_id, created_by, created_at, used_at FROM invites WHERE token = ?",
		token,
	).Scan(&invite.Token, &invite.GroupID, &invite.CreatedBy, &createdAt, &usedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invite: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	invite.CreatedAt = fromUnix(createdAt)
	if usedAt.Valid {
		t := fromUnix(usedAt.Int64)
		invite.UsedAt = &t
	}
	return invite, nil
}

// ConsumeInvite marks the token used and grants membership in one
// transaction. The used_at update is conditional on the token still being
// unused; when two consumers race, the loser sees zero affected rows and
// gets ErrConflict.
func (s *SQLiteStore) ConsumeInvite(ctx context.Context, token, userID string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	err = tx.QueryRowContext(ctx,
		"SELECT group_id FROM invites WHERE token = ?",
		token,
	).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("invite: %w", storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up invite: %w", err)
	}

	// Check-and-mark in a single conditional update.
	res, err := tx.ExecContext(ctx,
		"UPDATE invites SET used_at = ? WHERE token = ? AND used_at IS NULL",
		unix(now), token,
	)
	if err != nil {
		return "", fmt.Errorf("failed to mark invite used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return "", fmt.Errorf("invite already consumed: %w", storage.ErrConflict)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_participants (group_id, user_id, role) VALUES (?, ?, ?)",
		groupID, userID, models.RoleMember,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("already a participant: %w", storage.ErrConflict)
		}
		return "", fmt.Errorf("failed to insert participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return groupID, nil
}

// isUniqueViolation detects primary-key/unique constraint failures from the
// pure Go driver, which surfaces them as flat error strings.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed") && strings.Contains(msg, "1555")
}
