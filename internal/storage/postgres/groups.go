package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// CreateGroup persists the group, its creator participant row and the
// initial invite in one transaction.
func (s *PostgresStore) CreateGroup(ctx context.Context, group *models.Group, invite *models.Invite) error {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO groups (id, created_by, created_at) VALUES ($1, $2, $3)",
		group.ID, group.CreatedBy, group.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO group_participants (group_id, user_id, role) VALUES ($1, $2, $3)",
		group.ID, group.CreatedBy, models.RoleCreator,
	); err != nil {
		return fmt.Errorf("insert creator participant: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO invites (token, group_id, created_by, created_at) VALUES ($1, $2, $3, $4)",
		invite.Token, invite.GroupID, invite.CreatedBy, invite.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}

	return tx.Commit(ctx)
}

// GetGroup retrieves a group by ID.
func (s *PostgresStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, created_by, created_at FROM groups WHERE id = $1",
		groupID,
	).Scan(&group.ID, &group.CreatedBy, &group.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	group.CreatedAt = group.CreatedAt.UTC()
	return group, nil
}

// ListParticipants returns the group's participants.
func (s *PostgresStore) ListParticipants(ctx context.Context, groupID string) ([]models.Participant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT group_id, user_id, role FROM group_participants WHERE group_id = $1 ORDER BY role",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.GroupID, &p.UserID, &p.Role); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// GetInvite retrieves an invite by token.
func (s *PostgresStore) GetInvite(ctx context.Context, token string) (*models.Invite, error) {
	invite := &models.Invite{}
	err := s.pool.QueryRow(ctx,
		"SELECT token, group_id, created_by, created_at, used_at FROM invites WHERE token = $1",
		token,
	).Scan(&invite.Token, &invite.GroupID, &invite.CreatedBy, &invite.CreatedAt, &invite.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("invite: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}

	invite.CreatedAt = invite.CreatedAt.UTC()
	if invite.UsedAt != nil {
		t := invite.UsedAt.UTC()
		invite.UsedAt = &t
	}
	return invite, nil
}

// ConsumeInvite marks the token used and grants membership in one
// transaction; the used_at update is guarded by used_at IS NULL so of two
// concurrent consumers exactly one succeeds.
func (s *PostgresStore) ConsumeInvite(ctx context.Context, token, userID string, now time.Time) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var groupID string
	err = tx.QueryRow(ctx,
		"SELECT group_id FROM invites WHERE token = $1",
		token,
	).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("invite: %w", storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("look up invite: %w", err)
	}

	tag, err := tx.Exec(ctx,
		"UPDATE invites SET used_at = $1 WHERE token = $2 AND used_at IS NULL",
		now, token,
	)
	if err != nil {
		return "", fmt.Errorf("mark invite used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("invite already consumed: %w", storage.ErrConflict)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO group_participants (group_id, user_id, role) VALUES ($1, $2, $3)",
		groupID, userID, models.RoleMember,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return "", fmt.Errorf("already a participant: %w", storage.ErrConflict)
		}
		return "", fmt.Errorf("insert participant: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return groupID, nil
}
