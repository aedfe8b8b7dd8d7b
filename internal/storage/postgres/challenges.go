package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

const challengeColumns = "id, group_id, scheduled_at, expires_at, status, long_distance, title, description"

// InsertChallenge persists a new challenge.
func (s *PostgresStore) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.Status == "" {
		ch.Status = models.StatusIncomplete
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO challenges (id, group_id, scheduled_at, expires_at, status, long_distance, title, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ch.ID, ch.GroupID, ch.ScheduledAt, ch.ExpiresAt, ch.Status, ch.LongDistance, ch.Title, ch.Description)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

// GetChallenge retrieves a challenge by ID.
func (s *PostgresStore) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE id = $1",
		challengeID,
	)

	ch, err := scanChallenge(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return ch, nil
}

// ListChallenges returns the group's challenges ordered by scheduled_at
// ascending.
func (s *PostgresStore) ListChallenges(ctx context.Context, groupID string) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE group_id = $1 ORDER BY scheduled_at ASC",
		groupID,
	)
}

// RecentChallenges returns up to limit challenges ordered by scheduled_at
// descending.
func (s *PostgresStore) RecentChallenges(ctx context.Context, groupID string, limit int) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE group_id = $1 ORDER BY scheduled_at DESC LIMIT $2",
		groupID, limit,
	)
}

// ChallengeExistsAt reports whether the group already has a challenge at
// exactly the given slot instant.
func (s *PostgresStore) ChallengeExistsAt(ctx context.Context, groupID string, scheduledAt time.Time) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		"SELECT 1 FROM challenges WHERE group_id = $1 AND scheduled_at = $2 LIMIT 1",
		groupID, scheduledAt,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check challenge existence: %w", err)
	}
	return true, nil
}

// RecordCompletion appends a completion and promotes the challenge to
// Complete once two distinct users have completed it, in one transaction.
func (s *PostgresStore) RecordCompletion(ctx context.Context, challengeID, userID string, now time.Time) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx,
		"SELECT 1 FROM challenges WHERE id = $1",
		challengeID,
	).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("look up challenge: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO challenge_completions (challenge_id, user_id, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, challengeID, userID, now); err != nil {
		return "", fmt.Errorf("insert completion: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE challenges SET status = $1
		WHERE id = $2
		  AND (SELECT COUNT(DISTINCT user_id) FROM challenge_completions WHERE challenge_id = $2) >= 2
	`, models.StatusComplete, challengeID); err != nil {
		return "", fmt.Errorf("update challenge status: %w", err)
	}

	var status string
	if err := tx.QueryRow(ctx,
		"SELECT status FROM challenges WHERE id = $1",
		challengeID,
	).Scan(&status); err != nil {
		return "", fmt.Errorf("read challenge status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return status, nil
}

// ExpiringChallenges returns Incomplete challenges expiring within
// (from, to], ordered by expires_at ascending.
func (s *PostgresStore) ExpiringChallenges(ctx context.Context, groupID string, from, to time.Time) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+` FROM challenges
		 WHERE group_id = $1 AND status = $2 AND expires_at > $3 AND expires_at <= $4
		 ORDER BY expires_at ASC`,
		groupID, models.StatusIncomplete, from, to,
	)
}

func (s *PostgresStore) queryChallenges(ctx context.Context, query string, args ...any) ([]models.Challenge, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query challenges: %w", err)
	}
	defer rows.Close()

	var out []models.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		out = append(out, *ch)
	}
	return out, rows.Err()
}

func scanChallenge(scan func(...any) error) (*models.Challenge, error) {
	ch := &models.Challenge{}
	err := scan(
		&ch.ID,
		&ch.GroupID,
		&ch.ScheduledAt,
		&ch.ExpiresAt,
		&ch.Status,
		&ch.LongDistance,
		&ch.Title,
		&ch.Description,
	)
	if err != nil {
		return nil, err
	}
	ch.ScheduledAt = ch.ScheduledAt.UTC()
	ch.ExpiresAt = ch.ExpiresAt.UTC()
	return ch, nil
}
