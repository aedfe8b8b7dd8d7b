package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

const challengeColumns = "id, group_id, scheduled_at, expires_at, status, long_distance, title, description"

// InsertChallenge persists a new challenge.
func (s *SQLiteStore) InsertChallenge(ctx context.Context, ch *models.Challenge) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.Status == "" {
		ch.Status = models.StatusIncomplete
	}

	query := `
		INSERT INTO challenges (id, group_id, scheduled_at, expires_at, status, long_distance, title, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ch.ID,
		ch.GroupID,
		unix(ch.ScheduledAt),
		unix(ch.ExpiresAt),
		ch.Status,
		boolToInt(ch.LongDistance),
		ch.Title,
		ch.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert challenge: %w", err)
	}

	return nil
}

// GetChallenge retrieves a challenge by ID.
func (s *SQLiteStore) GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE id = ?",
		challengeID,
	)

	ch, err := scanChallenge(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return ch, nil
}

// ListChallenges returns the group's challenges ordered by scheduled_at
// ascending.
func (s *SQLiteStore) ListChallenges(ctx context.Context, groupID string) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE group_id = ? ORDER BY scheduled_at ASC",
		groupID,
	)
}

// RecentChallenges returns up to limit challenges ordered by scheduled_at
// descending.
func (s *SQLiteStore) RecentChallenges(ctx context.Context, groupID string, limit int) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+" FROM challenges WHERE group_id = ? ORDER BY scheduled_at DESC LIMIT ?",
		groupID, limit,
	)
}

// ChallengeExistsAt reports whether the group already has a challenge at
// exactly the given slot instant.
func (s *SQLiteStore) ChallengeExistsAt(ctx context.Context, groupID string, scheduledAt time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM challenges WHERE group_id = ? AND scheduled_at = ? LIMIT 1",
		groupID, unix(scheduledAt),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check challenge existence: %w", err)
	}
	return true, nil
}

// RecordCompletion appends a completion row and promotes the challenge to
// Complete once two distinct users have completed it, in one transaction.
// The conflict-ignoring insert makes repeat completions by the same user
// harmless, and the guarded update keeps the promotion race-free.
func (s *SQLiteStore) RecordCompletion(ctx context.Context, challengeID, userID string, now time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM challenges WHERE id = ?",
		challengeID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("challenge %s: %w", challengeID, storage.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up challenge: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO challenge_completions (challenge_id, user_id, completed_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
		challengeID, userID, unix(now),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert completion: %w", err)
	}

	// Promote iff two distinct completers exist; setting Complete when
	// already Complete is a no-op.
	_, err = tx.ExecContext(ctx, `
		UPDATE challenges SET status = ?
		WHERE id = ?
		  AND (SELECT COUNT(DISTINCT user_id) FROM challenge_completions WHERE challenge_id = ?) >= 2
	`, models.StatusComplete, challengeID, challengeID)
	if err != nil {
		return "", fmt.Errorf("failed to update challenge status: %w", err)
	}

	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM challenges WHERE id = ?",
		challengeID,
	).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("failed to read challenge status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return status, nil
}

// ExpiringChallenges returns Incomplete challenges expiring within
// (from, to], ordered by expires_at ascending.
func (s *SQLiteStore) ExpiringChallenges(ctx context.Context, groupID string, from, to time.Time) ([]models.Challenge, error) {
	return s.queryChallenges(ctx,
		"SELECT "+challengeColumns+` FROM challenges
		 WHERE group_id = ? AND status = ? AND expires_at > ? AND expires_at <= ?
		 ORDER BY expires_at ASC`,
		groupID, models.StatusIncomplete, unix(from), unix(to),
	)
}

func (s *SQLiteStore) queryChallenges(ctx context.Context, query string, args ...any) ([]models.Challenge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenges: %w", err)
	}
	defer rows.Close()

	var out []models.Challenge
	for rows.Next() {
		ch, err := scanChallenge(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate challenges: %w", err)
	}

	return out, nil
}

func scanChallenge(scan func(...any) error) (*models.Challenge, error) {
	ch := &models.Challenge{}
	var scheduledAt, expiresAt int64
	var longDistance int
	err := scan(
		&ch.ID,
		&ch.GroupID,
		&scheduledAt,
		&expiresAt,
		&ch.Status,
		&longDistance,
		&ch.Title,
		&ch.Description,
	)
	if err != nil {
		return nil, err
	}
	ch.ScheduledAt = fromUnix(scheduledAt)
	ch.ExpiresAt = fromUnix(expiresAt)
	ch.LongDistance = longDistance != 0
	return ch, nil
}
