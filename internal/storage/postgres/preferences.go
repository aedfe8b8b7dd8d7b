package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kizunaapp/kizuna/internal/models"
)

// UpsertPreferences saves a group's preferences for one week.
func (s *PostgresStore) UpsertPreferences(ctx context.Context, prefs *models.WeeklyPreferences) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences_weekly (group_id, week_start, spice_level, times_per_day, keywords, long_distance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (group_id, week_start) DO UPDATE SET
			spice_level = EXCLUDED.spice_level,
			times_per_day = EXCLUDED.times_per_day,
			keywords = EXCLUDED.keywords,
			long_distance = EXCLUDED.long_distance
	`, prefs.GroupID, prefs.WeekStart, prefs.SpiceLevel, prefs.TimesPerDay, prefs.Keywords, prefs.LongDistance)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// LatestPreferences returns the group's most recent preference row.
func (s *PostgresStore) LatestPreferences(ctx context.Context, groupID string) (*models.WeeklyPreferences, error) {
	p := &models.WeeklyPreferences{}
	err := s.pool.QueryRow(ctx, `
		SELECT group_id, week_start, spice_level, times_per_day, keywords, long_distance
		FROM preferences_weekly
		WHERE group_id = $1
		ORDER BY week_start DESC
		LIMIT 1
	`, groupID).Scan(&p.GroupID, &p.WeekStart, &p.SpiceLevel, &p.TimesPerDay, &p.Keywords, &p.LongDistance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	p.WeekStart = p.WeekStart.UTC()
	return p, nil
}

// LatestPreferencesAll returns each group's most recent preference row.
func (s *PostgresStore) LatestPreferencesAll(ctx context.Context) ([]models.WeeklyPreferences, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (group_id)
			group_id, week_start, spice_level, times_per_day, keywords, long_distance
		FROM preferences_weekly
		ORDER BY group_id, week_start DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var out []models.WeeklyPreferences
	for rows.Next() {
		var p models.WeeklyPreferences
		if err := rows.Scan(&p.GroupID, &p.WeekStart, &p.SpiceLevel, &p.TimesPerDay, &p.Keywords, &p.LongDistance); err != nil {
			return nil, fmt.Errorf("scan preferences: %w", err)
		}
		p.WeekStart = p.WeekStart.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
