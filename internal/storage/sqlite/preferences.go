package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kizunaapp/kizuna/internal/models"
)

// UpsertPreferences saves a group's preferences for one week, replacing
// any existing row for the same (group, week start).
func (s *SQLiteStore) UpsertPreferences(ctx context.Context, prefs *models.WeeklyPreferences) error {
	query := `
		INSERT INTO preferences_weekly (group_id, week_start, spice_level, times_per_day, keywords, long_distance)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, week_start) DO UPDATE SET
			spice_level = excluded.spice_level,
			times_per_day = excluded.times_per_day,
			keywords = excluded.keywords,
			long_distance = excluded.long_distance
	`

	_, err := s.db.ExecContext(ctx, query,
		prefs.GroupID,
		unix(prefs.WeekStart),
		prefs.SpiceLevel,
		prefs.TimesPerDay,
		prefs.Keywords,
		boolToInt(prefs.LongDistance),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return nil
}

// LatestPreferences returns the group's most recent preference row.
func (s *SQLiteStore) LatestPreferences(ctx context.Context, groupID string) (*models.WeeklyPreferences, error) {
	query := `
		SELECT group_id, week_start, spice_level, times_per_day, keywords, long_distance
		FROM preferences_weekly
		WHERE group_id = ?
		ORDER BY week_start DESC
		LIMIT 1
	`

	prefs, err := scanPreferences(s.db.QueryRowContext(ctx, query, groupID))
	if err == sql.ErrNoRows {
		return nil, nil // no preferences saved yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return prefs, nil
}

// LatestPreferencesAll returns each group's most recent preference row.
func (s *SQLiteStore) LatestPreferencesAll(ctx context.Context) ([]models.WeeklyPreferences, error) {
	// Newest week per group via correlated subquery; sqlite has no
	// DISTINCT ON.
	query := `
		SELECT p.group_id, p.week_start, p.spice_level, p.times_per_day, p.keywords, p.long_distance
		FROM preferences_weekly p
		WHERE p.week_start = (
			SELECT MAX(week_start) FROM preferences_weekly WHERE group_id = p.group_id
		)
		ORDER BY p.group_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var out []models.WeeklyPreferences
	for rows.Next() {
		var p models.WeeklyPreferences
		var weekStart int64
		var longDistance int
		if err := rows.Scan(&p.GroupID, &weekStart, &p.SpiceLevel, &p.TimesPerDay, &p.Keywords, &longDistance); err != nil {
			return nil, fmt.Errorf("failed to scan preferences: %w", err)
		}
		p.WeekStart = fromUnix(weekStart)
		p.LongDistance = longDistance != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}

	return out, nil
}

func scanPreferences(row *sql.Row) (*models.WeeklyPreferences, error) {
	p := &models.WeeklyPreferences{}
	var weekStart int64
	var longDistance int
	err := row.Scan(&p.GroupID, &weekStart, &p.SpiceLevel, &p.TimesPerDay, &p.Keywords, &longDistance)
	if err != nil {
		return nil, err
	}
	p.WeekStart = fromUnix(weekStart)
	p.LongDistance = longDistance != 0
	return p, nil
}
