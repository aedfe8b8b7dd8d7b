package service

import (
	"context"
	"log/slog"

	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/schedule"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// PreferenceService manages a group's weekly challenge preferences.
type PreferenceService struct {
	store storage.Store
	clk   clock.Clock
}

// NewPreferenceService creates a new PreferenceService with the given
// storage backend.
func NewPreferenceService(store storage.Store, clk clock.Clock) *PreferenceService {
	return &PreferenceService{store: store, clk: clk}
}

// PreferenceInput is the caller-supplied portion of a preference save.
type PreferenceInput struct {
	SpiceLevel   int
	TimesPerDay  int
	Keywords     string
	LongDistance bool
}

// SavePreferences validates and saves preferences for the group.
//
// The target week depends on when the save lands: Monday or Tuesday (Tokyo)
// edits the current week, Wednesday onward the current week is frozen and
// the save applies to next week. Saving twice for the same target week
// replaces the earlier row.
func (s *PreferenceService) SavePreferences(ctx context.Context, groupID string, in PreferenceInput) (*models.WeeklyPreferences, error) {
	if in.SpiceLevel < models.MinSpiceLevel || in.SpiceLevel > models.MaxSpiceLevel {
		return nil, invalid("spiceLevel", "must be between 1 and 5")
	}
	if in.TimesPerDay < models.MinTimesPerDay || in.TimesPerDay > models.MaxTimesPerDay {
		return nil, invalid("timesPerDay", "must be between 1 and 3")
	}

	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	frozen := schedule.IsFrozen(now)
	prefs := &models.WeeklyPreferences{
		GroupID:      groupID,
		WeekStart:    schedule.TargetWeekStart(now),
		SpiceLevel:   in.SpiceLevel,
		TimesPerDay:  in.TimesPerDay,
		Keywords:     in.Keywords,
		LongDistance: in.LongDistance,
	}

	if err := s.store.UpsertPreferences(ctx, prefs); err != nil {
		slog.Error("SavePreferences failed", "group_id", groupID, "error", err)
		return nil, err
	}

	slog.Info("Preferences saved",
		"group_id", groupID,
		"week_start", prefs.WeekStart,
		"frozen", frozen,
		"times_per_day", prefs.TimesPerDay,
	)
	return prefs, nil
}

// Latest returns the group's most recent preference row, or nil when the
// group has never saved preferences.
func (s *PreferenceService) Latest(ctx context.Context, groupID string) (*models.WeeklyPreferences, error) {
	return s.store.LatestPreferences(ctx, groupID)
}
