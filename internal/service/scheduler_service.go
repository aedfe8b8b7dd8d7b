package service

import (
	"context"
	"log/slog"

	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/metrics"
	"github.com/kizunaapp/kizuna/internal/schedule"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// SchedulerService runs the hourly generation tick over all groups.
type SchedulerService struct {
	store      storage.Store
	challenges *ChallengeService
	clk        clock.Clock
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(store storage.Store, challenges *ChallengeService, clk clock.Clock) *SchedulerService {
	return &SchedulerService{store: store, challenges: challenges, clk: clk}
}

// ScheduleTick visits every group's latest preferences and generates a
// challenge for each group whose cadence has a slot at the current Tokyo
// hour. A group that already has a challenge at the slot instant is
// skipped, which makes re-running the tick within the same hour a no-op.
// One group's failure never blocks the others. Returns how many
// challenges were generated.
func (s *SchedulerService) ScheduleTick(ctx context.Context) (int, error) {
	metrics.TicksTotal.Inc()
	now := s.clk.Now()

	all, err := s.store.LatestPreferencesAll(ctx)
	if err != nil {
		slog.Error("ScheduleTick failed to load preferences", "error", err)
		return 0, err
	}

	generated := 0
	for i := range all {
		prefs := &all[i]
		if !schedule.ShouldFireNow(prefs.TimesPerDay, now) {
			continue
		}

		scheduledAt, expiresAt := schedule.ComputeWindow(prefs.TimesPerDay, now)

		exists, err := s.store.ChallengeExistsAt(ctx, prefs.GroupID, scheduledAt)
		if err != nil {
			slog.Warn("ScheduleTick dedup check failed", "group_id", prefs.GroupID, "error", err)
			continue
		}
		if exists {
			continue
		}

		ch, err := s.challenges.generate(ctx, prefs.GroupID, prefs, scheduledAt, expiresAt)
		if err != nil {
			slog.Warn("ScheduleTick generation failed", "group_id", prefs.GroupID, "error", err)
			continue
		}

		metrics.ChallengesGenerated.WithLabelValues("tick").Inc()
		slog.Info("Challenge scheduled",
			"group_id", prefs.GroupID,
			"challenge_id", ch.ID,
			"scheduled_at", scheduledAt,
			"expires_at", expiresAt,
		)
		generated++
	}

	slog.Info("Tick complete", "groups", len(all), "generated", generated)
	return generated, nil
}
