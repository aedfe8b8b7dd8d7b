package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/generator"
	"github.com/kizunaapp/kizuna/internal/metrics"
	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/schedule"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// ContentGenerator produces challenge content for a group.
type ContentGenerator interface {
	Generate(ctx context.Context, groupID string, payload generator.RequestPayload) (*generator.Reply, error)
}

// ChallengeService manages challenge generation, completion and the read
// projections (roadmap, reminders, history, notifications).
type ChallengeService struct {
	store storage.Store
	gen   ContentGenerator
	clk   clock.Clock
}

// NewChallengeService creates a new ChallengeService.
func NewChallengeService(store storage.Store, gen ContentGenerator, clk clock.Clock) *ChallengeService {
	return &ChallengeService{store: store, gen: gen, clk: clk}
}

// manualExpiry is the validity window for on-demand generation: a whole day
// at one challenge per day, shrinking as the daily cadence rises.
func manualExpiry(timesPerDay int) time.Duration {
	switch timesPerDay {
	case 1:
		return 24 * time.Hour
	case 2:
		return 12 * time.Hour
	default:
		return 8 * time.Hour
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, generator.ErrTimeout):
		return "timeout"
	case errors.Is(err, generator.ErrMalformedResponse):
		return "malformed"
	default:
		return "unavailable"
	}
}

// Generate creates a challenge for the group on demand, outside the slot
// schedule. It is scheduled at the current instant and expires after a
// cadence-dependent window.
func (s *ChallengeService) Generate(ctx context.Context, groupID string) (*models.Challenge, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	prefs, err := s.store.LatestPreferences(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	ch, err := s.generate(ctx, groupID, prefs, now, now.Add(manualExpiry(timesPerDay(prefs))))
	if err != nil {
		return nil, err
	}

	metrics.ChallengesGenerated.WithLabelValues("manual").Inc()
	slog.Info("Challenge generated", "group_id", groupID, "challenge_id", ch.ID, "origin", "manual")
	return ch, nil
}

// generate runs one end-to-end generation: build the payload from the
// latest preferences and recent history, call the bot, persist the
// challenge and emit the scheduled notification.
func (s *ChallengeService) generate(ctx context.Context, groupID string, prefs *models.WeeklyPreferences, scheduledAt, expiresAt time.Time) (*models.Challenge, error) {
	prior, err := s.store.RecentChallenges(ctx, groupID, generator.HistoryLimit)
	if err != nil {
		return nil, err
	}

	payload := generator.BuildRequest(prefs, prior)

	start := time.Now()
	reply, err := s.gen.Generate(ctx, groupID, payload)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, fmt.Errorf("generate content: %w", err)
	}

	ch := &models.Challenge{
		ID:           uuid.New().String(),
		GroupID:      groupID,
		ScheduledAt:  scheduledAt,
		ExpiresAt:    expiresAt,
		Status:       models.StatusIncomplete,
		LongDistance: prefs != nil && prefs.LongDistance,
		Title:        reply.Title,
		Description:  reply.Description,
	}
	if err := s.store.InsertChallenge(ctx, ch); err != nil {
		return nil, err
	}

	insertNotification(ctx, s.store, groupID, models.NotificationScheduled, s.clk.Now())
	return ch, nil
}

func timesPerDay(prefs *models.WeeklyPreferences) int {
	if prefs == nil || prefs.TimesPerDay == 0 {
		return 2
	}
	return prefs.TimesPerDay
}

// RecordCompletion records one participant's completion and returns the
// challenge's stored status afterwards. The challenge flips to Complete
// only once two distinct participants have completed it.
func (s *ChallengeService) RecordCompletion(ctx context.Context, challengeID, userID string) (string, error) {
	status, err := s.store.RecordCompletion(ctx, challengeID, userID, s.clk.Now())
	if err != nil {
		slog.Warn("RecordCompletion failed", "challenge_id", challengeID, "user_id", userID, "error", err)
		return "", err
	}

	metrics.CompletionsRecorded.WithLabelValues(status).Inc()
	slog.Info("Completion recorded", "challenge_id", challengeID, "user_id", userID, "status", status)
	return status, nil
}

// ChallengeView is a challenge as shown to users, with the display status
// derived at read time.
type ChallengeView struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ScheduledAt  time.Time `json:"scheduledAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Status       string    `json:"status"`
	LongDistance bool      `json:"longDistance"`
}

func view(ch models.Challenge, now time.Time) ChallengeView {
	return ChallengeView{
		ID:           ch.ID,
		Title:        ch.Title,
		Description:  ch.Description,
		ScheduledAt:  ch.ScheduledAt,
		ExpiresAt:    ch.ExpiresAt,
		Status:       ch.DisplayStatus(now),
		LongDistance: ch.LongDistance,
	}
}

// RoadmapWeek is one civil week's bucket of challenges.
type RoadmapWeek struct {
	WeekStart  time.Time       `json:"weekStart"`
	Label      string          `json:"label"`
	Challenges []ChallengeView `json:"challenges"`
}

// Roadmap returns the group's challenges bucketed by Tokyo civil week,
// oldest week first, challenges ordered by slot within each week.
func (s *ChallengeService) Roadmap(ctx context.Context, groupID string) ([]RoadmapWeek, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	challenges, err := s.store.ListChallenges(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	weeks := []RoadmapWeek{}
	for _, ch := range challenges {
		ws := schedule.CurrentWeekStart(ch.ScheduledAt)
		if len(weeks) == 0 || !weeks[len(weeks)-1].WeekStart.Equal(ws) {
			weeks = append(weeks, RoadmapWeek{
				WeekStart: ws,
				Label:     weekLabel(ws),
			})
		}
		last := &weeks[len(weeks)-1]
		last.Challenges = append(last.Challenges, view(ch, now))
	}

	slog.Info("Roadmap rendered", "group_id", groupID, "weeks", len(weeks))
	return weeks, nil
}

// weekLabel renders "Jan 2 - Jan 8, 2006" in Tokyo civil time.
func weekLabel(weekStart time.Time) string {
	start := clock.InZone(weekStart)
	end := start.AddDate(0, 0, 6)
	return start.Format("Jan 2") + " - " + end.Format("Jan 2, 2006")
}

// Reminder is an incomplete challenge approaching its expiry.
type Reminder struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	ScheduledAt     time.Time `json:"scheduledAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	TimeUntilExpiry string    `json:"timeUntilExpiry"`
	Urgent          bool      `json:"urgent"`
}

// Reminders returns the group's incomplete challenges expiring within the
// next two hours, soonest first. Challenges under thirty minutes out are
// flagged urgent.
func (s *ChallengeService) Reminders(ctx context.Context, groupID string) ([]Reminder, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	expiring, err := s.store.ExpiringChallenges(ctx, groupID, now, now.Add(2*time.Hour))
	if err != nil {
		return nil, err
	}

	out := []Reminder{}
	for _, ch := range expiring {
		minutes := ch.ExpiresAt.Sub(now).Minutes()
		out = append(out, Reminder{
			ID:              ch.ID,
			Title:           ch.Title,
			Description:     ch.Description,
			ScheduledAt:     ch.ScheduledAt,
			ExpiresAt:       ch.ExpiresAt,
			TimeUntilExpiry: formatTimeUntil(minutes),
			Urgent:          minutes < 30,
		})
	}
	return out, nil
}

func formatTimeUntil(minutes float64) string {
	if minutes < 1 {
		return "Less than 1 minute"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d minutes", int(math.Ceil(minutes)))
	}
	hours := int(minutes) / 60
	remaining := int(math.Ceil(math.Mod(minutes, 60)))
	if remaining == 0 {
		if hours > 1 {
			return fmt.Sprintf("%d hours", hours)
		}
		return "1 hour"
	}
	return fmt.Sprintf("%dh %dm", hours, remaining)
}

// History returns the group's challenges newest first, capped at limit.
func (s *ChallengeService) History(ctx context.Context, groupID string, limit int) ([]ChallengeView, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	challenges, err := s.store.RecentChallenges(ctx, groupID, limit)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	out := []ChallengeView{}
	for _, ch := range challenges {
		out = append(out, view(ch, now))
	}
	return out, nil
}

// Notifications returns the group's feed, newest first, capped at limit.
func (s *ChallengeService) Notifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListNotifications(ctx, groupID, limit)
}
