package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/metrics"
	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// GroupService manages group creation and invite consumption.
type GroupService struct {
	store storage.Store
	clk   clock.Clock
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, clk clock.Clock) *GroupService {
	return &GroupService{store: store, clk: clk}
}

// CreateGroup creates a group for the given user and issues its single-use
// invite token. The creator becomes the group's first participant.
func (s *GroupService) CreateGroup(ctx context.Context, userID string) (*models.Group, *models.Invite, error) {
	now := s.clk.Now()

	group := &models.Group{
		ID:        uuid.New().String(),
		CreatedBy: userID,
		CreatedAt: now,
	}
	invite := &models.Invite{
		Token:     uuid.New().String(),
		GroupID:   group.ID,
		CreatedBy: userID,
		CreatedAt: now,
	}

	if err := s.store.CreateGroup(ctx, group, invite); err != nil {
		slog.Error("CreateGroup failed", "user_id", userID, "error", err)
		return nil, nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "created_by", userID)
	return group, invite, nil
}

// GetGroup retrieves a group by ID.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// ConsumeInvite redeems a single-use invite token for the given user and
// returns the joined group's id. Of two concurrent consumers exactly one
// succeeds; the loser gets storage.ErrConflict.
func (s *GroupService) ConsumeInvite(ctx context.Context, token, userID string) (string, error) {
	if token == "" {
		return "", invalid("token", "required")
	}
	now := s.clk.Now()

	groupID, err := s.store.ConsumeInvite(ctx, token, userID, now)
	if err != nil {
		slog.Warn("ConsumeInvite failed", "user_id", userID, "error", err)
		return "", err
	}

	metrics.InvitesConsumed.Inc()
	insertNotification(ctx, s.store, groupID, models.NotificationInviteConsumed, now)

	slog.Info("Invite consumed", "group_id", groupID, "user_id", userID)
	return groupID, nil
}
