// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kizunaapp/kizuna/internal/models"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a conditional mutation lost to concurrent state:
	// an invite already consumed, a duplicate participant, and so on.
	ErrConflict = errors.New("conflicting state")
)

// Store defines the persistence contract for the scheduling engine.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
//
// The check-then-act sequences the engine depends on (invite consumption,
// the completion join) are store methods so each backend can run them as a
// single transaction with conditional updates; callers never compose them
// from separate reads and writes.
type Store interface {
	// CreateUser persists a new user account.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves a user by email. Returns nil, nil when no
	// such user exists.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves a user by id. Returns nil, nil when no such
	// user exists.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateGroup persists a group, its creator participant row and the
	// group's fresh invite in one transaction.
	CreateGroup(ctx context.Context, group *models.Group, invite *models.Invite) error

	// GetGroup retrieves a group by id.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListParticipants returns the group's participants.
	ListParticipants(ctx context.Context, groupID string) ([]models.Participant, error)

	// GetInvite retrieves an invite by token.
	GetInvite(ctx context.Context, token string) (*models.Invite, error)

	// ConsumeInvite atomically marks the token used and inserts the member
	// participant row, in one transaction. The used_at transition is
	// conditional on the token being unused, so of two concurrent
	// consumers exactly one succeeds. Returns the joined group id.
	// Fails with ErrNotFound for unknown tokens and ErrConflict for
	// already-consumed tokens or duplicate membership.
	ConsumeInvite(ctx context.Context, token, userID string, now time.Time) (string, error)

	// UpsertPreferences saves a group's preferences for one week,
	// replacing any existing row for the same (group, week start).
	UpsertPreferences(ctx context.Context, prefs *models.WeeklyPreferences) error

	// LatestPreferences returns the group's most recent preference row by
	// week start. Returns nil, nil when the group has none.
	LatestPreferences(ctx context.Context, groupID string) (*models.WeeklyPreferences, error)

	// LatestPreferencesAll returns the most recent preference row of
	// every group, one row per group.
	LatestPreferencesAll(ctx context.Context) ([]models.WeeklyPreferences, error)

	// InsertChallenge persists a new challenge.
	InsertChallenge(ctx context.Context, ch *models.Challenge) error

	// GetChallenge retrieves a challenge by id.
	GetChallenge(ctx context.Context, challengeID string) (*models.Challenge, error)

	// ListChallenges returns the group's challenges ordered by
	// scheduled_at ascending.
	ListChallenges(ctx context.Context, groupID string) ([]models.Challenge, error)

	// RecentChallenges returns up to limit challenges for the group
	// ordered by scheduled_at descending.
	RecentChallenges(ctx context.Context, groupID string, limit int) ([]models.Challenge, error)

	// ChallengeExistsAt reports whether the group already has a challenge
	// scheduled at exactly the given instant. The scheduler's tick
	// idempotency key.
	ChallengeExistsAt(ctx context.Context, groupID string, scheduledAt time.Time) (bool, error)

	// RecordCompletion appends a completion for (challenge, user) and, in
	// the same transaction, promotes the challenge to Complete once two
	// distinct users have completed it. A repeat completion by the same
	// user is a no-op for the join condition. Returns the challenge
	// status after the call.
	RecordCompletion(ctx context.Context, challengeID, userID string, now time.Time) (string, error)

	// ExpiringChallenges returns the group's Incomplete challenges whose
	// expires_at falls within (from, to], ordered by expires_at ascending.
	ExpiringChallenges(ctx context.Context, groupID string, from, to time.Time) ([]models.Challenge, error)

	// InsertNotification appends a notification row.
	InsertNotification(ctx context.Context, n *models.Notification) error

	// ListNotifications returns up to limit notifications for the group,
	// newest first.
	ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error)

	// Close releases any resources held by the store.
	Close() error
}
