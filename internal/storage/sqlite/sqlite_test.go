package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "kizuna-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func mustCreateGroup(t *testing.T, store *SQLiteStore, creator string) (*models.Group, *models.Invite) {
	t.Helper()

	group := &models.Group{CreatedBy: creator}
	invite := &models.Invite{}
	if err := store.CreateGroup(context.Background(), group, invite); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return group, invite
}

func TestSQLiteStore_Groups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroup generates ids and creator participant", func(t *testing.T) {
		group, invite := mustCreateGroup(t, store, "user-a")

		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if invite.Token == "" {
			t.Error("Expected invite token to be generated")
		}
		if invite.GroupID != group.ID {
			t.Errorf("invite.GroupID = %s, want %s", invite.GroupID, group.ID)
		}

		participants, err := store.ListParticipants(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(participants) != 1 {
			t.Fatalf("participants = %d, want 1", len(participants))
		}
		if participants[0].UserID != "user-a" || participants[0].Role != models.RoleCreator {
			t.Errorf("creator participant = %+v", participants[0])
		}
	})

	t.Run("GetGroup round-trips", func(t *testing.T) {
		group, _ := mustCreateGroup(t, store, "user-b")

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.CreatedBy != "user-b" {
			t.Errorf("CreatedBy = %s, want user-b", got.CreatedBy)
		}
	})

	t.Run("GetGroup not found", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ConsumeInvite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)

	t.Run("consume grants membership and marks token", func(t *testing.T) {
		group, invite := mustCreateGroup(t, store, "creator-1")

		groupID, err := store.ConsumeInvite(ctx, invite.Token, "member-1", now)
		if err != nil {
			t.Fatalf("ConsumeInvite failed: %v", err)
		}
		if groupID != group.ID {
			t.Errorf("groupID = %s, want %s", groupID, group.ID)
		}

		got, err := store.GetInvite(ctx, invite.Token)
		if err != nil {
			t.Fatalf("GetInvite failed: %v", err)
		}
		if !got.Used() {
			t.Error("invite should be marked used")
		}
		if !got.UsedAt.Equal(now) {
			t.Errorf("UsedAt = %v, want %v", got.UsedAt, now)
		}

		participants, err := store.ListParticipants(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListParticipants failed: %v", err)
		}
		if len(participants) != 2 {
			t.Errorf("participants = %d, want 2", len(participants))
		}
	})

	t.Run("second consume conflicts and adds no participant", func(t *testing.T) {
		group, invite := mustCreateGroup(t, store, "creator-2")

		if _, err := store.ConsumeInvite(ctx, invite.Token, "member-2", now); err != nil {
			t.Fatalf("first consume failed: %v", err)
		}

		_, err := store.ConsumeInvite(ctx, invite.Token, "member-3", now.Add(time.Minute))
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}

		participants, _ := store.ListParticipants(ctx, group.ID)
		if len(participants) != 2 {
			t.Errorf("participants = %d, want 2 after rejected consume", len(participants))
		}

		// used_at unchanged by the losing attempt
		got, _ := store.GetInvite(ctx, invite.Token)
		if !got.UsedAt.Equal(now) {
			t.Errorf("UsedAt moved to %v after rejected consume", got.UsedAt)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := store.ConsumeInvite(ctx, "no-such-token", "member-x", now)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent consumers: exactly one wins", func(t *testing.T) {
		_, invite := mustCreateGroup(t, store, "creator-3")

		const attempts = 8
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.ConsumeInvite(ctx, invite.Token, "racer", now)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			}
		}
		if wins != 1 {
			t.Errorf("winners = %d, want exactly 1", wins)
		}
	})
}

func TestSQLiteStore_Preferences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, _ := mustCreateGroup(t, store, "creator")
	week1 := time.Date(2024, time.January, 1, 15, 0, 0, 0, time.UTC) // Mon 00:00 Tokyo
	week2 := week1.AddDate(0, 0, 7)

	t.Run("upsert replaces same week", func(t *testing.T) {
		prefs := &models.WeeklyPreferences{
			GroupID:     group.ID,
			WeekStart:   week1,
			SpiceLevel:  2,
			TimesPerDay: 1,
			Keywords:    "cozy",
		}
		if err := store.UpsertPreferences(ctx, prefs); err != nil {
			t.Fatalf("UpsertPreferences failed: %v", err)
		}

		prefs.SpiceLevel = 4
		prefs.Keywords = "cozy, spicy"
		prefs.LongDistance = true
		if err := store.UpsertPreferences(ctx, prefs); err != nil {
			t.Fatalf("second UpsertPreferences failed: %v", err)
		}

		got, err := store.LatestPreferences(ctx, group.ID)
		if err != nil {
			t.Fatalf("LatestPreferences failed: %v", err)
		}
		if got.SpiceLevel != 4 || got.Keywords != "cozy, spicy" || !got.LongDistance {
			t.Errorf("preferences = %+v, replacement not applied", got)
		}
	})

	t.Run("latest picks newest week", func(t *testing.T) {
		if err := store.UpsertPreferences(ctx, &models.WeeklyPreferences{
			GroupID: group.ID, WeekStart: week2, SpiceLevel: 5, TimesPerDay: 3,
		}); err != nil {
			t.Fatalf("UpsertPreferences failed: %v", err)
		}

		got, err := store.LatestPreferences(ctx, group.ID)
		if err != nil {
			t.Fatalf("LatestPreferences failed: %v", err)
		}
		if !got.WeekStart.Equal(week2) {
			t.Errorf("WeekStart = %v, want %v", got.WeekStart, week2)
		}
	})

	t.Run("no preferences yields nil", func(t *testing.T) {
		other, _ := mustCreateGroup(t, store, "creator-2")
		got, err := store.LatestPreferences(ctx, other.ID)
		if err != nil {
			t.Fatalf("LatestPreferences failed: %v", err)
		}
		if got != nil {
			t.Errorf("preferences = %+v, want nil", got)
		}
	})

	t.Run("latest-all returns one row per group", func(t *testing.T) {
		other, _ := mustCreateGroup(t, store, "creator-3")
		if err := store.UpsertPreferences(ctx, &models.WeeklyPreferences{
			GroupID: other.ID, WeekStart: week1, SpiceLevel: 1, TimesPerDay: 2,
		}); err != nil {
			t.Fatalf("UpsertPreferences failed: %v", err)
		}

		all, err := store.LatestPreferencesAll(ctx)
		if err != nil {
			t.Fatalf("LatestPreferencesAll failed: %v", err)
		}

		byGroup := map[string]models.WeeklyPreferences{}
		for _, p := range all {
			if _, dup := byGroup[p.GroupID]; dup {
				t.Errorf("group %s appears twice", p.GroupID)
			}
			byGroup[p.GroupID] = p
		}
		if got := byGroup[group.ID]; !got.WeekStart.Equal(week2) {
			t.Errorf("group week = %v, want newest %v", got.WeekStart, week2)
		}
	})
}

func TestSQLiteStore_Challenges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, _ := mustCreateGroup(t, store, "creator")
	base := time.Date(2024, time.June, 9, 23, 0, 0, 0, time.UTC) // 08:00 Tokyo Jun 10

	insert := func(t *testing.T, offset time.Duration, status string) *models.Challenge {
		t.Helper()
		ch := &models.Challenge{
			GroupID:     group.ID,
			ScheduledAt: base.Add(offset),
			ExpiresAt:   base.Add(offset + 12*time.Hour),
			Status:      status,
			Title:       "t",
			Description: "d",
		}
		if err := store.InsertChallenge(ctx, ch); err != nil {
			t.Fatalf("InsertChallenge failed: %v", err)
		}
		return ch
	}

	t.Run("insert and get", func(t *testing.T) {
		ch := insert(t, 0, "")

		got, err := store.GetChallenge(ctx, ch.ID)
		if err != nil {
			t.Fatalf("GetChallenge failed: %v", err)
		}
		if got.Status != models.StatusIncomplete {
			t.Errorf("Status = %s, want default Incomplete", got.Status)
		}
		if !got.ScheduledAt.Equal(base) {
			t.Errorf("ScheduledAt = %v, want %v", got.ScheduledAt, base)
		}
	})

	t.Run("exists-at matches exact slot instant", func(t *testing.T) {
		exists, err := store.ChallengeExistsAt(ctx, group.ID, base)
		if err != nil {
			t.Fatalf("ChallengeExistsAt failed: %v", err)
		}
		if !exists {
			t.Error("expected existing slot to be found")
		}

		exists, err = store.ChallengeExistsAt(ctx, group.ID, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("ChallengeExistsAt failed: %v", err)
		}
		if exists {
			t.Error("unexpected challenge at different instant")
		}
	})

	t.Run("list orders ascending, recent descending", func(t *testing.T) {
		insert(t, 24*time.Hour, models.StatusIncomplete)
		insert(t, 12*time.Hour, models.StatusIncomplete)

		asc, err := store.ListChallenges(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListChallenges failed: %v", err)
		}
		for i := 1; i < len(asc); i++ {
			if asc[i].ScheduledAt.Before(asc[i-1].ScheduledAt) {
				t.Error("ListChallenges not ascending")
			}
		}

		desc, err := store.RecentChallenges(ctx, group.ID, 2)
		if err != nil {
			t.Fatalf("RecentChallenges failed: %v", err)
		}
		if len(desc) != 2 {
			t.Fatalf("RecentChallenges = %d rows, want 2", len(desc))
		}
		if desc[0].ScheduledAt.Before(desc[1].ScheduledAt) {
			t.Error("RecentChallenges not descending")
		}
	})

	t.Run("expiring window is half-open", func(t *testing.T) {
		now := base.Add(11 * time.Hour)
		expiring, err := store.ExpiringChallenges(ctx, group.ID, now, now.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("ExpiringChallenges failed: %v", err)
		}
		// Only the base challenge expires at base+12h, inside (now, now+2h].
		if len(expiring) != 1 {
			t.Fatalf("expiring = %d, want 1", len(expiring))
		}
		if !expiring[0].ExpiresAt.Equal(base.Add(12 * time.Hour)) {
			t.Errorf("expiring[0].ExpiresAt = %v", expiring[0].ExpiresAt)
		}
	})
}

func TestSQLiteStore_RecordCompletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, time.June, 10, 1, 0, 0, 0, time.UTC)

	group, _ := mustCreateGroup(t, store, "creator")

	newChallenge := func(t *testing.T) *models.Challenge {
		t.Helper()
		ch := &models.Challenge{
			GroupID:     group.ID,
			ScheduledAt: now,
			ExpiresAt:   now.Add(12 * time.Hour),
			Title:       "t",
			Description: "d",
		}
		// scheduled_at uniqueness is not constrained; reuse is fine here
		if err := store.InsertChallenge(ctx, ch); err != nil {
			t.Fatalf("InsertChallenge failed: %v", err)
		}
		return ch
	}

	t.Run("single completer stays incomplete", func(t *testing.T) {
		ch := newChallenge(t)

		status, err := store.RecordCompletion(ctx, ch.ID, "user-a", now)
		if err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
		if status != models.StatusIncomplete {
			t.Errorf("status = %s, want Incomplete", status)
		}
	})

	t.Run("same user twice never completes", func(t *testing.T) {
		ch := newChallenge(t)

		store.RecordCompletion(ctx, ch.ID, "user-a", now)
		status, err := store.RecordCompletion(ctx, ch.ID, "user-a", now.Add(time.Minute))
		if err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
		if status != models.StatusIncomplete {
			t.Errorf("status = %s, want Incomplete after duplicate completer", status)
		}
	})

	t.Run("two distinct completers promote to Complete", func(t *testing.T) {
		ch := newChallenge(t)

		store.RecordCompletion(ctx, ch.ID, "user-a", now)
		status, err := store.RecordCompletion(ctx, ch.ID, "user-b", now.Add(time.Minute))
		if err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
		if status != models.StatusComplete {
			t.Errorf("status = %s, want Complete", status)
		}

		// Terminal: a third completion changes nothing.
		status, err = store.RecordCompletion(ctx, ch.ID, "user-c", now.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("RecordCompletion failed: %v", err)
		}
		if status != models.StatusComplete {
			t.Errorf("status = %s, want Complete to be terminal", status)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		_, err := store.RecordCompletion(ctx, "missing", "user-a", now)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_Notifications(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group, _ := mustCreateGroup(t, store, "creator")

	for i, typ := range []string{models.NotificationScheduled, models.NotificationInviteConsumed} {
		if err := store.InsertNotification(ctx, &models.Notification{
			GroupID:   group.ID,
			Type:      typ,
			CreatedAt: time.Date(2024, time.June, 10, i, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("InsertNotification failed: %v", err)
		}
	}

	got, err := store.ListNotifications(ctx, group.ID, 10)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if got[0].Type != models.NotificationInviteConsumed {
		t.Errorf("newest first: got %s", got[0].Type)
	}
}

func TestSQLiteStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := models.NewUser("a@example.com", "A", "hash")
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byEmail, err := store.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("byEmail = %+v", byEmail)
	}

	byID, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID == nil || byID.Email != "a@example.com" {
		t.Errorf("byID = %+v", byID)
	}

	missing, err := store.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if missing != nil {
		t.Errorf("missing = %+v, want nil", missing)
	}

	if err := store.CreateUser(ctx, models.NewUser("a@example.com", "Dup", "hash")); err == nil {
		t.Error("duplicate email should fail")
	}
}
