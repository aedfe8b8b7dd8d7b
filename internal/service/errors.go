package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// insertNotification appends a best-effort feed entry. Notifications never
// fail the primary operation; a failed insert is logged and dropped.
func insertNotification(ctx context.Context, store storage.Store, groupID, typ string, now time.Time) {
	n := &models.Notification{
		GroupID:   groupID,
		Type:      typ,
		CreatedAt: now,
	}
	if err := store.InsertNotification(ctx, n); err != nil {
		slog.Warn("notification insert failed", "group_id", groupID, "type", typ, "error", err)
	}
}
