// Package transporthttp exposes the scheduling engine over a JSON HTTP API.
package transporthttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kizunaapp/kizuna/internal/auth"
	"github.com/kizunaapp/kizuna/internal/generator"
	"github.com/kizunaapp/kizuna/internal/models"
	"github.com/kizunaapp/kizuna/internal/service"
	"github.com/kizunaapp/kizuna/internal/storage"
)

// Handlers carries the transport's dependencies.
type Handlers struct {
	Auth        auth.Authenticator
	Tokens      *auth.JWTManager
	Groups      *service.GroupService
	Preferences *service.PreferenceService
	Challenges  *service.ChallengeService
	Scheduler   *service.SchedulerService
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeProblem(w, http.StatusBadRequest, "validation failed", verr.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		writeProblem(w, http.StatusBadRequest, "validation failed", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeProblem(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, storage.ErrConflict), errors.Is(err, auth.ErrEmailExists):
		writeProblem(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, generator.ErrTimeout):
		writeProblem(w, http.StatusGatewayTimeout, "generation timed out", err.Error())
	case errors.Is(err, generator.ErrUnavailable), errors.Is(err, generator.ErrMalformedResponse):
		writeProblem(w, http.StatusBadGateway, "generation failed", err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeProblem(w, http.StatusInternalServerError, "internal error", "an unexpected error occurred")
	}
}

// --- Auth ---

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

func (h *Handlers) authResponse(w http.ResponseWriter, status int, user *models.User) {
	token, err := h.Tokens.Generate(user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, authResponse{
		Token: token,
		User:  userView{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName},
	})
}

func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Password    string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}
	if req.Email == "" {
		writeProblem(w, http.StatusBadRequest, "validation failed", "email: required")
		return
	}

	user, err := h.Auth.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.authResponse(w, http.StatusCreated, user)
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}

	user, err := h.Auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.authResponse(w, http.StatusOK, user)
}

// --- Groups and invites ---

func (h *Handlers) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	group, invite, err := h.Groups.CreateGroup(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"groupId":     group.ID,
		"inviteToken": invite.Token,
	})
}

func (h *Handlers) handleConsumeInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}

	groupID, err := h.Groups.ConsumeInvite(r.Context(), req.Token, UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"groupId": groupID})
}

// --- Preferences ---

func (h *Handlers) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpiceLevel   int    `json:"spiceLevel"`
		TimesPerDay  int    `json:"timesPerDay"`
		Keywords     string `json:"keywords"`
		LongDistance bool   `json:"longDistance"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error())
		return
	}

	prefs, err := h.Preferences.SavePreferences(r.Context(), chi.URLParam(r, "groupID"), service.PreferenceInput{
		SpiceLevel:   req.SpiceLevel,
		TimesPerDay:  req.TimesPerDay,
		Keywords:     req.Keywords,
		LongDistance: req.LongDistance,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groupId":      prefs.GroupID,
		"weekStart":    prefs.WeekStart,
		"spiceLevel":   prefs.SpiceLevel,
		"timesPerDay":  prefs.TimesPerDay,
		"keywords":     prefs.Keywords,
		"longDistance": prefs.LongDistance,
	})
}

// --- Challenges ---

func (h *Handlers) handleGenerateChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.Challenges.Generate(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           ch.ID,
		"title":        ch.Title,
		"description":  ch.Description,
		"scheduledAt":  ch.ScheduledAt,
		"expiresAt":    ch.ExpiresAt,
		"status":       ch.Status,
		"longDistance": ch.LongDistance,
	})
}

func (h *Handlers) handleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	status, err := h.Challenges.RecordCompletion(r.Context(), chi.URLParam(r, "challengeID"), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// --- Projections ---

func (h *Handlers) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	weeks, err := h.Challenges.Roadmap(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

func (h *Handlers) handleReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.Challenges.Reminders(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.Challenges.History(r.Context(), chi.URLParam(r, "groupID"), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": challenges})
}

type notificationView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handlers) handleNotifications(w http.ResponseWriter, r *http.Request) {
	feed, err := h.Challenges.Notifications(r.Context(), chi.URLParam(r, "groupID"), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]notificationView, 0, len(feed))
	for _, n := range feed {
		out = append(out, notificationView{ID: n.ID, Type: n.Type, CreatedAt: n.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": out})
}

// --- Internal ---

func (h *Handlers) handleTick(w http.ResponseWriter, r *http.Request) {
	generated, err := h.Scheduler.ScheduleTick(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"generated": generated})
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
