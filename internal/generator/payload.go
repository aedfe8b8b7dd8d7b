// Package generator builds content-generation requests from a group's
// preferences and history, calls the external bot endpoint, and parses its
// line-oriented event response into a title/description pair.
package generator

import (
	"strings"

	"github.com/kizunaapp/kizuna/internal/models"
)

// Defaults applied when a group has no saved preferences.
const (
	defaultSpiceLevel  = 3
	defaultTimesPerDay = 2
)

// HistoryLimit caps how many prior challenges are sent to discourage
// repetition, most-recent-first.
const HistoryLimit = 200

// PriorChallenge is a prior challenge's content, sent as repetition context.
type PriorChallenge struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RequestPayload is the opaque content blob serialized into the bot request.
type RequestPayload struct {
	SpiceLevel       int              `json:"spiceLevel"`
	TimesPerDay      int              `json:"timesPerDay"`
	Keywords         []string         `json:"keywords"`
	LongDistanceMode bool             `json:"longDistanceMode"`
	PriorChallenges  []PriorChallenge `json:"priorChallenges"`
}

// BuildRequest assembles the generation payload. A nil prefs applies the
// defaults; the free-text keyword field is split on commas with empties
// dropped; prior challenges are passed through most-recent-first.
func BuildRequest(prefs *models.WeeklyPreferences, prior []models.Challenge) RequestPayload {
	payload := RequestPayload{
		SpiceLevel:      defaultSpiceLevel,
		TimesPerDay:     defaultTimesPerDay,
		Keywords:        []string{},
		PriorChallenges: []PriorChallenge{},
	}

	if prefs != nil {
		if prefs.SpiceLevel != 0 {
			payload.SpiceLevel = prefs.SpiceLevel
		}
		if prefs.TimesPerDay != 0 {
			payload.TimesPerDay = prefs.TimesPerDay
		}
		payload.Keywords = SplitKeywords(prefs.Keywords)
		payload.LongDistanceMode = prefs.LongDistance
	}

	if len(prior) > HistoryLimit {
		prior = prior[:HistoryLimit]
	}
	for _, c := range prior {
		payload.PriorChallenges = append(payload.PriorChallenges, PriorChallenge{
			Title:       c.Title,
			Description: c.Description,
		})
	}

	return payload
}

// SplitKeywords splits the free-text keyword field on commas, trims each
// token and drops empties.
func SplitKeywords(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
