package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kizunaapp/kizuna/internal/auth"
	"github.com/kizunaapp/kizuna/internal/clock"
	"github.com/kizunaapp/kizuna/internal/generator"
	"github.com/kizunaapp/kizuna/internal/service"
	"github.com/kizunaapp/kizuna/internal/storage/sqlite"
)

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(context.Context, string, generator.RequestPayload) (*generator.Reply, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &generator.Reply{Title: "Movie night", Description: "Pick a film neither of you has seen."}, nil
}

func setupServer(t *testing.T, gen *stubGenerator, now time.Time) *httptest.Server {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := clock.Fixed{Instant: now}
	challenges := service.NewChallengeService(store, gen, clk)
	h := &Handlers{
		Auth:        auth.NewPasswordAuthenticator(store),
		Tokens:      auth.NewJWTManager("test-secret", time.Hour),
		Groups:      service.NewGroupService(store, clk),
		Preferences: service.NewPreferenceService(store, clk),
		Challenges:  challenges,
		Scheduler:   service.NewSchedulerService(store, challenges, clk),
	}

	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode response %q: %v", data, err)
		}
	}
	return resp, decoded
}

func register(t *testing.T, baseURL, email string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, baseURL+"/api/auth/register", "", map[string]string{
		"email":       email,
		"displayName": "Test",
		"password":    "correct-horse",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d: %v", email, resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("register returned no token")
	}
	return token
}

// Monday 2025-03-03 08:00 Tokyo: an unfrozen slot hour.
func fixedNow(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, time.March, 3, 8, 0, 0, 0, clock.Zone()).UTC()
}

func TestAuthEndpoints(t *testing.T) {
	server := setupServer(t, &stubGenerator{}, fixedNow(t))

	register(t, server.URL, "a@example.com")

	t.Run("duplicate email conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/auth/register", "", map[string]string{
			"email": "a@example.com", "displayName": "Dup", "password": "correct-horse",
		})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status %d, want 409", resp.StatusCode)
		}
	})

	t.Run("weak password rejected", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/auth/register", "", map[string]string{
			"email": "b@example.com", "displayName": "B", "password": "short",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status %d, want 400", resp.StatusCode)
		}
	})

	t.Run("login succeeds with right password", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/auth/login", "", map[string]string{
			"email": "a@example.com", "password": "correct-horse",
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %v", resp.StatusCode, body)
		}
		if body["token"] == "" {
			t.Error("login returned no token")
		}
	})

	t.Run("login fails with wrong password", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/auth/login", "", map[string]string{
			"email": "a@example.com", "password": "wrong-password",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", resp.StatusCode)
		}
	})

	t.Run("protected routes require a token", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/groups", "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", resp.StatusCode)
		}
	})
}

func TestGroupLifecycle(t *testing.T) {
	server := setupServer(t, &stubGenerator{}, fixedNow(t))
	tokenA := register(t, server.URL, "a@example.com")
	tokenB := register(t, server.URL, "b@example.com")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/groups", tokenA, map[string]string{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create group: status %d: %v", resp.StatusCode, body)
	}
	groupID, _ := body["groupId"].(string)
	inviteToken, _ := body["inviteToken"].(string)
	if groupID == "" || inviteToken == "" {
		t.Fatalf("missing ids in response: %v", body)
	}

	t.Run("partner joins via invite", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invites/consume", tokenB, map[string]string{"token": inviteToken})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %v", resp.StatusCode, body)
		}
		if body["groupId"] != groupID {
			t.Errorf("joined %v, want %v", body["groupId"], groupID)
		}
	})

	t.Run("reused invite conflicts", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invites/consume", tokenB, map[string]string{"token": inviteToken})
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status %d, want 409", resp.StatusCode)
		}
	})

	t.Run("unknown invite not found", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invites/consume", tokenB, map[string]string{"token": "nope"})
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status %d, want 404", resp.StatusCode)
		}
	})

	t.Run("invite consumption lands in the feed", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, server.URL+"/api/groups/"+groupID+"/notifications", tokenA, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %v", resp.StatusCode, body)
		}
		feed, _ := body["notifications"].([]any)
		if len(feed) != 1 {
			t.Fatalf("expected 1 notification, got %v", body)
		}
	})
}

func TestChallengeEndpoints(t *testing.T) {
	server := setupServer(t, &stubGenerator{}, fixedNow(t))
	tokenA := register(t, server.URL, "a@example.com")
	tokenB := register(t, server.URL, "b@example.com")

	_, body := doJSON(t, http.MethodPost, server.URL+"/api/groups", tokenA, map[string]string{})
	groupID, _ := body["groupId"].(string)
	inviteToken, _ := body["inviteToken"].(string)
	doJSON(t, http.MethodPost, server.URL+"/api/invites/consume", tokenB, map[string]string{"token": inviteToken})

	t.Run("save preferences", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPut, server.URL+"/api/groups/"+groupID+"/preferences", tokenA, map[string]any{
			"spiceLevel": 4, "timesPerDay": 2, "keywords": "cooking, outdoors", "longDistance": false,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %v", resp.StatusCode, body)
		}
		if body["weekStart"] == nil {
			t.Errorf("missing week start: %v", body)
		}
	})

	t.Run("invalid preferences rejected", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/groups/"+groupID+"/preferences", tokenA, map[string]any{
			"spiceLevel": 9, "timesPerDay": 2,
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status %d, want 400", resp.StatusCode)
		}
	})

	var challengeID string
	t.Run("generate on demand", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/groups/"+groupID+"/challenges", tokenA, nil)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %v", resp.StatusCode, body)
		}
		challengeID, _ = body["id"].(string)
		if challengeID == "" || body["title"] != "Movie night" {
			t.Fatalf("unexpected challenge: %v", body)
		}
	})

	t.Run("completion joins both partners", func(t *testing.T) {
		url := fmt.Sprintf("%s/api/challenges/%s/completions", server.URL, challengeID)

		resp, body := doJSON(t, http.MethodPost, url, tokenA, nil)
		if resp.StatusCode != http.StatusOK || body["status"] != "Incomplete" {
			t.Fatalf("first completion: status %d body %v", resp.StatusCode, body)
		}

		resp, body = doJSON(t, http.MethodPost, url, tokenB, nil)
		if resp.StatusCode != http.StatusOK || body["status"] != "Complete" {
			t.Fatalf("second completion: status %d body %v", resp.StatusCode, body)
		}
	})

	t.Run("roadmap and history render", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, server.URL+"/api/groups/"+groupID+"/roadmap", tokenA, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("roadmap status %d: %v", resp.StatusCode, body)
		}
		weeks, _ := body["weeks"].([]any)
		if len(weeks) != 1 {
			t.Fatalf("expected 1 roadmap week, got %v", body)
		}

		resp, body = doJSON(t, http.MethodGet, server.URL+"/api/groups/"+groupID+"/challenges?limit=10", tokenA, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("history status %d: %v", resp.StatusCode, body)
		}
		challenges, _ := body["challenges"].([]any)
		if len(challenges) != 1 {
			t.Fatalf("expected 1 history entry, got %v", body)
		}
		first, _ := challenges[0].(map[string]any)
		if first["status"] != "Complete" {
			t.Errorf("history status %v", first["status"])
		}
	})

	t.Run("reminders for unknown group not found", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/groups/no-such/reminders", tokenA, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status %d, want 404", resp.StatusCode)
		}
	})

	t.Run("generator outage maps to bad gateway", func(t *testing.T) {
		down := setupServer(t, &stubGenerator{err: generator.ErrUnavailable}, fixedNow(t))
		token := register(t, down.URL, "c@example.com")
		_, body := doJSON(t, http.MethodPost, down.URL+"/api/groups", token, map[string]string{})
		gid, _ := body["groupId"].(string)

		resp, _ := doJSON(t, http.MethodPost, down.URL+"/api/groups/"+gid+"/challenges", token, nil)
		if resp.StatusCode != http.StatusBadGateway {
			t.Errorf("status %d, want 502", resp.StatusCode)
		}
	})
}

func TestTickEndpoint(t *testing.T) {
	// 08:00 Tokyo is a slot hour for every cadence.
	server := setupServer(t, &stubGenerator{}, fixedNow(t))
	tokenA := register(t, server.URL, "a@example.com")

	_, body := doJSON(t, http.MethodPost, server.URL+"/api/groups", tokenA, map[string]string{})
	groupID, _ := body["groupId"].(string)
	doJSON(t, http.MethodPut, server.URL+"/api/groups/"+groupID+"/preferences", tokenA, map[string]any{
		"spiceLevel": 3, "timesPerDay": 1,
	})

	resp, body := doJSON(t, http.MethodPost, server.URL+"/internal/tick", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	if body["generated"] != float64(1) {
		t.Errorf("generated %v, want 1", body["generated"])
	}

	// Same hour again: dedup keeps the count at zero.
	resp, body = doJSON(t, http.MethodPost, server.URL+"/internal/tick", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %v", resp.StatusCode, body)
	}
	if body["generated"] != float64(0) {
		t.Errorf("generated %v, want 0", body["generated"])
	}

	t.Run("healthz", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodGet, server.URL+"/healthz", "", nil)
		if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
			t.Errorf("status %d body %v", resp.StatusCode, body)
		}
	})
}
