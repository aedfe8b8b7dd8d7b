package transporthttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kizunaapp/kizuna/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user's id from the request context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// RequireAuth validates the bearer token and puts the user id on the
// request context.
func RequireAuth(tokens *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", auth.ErrMissingToken.Error())
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", "authorization header must use the Bearer scheme")
				return
			}

			claims, err := tokens.Validate(token)
			if err != nil {
				writeProblem(w, http.StatusUnauthorized, "unauthorized", auth.ErrInvalidToken.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
