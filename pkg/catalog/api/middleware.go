package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/content-catalog/pkg/catalog"
)

type contextKey string

const userKey contextKey = "catalog_user"

// UserIDClaim names the JWT claim carrying the acting user's ID.
const UserIDClaim = "user_id"

// UserFromContext returns the identity attached by RequireIdentity.
func UserFromContext(ctx context.Context) (*catalog.User, bool) {
	user, ok := ctx.Value(userKey).(*catalog.User)
	return user, ok
}

// RequireIdentity rejects requests without a verified token naming an
// existing user. jwtauth.Verifier must run first.
func RequireIdentity(users catalog.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())
			if err != nil || token == nil {
				writeError(w, r, unauthorized("Authentication credentials were not provided or are invalid.", err))
				return
			}

			raw, _ := claims[UserIDClaim].(string)
			userID, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, r, unauthorized("Token does not name a user.", err))
				return
			}

			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				slog.Warn("Token for unknown user", "user_id", userID, "err", err)
				writeError(w, r, unauthorized("User not found.", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// IssueToken signs an identity token for userID.
func IssueToken(ja *jwtauth.JWTAuth, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		UserIDClaim: userID.String(),
		"iat":       now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	_, token, err := ja.Encode(claims)
	return token, err
}

// RequestSizeLimit caps request bodies at maxBytes.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs each request with its status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
