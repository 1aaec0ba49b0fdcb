package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"imagine-service/internal/infra/logging"
	red "imagine-service/internal/infra/redis"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// UserIDFrom returns the caller identity the auth middleware resolved.
func UserIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// authMiddleware resolves the caller identity from a Bearer JWT (HS256, the
// subject claim is the user id). Token issuance lives upstream; this service
// only verifies and extracts. In dev mode without a secret the X-User-ID
// header stands in so the flow stays exercisable locally.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" && s.dev {
			if uid := r.Header.Get("X-User-ID"); uid != "" {
				ctx := logging.WithUserID(context.WithValue(r.Context(), userIDKey, uid), uid)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeMessage(w, http.StatusUnauthorized, "malformed authorization header")
			return
		}

		claims := &jwt.RegisteredClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
			return []byte(s.jwtSecret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tkn.Valid || claims.Subject == "" {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := logging.WithUserID(context.WithValue(r.Context(), userIDKey, claims.Subject), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// intakeRateLimit applies a fixed per-user window on job creation. The
// limiter failing open is deliberate: a Redis hiccup should degrade to
// unthrottled intake, not a hard outage.
func (s *Server) intakeRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := UserIDFrom(r.Context())
		ok, err := s.limiter.Allow(r.Context(), red.IntakeKey(uid), s.intakePerMinute, time.Minute)
		if err != nil {
			s.log.Error().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allow := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allow[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allow[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
