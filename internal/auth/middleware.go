package auth

import (
	"context"
	"net/http"

	"loan-predictor/internal/httpx"

	"go.uber.org/zap"
)

type contextKey string

const emailKey = contextKey("email")

// Required rejects requests without a valid bearer token.
func (s *Service) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok, err := httpx.BearerToken(r)
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "missing token")
			return
		}
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := s.tokens.Parse(tokenStr)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithEmail(r.Context(), claims.Email)))
	})
}

// Optional lets anonymous requests through but still rejects a bad token.
func (s *Service) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok, _ := httpx.BearerToken(r); !ok {
			next.ServeHTTP(w, r)
			return
		}
		s.Required(next).ServeHTTP(w, r)
	})
}

// RequireAdmin authenticates the request and checks the account is still an admin.
func (s *Service) RequireAdmin(next http.Handler) http.Handler {
	return s.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, _ := EmailFromContext(r.Context())
		admin, err := s.IsAdmin(r.Context(), email)
		if err != nil {
			s.log.Error("admin lookup failed", zap.String("email", email), zap.Error(err))
			httpx.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !admin {
			httpx.Error(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}
