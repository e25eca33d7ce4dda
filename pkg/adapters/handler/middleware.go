package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

type ctxKey struct{}

// WithUser attaches the session user to ctx.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, user)
}

// UserFromContext returns the session user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(ctxKey{}).(*domain.User)
	return user
}

type Middleware struct {
	sessions *Sessions
}

func NewMiddleware(sessions *Sessions) *Middleware {
	return &Middleware{sessions: sessions}
}

// AuthMiddleware verifies the JWT token from the cookie
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			m.reject(w, r)
			return
		}

		user, err := m.sessions.Parse(cookie.Value)
		if err != nil {
			m.reject(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	http.Redirect(w, r, "/oauth/login/google", http.StatusTemporaryRedirect)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
