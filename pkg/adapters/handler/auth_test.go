package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/go-collections/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	srv  *httptest.Server
	user GoogleUser
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	g := &fakeGoogle{user: GoogleUser{ID: "g-1", Email: "Boss@Example.com", Name: "Boss"}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(g.user)
	})
	g.srv = httptest.NewServer(mux)
	t.Cleanup(g.srv.Close)
	return g
}

func newTestAuth(t *testing.T, cfg *config.Config) (*AuthHandler, *sqlite.SQLiteRepository, *fakeGoogle) {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	g := newFakeGoogle(t)
	cfg.GoogleClientID = "client"
	cfg.GoogleClientSecret = "secret"
	cfg.GoogleUserInfoURL = g.srv.URL + "/userinfo"
	cfg.JWTSecret = testSecret
	cfg.FrontendURL = "http://frontend/"

	h := NewAuthHandler(cfg, repo, NewSessions(testSecret), nil)
	h.providers["google"].Endpoint = oauth2.Endpoint{
		AuthURL:   g.srv.URL + "/auth",
		TokenURL:  g.srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return h, repo, g
}

func serve(h http.HandlerFunc, method, target, provider string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.SetPathValue("provider", provider)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func login(t *testing.T, h *AuthHandler) (*http.Cookie, string) {
	t.Helper()
	rr := serve(h.Login, http.MethodGet, "/oauth/login/google", "google")
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := cookieNamed(rr, stateCookieName)
	require.NotNil(t, state)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
	return state, state.Value
}

func TestOAuthCallbackCreatesAdminUser(t *testing.T) {
	ctx := context.Background()
	h, repo, g := newTestAuth(t, &config.Config{AdminEmails: []string{"boss@example.com"}})

	state, value := login(t, h)
	rr := serve(h.Callback, http.MethodGet, "/oauth/callback/google?code=abc&state="+url.QueryEscape(value), "google", state)
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code, rr.Body.String())
	assert.Equal(t, "http://frontend/", rr.Header().Get("Location"))

	auth := cookieNamed(rr, authCookieName)
	require.NotNil(t, auth)
	user, err := h.sessions.Parse(auth.Value)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	assert.Equal(t, "boss@example.com", user.Email)

	stored, err := repo.GetUserByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, "google", stored.OAuthProvider)
	assert.Equal(t, "g-1", stored.OAuthID)

	// A second login with a new provider id reuses the account.
	g.user.ID = "g-2"
	state, value = login(t, h)
	rr = serve(h.Callback, http.MethodGet, "/oauth/callback/google?code=abc&state="+url.QueryEscape(value), "google", state)
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	stored, err = repo.GetUserByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, "g-2", stored.OAuthID)
}

func TestOAuthCallbackRejections(t *testing.T) {
	h, _, _ := newTestAuth(t, &config.Config{AllowedEmails: []string{"team@example.com"}})

	rr := serve(h.Callback, http.MethodGet, "/oauth/callback/google?code=abc&state=x", "google")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	state, _ := login(t, h)
	rr = serve(h.Callback, http.MethodGet, "/oauth/callback/google?code=abc&state=forged", "google", state)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	state, value := login(t, h)
	rr = serve(h.Callback, http.MethodGet, "/oauth/callback/google?code=abc&state="+url.QueryEscape(value), "google", state)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Nil(t, cookieNamed(rr, authCookieName))

	rr = serve(h.Callback, http.MethodGet, "/oauth/callback/github", "github")
	assert.Equal(t, "/login/", rr.Header().Get("Location"))
}

func TestOAuthLoginAndLogout(t *testing.T) {
	h, _, _ := newTestAuth(t, &config.Config{})

	rr := serve(h.Login, http.MethodGet, "/oauth/login/github", "github")
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "/login/", rr.Header().Get("Location"))

	session := &http.Cookie{Name: authCookieName, Value: signToken(t, testSecret, time.Hour)}
	rr = serve(h.Login, http.MethodGet, "/oauth/login/google", "google", session)
	assert.Equal(t, "http://frontend/", rr.Header().Get("Location"))
	assert.Nil(t, cookieNamed(rr, stateCookieName))

	rr = serve(h.Logout, http.MethodGet, "/oauth/logout", "")
	assert.Equal(t, "http://frontend/login", rr.Header().Get("Location"))
	cleared := cookieNamed(rr, authCookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Set-Cookie"), authCookieName+"="))
}
