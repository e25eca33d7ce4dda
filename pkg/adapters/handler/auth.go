package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-collections/pkg/config"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const stateCookieName = "oauthstate"

type AuthHandler struct {
	providers    map[string]*oauth2.Config
	userInfoURL  string
	users        ports.UserRepository
	sessions     *Sessions
	cfg          *config.Config
	isProduction bool
	logger       *zap.Logger
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, users ports.UserRepository, sessions *Sessions, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	providers := map[string]*oauth2.Config{}
	if cfg.GoogleClientID != "" {
		providers["google"] = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		}
	}
	return &AuthHandler{
		providers:    providers,
		userInfoURL:  cfg.GoogleUserInfoURL,
		users:        users,
		sessions:     sessions,
		cfg:          cfg,
		isProduction: cfg.IsProduction(),
		logger:       logger,
	}
}

func (h *AuthHandler) provider(r *http.Request) (string, *oauth2.Config, bool) {
	name := strings.ToLower(r.PathValue("provider"))
	oc, ok := h.providers[name]
	return name, oc, ok
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(authCookieName); err == nil {
		if _, err := h.sessions.Parse(cookie.Value); err == nil {
			http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
			return
		}
	}

	name, oc, ok := h.provider(r)
	if !ok {
		h.logger.Warn("login with unconfigured provider", zap.String("provider", name))
		http.Redirect(w, r, "/login/", http.StatusTemporaryRedirect)
		return
	}
	state := h.generateStateOauthCookie(w)
	http.Redirect(w, r, oc.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name, oc, ok := h.provider(r)
	if !ok {
		http.Redirect(w, r, "/login/", http.StatusTemporaryRedirect)
		return
	}

	oauthState, err := r.Cookie(stateCookieName)
	if err != nil {
		h.logger.Warn("callback without oauthstate cookie", zap.Error(err))
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		h.logger.Warn("callback with invalid oauth state")
		writeMessage(w, http.StatusBadRequest, "invalid oauth state")
		return
	}

	token, err := oc.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		h.logger.Error("oauth code exchange failed", zap.String("provider", name), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "code exchange failed")
		return
	}

	googleUser, err := h.fetchUserInfo(r.Context(), oc, token)
	if err != nil {
		h.logger.Error("failed getting user info", zap.String("provider", name), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "failed getting user info")
		return
	}

	if !h.cfg.IsAllowedEmail(googleUser.Email) {
		h.logger.Warn("email not in allowlist", zap.String("email", googleUser.Email))
		writeMessage(w, http.StatusForbidden, "Access denied: your email is not in the allowlist")
		return
	}

	user, err := h.findOrCreateUser(r.Context(), name, googleUser)
	if err != nil {
		h.logger.Error("failed resolving user", zap.String("email", googleUser.Email), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tokenString, expires, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("failed signing session", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    tokenString,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("login successful", zap.String("email", user.Email), zap.Bool("admin", user.IsAdmin))
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchUserInfo(ctx context.Context, oc *oauth2.Config, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := oc.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var googleUser GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if googleUser.Email == "" {
		return nil, fmt.Errorf("user info has no email")
	}
	return &googleUser, nil
}

// findOrCreateUser keys users by email and records the provider identity on first sight.
// The admin flag always follows ADMIN_EMAILS.
func (h *AuthHandler) findOrCreateUser(ctx context.Context, provider string, info *GoogleUser) (*domain.User, error) {
	user, err := h.users.GetUserByEmail(ctx, info.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		name := info.Name
		if name == "" {
			name = strings.SplitN(info.Email, "@", 2)[0]
		}
		user = &domain.User{
			Email:         info.Email,
			Name:          name,
			IsAdmin:       h.cfg.IsAdminEmail(info.Email),
			OAuthProvider: provider,
			OAuthID:       info.ID,
		}
		if err := h.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		h.logger.Info("created user", zap.String("email", user.Email))
	} else if user.OAuthProvider != provider || user.OAuthID != info.ID {
		if err := h.users.UpdateUserOAuth(ctx, user.ID, provider, info.ID); err != nil {
			return nil, err
		}
		user.OAuthProvider, user.OAuthID = provider, info.ID
	}
	user.IsAdmin = h.cfg.IsAdminEmail(user.Email)
	user.IsAuthenticated = true
	return user, nil
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, strings.TrimRight(h.cfg.FrontendURL, "/")+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}
