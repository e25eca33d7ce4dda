package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
)

const (
	authCookieName = "auth_token"
	sessionTTL     = 24 * time.Hour
)

type sessionClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

// Sessions signs and verifies the HS256 auth cookie.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), now: time.Now}
}

func (s *Sessions) Issue(user *domain.User) (string, time.Time, error) {
	expires := s.now().Add(sessionTTL)
	claims := &sessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Admin:  user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Parse returns the user carried by a valid token.
func (s *Sessions) Parse(tokenString string) (*domain.User, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid session token")
	}
	email := claims.Email
	if email == "" {
		email = claims.Subject
	}
	return &domain.User{
		ID:              claims.UserID,
		Email:           email,
		IsAdmin:         claims.Admin,
		IsAuthenticated: true,
	}, nil
}
