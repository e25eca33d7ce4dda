package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-collections/pkg/core/domain"
	"github.com/wadjakorntonsri/go-collections/pkg/ports"
)

const userColumns = `id, email, name, is_admin, COALESCE(oauth_provider, ''), COALESCE(oauth_id, ''), created_at`

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin, &u.OAuthProvider, &u.OAuthID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.IsAuthenticated = true
	return &u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUserByEmail matches emails case-insensitively.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	query := `INSERT INTO users (email, name, is_admin, oauth_provider, oauth_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	return r.insert(ctx, &user.ID, query, user.Email, user.Name, user.IsAdmin, user.OAuthProvider, user.OAuthID, user.CreatedAt)
}

func (r *SQLiteRepository) UpdateUserOAuth(ctx context.Context, id int64, provider, oauthID string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET oauth_provider = ?, oauth_id = ? WHERE id = ?`, provider, oauthID, id)
	return err
}

var _ ports.UserRepository = (*SQLiteRepository)(nil)
