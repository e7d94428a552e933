package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Users

// CreateUser inserts a user, updating profile and tokens when the email exists
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}

	query := `
		INSERT INTO users (id, name, email, google_id, avatar, role, access_token, refresh_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, google_id = EXCLUDED.google_id, avatar = EXCLUDED.avatar,
		    access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), users.refresh_token),
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.GoogleID, user.Avatar, user.Role,
		user.AccessToken, user.RefreshToken,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User

	query := `
		SELECT id, name, email, COALESCE(google_id, ''), COALESCE(avatar, ''), role,
		       COALESCE(access_token, ''), COALESCE(refresh_token, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.GoogleID, &user.Avatar, &user.Role,
		&user.AccessToken, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateAccessToken stores a freshly refreshed access token
func (r *Repository) UpdateAccessToken(ctx context.Context, userID, accessToken string) error {
	query := `UPDATE users SET access_token = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, userID, accessToken)
	if err != nil {
		return fmt.Errorf("failed to update access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
