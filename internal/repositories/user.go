package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
)

// UserRepository persists [models.User] records and answers auth store lookups.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. The key is normalized before it is stored.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Key = shared.NormalizeUserKey(user.Key)
	if user.Key == "" {
		return fmt.Errorf("%w: user key is required", shared.ErrInvalidInput)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_key, display_name, created_at) VALUES (?, ?, ?)`,
		user.Key, user.DisplayName, user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: user %s already exists", shared.ErrInvalidInput, user.Key)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user's display metadata by key.
func (r *UserRepository) Get(ctx context.Context, key string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_key, display_name, created_at FROM users WHERE user_key = ?`,
		shared.NormalizeUserKey(key),
	)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// LookupUser reports whether a user with the key exists.
func (r *UserRepository) LookupUser(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE user_key = ?)`,
		shared.NormalizeUserKey(key),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return exists, nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_key, display_name, created_at FROM users ORDER BY created_at, user_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// Delete removes a user together with their token and likes.
func (r *UserRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE user_key = ?`, shared.NormalizeUserKey(key))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, key)
	}
	return nil
}

func scanUser(s scanner) (*models.User, error) {
	var user models.User
	if err := s.Scan(&user.Key, &user.DisplayName, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
