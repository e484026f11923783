package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
)

// TokenRepository stores at most one [models.OAuthToken] per user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository].
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get returns the user's token or [shared.ErrTokenNotFound].
func (r *TokenRepository) Get(ctx context.Context, userKey string) (*models.OAuthToken, error) {
	var tok models.OAuthToken
	err := r.db.QueryRowContext(ctx, `
		SELECT user_key, access_token, refresh_token, token_type, expires_at
		FROM spotify_tokens
		WHERE user_key = ?
	`, shared.NormalizeUserKey(userKey)).Scan(&tok.UserKey, &tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &tok.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, userKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}
	return &tok, nil
}

// Save replaces the user's token.
func (r *TokenRepository) Save(ctx context.Context, tok models.OAuthToken) error {
	tok.UserKey = shared.NormalizeUserKey(tok.UserKey)
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", shared.ErrInvalidInput)
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spotify_tokens (user_key, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, tok.UserKey, tok.AccessToken, tok.RefreshToken, tok.TokenType, tok.ExpiresAt.UTC(), now())
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, tok.UserKey)
	}
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete clears the user's token. Deleting a missing token is not an error.
func (r *TokenRepository) Delete(ctx context.Context, userKey string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM spotify_tokens WHERE user_key = ?`, shared.NormalizeUserKey(userKey)); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
