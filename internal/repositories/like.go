package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/shared"
)

// LikeRepository stores each user's liked track ids as a set.
type LikeRepository struct {
	db *sql.DB
}

// NewLikeRepository creates a new [LikeRepository].
func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Add inserts the pair if absent and reports whether it was new.
func (r *LikeRepository) Add(ctx context.Context, userKey, trackID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO liked_tracks (user_key, track_id, created_at) VALUES (?, ?, ?)`,
		shared.NormalizeUserKey(userKey), trackID, now(),
	)
	if isForeignKeyViolation(err) {
		return false, fmt.Errorf("%w: %s", shared.ErrUserNotFound, userKey)
	}
	if err != nil {
		return false, fmt.Errorf("failed to like track: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Remove deletes the pair if present and reports whether it existed.
func (r *LikeRepository) Remove(ctx context.Context, userKey, trackID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM liked_tracks WHERE user_key = ? AND track_id = ?`,
		shared.NormalizeUserKey(userKey), trackID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to unlike track: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// List returns the user's liked track ids in insertion order.
func (r *LikeRepository) List(ctx context.Context, userKey string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT track_id FROM liked_tracks WHERE user_key = ? ORDER BY created_at, rowid`,
		shared.NormalizeUserKey(userKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked tracks: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked track: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
