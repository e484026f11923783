package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
)

// VideoLinkRepository persists video lookups keyed by track id.
type VideoLinkRepository struct {
	db *sql.DB
}

// NewVideoLinkRepository creates a new [VideoLinkRepository].
func NewVideoLinkRepository(db *sql.DB) *VideoLinkRepository {
	return &VideoLinkRepository{db: db}
}

// Get returns the cached entry and whether one exists.
func (r *VideoLinkRepository) Get(ctx context.Context, trackID string) (models.VideoLink, bool, error) {
	var (
		link models.VideoLink
		url  sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT track_id, url, looked_up_at FROM video_links WHERE track_id = ?`, trackID,
	).Scan(&link.TrackID, &url, &link.LookedUpAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.VideoLink{}, false, nil
	}
	if err != nil {
		return models.VideoLink{}, false, fmt.Errorf("failed to query video link: %w", err)
	}
	link.URL = url.String
	return link, true, nil
}

// Put replaces the entry for the track. Last write wins.
func (r *VideoLinkRepository) Put(ctx context.Context, link models.VideoLink) error {
	url := sql.NullString{String: link.URL, Valid: link.URL != ""}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO video_links (track_id, url, looked_up_at) VALUES (?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET url = excluded.url, looked_up_at = excluded.looked_up_at
	`, link.TrackID, url, link.LookedUpAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store video link: %w", err)
	}
	return nil
}

// VideoLinkStats summarizes the cache contents.
type VideoLinkStats struct {
	Total    int `json:"total"`
	Negative int `json:"negative"`
}

// Stats counts entries and negative markers.
func (r *VideoLinkRepository) Stats(ctx context.Context) (VideoLinkStats, error) {
	var stats VideoLinkStats
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN url IS NULL THEN 1 ELSE 0 END), 0) FROM video_links`,
	).Scan(&stats.Total, &stats.Negative)
	if err != nil {
		return VideoLinkStats{}, fmt.Errorf("failed to count video links: %w", err)
	}
	return stats, nil
}

// Clear deletes cached entries, or only negative markers, and returns how many were removed.
func (r *VideoLinkRepository) Clear(ctx context.Context, negativeOnly bool) (int64, error) {
	query := `DELETE FROM video_links`
	if negativeOnly {
		query += ` WHERE url IS NULL`
	}
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to clear video links: %w", err)
	}
	return result.RowsAffected()
}
