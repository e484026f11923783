// package models defines the data model for the recommendation and export pipeline
package models

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderAlbumArt is used when the catalog has no album image for a track.
const PlaceholderAlbumArt = "https://placehold.co/300x300?text=%E2%99%AA"

// GenreCount is the number of genres derived from a single prompt.
const GenreCount = 5

// Artist is a credited artist of a [Track].
type Artist struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Album is the album a [Track] appears on.
type Album struct {
	Name   string `json:"name"`
	ArtURL string `json:"art_url"`
	URL    string `json:"url,omitempty"`
}

// Track is an immutable snapshot of a catalog search result.
//
// ID is the catalog identifier and the only merge key. VideoURL and LikedByUser are filled in by aggregation.
type Track struct {
	ID          string   `json:"id"`
	Title       string   `json:"name"`
	Artists     []Artist `json:"artists"`
	Album       Album    `json:"album"`
	Popularity  int      `json:"popularity"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	URL         string   `json:"url,omitempty"`
	Explicit    bool     `json:"explicit"`
	Playable    bool     `json:"is_playable"`
	VideoURL    string   `json:"video_url,omitempty"`
	LikedByUser bool     `json:"liked_by_user"`
}

// ArtistNames returns the artist names in credit order.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return names
}

// Validate checks that the track can be used as a merge key.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if t.Popularity < 0 || t.Popularity > 100 {
		return fmt.Errorf("track %s popularity %d out of range", t.ID, t.Popularity)
	}
	return nil
}

// GenreSet is the ordered set of genres derived from one prompt.
type GenreSet []string

// NewGenreSet normalizes raw genres (trimmed, lowercased) and checks there are exactly [GenreCount] distinct non-empty values.
func NewGenreSet(raw []string) (GenreSet, error) {
	if len(raw) != GenreCount {
		return nil, fmt.Errorf("expected %d genres, got %d", GenreCount, len(raw))
	}

	seen := make(map[string]struct{}, len(raw))
	set := make(GenreSet, 0, len(raw))
	for _, g := range raw {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			return nil, fmt.Errorf("empty genre")
		}
		if _, dup := seen[g]; dup {
			return nil, fmt.Errorf("duplicate genre %q", g)
		}
		seen[g] = struct{}{}
		set = append(set, g)
	}
	return set, nil
}

// User is an externally created account, identified by an email-like key.
type User struct {
	Key         string    `json:"email_address"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// OAuthToken is a user's provider token. Replaced wholesale on refresh.
type OAuthToken struct {
	UserKey      string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// ValidFor reports whether the token remains usable for at least margin from now.
func (t OAuthToken) ValidFor(now time.Time, margin time.Duration) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now.Add(margin))
}

// LikedTrack records that a user liked a track.
type LikedTrack struct {
	UserKey   string
	TrackID   string
	CreatedAt time.Time
}

// VideoLink is a cached video lookup. An empty URL is a negative marker.
type VideoLink struct {
	TrackID    string
	URL        string
	LookedUpAt time.Time
}

// Negative reports whether the lookup found no video.
func (v VideoLink) Negative() bool {
	return v.URL == ""
}

// Stale reports whether the entry is older than the window for its kind.
func (v VideoLink) Stale(now time.Time, window, negativeWindow time.Duration) bool {
	if v.Negative() {
		return now.Sub(v.LookedUpAt) >= negativeWindow
	}
	return now.Sub(v.LookedUpAt) >= window
}

// ExportJob describes a playlist to materialize on the user's account.
type ExportJob struct {
	UserKey     string
	TrackIDs    []string
	Name        string
	Description string
}

// Dedup returns the job's track ids with repeats removed, keeping first occurrences in order.
func (j ExportJob) Dedup() []string {
	seen := make(map[string]struct{}, len(j.TrackIDs))
	ids := make([]string, 0, len(j.TrackIDs))
	for _, id := range j.TrackIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
