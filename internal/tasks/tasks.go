package tasks

import (
	"context"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/repositories"
	"github.com/desertthunder/sentisounds/internal/services"
	"golang.org/x/oauth2"
)

// GenreDeriver turns a mood prompt into exactly five genres.
type GenreDeriver interface {
	DeriveGenres(ctx context.Context, prompt string) (models.GenreSet, error)
}

// CatalogSearcher finds tracks for a genre term.
type CatalogSearcher interface {
	SearchGenre(ctx context.Context, genre string, floor, limit int) ([]models.Track, error)
}

// SpotifyAPI is the part of the Web API used on behalf of a linked user.
type SpotifyAPI interface {
	CatalogSearcher
	CurrentUserID(ctx context.Context) (string, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (id, url string, err error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	SaveTracks(ctx context.Context, trackIDs ...string) error
	RemoveTracks(ctx context.Context, trackIDs ...string) error
}

// ClientFunc builds an API client for an access token.
type ClientFunc func(accessToken string) SpotifyAPI

// AppClientFunc builds a catalog client authenticated as the application.
type AppClientFunc func() CatalogSearcher

// TokenExchanger performs the provider side of the authorization code and refresh grants.
type TokenExchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenStore persists one token per user.
type TokenStore interface {
	Get(ctx context.Context, userKey string) (*models.OAuthToken, error)
	Save(ctx context.Context, tok models.OAuthToken) error
	Delete(ctx context.Context, userKey string) error
}

// TokenSource hands out valid access tokens.
type TokenSource interface {
	GetValidToken(ctx context.Context, userKey string) (string, error)
	IsLinked(ctx context.Context, userKey string) bool
}

// UserLookup is the auth store contract.
type UserLookup interface {
	LookupUser(ctx context.Context, key string) (bool, error)
}

// LikeStore persists liked track ids per user.
type LikeStore interface {
	Add(ctx context.Context, userKey, trackID string) (bool, error)
	Remove(ctx context.Context, userKey, trackID string) (bool, error)
	List(ctx context.Context, userKey string) ([]string, error)
}

// LikeLister reads a user's liked set.
type LikeLister interface {
	List(ctx context.Context, userKey string) ([]string, error)
}

// VideoLinkStore persists video lookups by track id.
type VideoLinkStore interface {
	Get(ctx context.Context, trackID string) (models.VideoLink, bool, error)
	Put(ctx context.Context, link models.VideoLink) error
}

// VideoSearcher looks up a video url for a free text query. "" means no result.
type VideoSearcher interface {
	SearchVideo(ctx context.Context, query string) (string, error)
}

// VideoResolver attaches video links to tracks. It never fails.
type VideoResolver interface {
	Resolve(ctx context.Context, track models.Track) string
}

var (
	_ GenreDeriver   = (*services.OpenAIService)(nil)
	_ SpotifyAPI     = (*services.SpotifyClient)(nil)
	_ TokenExchanger = (*services.SpotifyAuth)(nil)
	_ VideoSearcher  = (*services.YouTubeService)(nil)
	_ TokenStore     = (*repositories.TokenRepository)(nil)
	_ UserLookup     = (*repositories.UserRepository)(nil)
	_ LikeStore      = (*repositories.LikeRepository)(nil)
	_ VideoLinkStore = (*repositories.VideoLinkRepository)(nil)
	_ TokenSource    = (*TokenManager)(nil)
	_ VideoResolver  = (*VideoLinkCache)(nil)
)

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}
