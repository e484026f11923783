// Spotify OAuth and Web API access built on [spotify.Client]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1/"

	// SpotifyMaxBatch is the most tracks a single add-to-playlist call accepts.
	SpotifyMaxBatch = 100
	searchPageSize  = 50
	fromToken       = "from_token"
)

// SpotifyScopes are requested when linking an account.
var SpotifyScopes = []string{
	"streaming",
	"playlist-modify-private",
	"user-top-read",
	"user-read-private",
	"user-library-modify",
	"user-library-read",
}

// SpotifyAuth owns the OAuth2 configuration for Spotify and builds API clients.
type SpotifyAuth struct {
	config     *oauth2.Config
	app        *clientcredentials.Config
	apiURL     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger

	appOnce   sync.Once
	appClient *http.Client
}

// SpotifyOpts configures a [SpotifyAuth].
type SpotifyOpts struct {
	Config     shared.SpotifyConfig
	AuthURL    string
	TokenURL   string
	APIURL     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewSpotifyAuth creates a new [SpotifyAuth] from client credentials.
func NewSpotifyAuth(opts SpotifyOpts) (*SpotifyAuth, error) {
	cfg := opts.Config
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_secret", shared.ErrMissingCredentials)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://127.0.0.1:3000/callback"
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.APIURL == "" {
		opts.APIURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &SpotifyAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		app: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		apiURL:     strings.TrimSuffix(opts.APIURL, "/") + "/",
		httpClient: httpClientOrDefault(opts.HTTPClient),
		timeout:    opts.Timeout,
		logger:     shared.WithLogger(opts.Logger, "service", "spotify"),
	}, nil
}

// AuthURL returns the consent page URL for the given state.
func (s *SpotifyAuth) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the underlying configuration.
func (s *SpotifyAuth) OAuthConfig() *oauth2.Config {
	return s.config
}

func (s *SpotifyAuth) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Exchange trades an authorization code for a token.
func (s *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty code", shared.ErrInvalidCode)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		switch tokenErrorCode(err) {
		case "invalid_grant":
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidCode, err)
		case "invalid_client", "unauthorized_client":
			return nil, clientRejected(err)
		}
		return nil, shared.WrapUpstream("spotify token exchange", err)
	}
	return tok, nil
}

// Refresh exchanges a refresh token for a new token. A rejected refresh token yields [shared.ErrAuthExpired].
//
// When the provider does not rotate the refresh token the previous one is carried over.
func (s *SpotifyAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrAuthExpired)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	tok, err := s.config.TokenSource(s.oauthContext(ctx), expired).Token()
	if err != nil {
		switch tokenErrorCode(err) {
		case "invalid_grant":
			return nil, fmt.Errorf("%w: refresh token rejected: %v", shared.ErrAuthExpired, err)
		case "invalid_client", "unauthorized_client":
			return nil, clientRejected(err)
		}
		return nil, shared.WrapUpstream("spotify token refresh", err)
	}
	return tok, nil
}

// tokenErrorCode returns the OAuth error code from a token endpoint failure, or "" for transport errors.
func tokenErrorCode(err error) string {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return ""
	}
	return re.ErrorCode
}

// clientRejected reports a token endpoint refusing the application itself. The user's grant is left alone.
func clientRejected(err error) error {
	return fmt.Errorf("%w: %w: spotify rejected the client credentials: %v",
		shared.ErrUpstreamUnavailable, shared.ErrInvalidConfig, err)
}

// Client returns a [SpotifyClient] that authenticates with the given access token.
func (s *SpotifyAuth) Client(accessToken string) *SpotifyClient {
	ctx := s.oauthContext(context.Background())
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return s.newClient(oauth2.NewClient(ctx, src), true)
}

// AppClient returns a [SpotifyClient] authenticated as the application (client credentials grant).
func (s *SpotifyAuth) AppClient() *SpotifyClient {
	s.appOnce.Do(func() {
		s.appClient = s.app.Client(s.oauthContext(context.Background()))
	})
	return s.newClient(s.appClient, false)
}

func (s *SpotifyAuth) newClient(hc *http.Client, user bool) *SpotifyClient {
	return &SpotifyClient{
		client:  spotify.New(hc, spotify.WithBaseURL(s.apiURL)),
		user:    user,
		timeout: s.timeout,
		logger:  s.logger,
	}
}

// SpotifyClient performs Web API calls for one access token.
type SpotifyClient struct {
	client  *spotify.Client
	user    bool
	timeout time.Duration
	logger  *log.Logger
}

// SearchGenre returns up to limit tracks for the genre with popularity at or above floor, following result pages as needed.
func (c *SpotifyClient) SearchGenre(ctx context.Context, genre string, floor, limit int) ([]models.Track, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	opts := []spotify.RequestOption{spotify.Limit(searchPageSize)}
	if c.user {
		opts = append(opts, spotify.Market(fromToken))
	}

	results, err := c.client.Search(ctx, genreQuery(genre), spotify.SearchTypeTrack, opts...)
	if err != nil {
		return nil, classifySpotifyError("search", err)
	}

	tracks := make([]models.Track, 0, limit)
	for results.Tracks != nil {
		for _, ft := range results.Tracks.Tracks {
			if len(tracks) >= limit {
				break
			}
			if ft.ID == "" || int(ft.Popularity) < floor {
				continue
			}
			tracks = append(tracks, toTrack(ft))
		}

		if len(tracks) >= limit || results.Tracks.Next == "" {
			break
		}

		if err := c.client.NextTrackResults(ctx, results); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				break
			}
			return nil, classifySpotifyError("search next page", err)
		}
	}

	return tracks, nil
}

// CurrentUserID returns the Spotify user id of the token owner.
func (c *SpotifyClient) CurrentUserID(ctx context.Context) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return "", classifySpotifyError("current user", err)
	}
	return user.ID, nil
}

// CreatePlaylist creates a private playlist and returns its id and external URL.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID, name, description string) (string, string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	pl, err := c.client.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return "", "", classifySpotifyError("create playlist", err)
	}
	return string(pl.ID), pl.ExternalURLs["spotify"], nil
}

// AddTracks appends up to [SpotifyMaxBatch] tracks to a playlist in the given order.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) > SpotifyMaxBatch {
		return fmt.Errorf("%w: at most %d tracks per call", shared.ErrInvalidArgument, SpotifyMaxBatch)
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toIDs(trackIDs)...); err != nil {
		return classifySpotifyError("add tracks", err)
	}
	return nil
}

// SaveTracks adds tracks to the user's library.
func (c *SpotifyClient) SaveTracks(ctx context.Context, trackIDs ...string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.AddTracksToLibrary(ctx, toIDs(trackIDs)...); err != nil {
		return classifySpotifyError("save tracks", err)
	}
	return nil
}

// RemoveTracks removes tracks from the user's library.
func (c *SpotifyClient) RemoveTracks(ctx context.Context, trackIDs ...string) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.RemoveTracksFromLibrary(ctx, toIDs(trackIDs)...); err != nil {
		return classifySpotifyError("remove tracks", err)
	}
	return nil
}

// genreQuery builds the search filter; multi-word genres are quoted.
func genreQuery(genre string) string {
	genre = strings.TrimSpace(genre)
	if strings.ContainsRune(genre, ' ') {
		return fmt.Sprintf("genre:%q", genre)
	}
	return "genre:" + genre
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

func toTrack(ft spotify.FullTrack) models.Track {
	track := models.Track{
		ID:         string(ft.ID),
		Title:      ft.Name,
		Popularity: int(ft.Popularity),
		PreviewURL: ft.PreviewURL,
		URL:        ft.ExternalURLs["spotify"],
		Explicit:   ft.Explicit,
		Playable:   ft.IsPlayable == nil || *ft.IsPlayable,
		Album: models.Album{
			Name:   ft.Album.Name,
			ArtURL: models.PlaceholderAlbumArt,
			URL:    ft.Album.ExternalURLs["spotify"],
		},
	}
	if len(ft.Album.Images) > 0 && ft.Album.Images[0].URL != "" {
		track.Album.ArtURL = ft.Album.Images[0].URL
	}
	for _, a := range ft.Artists {
		track.Artists = append(track.Artists, models.Artist{Name: a.Name, URL: a.ExternalURLs["spotify"]})
	}
	return track
}

// classifySpotifyError maps Web API failures onto the shared error taxonomy.
func classifySpotifyError(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: spotify %s: %s", shared.ErrAuthExpired, op, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: spotify %s: %s", shared.ErrRateLimited, op, apiErr.Message)
		default:
			return fmt.Errorf("%w: spotify %s: status %d: %s", shared.ErrUpstreamUnavailable, op, apiErr.Status, apiErr.Message)
		}
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: spotify %s: %v", shared.ErrAuthExpired, op, err)
	}

	return shared.WrapUpstream("spotify "+op, err)
}
