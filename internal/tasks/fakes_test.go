package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/repositories"
	"github.com/desertthunder/sentisounds/internal/shared"
	"golang.org/x/oauth2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(shared.MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, key string) {
	t.Helper()
	if err := repositories.NewUserRepository(db).Create(context.Background(), &models.User{Key: key}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]models.OAuthToken
	deletes int
}

func newFakeTokenStore(tokens ...models.OAuthToken) *fakeTokenStore {
	s := &fakeTokenStore{tokens: map[string]models.OAuthToken{}}
	for _, tok := range tokens {
		s.tokens[tok.UserKey] = tok
	}
	return s
}

func (s *fakeTokenStore) Get(ctx context.Context, userKey string) (*models.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[userKey]
	if !ok {
		return nil, shared.ErrTokenNotFound
	}
	return &tok, nil
}

func (s *fakeTokenStore) Save(ctx context.Context, tok models.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tok.UserKey] = tok
	return nil
}

func (s *fakeTokenStore) Delete(ctx context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userKey)
	s.deletes++
	return nil
}

type fakeExchanger struct {
	refreshes  atomic.Int32
	exchanges  atomic.Int32
	delay      time.Duration
	refreshErr error
	token      *oauth2.Token
	started    chan struct{}
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	f.exchanges.Add(1)
	if code != "good-code" {
		return nil, shared.ErrInvalidCode
	}
	return &oauth2.Token{
		AccessToken:  "linked-access",
		RefreshToken: "linked-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	n := f.refreshes.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.token != nil {
		return f.token, nil
	}
	return &oauth2.Token{
		AccessToken: fmt.Sprintf("refreshed-%d", n),
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

// fakeTokens is a [TokenSource] with fixed answers.
type fakeTokens struct {
	token  string
	err    error
	linked bool
	calls  atomic.Int32
}

func (f *fakeTokens) GetValidToken(ctx context.Context, userKey string) (string, error) {
	f.calls.Add(1)
	return f.token, f.err
}

func (f *fakeTokens) IsLinked(ctx context.Context, userKey string) bool {
	return f.linked
}

type fakeGenres struct {
	genres models.GenreSet
	err    error
}

func (f *fakeGenres) DeriveGenres(ctx context.Context, prompt string) (models.GenreSet, error) {
	return f.genres, f.err
}

type fakeUsers map[string]bool

func (f fakeUsers) LookupUser(ctx context.Context, key string) (bool, error) {
	return f[key], nil
}

type fakeLikes struct {
	ids []string
	err error
}

func (f *fakeLikes) List(ctx context.Context, userKey string) ([]string, error) {
	return f.ids, f.err
}

// fakeAPI records calls made through [SpotifyAPI].
type fakeAPI struct {
	mu sync.Mutex

	token       string
	byGenre     map[string][]models.Track
	genreErrs   map[string]error
	searched    []string
	createErr   error
	failAtBatch int
	batchErr    error
	batches     [][]string
	created     []string
	saved       []string
	removed     []string
	libraryErr  error
	providerHit atomic.Int32
}

func (f *fakeAPI) SearchGenre(ctx context.Context, genre string, floor, limit int) ([]models.Track, error) {
	f.providerHit.Add(1)
	f.mu.Lock()
	f.searched = append(f.searched, genre)
	f.mu.Unlock()
	if err := f.genreErrs[genre]; err != nil {
		return nil, err
	}
	var out []models.Track
	for _, t := range f.byGenre[genre] {
		if t.Popularity >= floor && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeAPI) CurrentUserID(ctx context.Context) (string, error) {
	f.providerHit.Add(1)
	return "listener", nil
}

func (f *fakeAPI) CreatePlaylist(ctx context.Context, userID, name, description string) (string, string, error) {
	f.providerHit.Add(1)
	if f.createErr != nil {
		return "", "", f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, name)
	f.mu.Unlock()
	return "pl1", "https://open.spotify.com/playlist/pl1", nil
}

func (f *fakeAPI) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	f.providerHit.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAtBatch > 0 && len(f.batches)+1 == f.failAtBatch {
		return f.batchErr
	}
	f.batches = append(f.batches, append([]string(nil), trackIDs...))
	return nil
}

func (f *fakeAPI) SaveTracks(ctx context.Context, trackIDs ...string) error {
	f.providerHit.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.libraryErr != nil {
		return f.libraryErr
	}
	f.saved = append(f.saved, trackIDs...)
	return nil
}

func (f *fakeAPI) RemoveTracks(ctx context.Context, trackIDs ...string) error {
	f.providerHit.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.libraryErr != nil {
		return f.libraryErr
	}
	f.removed = append(f.removed, trackIDs...)
	return nil
}

func (f *fakeAPI) clientFunc() ClientFunc {
	return func(accessToken string) SpotifyAPI {
		f.mu.Lock()
		f.token = accessToken
		f.mu.Unlock()
		return f
	}
}

type fakeVideoStore struct {
	mu    sync.Mutex
	links map[string]models.VideoLink
	puts  int
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{links: map[string]models.VideoLink{}}
}

func (s *fakeVideoStore) Get(ctx context.Context, trackID string) (models.VideoLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[trackID]
	return l, ok, nil
}

func (s *fakeVideoStore) Put(ctx context.Context, link models.VideoLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.TrackID] = link
	s.puts++
	return nil
}

type fakeVideoSearcher struct {
	urls    map[string]string
	err     error
	calls   atomic.Int32
	queries sync.Map
}

func (f *fakeVideoSearcher) SearchVideo(ctx context.Context, query string) (string, error) {
	f.calls.Add(1)
	f.queries.Store(query, true)
	if f.err != nil {
		return "", f.err
	}
	return f.urls[query], nil
}

func track(id string, popularity int) models.Track {
	return models.Track{
		ID:         id,
		Title:      "Song " + id,
		Artists:    []models.Artist{{Name: "Artist " + id}},
		Popularity: popularity,
	}
}

func trackIDs(tracks []models.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

var (
	_ TokenStore     = (*fakeTokenStore)(nil)
	_ TokenExchanger = (*fakeExchanger)(nil)
	_ TokenSource    = (*fakeTokens)(nil)
	_ SpotifyAPI     = (*fakeAPI)(nil)
	_ VideoLinkStore = (*fakeVideoStore)(nil)
	_ VideoSearcher  = (*fakeVideoSearcher)(nil)
)
