package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"sync"
	"testing"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/repositories"
	"github.com/desertthunder/sentisounds/internal/server"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/desertthunder/sentisounds/internal/tasks"
	tu "github.com/desertthunder/sentisounds/internal/testing"
)

const listener = "listener@example.com"

type fakeRecommender struct {
	got tasks.RecommendRequest
	err error
}

var _ server.Recommender = (*fakeRecommender)(nil)

func (f *fakeRecommender) Recommend(ctx context.Context, req tasks.RecommendRequest, progress chan<- tasks.ProgressUpdate) (*tasks.Recommendation, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	select {
	case progress <- tasks.ProgressUpdate{Phase: tasks.DeriveGenres, Message: "deriving genres"}:
	default:
	}

	floor := 20
	if req.PopularityFloor != nil {
		floor = *req.PopularityFloor
	}
	return &tasks.Recommendation{
		Prompt:  req.Prompt,
		UserKey: req.UserKey,
		Floor:   floor,
		Genres:  models.GenreSet{"pop", "surf rock", "reggae", "disco", "funk"},
		Tracks: []models.Track{
			{ID: "t1", Title: "Walking on Sunshine", Artists: []models.Artist{{Name: "Katrina"}}, Popularity: 77, LikedByUser: req.UserKey != ""},
			{ID: "t2", Title: "Good Vibrations", Artists: []models.Artist{{Name: "The Beach Boys"}}, Popularity: 70},
		},
		Failures: []tasks.GenreFailure{{Genre: "disco", Err: shared.ErrRateLimited}},
	}, nil
}

type fakeAccounts struct {
	mu        sync.Mutex
	linked    map[string]bool
	exchanged []string
}

var _ server.AccountLinker = (*fakeAccounts)(nil)

func (f *fakeAccounts) ExchangeAuthorizationCode(ctx context.Context, userKey, code string) (*models.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code != "good-code" {
		return nil, fmt.Errorf("%w: %s", shared.ErrInvalidCode, code)
	}
	f.exchanged = append(f.exchanged, userKey)
	f.linked[userKey] = true
	return &models.OAuthToken{UserKey: userKey, AccessToken: "access"}, nil
}

func (f *fakeAccounts) IsLinked(ctx context.Context, userKey string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.linked[userKey]
}

func (f *fakeAccounts) Disconnect(ctx context.Context, userKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.linked, userKey)
	return nil
}

type fakeAuthURL struct{}

func (fakeAuthURL) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

type fakeExporter struct {
	job models.ExportJob
	err error
	res *tasks.ExportResult
}

var _ server.Exporter = (*fakeExporter)(nil)

func (f *fakeExporter) ExportLiked(ctx context.Context, job models.ExportJob, progress chan<- tasks.ProgressUpdate) (*tasks.ExportResult, error) {
	f.job = job
	if f.err != nil {
		return f.res, f.err
	}
	return &tasks.ExportResult{
		PlaylistID: "pl1",
		URL:        "https://open.spotify.com/playlist/pl1",
		Name:       job.Name,
		Added:      len(job.TrackIDs),
		Total:      len(job.TrackIDs),
	}, nil
}

// testConfig returns defaults with every credential filled in.
func testConfig() *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "client"
	cfg.Credentials.Spotify.ClientSecret = "secret"
	cfg.Credentials.OpenAI.APIKey = "test-key"
	cfg.Credentials.YouTube.APIKey = "yt-key"
	cfg.Database.Path = shared.MemoryDatabase
	return cfg
}

// fakeHarness is a runner whose Spotify facing components are fakes over a real in-memory database.
type fakeHarness struct {
	runner      *Runner
	out         *bytes.Buffer
	db          *sql.DB
	recommender *fakeRecommender
	accounts    *fakeAccounts
	exporter    *fakeExporter
}

func newFakeHarness(t *testing.T) *fakeHarness {
	t.Helper()
	db := tu.NewMemoryDB(t)
	logger := shared.NewLogger(io.Discard)

	h := &fakeHarness{
		out:         &bytes.Buffer{},
		db:          db,
		recommender: &fakeRecommender{},
		accounts:    &fakeAccounts{linked: map[string]bool{}},
		exporter:    &fakeExporter{},
	}
	likeRepo := repositories.NewLikeRepository(db)
	app := &App{
		Users:       repositories.NewUserRepository(db),
		Cache:       repositories.NewVideoLinkRepository(db),
		States:      server.NewStateStore(0),
		Accounts:    h.accounts,
		Auth:        fakeAuthURL{},
		Recommender: h.recommender,
		Likes:       tasks.NewInteractionStore(likeRepo, nil, nil, logger),
		Exporter:    h.exporter,
	}
	h.runner = NewRunner(RunnerOpts{Config: testConfig(), DB: db, App: app, Logger: logger, Output: h.out})
	return h
}

func seedUser(t *testing.T, db *sql.DB, key string) {
	t.Helper()
	if err := repositories.NewUserRepository(db).Create(context.Background(), &models.User{Key: key}); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

// run executes the root command with args.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	return newCommand(r).Run(context.Background(), append([]string{"senti"}, args...))
}
