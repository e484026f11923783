package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/repositories"
	"github.com/desertthunder/sentisounds/internal/server"
	"github.com/desertthunder/sentisounds/internal/services"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/desertthunder/sentisounds/internal/tasks"
)

// UserStore is the auth store plus the admin operations used by 'senti users'.
type UserStore interface {
	tasks.UserLookup
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]models.User, error)
}

// LikeService records likes and lists them.
type LikeService interface {
	server.Liker
	ListLiked(ctx context.Context, userKey string) ([]string, error)
}

// VideoCache is the maintenance surface of the video link cache.
type VideoCache interface {
	Stats(ctx context.Context) (repositories.VideoLinkStats, error)
	Clear(ctx context.Context, negativeOnly bool) (int64, error)
}

// App is the wired application graph shared by the CLI commands and the HTTP server.
//
// The Spotify backed fields are nil when Spotify credentials are missing; SpotifyErr then says why.
type App struct {
	Users  UserStore
	Cache  VideoCache
	States *server.StateStore

	Accounts    server.AccountLinker
	Auth        server.AuthURLer
	Recommender server.Recommender
	Likes       LikeService
	Exporter    server.Exporter
	SpotifyErr  error
}

var (
	_ UserStore   = (*repositories.UserRepository)(nil)
	_ LikeService = (*tasks.InteractionStore)(nil)
	_ VideoCache  = (*repositories.VideoLinkRepository)(nil)
)

// NewApp wires repositories, provider clients and pipeline components from config.
//
// Missing OpenAI credentials make recommendations fail; missing YouTube credentials leave video links to the cache.
func NewApp(ctx context.Context, cfg *shared.Config, db *sql.DB, logger *log.Logger) (*App, error) {
	users := repositories.NewUserRepository(db)
	videoRepo := repositories.NewVideoLinkRepository(db)

	app := &App{
		Users:  users,
		Cache:  videoRepo,
		States: server.NewStateStore(0),
	}

	auth, err := services.NewSpotifyAuth(services.SpotifyOpts{
		Config:  cfg.Credentials.Spotify,
		Timeout: cfg.Timeouts.Spotify,
		Logger:  logger,
	})
	if err != nil {
		app.SpotifyErr = err
		logger.Debug("spotify disabled", "error", err)
		return app, nil
	}

	tokens := tasks.NewTokenManager(tasks.TokenManagerOpts{
		Store:   repositories.NewTokenRepository(db),
		Auth:    auth,
		Timeout: cfg.Timeouts.Token,
		Logger:  logger,
	})
	likeRepo := repositories.NewLikeRepository(db)
	userClient := func(accessToken string) tasks.SpotifyAPI { return auth.Client(accessToken) }

	var finder tasks.VideoSearcher
	if yt, err := services.NewYouTubeService(ctx, cfg.Credentials.YouTube, cfg.Timeouts.YouTube, logger); err == nil {
		finder = yt
	} else {
		logger.Warn("video lookups disabled, serving cached links only", "error", err)
	}
	videos := tasks.NewVideoLinkCache(videoRepo, finder, cfg.Cache.StaleAfter, cfg.Cache.NegativeStaleAfter, logger)

	var recommender server.Recommender
	if genres, err := services.NewOpenAIService(services.OpenAIOpts{
		Config:          cfg.Credentials.OpenAI,
		MaxPromptLength: cfg.Recommend.MaxPromptLength,
		Timeout:         cfg.Timeouts.OpenAI,
		Logger:          logger,
	}); err == nil {
		recommender = tasks.NewRecommendationEngine(tasks.EngineOpts{
			Genres:          genres,
			Tokens:          tokens,
			Users:           users,
			Likes:           likeRepo,
			UserClient:      userClient,
			AppClient:       func() tasks.CatalogSearcher { return auth.AppClient() },
			Videos:          videos,
			PopularityFloor: cfg.Recommend.PopularityFloor,
			TracksPerGenre:  cfg.Recommend.TracksPerGenre,
			Parallel:        cfg.Recommend.MaxParallelSearches,
			SearchRate:      cfg.Recommend.SearchRateLimit,
			Logger:          logger,
		})
	} else {
		logger.Warn("recommendations disabled", "error", err)
		recommender = unavailable{err}
	}

	app.Accounts = tokens
	app.Auth = auth
	app.Recommender = recommender
	app.Likes = tasks.NewInteractionStore(likeRepo, tokens, userClient, logger)
	app.Exporter = tasks.NewPlaylistExporter(tasks.ExporterOpts{
		Tokens:    tokens,
		Client:    userClient,
		Likes:     likeRepo,
		BatchSize: cfg.Export.BatchSize,
		RateLimit: cfg.Export.RateLimit,
		Logger:    logger,
	})
	return app, nil
}

// requireSpotify reports why Spotify backed commands cannot run.
func (a *App) requireSpotify() error {
	if a.SpotifyErr != nil {
		return fmt.Errorf("%w (set credentials.spotify in the config or SENTI_SPOTIFY_CLIENT_ID/SECRET)", a.SpotifyErr)
	}
	return nil
}

// APIHandler builds the JSON API over the app.
func (a *App) APIHandler(logger *log.Logger) *server.APIHandler {
	return server.NewAPIHandler(server.APIDeps{
		Recommender: a.Recommender,
		Accounts:    a.Accounts,
		Auth:        a.Auth,
		States:      a.States,
		Likes:       a.Likes,
		Exporter:    a.Exporter,
		Users:       a.Users,
		Logger:      logger,
	})
}

// unavailable stands in for a component whose provider is not configured.
type unavailable struct{ err error }

func (u unavailable) Recommend(ctx context.Context, req tasks.RecommendRequest, progress chan<- tasks.ProgressUpdate) (*tasks.Recommendation, error) {
	return nil, u.err
}
