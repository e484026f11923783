package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultPopularityFloor = 20
	DefaultTracksPerGenre  = 10
	DefaultParallel        = 3
	DefaultSearchRate      = 5.0
)

// RecommendRequest is one mood prompt. PopularityFloor nil means the configured default.
type RecommendRequest struct {
	Prompt          string
	UserKey         string
	PopularityFloor *int
}

// GenreFailure records a genre whose search failed.
type GenreFailure struct {
	Genre string
	Err   error
}

// Recommendation is the merged result of one request.
type Recommendation struct {
	Prompt    string
	UserKey   string
	Floor     int
	Genres    models.GenreSet
	Tracks    []models.Track
	Failures  []GenreFailure
	Anonymous bool
}

// RecommendationEngine runs the prompt to tracks pipeline.
type RecommendationEngine struct {
	genres     GenreDeriver
	tokens     TokenSource
	users      UserLookup
	likes      LikeLister
	userClient ClientFunc
	appClient  AppClientFunc
	videos     VideoResolver

	floor    int
	perGenre int
	parallel int
	limiter  *rate.Limiter
	logger   *log.Logger
}

// EngineOpts configures a [RecommendationEngine]. Users, Likes, Tokens and Videos are optional.
type EngineOpts struct {
	Genres     GenreDeriver
	Tokens     TokenSource
	Users      UserLookup
	Likes      LikeLister
	UserClient ClientFunc
	AppClient  AppClientFunc
	Videos     VideoResolver

	PopularityFloor int
	TracksPerGenre  int
	Parallel        int
	SearchRate      float64
	Logger          *log.Logger
}

// NewRecommendationEngine creates a [RecommendationEngine].
func NewRecommendationEngine(opts EngineOpts) *RecommendationEngine {
	if opts.PopularityFloor < 0 || opts.PopularityFloor > 100 {
		opts.PopularityFloor = DefaultPopularityFloor
	}
	if opts.TracksPerGenre <= 0 {
		opts.TracksPerGenre = DefaultTracksPerGenre
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.SearchRate <= 0 {
		opts.SearchRate = DefaultSearchRate
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &RecommendationEngine{
		genres:     opts.Genres,
		tokens:     opts.Tokens,
		users:      opts.Users,
		likes:      opts.Likes,
		userClient: opts.UserClient,
		appClient:  opts.AppClient,
		videos:     opts.Videos,
		floor:      opts.PopularityFloor,
		perGenre:   opts.TracksPerGenre,
		parallel:   opts.Parallel,
		limiter:    rate.NewLimiter(rate.Limit(opts.SearchRate), 1),
		logger:     shared.WithLogger(opts.Logger, "component", "recommend"),
	}
}

// Recommend derives genres from the prompt, searches each genre concurrently and merges the results.
//
// A failed genre does not fail the request; the request fails only when every genre failed.
func (e *RecommendationEngine) Recommend(ctx context.Context, req RecommendRequest, progress chan<- ProgressUpdate) (*Recommendation, error) {
	floor := e.floor
	if req.PopularityFloor != nil {
		floor = *req.PopularityFloor
	}
	if floor < 0 || floor > 100 {
		return nil, fmt.Errorf("%w: popularity floor must be between 0 and 100, got %d", shared.ErrInvalidInput, floor)
	}

	userKey := shared.NormalizeUserKey(req.UserKey)
	if userKey != "" && e.users != nil {
		ok, err := e.users.LookupUser(ctx, userKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, userKey)
		}
	}

	sendProgress(progress, deriveGenresUpdate(req.Prompt))
	genres, err := e.genres.DeriveGenres(ctx, req.Prompt)
	if err != nil {
		return nil, err
	}

	result := &Recommendation{Prompt: req.Prompt, UserKey: userKey, Floor: floor, Genres: genres}

	catalog, err := e.catalogFor(ctx, userKey)
	if err != nil {
		return nil, err
	}
	result.Anonymous = catalog.anonymous

	var liked LikedSet
	if !catalog.anonymous && e.likes != nil {
		ids, err := e.likes.List(ctx, userKey)
		if err != nil {
			return nil, err
		}
		liked = NewLikedSet(ids)
	}

	perGenre, failures := e.searchAll(ctx, catalog.client, genres, floor, progress)
	result.Failures = failures
	if len(failures) > 0 && len(failures) == len(genres) {
		return nil, failures[0].Err
	}

	result.Tracks = Aggregate(perGenre, liked)
	sendProgress(progress, tracksFoundUpdate(result.Tracks))

	sendProgress(progress, resolveVideosUpdate(len(result.Tracks)))
	AttachVideos(ctx, result.Tracks, e.videos, e.parallel)

	e.logger.Info("recommendation ready",
		"user", userKey,
		"genres", genres,
		"tracks", len(result.Tracks),
		"failed_genres", len(failures),
		"anonymous", result.Anonymous,
	)
	return result, nil
}

type catalogChoice struct {
	client    CatalogSearcher
	anonymous bool
}

// catalogFor picks the user's client when linked and falls back to the application client otherwise.
func (e *RecommendationEngine) catalogFor(ctx context.Context, userKey string) (catalogChoice, error) {
	if userKey != "" && e.tokens != nil && e.userClient != nil {
		tok, err := e.tokens.GetValidToken(ctx, userKey)
		switch {
		case err == nil:
			return catalogChoice{client: e.userClient(tok)}, nil
		case errors.Is(err, shared.ErrUnlinked):
			e.logger.Debug("user not linked, searching anonymously", "user", userKey)
		default:
			return catalogChoice{}, err
		}
	}

	if e.appClient == nil {
		return catalogChoice{}, fmt.Errorf("%w: no catalog client available", shared.ErrMissingCredentials)
	}
	return catalogChoice{client: e.appClient(), anonymous: true}, nil
}

// searchAll runs one search per genre with bounded parallelism. Results keep genre order.
func (e *RecommendationEngine) searchAll(ctx context.Context, catalog CatalogSearcher, genres models.GenreSet, floor int, progress chan<- ProgressUpdate) ([][]models.Track, []GenreFailure) {
	results := make([][]models.Track, len(genres))
	errs := make([]error, len(genres))

	var g errgroup.Group
	g.SetLimit(e.parallel)
	for i, genre := range genres {
		g.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				errs[i] = shared.WrapUpstream("catalog search", err)
				return nil
			}
			results[i], errs[i] = catalog.SearchGenre(ctx, genre, floor, e.perGenre)
			sendProgress(progress, searchGenreUpdate(i+1, len(genres), genre, len(results[i]), errs[i]))
			return nil
		})
	}
	_ = g.Wait()

	var failures []GenreFailure
	for i, err := range errs {
		if err != nil {
			e.logger.Warn("genre search failed", "genre", genres[i], "error", err)
			failures = append(failures, GenreFailure{Genre: genres[i], Err: err})
		}
	}
	return results, failures
}
