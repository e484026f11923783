package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/services"
	"github.com/desertthunder/sentisounds/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultPlaylistName = "SentiSounds Playlist"
	DefaultExportRate   = 2.0
)

// ExportResult describes a created playlist. URL is set only when every batch was added.
type ExportResult struct {
	PlaylistID string
	URL        string
	Name       string
	Added      int
	Total      int
	Batches    int
}

// PlaylistExporter materializes a set of tracks as a playlist on the user's account.
//
// A failed batch leaves the playlist in place with the tracks added so far.
type PlaylistExporter struct {
	tokens    TokenSource
	client    ClientFunc
	likes     LikeLister
	batchSize int
	limiter   *rate.Limiter
	logger    *log.Logger
}

// ExporterOpts configures a [PlaylistExporter].
type ExporterOpts struct {
	Tokens    TokenSource
	Client    ClientFunc
	Likes     LikeLister
	BatchSize int
	RateLimit float64
	Logger    *log.Logger
}

// NewPlaylistExporter creates a [PlaylistExporter]. Batch size is capped at the provider maximum.
func NewPlaylistExporter(opts ExporterOpts) *PlaylistExporter {
	if opts.BatchSize <= 0 || opts.BatchSize > services.SpotifyMaxBatch {
		opts.BatchSize = services.SpotifyMaxBatch
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultExportRate
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &PlaylistExporter{
		tokens:    opts.Tokens,
		client:    opts.Client,
		likes:     opts.Likes,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:    shared.WithLogger(opts.Logger, "component", "export"),
	}
}

// Export creates a private playlist and adds the job's tracks in order.
//
// An empty selection fails with [shared.ErrEmptySelection] before any provider call.
func (e *PlaylistExporter) Export(ctx context.Context, job models.ExportJob, progress chan<- ProgressUpdate) (*ExportResult, error) {
	ids := job.Dedup()
	if len(ids) == 0 {
		return nil, shared.ErrEmptySelection
	}

	userKey := shared.NormalizeUserKey(job.UserKey)
	if userKey == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}

	name := strings.TrimSpace(job.Name)
	if name == "" {
		name = DefaultPlaylistName
	}

	tok, err := e.tokens.GetValidToken(ctx, userKey)
	if err != nil {
		return nil, err
	}
	api := e.client(tok)

	spotifyUser, err := api.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}

	sendProgress(progress, createPlaylistUpdate(name, ""))
	playlistID, url, err := api.CreatePlaylist(ctx, spotifyUser, name, job.Description)
	if err != nil {
		return nil, err
	}
	sendProgress(progress, createPlaylistUpdate(name, url))

	result := &ExportResult{PlaylistID: playlistID, Name: name, Total: len(ids)}
	batches := chunk(ids, e.batchSize)

	for i, batch := range batches {
		if err := e.limiter.Wait(ctx); err != nil {
			return result, e.partial(result, shared.WrapUpstream("export", err))
		}
		if err := api.AddTracks(ctx, playlistID, batch); err != nil {
			return result, e.partial(result, err)
		}
		result.Added += len(batch)
		result.Batches++
		sendProgress(progress, addTracksUpdate(i+1, len(batches), result.Added, batch))
	}

	result.URL = url
	e.logger.Info("exported playlist", "user", userKey, "playlist", playlistID, "tracks", result.Added)
	return result, nil
}

// ExportLiked exports the job's tracks, falling back to the user's liked set when the job names none.
func (e *PlaylistExporter) ExportLiked(ctx context.Context, job models.ExportJob, progress chan<- ProgressUpdate) (*ExportResult, error) {
	if len(job.Dedup()) == 0 && e.likes != nil {
		ids, err := e.likes.List(ctx, shared.NormalizeUserKey(job.UserKey))
		if err != nil {
			return nil, err
		}
		job.TrackIDs = ids
	}
	return e.Export(ctx, job, progress)
}

func (e *PlaylistExporter) partial(result *ExportResult, err error) error {
	e.logger.Warn("export incomplete, playlist left partially populated",
		"playlist", result.PlaylistID,
		"added", result.Added,
		"total", result.Total,
		"error", err,
	)
	return fmt.Errorf("playlist %s has %d of %d tracks: %w", result.PlaylistID, result.Added, result.Total, err)
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
