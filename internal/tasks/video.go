package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStaleAfter         = 720 * time.Hour
	DefaultNegativeStaleAfter = 24 * time.Hour
)

// VideoLinkCache resolves tracks to video links through a persistent cache.
//
// Entries are never evicted, only refreshed once stale. Failed or empty lookups are stored as negative markers.
// Concurrent resolutions of one track may both query the provider; the last write wins.
type VideoLinkCache struct {
	store              VideoLinkStore
	finder             VideoSearcher
	staleAfter         time.Duration
	negativeStaleAfter time.Duration
	now                func() time.Time
	logger             *log.Logger
}

// NewVideoLinkCache creates a [VideoLinkCache]. A nil finder serves cached entries only.
func NewVideoLinkCache(store VideoLinkStore, finder VideoSearcher, staleAfter, negativeStaleAfter time.Duration, logger *log.Logger) *VideoLinkCache {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if negativeStaleAfter <= 0 {
		negativeStaleAfter = DefaultNegativeStaleAfter
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &VideoLinkCache{
		store:              store,
		finder:             finder,
		staleAfter:         staleAfter,
		negativeStaleAfter: negativeStaleAfter,
		now:                time.Now,
		logger:             shared.WithLogger(logger, "component", "videos"),
	}
}

// Resolve returns the track's video url or "" when there is none.
func (c *VideoLinkCache) Resolve(ctx context.Context, track models.Track) string {
	if track.ID == "" {
		return ""
	}

	cached, ok, err := c.store.Get(ctx, track.ID)
	if err != nil {
		c.logger.Warn("video cache read failed", "track", track.ID, "error", err)
	}
	if ok && !cached.Stale(c.now(), c.staleAfter, c.negativeStaleAfter) {
		return cached.URL
	}
	if c.finder == nil {
		return cached.URL
	}

	url, err := c.finder.SearchVideo(ctx, shared.VideoSearchQuery(track.Title, track.ArtistNames()))
	if err != nil {
		c.logger.Warn("video lookup failed", "track", track.ID, "error", err)
		url = ""
	}

	link := models.VideoLink{TrackID: track.ID, URL: url, LookedUpAt: c.now()}
	if err := c.store.Put(ctx, link); err != nil {
		c.logger.Warn("video cache write failed", "track", track.ID, "error", err)
	}
	return url
}

// AttachVideos fills in each track's video url with at most parallel lookups in flight.
func AttachVideos(ctx context.Context, tracks []models.Track, resolver VideoResolver, parallel int) {
	if resolver == nil || len(tracks) == 0 {
		return
	}
	if parallel <= 0 {
		parallel = 1
	}

	var g errgroup.Group
	g.SetLimit(parallel)
	for i := range tracks {
		g.Go(func() error {
			tracks[i].VideoURL = resolver.Resolve(ctx, tracks[i])
			return nil
		})
	}
	_ = g.Wait()
}
