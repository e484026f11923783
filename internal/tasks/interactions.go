package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/shared"
)

// InteractionStore records likes. The local set is authoritative; linked users also get the
// change mirrored to their provider library.
type InteractionStore struct {
	likes  LikeStore
	tokens TokenSource
	client ClientFunc
	logger *log.Logger
}

// NewInteractionStore creates an [InteractionStore]. tokens and client may be nil to disable mirroring.
func NewInteractionStore(likes LikeStore, tokens TokenSource, client ClientFunc, logger *log.Logger) *InteractionStore {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &InteractionStore{
		likes:  likes,
		tokens: tokens,
		client: client,
		logger: shared.WithLogger(logger, "component", "likes"),
	}
}

// Like adds the track to the user's liked set. Liking twice is a no-op.
func (s *InteractionStore) Like(ctx context.Context, userKey, trackID string) error {
	userKey, trackID, err := likeArgs(userKey, trackID)
	if err != nil {
		return err
	}

	added, err := s.likes.Add(ctx, userKey, trackID)
	if err != nil {
		return err
	}
	s.logger.Debug("like", "user", userKey, "track", trackID, "changed", added)

	return s.mirror(ctx, userKey, func(api SpotifyAPI) error {
		return api.SaveTracks(ctx, trackID)
	})
}

// Unlike removes the track from the user's liked set. Unliking a track that is not liked is a no-op.
func (s *InteractionStore) Unlike(ctx context.Context, userKey, trackID string) error {
	userKey, trackID, err := likeArgs(userKey, trackID)
	if err != nil {
		return err
	}

	removed, err := s.likes.Remove(ctx, userKey, trackID)
	if err != nil {
		return err
	}
	s.logger.Debug("unlike", "user", userKey, "track", trackID, "changed", removed)

	return s.mirror(ctx, userKey, func(api SpotifyAPI) error {
		return api.RemoveTracks(ctx, trackID)
	})
}

// ListLiked returns the user's liked track ids in the order they were liked.
func (s *InteractionStore) ListLiked(ctx context.Context, userKey string) ([]string, error) {
	userKey = shared.NormalizeUserKey(userKey)
	if userKey == "" {
		return nil, fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}
	return s.likes.List(ctx, userKey)
}

func (s *InteractionStore) mirror(ctx context.Context, userKey string, fn func(SpotifyAPI) error) error {
	if s.tokens == nil || s.client == nil || !s.tokens.IsLinked(ctx, userKey) {
		return nil
	}

	tok, err := s.tokens.GetValidToken(ctx, userKey)
	if err != nil {
		return err
	}
	if err := fn(s.client(tok)); err != nil {
		s.logger.Warn("library update failed", "user", userKey, "error", err)
		return err
	}
	return nil
}

func likeArgs(userKey, trackID string) (string, string, error) {
	userKey = shared.NormalizeUserKey(userKey)
	trackID = strings.TrimSpace(trackID)
	if userKey == "" {
		return "", "", fmt.Errorf("%w: user is required", shared.ErrMissingArgument)
	}
	if trackID == "" {
		return "", "", fmt.Errorf("%w: song id is required", shared.ErrMissingArgument)
	}
	return userKey, trackID, nil
}
