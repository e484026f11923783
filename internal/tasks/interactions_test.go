package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/sentisounds/internal/repositories"
	"github.com/desertthunder/sentisounds/internal/shared"
)

func TestInteractionStore(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, tokens TokenSource, api *fakeAPI) *InteractionStore {
		t.Helper()
		db := setupTestDB(t)
		seedUser(t, db, listener)
		var client ClientFunc
		if api != nil {
			client = api.clientFunc()
		}
		return NewInteractionStore(repositories.NewLikeRepository(db), tokens, client, nil)
	}

	t.Run("like is idempotent", func(t *testing.T) {
		store := setup(t, nil, nil)

		for range 3 {
			if err := store.Like(ctx, listener, "t1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		liked, err := store.ListLiked(ctx, listener)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(liked, []string{"t1"}) {
			t.Errorf("expected [t1], got %v", liked)
		}
	})

	t.Run("unlike restores the previous state", func(t *testing.T) {
		store := setup(t, nil, nil)

		if err := store.Like(ctx, listener, "t0"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		before, _ := store.ListLiked(ctx, listener)

		if err := store.Like(ctx, listener, "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Unlike(ctx, listener, "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Unlike(ctx, listener, "t1"); err != nil {
			t.Fatalf("expected repeated unlike to succeed, got %v", err)
		}

		after, _ := store.ListLiked(ctx, listener)
		if !slices.Equal(before, after) {
			t.Errorf("expected %v, got %v", before, after)
		}
	})

	t.Run("unlike of a track never liked", func(t *testing.T) {
		store := setup(t, nil, nil)
		if err := store.Unlike(ctx, listener, "never"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("list keeps like order", func(t *testing.T) {
		store := setup(t, nil, nil)
		for _, id := range []string{"c", "a", "b"} {
			if err := store.Like(ctx, listener, id); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		liked, _ := store.ListLiked(ctx, listener)
		if !slices.Equal(liked, []string{"c", "a", "b"}) {
			t.Errorf("expected insertion order, got %v", liked)
		}
	})

	t.Run("missing arguments", func(t *testing.T) {
		store := setup(t, nil, nil)
		if err := store.Like(ctx, "", "t1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := store.Unlike(ctx, listener, "  "); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		store := setup(t, nil, nil)
		if err := store.Like(ctx, "nobody@example.com", "t1"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("linked users are mirrored to the library", func(t *testing.T) {
		api := &fakeAPI{}
		store := setup(t, &fakeTokens{token: "user-token", linked: true}, api)

		if err := store.Like(ctx, listener, "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := store.Unlike(ctx, listener, "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(api.saved, []string{"t1"}) || !slices.Equal(api.removed, []string{"t1"}) {
			t.Errorf("unexpected library calls saved=%v removed=%v", api.saved, api.removed)
		}
		if api.token != "user-token" {
			t.Errorf("expected user token, got %q", api.token)
		}
	})

	t.Run("unlinked users are not mirrored", func(t *testing.T) {
		api := &fakeAPI{}
		tokens := &fakeTokens{linked: false}
		store := setup(t, tokens, api)

		if err := store.Like(ctx, listener, "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if api.providerHit.Load() != 0 || tokens.calls.Load() != 0 {
			t.Error("expected no provider or token calls")
		}
	})

	t.Run("library failure keeps the local like", func(t *testing.T) {
		api := &fakeAPI{libraryErr: shared.ErrRateLimited}
		store := setup(t, &fakeTokens{token: "user-token", linked: true}, api)

		if err := store.Like(ctx, listener, "t1"); !errors.Is(err, shared.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		liked, _ := store.ListLiked(ctx, listener)
		if !slices.Equal(liked, []string{"t1"}) {
			t.Errorf("expected local like to be committed, got %v", liked)
		}
	})

	t.Run("expired authorization is reported after the local update", func(t *testing.T) {
		store := setup(t, &fakeTokens{err: shared.ErrAuthExpired, linked: true}, &fakeAPI{})

		if err := store.Like(ctx, listener, "t1"); !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		liked, _ := store.ListLiked(ctx, listener)
		if len(liked) != 1 {
			t.Errorf("expected local like to be committed, got %v", liked)
		}
	})
}
