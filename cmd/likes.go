package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/urfave/cli/v3"
)

// Like adds a track to the user's liked set, mirroring it to Spotify when the account is linked.
func (r *Runner) Like(ctx context.Context, cmd *cli.Command) error {
	return r.likeAction(ctx, cmd, true)
}

// Unlike removes a track from the user's liked set.
func (r *Runner) Unlike(ctx context.Context, cmd *cli.Command) error {
	return r.likeAction(ctx, cmd, false)
}

func (r *Runner) likeAction(ctx context.Context, cmd *cli.Command, like bool) error {
	trackID := cmd.Args().First()
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	if err := app.requireSpotify(); err != nil {
		return err
	}
	user, err := r.requireUser(ctx, app, cmd.String("user"))
	if err != nil {
		return err
	}

	if like {
		if err := app.Likes.Like(ctx, user, trackID); err != nil {
			return err
		}
		return r.writePlain("♥ Liked %s\n", trackID)
	}
	if err := app.Likes.Unlike(ctx, user, trackID); err != nil {
		return err
	}
	return r.writePlain("✓ Unliked %s\n", trackID)
}

// Likes lists the user's liked track ids in the order they were liked.
func (r *Runner) Likes(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	if err := app.requireSpotify(); err != nil {
		return err
	}
	user, err := r.requireUser(ctx, app, cmd.String("user"))
	if err != nil {
		return err
	}

	ids, err := app.Likes.ListLiked(ctx, user)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"user": user, "liked": ids}, true)
	}
	if len(ids) == 0 {
		return r.writePlain("No liked tracks for %s\n", user)
	}
	for _, id := range ids {
		r.writePlain("%s\n", id)
	}
	return nil
}
