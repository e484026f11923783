package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/tasks"
	"github.com/desertthunder/sentisounds/internal/ui"
	"github.com/urfave/cli/v3"
)

// Export creates a playlist on the user's Spotify account from the given track ids, or their liked tracks.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
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

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.writePlain("%s\n", ui.RenderProgress(u))
		}
	}()

	res, err := app.Exporter.ExportLiked(ctx, models.ExportJob{
		UserKey:     user,
		TrackIDs:    cmd.Args().Slice(),
		Name:        cmd.String("name"),
		Description: cmd.String("description"),
	}, progress)
	close(progress)
	<-done

	if err != nil {
		if res != nil && res.PlaylistID != "" {
			r.writePlainln("⚠ Playlist %s was created with %d of %d tracks", res.PlaylistID, res.Added, res.Total)
		}
		return err
	}

	r.logger.Info("playlist exported", "user", user, "playlist", res.PlaylistID, "tracks", res.Added)
	r.writePlainln("%s", ui.Styles.OK(fmt.Sprintf("✓ Exported %d tracks to %q", res.Added, res.Name)))
	return r.writePlain("%s\n", res.URL)
}
