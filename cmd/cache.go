package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CacheStats prints how many video links are cached and how many are negative markers.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	stats, err := app.Cache.Stats(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, false)
	}

	r.writePlainHeader("Video link cache")
	r.writePlain("Entries:    %d\n", stats.Total)
	r.writePlain("With video: %d\n", stats.Total-stats.Negative)
	r.writePlain("No video:   %d\n", stats.Negative)
	r.writePlain("Positive entries refresh after %s, negative after %s\n",
		r.config.Cache.StaleAfter, r.config.Cache.NegativeStaleAfter)
	return nil
}

// CacheClear deletes cached video links so the next recommendation looks them up again.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	negativeOnly := cmd.Bool("negative-only")
	n, err := app.Cache.Clear(ctx, negativeOnly)
	if err != nil {
		return err
	}

	r.logger.Info("cleared video links", "removed", n, "negative_only", negativeOnly)
	return r.writePlain("✓ Removed %d cached video links\n", n)
}
