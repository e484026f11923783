package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/sentisounds/internal/formatter"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/desertthunder/sentisounds/internal/tasks"
	"github.com/desertthunder/sentisounds/internal/ui"
	"github.com/urfave/cli/v3"
)

// Recommend runs the recommendation pipeline for the prompt given as arguments.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	prompt := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt", shared.ErrMissingArgument)
	}
	format := strings.ToLower(cmd.String("format"))

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	if err := app.requireSpotify(); err != nil {
		return err
	}

	req := tasks.RecommendRequest{Prompt: prompt}
	if user := cmd.String("user"); user != "" {
		if req.UserKey, err = r.requireUser(ctx, app, user); err != nil {
			return err
		}
	}
	if floor := cmd.Int("floor"); floor >= 0 {
		req.PopularityFloor = &floor
	}

	showProgress := format == "table" && cmd.String("output") == "" && !cmd.Bool("quiet")
	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			if showProgress {
				r.writePlain("%s\n", ui.RenderProgress(u))
			} else {
				r.logger.Debug("progress", "phase", u.Phase, "step", u.Step, "total", u.Total, "message", u.Message)
			}
		}
	}()

	rec, err := app.Recommender.Recommend(ctx, req, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, f := range rec.Failures {
		r.logger.Warn("genre search failed", "genre", f.Genre, "kind", shared.Kind(f.Err), "error", f.Err)
	}

	report := toReport(rec)
	if path := cmd.String("output"); path != "" {
		if format == "table" {
			format = formatter.FormatJSON
		}
		if err := formatter.WriteReport(report, format, path); err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d tracks to %s\n", len(report.Tracks), path)
	}

	if format == "table" {
		r.writePlainHeader(ui.Styles.Title(fmt.Sprintf("%s · %s", prompt, strings.Join(report.Genres, ", "))))
		return r.writePlain("%s\n", ui.RenderTracks(report.Tracks))
	}

	data, err := formatter.Render(report, format)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return r.writePlain("%s", data)
}

func toReport(rec *tasks.Recommendation) *formatter.Report {
	failed := make([]string, 0, len(rec.Failures))
	for _, f := range rec.Failures {
		failed = append(failed, f.Genre)
	}
	return &formatter.Report{
		Prompt:       rec.Prompt,
		Floor:        rec.Floor,
		Genres:       rec.Genres,
		FailedGenres: failed,
		Tracks:       rec.Tracks,
	}
}
