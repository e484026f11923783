package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/sentisounds/internal/models"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/urfave/cli/v3"
)

// UsersAdd registers a user so the API and CLI accept their email address.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	email := cmd.Args().First()
	if email == "" {
		return fmt.Errorf("%w: email address", shared.ErrMissingArgument)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	user := &models.User{Key: email, DisplayName: cmd.String("name")}
	if err := app.Users.Create(ctx, user); err != nil {
		return err
	}

	r.logger.Info("user added", "user", user.Key)
	return r.writePlain("✓ Added %s\n", user.Key)
}

// UsersList prints registered users.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	app, err := r.open(ctx)
	if err != nil {
		return err
	}

	users, err := app.Users.List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(users, true)
	}

	if len(users) == 0 {
		return r.writePlain("No users registered\n")
	}
	for _, u := range users {
		if u.DisplayName != "" {
			r.writePlain("%s (%s)\n", u.Key, u.DisplayName)
		} else {
			r.writePlain("%s\n", u.Key)
		}
	}
	return nil
}
