package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/sentisounds/internal/server"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin links a user's Spotify account.
//
// Starts a loopback HTTP server on the configured redirect URI, opens the consent page in the browser
// and waits for the callback to exchange the code.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
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

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: credentials.spotify.redirect_uri %q", shared.ErrInvalidConfig, r.config.Credentials.Spotify.RedirectURI)
	}

	states := server.NewStateStore(r.loginTimeout)
	handler := server.NewLoopbackHandler(states, app.Accounts, r.logger)
	router := server.NewBasicRouter()
	router.Handler(handler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := app.Auth.AuthURL(states.Issue(user))
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.loginTimeout)

	timeout := time.NewTimer(r.loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.loginTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.logger.Info("account linked", "user", user)
	r.writePlainln("✓ Spotify account linked for %s", user)
	return nil
}

// AuthStatus reports whether the user has a linked account. It never refreshes the token.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
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

	if app.Accounts.IsLinked(ctx, user) {
		return r.writePlain("✓ %s: linked\n", user)
	}
	return r.writePlain("✗ %s: not linked (run 'senti auth login --user %s')\n", user, user)
}

// AuthLogout clears the user's token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
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

	if err := app.Accounts.Disconnect(ctx, user); err != nil {
		return err
	}
	return r.writePlain("✓ Unlinked %s\n", user)
}
