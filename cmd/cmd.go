// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/sentisounds/internal/formatter"
	"github.com/urfave/cli/v3"
)

// newCommand builds the root command.
func newCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "senti",
		Usage:   "Turn a mood into Spotify recommendations and playlists",
		Version: "0.1.0",
		Writer:  r.output,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SENTI_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// setupCommand handles config and database setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// usersCommand manages the auth store.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage registered users",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Register a user by email address",
				ArgsUsage: "<email>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
				},
				Action: r.UsersAdd,
			},
			{
				Name:  "list",
				Usage: "List registered users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UsersList,
			},
		},
	}
}

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Email address of a registered user",
		Required: true,
		Sources:  cli.EnvVars("SENTI_USER"),
	}
}

// authCommand handles linking Spotify accounts.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Link, inspect and unlink Spotify accounts",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Link a Spotify account through the browser",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show whether a user has a linked account",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget a user's Spotify token",
				Flags:  []cli.Flag{userFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// recommendCommand runs the recommendation pipeline.
func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Aliases:   []string{"rec"},
		Usage:     "Recommend tracks for a mood",
		ArgsUsage: "<prompt...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Email address of a registered user (marks liked tracks)",
				Sources: cli.EnvVars("SENTI_USER"),
			},
			&cli.IntFlag{
				Name:  "floor",
				Usage: "Minimum popularity (0-100), defaults to recommend.popularity_floor",
				Value: -1,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format (table, %s)", strings.Join(formatter.Formats, ", ")),
				Value:   "table",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print progress",
			},
		},
		Action: r.Recommend,
	}
}

func likeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "like",
		Usage:     "Like a track",
		ArgsUsage: "<track-id>",
		Flags:     []cli.Flag{userFlag()},
		Action:    r.Like,
	}
}

func unlikeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "unlike",
		Usage:     "Unlike a track",
		ArgsUsage: "<track-id>",
		Flags:     []cli.Flag{userFlag()},
		Action:    r.Unlike,
	}
}

func likesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "likes",
		Usage: "List a user's liked tracks",
		Flags: []cli.Flag{
			userFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Likes,
	}
}

// exportCommand creates a playlist from track ids or the liked set.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Create a Spotify playlist from track ids (defaults to liked tracks)",
		ArgsUsage: "[track-id...]",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Playlist description",
			},
		},
		Action: r.Export,
	}
}

// cacheCommand inspects and clears the video link cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the video link cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Count cached video links",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Delete cached video links",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "negative-only",
						Usage: "Only delete entries for tracks with no video",
					},
				},
				Action: r.CacheClear,
			},
		},
	}
}
