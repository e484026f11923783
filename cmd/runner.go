package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/sentisounds/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	configFixed  bool
	db           *sql.DB
	ownsDB       bool
	app          *App
	logger       *log.Logger
	output       io.Writer
	openBrowser  func(string) error
	loginTimeout time.Duration
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as is and no config file is read. DB and App replace the ones built from config.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	DB           *sql.DB
	App          *App
	Logger       *log.Logger
	Output       io.Writer
	OpenBrowser  func(string) error
	LoginTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	fixed := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 2 * time.Minute
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		configFixed:  fixed,
		db:           opts.DB,
		app:          opts.App,
		logger:       opts.Logger,
		output:       opts.Output,
		openBrowser:  opts.OpenBrowser,
		loginTimeout: opts.LoginTimeout,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, usersCommand, authCommand, recommendCommand,
		likeCommand, unlikeCommand, likesCommand, exportCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config file named by --config, overlays the environment and sets the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.String("log-level") != "":
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(cmd.String("log-level")))
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configFixed {
		return ctx, nil
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := shared.ApplyEnv(r.config); err != nil {
		return ctx, err
	}
	return ctx, r.config.Validate()
}

// database opens the configured database once and brings its schema up to date.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.ownsDB = true
	return db, nil
}

// open builds the application graph on first use.
func (r *Runner) open(ctx context.Context) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}

	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}

	app, err := NewApp(ctx, r.config, db, r.logger)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

// Close releases the database opened by the runner.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.app = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// requireUser normalizes the --user flag and checks the user exists.
func (r *Runner) requireUser(ctx context.Context, app *App, raw string) (string, error) {
	key := shared.NormalizeUserKey(raw)
	if key == "" {
		return "", fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}
	ok, err := app.Users.LookupUser(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s (add it with 'senti users add')", shared.ErrUserNotFound, key)
	}
	return key, nil
}
