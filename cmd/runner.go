package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stramoot/internal/services"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/desertthunder/stramoot/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	source     services.Source
	dest       services.Destination
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Source and Destination are normally built from the config on first use;
// setting them skips authentication entirely.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Source      services.Source
	Destination services.Destination
	Now         func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		source:     opts.Source,
		dest:       opts.Destination,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, toursCommand, authCommand, historyCommand, setupCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the config named by --config, applies STRAMOOT_* overrides and sets the log level.
// A missing config file is not an error so that `setup config` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if err := r.config.ApplyEnv(); err != nil {
		return ctx, err
	}

	level, err := log.ParseLevel(r.config.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// SetLogger replaces the runner's logger, e.g. with a file logger while a TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	level := r.logger.GetLevel()
	r.logger = logger
	shared.SetLogLevel(r.logger, level)
}

// komoot returns an authenticated Komoot client.
func (r *Runner) komoot(ctx context.Context) (*services.KomootService, error) {
	if r.config.Komoot.Email == "" || r.config.Komoot.Password == "" {
		return nil, fmt.Errorf("%w: komoot email and password", shared.ErrMissingCredentials)
	}

	k := services.NewKomootService(r.config.Komoot, r.httpClient)
	user, err := k.Authenticate(ctx, r.config.Komoot.Email, r.config.Komoot.Password)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("authenticated with komoot", "user_id", user.UserID)
	return k, nil
}

// strava returns an unauthenticated Strava client.
func (r *Runner) strava() (*services.StravaService, error) {
	return services.NewStravaService(r.config.Strava, r.httpClient)
}

// sourceOnly returns the Source for commands that never upload.
func (r *Runner) sourceOnly(ctx context.Context) (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}
	k, err := r.komoot(ctx)
	if err != nil {
		return nil, err
	}
	r.source = k
	return k, nil
}

// connect returns authenticated clients for both services, persisting a rotated Strava refresh token.
func (r *Runner) connect(ctx context.Context) (services.Source, services.Destination, error) {
	if r.source != nil && r.dest != nil {
		return r.source, r.dest, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, nil, err
	}

	src, err := r.sourceOnly(ctx)
	if err != nil {
		return nil, nil, err
	}

	strava, err := r.strava()
	if err != nil {
		return nil, nil, err
	}
	if err := strava.Authenticate(ctx, r.config.Strava.RefreshToken); err != nil {
		return nil, nil, err
	}

	r.keepRefreshToken(strava)

	r.dest = strava
	return src, strava, nil
}

// saveRefreshToken stores token's refresh token in memory and in the config file.
//
// The file is re-read first so values that came from the environment are not written back.
func (r *Runner) saveRefreshToken(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("%w: token has no refresh token", shared.ErrNoRefreshToken)
	}
	r.config.Strava.RefreshToken = token.RefreshToken

	if r.configPath == "" {
		return nil
	}

	onDisk, err := shared.LoadConfig(r.configPath)
	if errors.Is(err, os.ErrNotExist) {
		onDisk = shared.DefaultConfig()
	} else if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	onDisk.Strava.RefreshToken = token.RefreshToken

	if err := shared.SaveConfig(r.configPath, onDisk); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.logger.Info("saved strava refresh token", "path", r.configPath)
	return nil
}

// window resolves the sync window start from --since or --interval, falling back to the config interval.
func (r *Runner) window(cmd *cli.Command) (time.Time, error) {
	if since := cmd.String("since"); since != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04", time.DateOnly} {
			if t, err := time.ParseInLocation(layout, since, time.Local); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: --since %q: expected RFC 3339 or YYYY-MM-DD", shared.ErrInvalidFlag, since)
	}

	interval := r.config.Sync.Interval
	if flag := cmd.String("interval"); flag != "" {
		interval = flag
	}
	d, err := shared.ParseInterval(interval)
	if err != nil {
		return time.Time{}, err
	}
	return r.now().Add(-d), nil
}

// syncOpts builds engine options from the config, with flag overrides.
func (r *Runner) syncOpts(cmd *cli.Command) (tasks.SyncOpts, error) {
	start, err := r.window(cmd)
	if err != nil {
		return tasks.SyncOpts{}, err
	}
	delay, err := r.config.Sync.PollDelayDuration()
	if err != nil {
		return tasks.SyncOpts{}, err
	}

	opts := tasks.SyncOpts{
		Start:        start,
		PageSize:     r.config.Sync.PageSize,
		BatchSize:    r.config.Sync.BatchSize,
		PollAttempts: r.config.Sync.PollAttempts,
		PollDelay:    delay,
	}
	if cmd.IsSet("batch-size") {
		opts.BatchSize = int(cmd.Int("batch-size"))
	}
	if cmd.IsSet("page-size") {
		opts.PageSize = int(cmd.Int("page-size"))
	}
	return opts, nil
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
