package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/stramoot/internal/formatter"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/desertthunder/stramoot/internal/tasks"
	tu "github.com/desertthunder/stramoot/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// writeTestConfig saves a config in a temp dir and returns its path.
func writeTestConfig(t *testing.T, journal bool) string {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Database.Enabled = journal
	config.Database.Path = filepath.Join(dir, "journal.db")
	config.Sync.PollDelay = "0s"
	config.Log.File = filepath.Join(dir, "stramoot.log")

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, shared.SaveConfig(path, config))
	return path
}

// runApp runs the CLI with fakes in place of both services and returns what it printed.
func runApp(t *testing.T, opts RunnerOpts, args ...string) (string, error) {
	t.Helper()
	return runAppContext(context.Background(), t, opts, args...)
}

func runAppContext(ctx context.Context, t *testing.T, opts RunnerOpts, args ...string) (string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	opts.Output = output
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(&bytes.Buffer{})
	}

	app := newApp(NewRunner(opts))
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(ctx, append([]string{"stramoot"}, args...))
	return output.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			src := tu.NewFakeSource()
			dst := tu.NewFakeDestination()

			runner := NewRunner(RunnerOpts{
				Config:      config,
				ConfigPath:  "custom.toml",
				Logger:      logger,
				Output:      output,
				HTTPClient:  httpClient,
				Source:      src,
				Destination: dst,
			})

			assert.Same(t, config, runner.config)
			assert.Equal(t, "custom.toml", runner.configPath)
			assert.Same(t, logger, runner.logger)
			assert.Same(t, output, runner.output)
			assert.Same(t, httpClient, runner.httpClient)
			assert.Same(t, src, runner.source)
			assert.Same(t, dst, runner.dest)
		})

		t.Run("with defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			assert.NotNil(t, runner.config)
			assert.NotNil(t, runner.logger)
			assert.Equal(t, os.Stdout, runner.output)
			assert.NotNil(t, runner.now)
			assert.Nil(t, runner.source, "services are built lazily")
			assert.Nil(t, runner.dest, "services are built lazily")
		})
	})

	t.Run("register", func(t *testing.T) {
		commands := NewRunner(RunnerOpts{}).register()

		names := make([]string, 0, len(commands))
		for _, cmd := range commands {
			require.NotNil(t, cmd)
			names = append(names, cmd.Name)
		}
		assert.Equal(t, []string{"sync", "tours", "auth", "history", "setup", "watch"}, names)
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("pretty", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			require.NoError(t, runner.writeJSON(map[string]int{"tours": 3}, true))
			assert.Equal(t, "{\n  \"tours\": 3\n}\n", output.String())
		})

		t.Run("compact", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			require.NoError(t, runner.writeJSON([]int{1, 2}, false))
			assert.Equal(t, "[1,2]\n", output.String())
		})

		t.Run("unmarshalable value", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			assert.ErrorContains(t, runner.writeJSON(make(chan int), false), "failed to marshal JSON")
		})

		t.Run("write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			assert.ErrorContains(t, runner.writeJSON("x", false), "failed to write output")
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		require.NoError(t, runner.writePlain("Deleted run #%d\n", 4))
		assert.Equal(t, "Deleted run #4\n", output.String())

		runner = NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		assert.Error(t, runner.writePlain("x"))
	})

	t.Run("saveRefreshToken", func(t *testing.T) {
		token := &oauth2.Token{AccessToken: "access", RefreshToken: "rotated"}

		t.Run("writes the token to the config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Komoot.Password = "from-env"
			require.NoError(t, shared.SaveConfig(path, shared.DefaultConfig()))

			runner := NewRunner(RunnerOpts{Config: config, ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{})})
			require.NoError(t, runner.saveRefreshToken(token))
			assert.Equal(t, "rotated", config.Strava.RefreshToken)

			reloaded, err := shared.LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, "rotated", reloaded.Strava.RefreshToken)
			assert.Empty(t, reloaded.Komoot.Password, "values not read from the file stay out of it")
		})

		t.Run("creates a missing config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "new.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: path, Logger: shared.NewLogger(&bytes.Buffer{})})

			require.NoError(t, runner.saveRefreshToken(token))
			assert.FileExists(t, path)
		})

		t.Run("without a config path only updates memory", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			require.NoError(t, runner.saveRefreshToken(token))
			assert.Equal(t, "rotated", runner.config.Strava.RefreshToken)
		})

		t.Run("nil config", func(t *testing.T) {
			runner := &Runner{logger: shared.NewLogger(nil)}
			assert.ErrorIs(t, runner.saveRefreshToken(token), shared.ErrMissingConfig)
		})

		t.Run("token without refresh token", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			for _, tok := range []*oauth2.Token{nil, {AccessToken: "access"}} {
				assert.ErrorIs(t, runner.saveRefreshToken(tok), shared.ErrNoRefreshToken)
			}
		})

		t.Run("unwritable path", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "dir", "config.toml")
			runner := NewRunner(RunnerOpts{ConfigPath: path})

			assert.ErrorContains(t, runner.saveRefreshToken(token), "failed to save config")
		})
	})
}

func TestSyncOpts(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	resolve := func(t *testing.T, args ...string) (tasks.SyncOpts, error) {
		t.Helper()
		runner := NewRunner(RunnerOpts{Now: func() time.Time { return now }})

		var opts tasks.SyncOpts
		var optsErr error
		cmd := &cli.Command{
			Name:  "sync",
			Flags: syncFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				opts, optsErr = runner.syncOpts(cmd)
				return nil
			},
		}
		require.NoError(t, cmd.Run(context.Background(), append([]string{"sync"}, args...)))
		return opts, optsErr
	}

	t.Run("config defaults", func(t *testing.T) {
		opts, err := resolve(t)
		require.NoError(t, err)

		assert.Equal(t, now.Add(-48*time.Hour), opts.Start)
		assert.Equal(t, 10, opts.BatchSize)
		assert.Equal(t, 50, opts.PageSize)
		assert.Equal(t, 10, opts.PollAttempts)
		assert.Equal(t, time.Second, opts.PollDelay)
	})

	t.Run("interval flag", func(t *testing.T) {
		opts, err := resolve(t, "--interval", "PT36H", "-b", "3", "--page-size", "20")
		require.NoError(t, err)

		assert.Equal(t, now.Add(-36*time.Hour), opts.Start)
		assert.Equal(t, 3, opts.BatchSize)
		assert.Equal(t, 20, opts.PageSize)
	})

	t.Run("since wins over interval", func(t *testing.T) {
		opts, err := resolve(t, "--interval", "P1D", "--since", "2024-05-01T08:30:00Z")
		require.NoError(t, err)
		assert.True(t, opts.Start.Equal(time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)), "got %v", opts.Start)
	})

	t.Run("since as a date", func(t *testing.T) {
		opts, err := resolve(t, "--since", "2024-05-01")
		require.NoError(t, err)

		assert.Equal(t, 2024, opts.Start.Year())
		assert.Equal(t, time.May, opts.Start.Month())
		assert.Equal(t, 1, opts.Start.Day())
	})

	t.Run("invalid since", func(t *testing.T) {
		_, err := resolve(t, "--since", "last tuesday")
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := resolve(t, "--interval", "fortnight")
		assert.Error(t, err)
	})
}

func TestCommands(t *testing.T) {
	t.Run("sync run records the run and writes the report", func(t *testing.T) {
		cfg := writeTestConfig(t, true)
		csvPath := filepath.Join(t.TempDir(), "reports", "run.csv")

		out, err := runApp(t, RunnerOpts{
			Source:      tu.NewFakeSource(tu.Tours(1, 3, models.SportHike)),
			Destination: tu.NewFakeDestination(models.UploadInProgress, models.UploadSucceeded),
		}, "-c", cfg, "sync", "run", "--interval", "P1D", "--report", csvPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Tours: 3 uploaded, 0 failed")

		require.FileExists(t, csvPath)
		assert.Regexp(t, `^Tour ID,Name,Upload ID,Status,Stage,Error`, tu.MustReadFile(t, csvPath))

		out, err = runApp(t, RunnerOpts{}, "-c", cfg, "history", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "1")

		out, err = runApp(t, RunnerOpts{}, "-c", cfg, "history", "show", "1", "--format", "json")
		require.NoError(t, err)

		var report formatter.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report), out)
		assert.Equal(t, 1, report.Sequence)
		assert.Equal(t, 3, report.Succeeded)
		assert.Len(t, report.Outcomes, 3)

		out, err = runApp(t, RunnerOpts{}, "-c", cfg, "history", "delete", "1")
		require.NoError(t, err)
		assert.Equal(t, "Deleted run #1\n", out)

		_, err = runApp(t, RunnerOpts{}, "-c", cfg, "history", "show", "1")
		assert.ErrorIs(t, err, shared.ErrRunNotFound)
	})

	t.Run("sync run with a failed tour is incomplete", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		dst := tu.NewFakeDestination()
		dst.Scripts = map[string][]models.UploadStateKind{"2": {models.UploadFailed}}
		dst.FailureMsg = "duplicate of activity 42"

		out, err := runApp(t, RunnerOpts{
			Source:      tu.NewFakeSource(tu.Tours(1, 3, models.SportJogging)),
			Destination: dst,
		}, "-c", cfg, "sync", "run")
		require.ErrorIs(t, err, shared.ErrSyncIncomplete)
		assert.Contains(t, out, "Tours: 2 uploaded, 1 failed")
		assert.Contains(t, out, "duplicate of activity 42")
	})

	t.Run("sync run with a failed page is incomplete", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		src := tu.NewFakeSource(tu.Tours(1, 2, models.SportHike), tu.Tours(3, 2, models.SportHike))
		src.PageErrs = map[int]error{1: errors.New("status 502")}

		_, err := runApp(t, RunnerOpts{Source: src, Destination: tu.NewFakeDestination()}, "-c", cfg, "sync", "run")
		require.ErrorIs(t, err, shared.ErrSyncIncomplete)
		assert.ErrorContains(t, err, "listing stopped")
	})

	t.Run("tours list", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		src := tu.NewFakeSource(tu.Tours(7, 2, models.SportRaceBike))

		out, err := runApp(t, RunnerOpts{Source: src}, "-c", cfg, "tours", "list", "--json")
		require.NoError(t, err)

		var tours []models.Tour
		require.NoError(t, json.Unmarshal([]byte(out), &tours))
		require.Len(t, tours, 2)
		assert.Equal(t, uint32(7), tours[0].ID)
		assert.Equal(t, models.SportRaceBike, tours[1].Sport)

		out, err = runApp(t, RunnerOpts{Source: tu.NewFakeSource(nil)}, "-c", cfg, "tours", "list")
		require.NoError(t, err)
		assert.Regexp(t, `^No recorded tours since`, out)
	})

	t.Run("history without the journal", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		_, err := runApp(t, RunnerOpts{}, "-c", cfg, "history", "list")
		assert.ErrorIs(t, err, shared.ErrJournalDisabled)
	})

	t.Run("invalid format flag", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		_, err := runApp(t, RunnerOpts{
			Source:      tu.NewFakeSource(),
			Destination: tu.NewFakeDestination(),
		}, "-c", cfg, "sync", "run", "--format", "yaml")
		assert.Error(t, err)
	})

	t.Run("setup config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")

		out, err := runApp(t, RunnerOpts{}, "-c", path, "setup", "config")
		require.NoError(t, err)
		assert.FileExists(t, path)
		assert.Contains(t, out, "stramoot auth strava")

		_, err = runApp(t, RunnerOpts{}, "-c", path, "setup", "config")
		assert.Error(t, err, "config already exists")
	})

	t.Run("setup database", func(t *testing.T) {
		cfg := writeTestConfig(t, false)

		out, err := runApp(t, RunnerOpts{}, "-c", cfg, "setup", "database")
		require.NoError(t, err)
		assert.Contains(t, out, "0000 applied")
		assert.Contains(t, out, "Database ready")
		assert.FileExists(t, filepath.Join(filepath.Dir(cfg), "journal.db"))

		out, err = runApp(t, RunnerOpts{}, "-c", cfg, "setup", "database", "--rollback")
		require.NoError(t, err)
		assert.Contains(t, out, "Rolled back")
	})

	t.Run("watch runs immediately with --now and stops on cancel", func(t *testing.T) {
		cfg := writeTestConfig(t, true)
		dst := tu.NewFakeDestination()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := runAppContext(ctx, t, RunnerOpts{
			Source:      tu.NewFakeSource(tu.Tours(1, 2, models.SportHike)),
			Destination: dst,
		}, "-c", cfg, "watch", "--schedule", "@every 1h", "--now")
		require.NoError(t, err)
		assert.Len(t, dst.Submissions(), 2)

		out, err := runApp(t, RunnerOpts{}, "-c", cfg, "history", "show", "1", "--format", "json")
		require.NoError(t, err)

		var report formatter.Report
		require.NoError(t, json.Unmarshal([]byte(out), &report), out)
		assert.Equal(t, 2, report.Succeeded)
	})

	t.Run("watch rejects an invalid schedule", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		_, err := runApp(t, RunnerOpts{
			Source:      tu.NewFakeSource(),
			Destination: tu.NewFakeDestination(),
		}, "-c", cfg, "watch", "--schedule", "whenever")
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})

	t.Run("missing komoot credentials", func(t *testing.T) {
		cfg := writeTestConfig(t, false)
		_, err := runApp(t, RunnerOpts{}, "-c", cfg, "tours", "list")
		assert.ErrorIs(t, err, shared.ErrMissingCredentials)
	})
}
