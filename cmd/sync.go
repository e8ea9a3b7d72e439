package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/stramoot/internal/formatter"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/repositories"
	"github.com/desertthunder/stramoot/internal/services"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/desertthunder/stramoot/internal/tasks"
	"github.com/desertthunder/stramoot/internal/ui"
	"github.com/urfave/cli/v3"
)

// syncFunc drives one engine run, headless or through the TUI.
type syncFunc func(ctx context.Context, engine *tasks.SyncEngine, opts tasks.SyncOpts) (*tasks.SyncResult, error)

func headless(ctx context.Context, engine *tasks.SyncEngine, opts tasks.SyncOpts) (*tasks.SyncResult, error) {
	return engine.Run(ctx, opts, nil)
}

func interactive(ctx context.Context, engine *tasks.SyncEngine, opts tasks.SyncOpts) (*tasks.SyncResult, error) {
	res, err := ui.Run(ctx, engine, opts)
	if err == nil && res == nil {
		return nil, fmt.Errorf("%w: sync did not finish", shared.ErrSyncIncomplete)
	}
	return res, err
}

// SyncRun runs one sync and prints the report.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.syncOpts(cmd)
	if err != nil {
		return err
	}

	format := formatter.FormatText
	if cmd.IsSet("format") {
		if format, err = formatter.ParseFormat(cmd.String("format")); err != nil {
			return err
		}
	}

	report, res, err := r.runSync(ctx, opts, headless)
	if err != nil {
		return err
	}

	if path := cmd.String("report"); path != "" {
		var fileFormat formatter.Format
		if cmd.IsSet("format") {
			fileFormat = format
		}
		if err := formatter.WriteReport(path, report, fileFormat); err != nil {
			return err
		}
		r.logger.Info("report written", "path", path)
	}

	if err := formatter.Render(r.output, report, format); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return syncErr(res)
}

// SyncTUI runs one sync behind the interactive progress view. Logs go to [log] file.
func (r *Runner) SyncTUI(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.syncOpts(cmd)
	if err != nil {
		return err
	}

	path := r.config.Log.File
	if path == "" {
		path = "stramoot.log"
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	report, res, err := r.runSync(ctx, opts, interactive)
	if err != nil {
		return err
	}

	if err := formatter.Render(r.output, report, formatter.FormatText); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return syncErr(res)
}

// runSync authenticates, runs the engine through run and records the run in the journal when enabled.
func (r *Runner) runSync(ctx context.Context, opts tasks.SyncOpts, run syncFunc) (*formatter.Report, *tasks.SyncResult, error) {
	src, dst, err := r.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	repo, db, err := r.openJournal()
	switch {
	case errors.Is(err, shared.ErrJournalDisabled):
	case err != nil:
		r.logger.Warn("run journal unavailable, continuing without it", "error", err)
	default:
		defer db.Close()
	}

	var entry *models.SyncRun
	if repo != nil {
		entry = models.NewSyncRun(0, opts.Start, opts.BatchSize)
		if err := repo.Create(entry); err != nil {
			r.logger.Warn("failed to record run", "error", err)
			entry = nil
		}
	}

	res, err := run(ctx, tasks.NewSyncEngine(src, dst, r.logger), opts)
	if err != nil {
		return nil, nil, err
	}
	r.keepRefreshToken(dst)

	report := formatter.NewResultReport(res)
	if entry != nil {
		entry.Finish(res.Succeeded, res.Failed, res.PageErr)
		if err := repo.Complete(entry, res.Outcomes); err != nil {
			r.logger.Warn("failed to record run outcomes", "run", entry.Sequence(), "error", err)
		} else {
			report.RunID = entry.ID()
			report.Sequence = entry.Sequence()
		}
	}
	return report, res, nil
}

// keepRefreshToken saves the Strava refresh token if it rotated during the run.
func (r *Runner) keepRefreshToken(dst services.Destination) {
	strava, ok := dst.(*services.StravaService)
	if !ok {
		return
	}
	token, err := strava.Token()
	if err != nil || token.RefreshToken == "" || token.RefreshToken == r.config.Strava.RefreshToken {
		return
	}
	if err := r.saveRefreshToken(token); err != nil {
		r.logger.Warn("strava rotated the refresh token but it could not be saved", "error", err)
	}
}

// openJournal opens the run journal, returning [shared.ErrJournalDisabled] unless [database] enabled = true.
func (r *Runner) openJournal() (*repositories.RunRepository, *sql.DB, error) {
	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewRunRepository(db), db, nil
}

// syncErr turns an incomplete result into [shared.ErrSyncIncomplete] for a non-zero exit.
func syncErr(res *tasks.SyncResult) error {
	switch {
	case res.OK():
		return nil
	case res.Canceled:
		return fmt.Errorf("%w: canceled after %d of %d tours", shared.ErrSyncIncomplete, res.Succeeded+res.Failed, res.Issued)
	case res.PageErr != nil:
		return fmt.Errorf("%w: %d tours failed, listing stopped: %v", shared.ErrSyncIncomplete, res.Failed, res.PageErr)
	default:
		return fmt.Errorf("%w: %d of %d tours failed", shared.ErrSyncIncomplete, res.Failed, res.Issued)
	}
}
