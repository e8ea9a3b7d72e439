package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/stramoot/internal/formatter"
	"github.com/desertthunder/stramoot/internal/repositories"
	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/urfave/cli/v3"
)

// runs opens the journal for the history commands, which need it enabled.
func (r *Runner) runs() (*repositories.RunRepository, func(), error) {
	repo, db, err := r.openJournal()
	if errors.Is(err, shared.ErrJournalDisabled) {
		return nil, nil, fmt.Errorf("%w: set [database] enabled = true in %s", err, r.configPath)
	}
	if err != nil {
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.runs()
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := repo.List(map[string]any{
		"limit":  int(cmd.Int("limit")),
		"failed": cmd.Bool("failed"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		reports := make([]*formatter.Report, 0, len(runs))
		for _, run := range runs {
			reports = append(reports, formatter.NewRunReport(run, nil))
		}
		return r.writeJSON(reports, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}
	return r.writePlain("%s\n", formatter.RunTable(runs))
}

// HistoryShow prints one run with its per-tour outcomes.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run number or id", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	repo, closeDB, err := r.runs()
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.Find(ref)
	if err != nil {
		return err
	}
	outcomes, err := repo.Outcomes(run.ID())
	if err != nil {
		return err
	}
	return formatter.Render(r.output, formatter.NewRunReport(run, outcomes), format)
}

// HistoryDelete removes a run from the history.
func (r *Runner) HistoryDelete(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run number or id", shared.ErrMissingArgument)
	}

	repo, closeDB, err := r.runs()
	if err != nil {
		return err
	}
	defer closeDB()

	run, err := repo.Find(ref)
	if err != nil {
		return err
	}
	if err := repo.Delete(run.ID()); err != nil {
		return err
	}
	return r.writePlain("Deleted run #%d\n", run.Sequence())
}
