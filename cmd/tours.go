package main

import (
	"context"

	"github.com/desertthunder/stramoot/internal/formatter"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ToursList walks the listing for the sync window without uploading anything.
func (r *Runner) ToursList(ctx context.Context, cmd *cli.Command) error {
	start, err := r.window(cmd)
	if err != nil {
		return err
	}
	pageSize := r.config.Sync.PageSize
	if cmd.IsSet("page-size") {
		pageSize = int(cmd.Int("page-size"))
	}

	src, err := r.sourceOnly(ctx)
	if err != nil {
		return err
	}

	cursor, err := tasks.NewTourCursor(src, start, pageSize)
	if err != nil {
		return err
	}

	tours := []models.Tour{}
	for cursor.Next(ctx) {
		tours = append(tours, cursor.Page().Tours...)
	}
	if err := cursor.Err(); err != nil {
		return err
	}
	r.logger.Info("listed tours", "since", start.Format("2006-01-02 15:04"), "pages", cursor.Fetched(), "tours", len(tours))

	if cmd.Bool("json") {
		return r.writeJSON(tours, true)
	}
	if len(tours) == 0 {
		return r.writePlain("No recorded tours since %s\n", start.Format("2006-01-02 15:04"))
	}
	return r.writePlain("%s\n", formatter.TourTable(tours))
}
