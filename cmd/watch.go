package main

import (
	"context"

	"github.com/desertthunder/stramoot/internal/schedule"
	"github.com/urfave/cli/v3"
)

// Watch runs the sync on the configured cron spec until the context is canceled.
// Each run recomputes its window, so with the default interval every run looks back from its own start.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	spec := r.config.Schedule.Spec
	if cmd.IsSet("schedule") {
		spec = cmd.String("schedule")
	}

	if _, _, err := r.connect(ctx); err != nil {
		return err
	}

	sched := schedule.New(ctx, r.logger)
	id, err := sched.Add(spec, "sync", func(ctx context.Context) error {
		opts, err := r.syncOpts(cmd)
		if err != nil {
			return err
		}
		_, res, err := r.runSync(ctx, opts, headless)
		if err != nil {
			return err
		}
		return syncErr(res)
	})
	if err != nil {
		return err
	}

	r.logger.Info("watching for new tours", "schedule", spec, "next_run", sched.Next(id).Format("2006-01-02 15:04"))
	if cmd.Bool("now") {
		sched.Trigger(id)
	}

	sched.Run(ctx)
	return nil
}
