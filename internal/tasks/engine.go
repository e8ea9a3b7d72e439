// package tasks implements the tour sync pipeline: page cursor, per-tour transfer, upload polling and the worker pool that ties them together.
package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/services"
	"github.com/desertthunder/stramoot/internal/shared"
)

const DefaultPageSize = 50

// SyncOpts configures a sync run.
type SyncOpts struct {
	Start        time.Time     // Only tours recorded at or after Start are listed
	PageSize     int           // Tours per listing page, 1..255 (default: 50)
	BatchSize    int           // Workers, i.e. the cap on tours in flight
	PollAttempts int           // Retries for an upload still processing; zero polls once
	PollDelay    time.Duration // Delay before each retry
}

func (o *SyncOpts) normalize() error {
	if o.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", shared.ErrInvalidArgument)
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", shared.ErrInvalidArgument, o.BatchSize)
	}
	if o.PollAttempts < 0 {
		return fmt.Errorf("%w: poll attempts must not be negative", shared.ErrInvalidArgument)
	}
	if o.PollDelay < 0 {
		return fmt.Errorf("%w: poll delay must not be negative", shared.ErrInvalidArgument)
	}
	return nil
}

// SyncResult collects the outcome of every issued tour.
//
// Outcomes arrive in completion order. A page fetch failure appears once in
// Outcomes with [models.StageFetchPage] and a zero TourID, and is also kept in
// PageErr; it is not counted in Issued, Succeeded or Failed.
type SyncResult struct {
	Start      time.Time
	Outcomes   []models.SyncOutcome
	Pages      int
	Issued     int
	Succeeded  int
	Failed     int
	PageErr    error
	Canceled   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of the run.
func (r *SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the failed outcomes, including a page failure.
func (r *SyncResult) Failures() []models.SyncOutcome {
	var failed []models.SyncOutcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// OK reports whether every tour transferred and the listing completed.
func (r *SyncResult) OK() bool {
	return r.Failed == 0 && r.PageErr == nil && !r.Canceled
}

// SyncEngine runs tours from a [services.Source] through a pool of workers into a [services.Destination].
type SyncEngine struct {
	source services.Source
	dest   services.Destination
	logger *log.Logger
	sleep  SleepFunc
}

// NewSyncEngine creates an engine over authenticated clients. A nil logger discards output.
func NewSyncEngine(source services.Source, dest services.Destination, logger *log.Logger) *SyncEngine {
	return &SyncEngine{source: source, dest: dest, logger: orDiscard(logger)}
}

// WithSleep replaces the poller's wait between retries.
func (e *SyncEngine) WithSleep(fn SleepFunc) *SyncEngine {
	e.sleep = fn
	return e
}

// Run lists tours page by page and transfers each one on a pool of opts.BatchSize workers.
//
// A failed tour never stops the others. A failed page stops new tours from being
// issued while those in flight finish. Run returns once every issued tour has
// settled; it only returns an error for invalid options.
func (e *SyncEngine) Run(ctx context.Context, opts SyncOpts, progress chan<- ProgressUpdate) (*SyncResult, error) {
	if e.source == nil || e.dest == nil {
		return nil, fmt.Errorf("%w: source and destination are required", shared.ErrServiceUnavailable)
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	cursor, err := NewTourCursor(e.source, opts.Start, opts.PageSize)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Start: opts.Start, StartedAt: time.Now()}
	e.logger.Info("sync started",
		"since", opts.Start.Format(time.RFC3339),
		"batch_size", opts.BatchSize,
		"page_size", opts.PageSize,
	)

	jobs := make(chan models.Tour)
	results := make(chan models.SyncOutcome)
	var issued atomic.Int64

	var wg sync.WaitGroup
	for range opts.BatchSize {
		wg.Add(1)
		go e.worker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for cursor.Next(ctx) {
			page := cursor.Page()
			e.logger.Debug("page fetched", "page", page.Index, "total_pages", page.TotalPages, "tours", len(page.Tours))
			e.sendProgress(progress, pageFetchedUpdate(page))

			for _, tour := range page.Tours {
				issued.Add(1)
				select {
				case jobs <- tour:
				case <-ctx.Done():
					issued.Add(-1)
					return
				}
			}
		}
		if err := cursor.Err(); err != nil {
			results <- models.SyncOutcome{Stage: models.StageFetchPage, Err: err}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	settled := 0
	for o := range results {
		result.Outcomes = append(result.Outcomes, o)

		if o.Stage == models.StageFetchPage {
			result.PageErr = o.Err
			e.logger.Error("page fetch failed, no further tours will be issued", "error", o.Err)
			e.sendProgress(progress, pageFailedUpdate(o.Err))
			continue
		}

		settled++
		if o.Succeeded() {
			result.Succeeded++
		} else {
			result.Failed++
		}
		e.sendProgress(progress, outcomeUpdate(settled, int(issued.Load()), o))
	}

	result.Issued = int(issued.Load())
	result.Pages = cursor.Fetched()
	result.Canceled = ctx.Err() != nil
	result.FinishedAt = time.Now()

	e.logger.Info("sync finished",
		"pages", result.Pages,
		"issued", result.Issued,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration", result.Duration().Round(time.Millisecond),
	)
	e.sendProgress(progress, finishedUpdate(result))
	return result, nil
}

// worker runs tours from jobs until the channel is closed. Every received tour yields exactly one outcome.
func (e *SyncEngine) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan models.Tour,
	results chan<- models.SyncOutcome,
	opts SyncOpts,
) {
	defer wg.Done()

	for tour := range jobs {
		results <- e.runUnit(ctx, tour, opts)
	}
}

// runUnit transfers one tour and waits for its upload to settle.
func (e *SyncEngine) runUnit(ctx context.Context, tour models.Tour, opts SyncOpts) models.SyncOutcome {
	logger := shared.WithLogger(e.logger, "tour_id", tour.ID)

	h, err := NewTransferrer(e.source, e.dest, logger).Transfer(ctx, tour)
	if err != nil {
		logger.Warn("transfer failed", "stage", StageOf(err), "error", err)
		return models.NewFailure(tour, 0, StageOf(err), err)
	}

	if err := NewPoller(e.dest, opts.PollAttempts, opts.PollDelay, e.sleep, logger).Wait(ctx, h); err != nil {
		logger.Warn("upload did not complete", "upload_id", h, "stage", StageOf(err), "error", err)
		return models.NewFailure(tour, h, StageOf(err), err)
	}

	logger.Info("tour transferred", "name", tour.Name, "upload_id", h)
	return models.NewSuccess(tour, h)
}

// sendProgress sends a progress update through the channel without blocking.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func orDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(io.Discard)
	}
	return l
}
