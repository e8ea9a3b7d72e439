package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/services"
)

const (
	DefaultPollAttempts = 10
	DefaultPollDelay    = time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller waits for uploads to reach a terminal state.
type Poller struct {
	dest     services.Destination
	attempts int
	delay    time.Duration
	sleep    SleepFunc
	logger   *log.Logger
}

// NewPoller creates a poller that retries an in-progress upload up to attempts
// times, sleeping delay before each retry. A nil sleep waits on a timer.
func NewPoller(dest services.Destination, attempts int, delay time.Duration, sleep SleepFunc, logger *log.Logger) *Poller {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Poller{dest: dest, attempts: attempts, delay: delay, sleep: sleep, logger: orDiscard(logger)}
}

// Wait polls until the upload succeeds, fails or exhausts the retry budget.
//
// With a budget of n and an upload that never finishes, the status is read
// n+1 times and the poller sleeps n times before returning [*UploadTimeoutError].
// Errors reading the status end the wait immediately as [*StatusCheckError].
func (p *Poller) Wait(ctx context.Context, h models.UploadHandle) error {
	retries := 0
	for {
		status, err := p.dest.Status(ctx, h)
		if err != nil {
			return &StatusCheckError{Upload: h, Err: err}
		}

		state := status.State()
		switch state.Kind {
		case models.UploadSucceeded:
			return nil
		case models.UploadFailed:
			return &UploadFailedError{Upload: h, Message: state.Message}
		}

		if retries >= p.attempts {
			return &UploadTimeoutError{Upload: h, Attempts: p.attempts}
		}
		retries++

		p.logger.Debug("upload still processing, retrying", "upload_id", h, "retry", retries, "delay", p.delay)
		if err := p.sleep(ctx, p.delay); err != nil {
			return &StatusCheckError{Upload: h, Err: err}
		}
	}
}
