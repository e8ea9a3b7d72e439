package models

import (
	"errors"
	"time"
)

// SyncRun is a journal entry describing one sync run.
//
// The journal is write-only from the sync's point of view: it is never read when
// deciding which tours to transfer.
type SyncRun struct {
	id          string
	sequence    int
	windowStart time.Time
	batchSize   int
	toursTotal  int
	succeeded   int
	failed      int
	pageError   string
	startedAt   time.Time
	finishedAt  *time.Time
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

var _ Model = (*SyncRun)(nil)

// NewSyncRun creates a run entry for a window starting at windowStart.
func NewSyncRun(sequence int, windowStart time.Time, batchSize int) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sequence:    sequence,
		windowStart: windowStart,
		batchSize:   batchSize,
		startedAt:   now,
		createdAt:   now,
		updatedAt:   now,
	}
}

// RestoreSyncRun rebuilds a run from stored columns.
func RestoreSyncRun(
	id string, sequence int, windowStart time.Time, batchSize, total, succeeded, failed int,
	pageError string, startedAt time.Time, finishedAt *time.Time, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *SyncRun {
	return &SyncRun{
		id:          id,
		sequence:    sequence,
		windowStart: windowStart,
		batchSize:   batchSize,
		toursTotal:  total,
		succeeded:   succeeded,
		failed:      failed,
		pageError:   pageError,
		startedAt:   startedAt,
		finishedAt:  finishedAt,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		deletedAt:   deletedAt,
	}
}

func (r *SyncRun) ID() string             { return r.id }
func (r *SyncRun) Sequence() int          { return r.sequence }
func (r *SyncRun) WindowStart() time.Time { return r.windowStart }
func (r *SyncRun) BatchSize() int         { return r.batchSize }
func (r *SyncRun) ToursTotal() int        { return r.toursTotal }
func (r *SyncRun) Succeeded() int         { return r.succeeded }
func (r *SyncRun) Failed() int            { return r.failed }
func (r *SyncRun) PageError() string      { return r.pageError }
func (r *SyncRun) StartedAt() time.Time   { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time   { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time   { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time  { return r.deletedAt }

func (r *SyncRun) SetID(id string)           { r.id = id }
func (r *SyncRun) SetSequence(seq int)       { r.sequence = seq }
func (r *SyncRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// Finish records the run's per-tour totals and the page error, if any.
func (r *SyncRun) Finish(succeeded, failed int, pageErr error) {
	now := time.Now()
	r.succeeded = succeeded
	r.failed = failed
	r.toursTotal = succeeded + failed
	if pageErr != nil {
		r.pageError = pageErr.Error()
	}
	r.finishedAt = &now
	r.updatedAt = now
}

// Validate checks the run's invariants.
func (r *SyncRun) Validate() error {
	if r.batchSize < 1 {
		return errors.New("batch size must be positive")
	}
	if r.windowStart.IsZero() {
		return errors.New("window start is required")
	}
	if r.succeeded < 0 || r.failed < 0 {
		return errors.New("outcome counts must not be negative")
	}
	return nil
}

// OutcomeRecord is a persisted [SyncOutcome].
type OutcomeRecord struct {
	RunID     string    `json:"run_id,omitempty"`
	TourID    uint32    `json:"tour_id"`
	TourName  string    `json:"tour_name"`
	UploadID  int64     `json:"upload_id,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOutcomeRecord converts an outcome for storage.
func NewOutcomeRecord(runID string, o SyncOutcome) OutcomeRecord {
	rec := OutcomeRecord{
		RunID:     runID,
		TourID:    o.TourID,
		TourName:  o.TourName,
		UploadID:  int64(o.Upload),
		Stage:     o.Stage,
		CreatedAt: time.Now(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}
