package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/stramoot/internal/models"
	"github.com/desertthunder/stramoot/internal/shared"
)

const runColumns = `id, sequence, window_start, batch_size, tours_total, succeeded, failed, page_error,
	started_at, finished_at, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.SyncRun] for the run journal.
//
// Runs are soft deleted; their outcomes stay attached until the run row is purged.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SyncRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with a generated ID and the next run number
func (r *RunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	run.SetSequence(sequence)
	run.SetID(shared.GenerateID())

	_, err = r.db.Exec(`
		INSERT INTO sync_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`,
		run.ID(),
		run.Sequence(),
		run.WindowStart(),
		run.BatchSize(),
		run.ToursTotal(),
		run.Succeeded(),
		run.Failed(),
		run.PageError(),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`, id)
	return scanRun(row)
}

// Find resolves a run from its number, its full ID or a unique ID prefix
func (r *RunRepository) Find(ref string) (*models.SyncRun, error) {
	if seq, err := strconv.Atoi(ref); err == nil {
		row := r.db.QueryRow(`SELECT `+runColumns+` FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL`, seq)
		return scanRun(row)
	}

	runs, err := r.query(`SELECT `+runColumns+` FROM sync_runs WHERE id LIKE ? || '%' AND deleted_at IS NULL LIMIT 2`, ref)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, ref)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches more than one run", shared.ErrInvalidArgument, ref)
	}
}

// Update writes the run's counters and completion time
func (r *RunRepository) Update(run *models.SyncRun) error {
	return r.update(r.db, run)
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOne(result, id)
}

// List returns runs newest first.
//
// Criteria:
//   - "limit" (int): maximum number of runs
//   - "failed" (bool): only runs with a failed tour or page error
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if failed, ok := criteria["failed"].(bool); ok && failed {
		query += ` AND (failed > 0 OR page_error != '')`
	}

	query += ` ORDER BY sequence DESC`

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// Complete stores the finished run and its outcomes in one transaction
func (r *RunRepository) Complete(run *models.SyncRun, outcomes []models.SyncOutcome) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.update(tx, run); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sync_outcomes (run_id, tour_id, tour_name, upload_id, stage, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		rec := models.NewOutcomeRecord(run.ID(), o)
		if _, err := stmt.Exec(rec.RunID, rec.TourID, rec.TourName, rec.UploadID, rec.Stage.String(), rec.Error, rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert outcome for tour %d: %w", rec.TourID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Outcomes returns the recorded outcomes of a run, failures first
func (r *RunRepository) Outcomes(runID string) ([]models.OutcomeRecord, error) {
	rows, err := r.db.Query(`
		SELECT run_id, tour_id, tour_name, upload_id, stage, error, created_at
		FROM sync_outcomes
		WHERE run_id = ?
		ORDER BY (error = '') ASC, tour_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var records []models.OutcomeRecord
	for rows.Next() {
		var (
			rec   models.OutcomeRecord
			stage string
		)
		if err := rows.Scan(&rec.RunID, &rec.TourID, &rec.TourName, &rec.UploadID, &stage, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		rec.Stage = models.ParseStage(stage)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (r *RunRepository) update(db execer, run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	result, err := db.Exec(`
		UPDATE sync_runs
		SET tours_total = ?, succeeded = ?, failed = ?, page_error = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		run.ToursTotal(),
		run.Succeeded(),
		run.Failed(),
		run.PageError(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return expectOne(result, run.ID())
}

func (r *RunRepository) query(query string, args ...any) ([]*models.SyncRun, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads one row selected with runColumns
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		id          string
		sequence    int
		windowStart time.Time
		batchSize   int
		total       int
		succeeded   int
		failed      int
		pageError   string
		startedAt   time.Time
		finishedAt  sql.NullTime
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&id, &sequence, &windowStart, &batchSize, &total, &succeeded, &failed, &pageError,
		&startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return models.RestoreSyncRun(id, sequence, windowStart, batchSize, total, succeeded, failed, pageError,
		startedAt, nullTime(finishedAt), createdAt, updatedAt, nullTime(deletedAt)), nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}
