package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/infinity-samurai/food-ai/internal/models"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Errors stored on failed jobs are capped so a single stack trace cannot
// bloat the row.
const maxErrorLen = 2000

// JobRepository is the data access layer for analysis jobs. ClaimNext is the
// only coordination point between concurrent workers; everything else is
// single-writer per job.
type JobRepository struct {
	db *DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new queued job for the given image reference.
func (r *JobRepository) Create(ctx context.Context, imageKey, imageSource string) (*models.Job, error) {
	job := &models.Job{
		ID:          uuid.New().String(),
		Status:      models.JobStatusQueued,
		CreatedAt:   time.Now().Unix(),
		ImageKey:    imageKey,
		ImageSource: imageSource,
	}
	job.UpdatedAt = job.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, created_at, updated_at, image_key, image_source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Status, job.CreatedAt, job.UpdatedAt, job.ImageKey, job.ImageSource,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job by id, returning ErrNotFound when it does not exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, updated_at, image_key, image_source, error, result_json
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ClaimNext atomically claims the oldest queued job and moves it to
// in_progress. It returns (nil, nil) when the queue is empty or another
// worker won the race for the candidate row. The conditional UPDATE's
// affected-row count is the sole exclusivity mechanism.
func (r *JobRepository) ClaimNext(ctx context.Context) (*models.Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		models.JobStatusQueued)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan queued job: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.JobStatusInProgress, time.Now().Unix(), id, models.JobStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read claim result: %w", err)
	}
	if n == 0 {
		// Lost the race to another worker.
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// MarkDone moves a job to its done terminal state with the given report and
// clears any error. Calling it again on a terminal job overwrites silently.
func (r *JobRepository) MarkDone(ctx context.Context, id string, result *models.NutritionReport) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ?, result_json = ?, error = NULL WHERE id = ?`,
		models.JobStatusDone, time.Now().Unix(), string(resultJSON), id)
	if err != nil {
		return fmt.Errorf("failed to mark job done: %w", err)
	}
	return requireRow(res)
}

// MarkFailed moves a job to its failed terminal state with a bounded error
// string and clears any result.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	if len(errMsg) > maxErrorLen {
		errMsg = errMsg[:maxErrorLen]
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ?, error = ?, result_json = NULL WHERE id = ?`,
		models.JobStatusFailed, time.Now().Unix(), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return requireRow(res)
}

// List limits are bounded so a caller-supplied value cannot scan the whole
// table.
const maxListLimit = 200

// ListRecent returns the most recently updated jobs, at most maxListLimit.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, created_at, updated_at, image_key, image_source, error, result_json
		 FROM jobs ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job        models.Job
		errMsg     sql.NullString
		resultJSON sql.NullString
	)
	err := row.Scan(&job.ID, &job.Status, &job.CreatedAt, &job.UpdatedAt,
		&job.ImageKey, &job.ImageSource, &errMsg, &resultJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var report models.NutritionReport
		if err := json.Unmarshal([]byte(resultJSON.String), &report); err != nil {
			return nil, fmt.Errorf("failed to decode result for job %s: %w", job.ID, err)
		}
		job.Result = &report
	}
	return &job, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
