package postgres

import (
	"context"
	"database/sql"
	"time"

	"sandboxapi/internal/model"
	"sandboxapi/internal/repository"
)

// JobPostgres is a PostgreSQL implementation of repository.JobRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type JobPostgres struct {
	db *sql.DB
}

// NewJobPostgres creates a new JobPostgres repository.
func NewJobPostgres(db *sql.DB) *JobPostgres {
	return &JobPostgres{db: db}
}

var _ repository.JobRepository = (*JobPostgres)(nil)

const jobColumns = `id, filename, storage_path, code_path, result_prefix, size, content_type, status, error, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(
		&j.ID,
		&j.Filename,
		&j.StoragePath,
		&j.CodePath,
		&j.ResultPrefix,
		&j.Size,
		&j.ContentType,
		&j.Status,
		&j.Error,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserts a new job row and returns the stored record.
func (r *JobPostgres) Create(ctx context.Context, job *model.Job) (*model.Job, error) {
	const q = `
		INSERT INTO jobs (id, filename, storage_path, code_path, result_prefix, size, content_type, status, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + jobColumns
	row := r.db.QueryRowContext(ctx, q,
		job.ID,
		job.Filename,
		job.StoragePath,
		job.CodePath,
		job.ResultPrefix,
		job.Size,
		job.ContentType,
		job.Status,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return scanJob(row)
}

// FindByID fetches a single job by its ID.
func (r *JobPostgres) FindByID(ctx context.Context, id string) (*model.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.db.QueryRowContext(ctx, q, id))
}

// List returns jobs using LIMIT/OFFSET pagination and a total count.
func (r *JobPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Job], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM jobs`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	const qList = `
		SELECT ` + jobColumns + `
		FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Job]{
		Items: items,
		Total: total,
	}, nil
}

// Update persists the mutable fields of a job.
func (r *JobPostgres) Update(ctx context.Context, job *model.Job) error {
	const q = `
		UPDATE jobs
		SET code_path = $2, result_prefix = $3, status = $4, error = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q,
		job.ID,
		job.CodePath,
		job.ResultPrefix,
		job.Status,
		job.Error,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus transitions a job's status and records an error message.
func (r *JobPostgres) SetStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error {
	const q = `
		UPDATE jobs
		SET status = $2, error = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, status, errMsg, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListOlderThan returns jobs created before the cutoff, oldest first.
func (r *JobPostgres) ListOlderThan(ctx context.Context, cutoff time.Time) ([]model.Job, error) {
	const q = `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE created_at < $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a job by ID. It does not return an error if the row does not exist.
func (r *JobPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM jobs WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	// Ignore rows affected; deleting a missing row is not an error here.
	_, _ = res.RowsAffected()
	return nil
}
