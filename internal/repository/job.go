package repository

import (
	"context"
	"time"

	"sandboxapi/internal/model"
)

// JobRepository defines data access for processing jobs using SQL queries only.
// No business logic here — strictly persistence operations.
type JobRepository interface {
	// Create inserts a new job record.
	// The caller should provide required fields (e.g., ID, CreatedAt) according to the database schema defaults.
	// Returns the stored job (may include values set by the DB).
	Create(ctx context.Context, job *model.Job) (*model.Job, error)

	// FindByID returns a job by its ID.
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// List returns a paginated list of jobs and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Job], error)

	// Update persists the mutable fields of a job (code_path, result_prefix,
	// status, error) and refreshes updated_at.
	Update(ctx context.Context, job *model.Job) error

	// SetStatus transitions a job's status, recording an error message for
	// terminal failures.
	SetStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error

	// ListOlderThan returns jobs created before the cutoff, oldest first.
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]model.Job, error)

	// Delete removes a job by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
