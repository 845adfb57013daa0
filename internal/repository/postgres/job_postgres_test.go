package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"sandboxapi/internal/model"
	"sandboxapi/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var jobCols = []string{"id", "filename", "storage_path", "code_path", "result_prefix", "size", "content_type", "status", "error", "created_at", "updated_at"}

func jobRow(j *model.Job) *sqlmock.Rows {
	return sqlmock.NewRows(jobCols).
		AddRow(j.ID, j.Filename, j.StoragePath, j.CodePath, j.ResultPrefix, j.Size, j.ContentType, j.Status, j.Error, j.CreatedAt, j.UpdatedAt)
}

func TestJobPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	job := &model.Job{
		ID:          "test-uuid",
		Filename:    "sample.csv",
		StoragePath: "uploads/test-uuid.csv",
		Size:        123,
		ContentType: "text/csv",
		Status:      model.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(job.ID, job.Filename, job.StoragePath, job.CodePath, job.ResultPrefix, job.Size, job.ContentType, job.Status, job.Error, job.CreatedAt, job.UpdatedAt).
		WillReturnRows(jobRow(job))

	result, err := repo.Create(ctx, job)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, job.ID, result.ID)
	assert.Equal(t, model.StatusUploaded, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = ?").
			WithArgs("test-id").
			WillReturnRows(jobRow(&model.Job{ID: "test-id", Filename: "file.csv", StoragePath: "uploads/file.csv", Size: 100, ContentType: "text/csv", Status: model.StatusCompleted, CreatedAt: now, UpdatedAt: now}))

		job, err := repo.FindByID(ctx, "test-id")

		assert.NoError(t, err)
		assert.NotNil(t, job)
		assert.Equal(t, "test-id", job.ID)
		assert.Equal(t, model.StatusCompleted, job.Status)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		job, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, job)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM jobs").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT (.+) FROM jobs ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(jobRow(&model.Job{ID: "a", Filename: "a.csv", Status: model.StatusUploaded, CreatedAt: now, UpdatedAt: now}).
			AddRow("b", "b.csv", "uploads/b.csv", "", "", 1, "text/csv", model.StatusFailed, "boom", now, now))

	res, err := repo.List(ctx, repository.PageQuery{Limit: 10, Offset: 0})

	assert.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, "a", res.Items[0].ID)
	assert.Equal(t, model.StatusFailed, res.Items[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	job := &model.Job{
		ID:           "test-id",
		CodePath:     "code/test-id_process.py",
		ResultPrefix: "results/test-id/",
		Status:       model.StatusCompleted,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs").
			WithArgs(job.ID, job.CodePath, job.ResultPrefix, job.Status, job.Error, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Update(ctx, job))
	})

	t.Run("missing row", func(t *testing.T) {
		mock.ExpectExec("UPDATE jobs").
			WithArgs(job.ID, job.CodePath, job.ResultPrefix, job.Status, job.Error, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Update(ctx, job), sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_SetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE jobs").
		WithArgs("test-id", model.StatusRunning, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SetStatus(ctx, "test-id", model.StatusRunning, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_ListOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	old := time.Now().UTC().Add(-48 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE created_at <").
		WithArgs(cutoff).
		WillReturnRows(jobRow(&model.Job{ID: "stale", Filename: "old.csv", Status: model.StatusCompleted, CreatedAt: old, UpdatedAt: old}))

	jobs, err := repo.ListOlderThan(ctx, cutoff)

	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, "stale", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM jobs WHERE id = ?").
		WithArgs("test-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(ctx, "test-id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
