package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sandboxapi/internal/config"
	"sandboxapi/internal/model"
	"sandboxapi/internal/repository"
	"sandboxapi/internal/sandbox"
	"sandboxapi/internal/storage"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrNotFound      = errors.New("job not found")
	ErrReaderNil     = errors.New("reader is nil")
	ErrFileType      = errors.New("file type not allowed")
	ErrFileTooLarge  = errors.New("file too large")
	ErrJobBusy       = errors.New("job is already being processed")
	ErrNotReady      = errors.New("results not available yet")
	ErrNoResults     = errors.New("no results found")
	ErrFormatUnknown = errors.New("unknown output format")
	ErrCodeRejected  = errors.New("code rejected")
)

// presignExpiry bounds result download links.
const presignExpiry = 15 * time.Minute

// JobListResult is the service-level DTO for paginated jobs.
type JobListResult struct {
	Items []model.Job `json:"data"`
	Total int         `json:"total"`
}

// ResultArtifact is one downloadable output of a completed job.
type ResultArtifact struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Launcher schedules background execution of a job whose code has been stored.
type Launcher interface {
	Launch(job *model.Job)
}

// JobService defines the use cases for file-processing jobs.
type JobService interface {
	// Upload streams the content to object storage, saves job metadata to DB,
	// and rolls back storage if the DB save fails.
	Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Job, error)

	// SubmitCode screens and stores processing code for an uploaded job and
	// schedules its sandboxed execution.
	SubmitCode(ctx context.Context, id, code string) (*model.Job, error)

	// Get returns a single job by its ID.
	Get(ctx context.Context, id string) (*model.Job, error)

	// List returns jobs using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*JobListResult, error)

	// Results streams one result artifact of a completed job, chosen by format
	// (json, csv, excel; empty picks the first artifact).
	Results(ctx context.Context, id, format string) (*ResultArtifact, error)

	// PresignResult returns a time-limited download URL for a result artifact.
	PresignResult(ctx context.Context, id, format string) (string, error)

	// Delete removes a job's storage objects and its record.
	Delete(ctx context.Context, id string) error
}

// jobService is a concrete implementation of JobService.
type jobService struct {
	store    storage.Storage
	repo     repository.JobRepository
	launcher Launcher
	upload   config.UploadConfig
}

// NewJobService constructs a new JobService.
func NewJobService(store storage.Storage, repo repository.JobRepository, launcher Launcher, upload config.UploadConfig) JobService {
	return &jobService{store: store, repo: repo, launcher: launcher, upload: upload}
}

func (s *jobService) Upload(ctx context.Context, r io.Reader, originalFilename string, contentType string, size int64) (*model.Job, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	filename := filepath.Base(originalFilename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !extAllowed(ext, s.upload.AllowedExts) {
		return nil, fmt.Errorf("%w: supported formats: %s", ErrFileType, strings.Join(s.upload.AllowedExts, ", "))
	}
	if s.upload.MaxSizeBytes > 0 && size > s.upload.MaxSizeBytes {
		return nil, fmt.Errorf("%w: maximum size: %dMB", ErrFileTooLarge, s.upload.MaxSizeBytes/1024/1024)
	}

	jobID := uuid.New().String()
	key := path.Join("uploads", jobID+ext)

	// Upload to object storage
	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:          jobID,
		Filename:    filename,
		StoragePath: objInfo.Key,
		Size:        objInfo.Size,
		ContentType: objInfo.ContentType,
		Status:      model.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := s.repo.Create(ctx, job)
	if err != nil {
		// Rollback: delete the object from storage
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *jobService) SubmitCode(ctx context.Context, id, code string) (*model.Job, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if job.Status == model.StatusProcessing || job.Status == model.StatusRunning {
		return nil, ErrJobBusy
	}
	if err := sandbox.ScreenCode(code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeRejected, err)
	}

	codeKey := path.Join("code", job.ID+"_process.py")
	if _, err := s.store.Put(ctx, codeKey, strings.NewReader(code), storage.PutObjectOptions{
		Size:        int64(len(code)),
		ContentType: "text/x-python",
	}); err != nil {
		return nil, fmt.Errorf("store code: %w", err)
	}

	job.CodePath = codeKey
	job.Status = model.StatusProcessing
	job.Error = ""
	if err := s.repo.Update(ctx, job); err != nil {
		return nil, err
	}

	s.launcher.Launch(job)
	return job, nil
}

// Get returns a job by ID.
func (s *jobService) Get(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns paginated jobs without exposing repository types.
func (s *jobService) List(ctx context.Context, limit, offset int) (*JobListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &JobListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *jobService) Results(ctx context.Context, id, format string) (*ResultArtifact, error) {
	obj, err := s.pickResult(ctx, id, format)
	if err != nil {
		return nil, err
	}
	body, info, err := s.store.Get(ctx, obj.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	return &ResultArtifact{
		Filename:    "result_" + id + path.Ext(obj.Key),
		ContentType: contentTypeForKey(obj.Key, info.ContentType),
		Size:        info.Size,
		Body:        body,
	}, nil
}

func (s *jobService) PresignResult(ctx context.Context, id, format string) (string, error) {
	obj, err := s.pickResult(ctx, id, format)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, obj.Key, presignExpiry)
}

// pickResult resolves the artifact a format selects for a completed job.
func (s *jobService) pickResult(ctx context.Context, id, format string) (*storage.ObjectInfo, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != model.StatusCompleted {
		return nil, ErrNotReady
	}

	var exts []string
	switch format {
	case "", "json":
		exts = []string{".json"}
	case "csv":
		exts = []string{".csv"}
	case "excel":
		exts = []string{".xlsx", ".xls"}
	default:
		return nil, ErrFormatUnknown
	}

	prefix := job.ResultPrefix
	if prefix == "" {
		prefix = path.Join("results", job.ID) + "/"
	}
	objs, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(objs) == 0 {
		return nil, ErrNoResults
	}
	for i := range objs {
		for _, ext := range exts {
			if strings.HasSuffix(objs[i].Key, ext) {
				return &objs[i], nil
			}
		}
	}
	// No artifact of the requested kind; fall back to the first one.
	return &objs[0], nil
}

// Delete removes a job's objects from storage, then deletes its record.
func (s *jobService) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := purgeJobObjects(ctx, s.store, job); err != nil {
		return err
	}
	// Delete DB row (repository ignores missing row errors as per contract)
	return s.repo.Delete(ctx, id)
}

// purgeJobObjects removes a job's upload, code, and result objects.
// Shared between explicit deletion and the retention sweep.
func purgeJobObjects(ctx context.Context, store storage.Storage, job *model.Job) error {
	if job.StoragePath != "" {
		if err := store.Delete(ctx, job.StoragePath); err != nil {
			return fmt.Errorf("delete upload: %w", err)
		}
	}
	if job.CodePath != "" {
		if err := store.Delete(ctx, job.CodePath); err != nil {
			return fmt.Errorf("delete code: %w", err)
		}
	}
	if job.ResultPrefix != "" {
		objs, err := store.List(ctx, job.ResultPrefix)
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		for _, obj := range objs {
			if err := store.Delete(ctx, obj.Key); err != nil {
				return fmt.Errorf("delete result %s: %w", obj.Key, err)
			}
		}
	}
	return nil
}

func extAllowed(ext string, allowed []string) bool {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}

func contentTypeForKey(key, fallback string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	}
	if fallback != "" {
		return fallback
	}
	return "application/octet-stream"
}
