package model

import "time"

// JobStatus tracks a processing job through its lifecycle.
type JobStatus string

const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusRunning    JobStatus = "running"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusTimeout    JobStatus = "timeout"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Job represents one uploaded file and its processing lifecycle.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Job struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	StoragePath  string    `json:"storage_path"`
	CodePath     string    `json:"code_path,omitempty"`
	ResultPrefix string    `json:"result_prefix,omitempty"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	Status       JobStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
