package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a run exceeds the policy deadline.
var ErrTimeout = errors.New("sandbox: execution timed out")

// Mount binds a host path into the container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunSpec describes one containerized execution.
type RunSpec struct {
	Image   string // Docker image (e.g. "python:3.9-slim")
	Command []string
	Mounts  []Mount
	Workdir string
}

// RunResult is the output of a sandboxed execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes a spec in an isolated environment.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
}
