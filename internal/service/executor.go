package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sandboxapi/internal/config"
	"sandboxapi/internal/model"
	"sandboxapi/internal/repository"
	"sandboxapi/internal/sandbox"
	"sandboxapi/internal/storage"
)

// ExecMetrics counts sandbox executions by outcome.
type ExecMetrics struct {
	executions *prometheus.CounterVec
}

// NewExecMetrics registers execution metrics on the given registry.
func NewExecMetrics(reg prometheus.Registerer) (*ExecMetrics, error) {
	m := &ExecMetrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandbox_executions_total",
				Help: "Total number of sandboxed job executions by final status.",
			},
			[]string{"status"},
		),
	}
	if err := reg.Register(m.executions); err != nil {
		return nil, err
	}
	return m, nil
}

// Executor runs submitted job code in the sandbox in the background.
// Concurrency is bounded by a semaphore; Wait blocks until in-flight runs drain.
type Executor struct {
	store   storage.Storage
	repo    repository.JobRepository
	runner  sandbox.Runner
	cfg     config.SandboxConfig
	metrics *ExecMetrics

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewExecutor constructs an Executor. metrics may be nil.
func NewExecutor(store storage.Storage, repo repository.JobRepository, runner sandbox.Runner, cfg config.SandboxConfig, metrics *ExecMetrics) *Executor {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Executor{
		store:   store,
		repo:    repo,
		runner:  runner,
		cfg:     cfg,
		metrics: metrics,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

var _ Launcher = (*Executor)(nil)

// Launch schedules a job for execution and returns immediately. The job is
// copied before scheduling so the caller can keep using its struct while the
// run mutates status and result fields.
func (e *Executor) Launch(job *model.Job) {
	jc := *job
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		e.execute(context.Background(), &jc)
	}()
}

// Wait blocks until all launched executions have finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func (e *Executor) execute(ctx context.Context, job *model.Job) {
	status, errMsg := e.run(ctx, job)

	job.Status = status
	job.Error = errMsg
	if err := e.repo.Update(ctx, job); err != nil {
		// The job row may have been swept mid-run; nothing left to record.
		return
	}
	if e.metrics != nil {
		e.metrics.executions.WithLabelValues(string(status)).Inc()
	}
}

// run stages the job's input and code to a scratch dir, executes them in the
// sandbox, and uploads any output artifacts. It returns the terminal status.
func (e *Executor) run(ctx context.Context, job *model.Job) (model.JobStatus, string) {
	if err := e.repo.SetStatus(ctx, job.ID, model.StatusRunning, ""); err != nil {
		return model.StatusFailed, fmt.Sprintf("mark running: %v", err)
	}

	scratch, err := os.MkdirTemp(e.cfg.ScratchDir, "sandbox-run-*")
	if err != nil {
		return model.StatusFailed, fmt.Sprintf("create scratch dir: %v", err)
	}
	defer os.RemoveAll(scratch)

	ext := filepath.Ext(job.Filename)
	inputPath := filepath.Join(scratch, "input_file"+ext)
	if err := e.stage(ctx, job.StoragePath, inputPath); err != nil {
		return model.StatusFailed, fmt.Sprintf("stage input: %v", err)
	}

	codePath := filepath.Join(scratch, "process.py")
	if err := e.stage(ctx, job.CodePath, codePath); err != nil {
		return model.StatusFailed, fmt.Sprintf("stage code: %v", err)
	}

	outDir := filepath.Join(scratch, "output")
	if err := os.MkdirAll(outDir, 0o777); err != nil {
		return model.StatusFailed, fmt.Sprintf("create output dir: %v", err)
	}

	res, err := e.runner.Run(ctx, sandbox.RunSpec{
		Image:   e.cfg.Image,
		Command: []string{"python3", "-u", "-B", "/data/process.py"},
		Mounts: []sandbox.Mount{
			{Source: inputPath, Target: "/data/input_file" + ext, ReadOnly: true},
			{Source: codePath, Target: "/data/process.py", ReadOnly: true},
			{Source: outDir, Target: "/data/output"},
		},
		Workdir: "/data",
	})
	if errors.Is(err, sandbox.ErrTimeout) {
		return model.StatusTimeout, fmt.Sprintf("execution timed out after %d seconds", e.cfg.ExecTimeoutSec)
	}
	if err != nil {
		return model.StatusFailed, err.Error()
	}
	if res.ExitCode != 0 {
		return model.StatusFailed, res.Stderr
	}

	prefix := path.Join("results", job.ID) + "/"
	if err := e.collect(ctx, outDir, prefix); err != nil {
		return model.StatusFailed, fmt.Sprintf("collect results: %v", err)
	}
	job.ResultPrefix = prefix
	return model.StatusCompleted, ""
}

// stage downloads an object to a local file for bind-mounting.
func (e *Executor) stage(ctx context.Context, key, dst string) error {
	body, _, err := e.store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// collect uploads every file the run wrote to the output dir.
func (e *Executor) collect(ctx context.Context, outDir, prefix string) error {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(outDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return err
		}
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		contentType := mime.TypeByExtension(filepath.Ext(entry.Name()))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		_, err = e.store.Put(ctx, prefix+entry.Name(), f, storage.PutObjectOptions{
			Size:        info.Size(),
			ContentType: contentType,
			Metadata: map[string]string{
				"produced-at": time.Now().UTC().Format(time.RFC3339),
			},
		})
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
