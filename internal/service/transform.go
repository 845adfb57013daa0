package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sandboxapi/internal/config"
	"sandboxapi/internal/sandbox"
)

var (
	ErrFileNotFound   = errors.New("file not found")
	ErrOutsideSandbox = errors.New("file path is outside the sandbox directory")
	ErrExecTimeout    = errors.New("execution timeout")
)

// TransformService backs the synchronous upload-then-transform endpoints.
// Uploads land on local disk so the transform container can bind-mount them
// directly; the transform image carries the processing script.
type TransformService interface {
	// SaveUpload stores an uploaded file under the sandbox dir with a short
	// unique prefix and returns the resulting path.
	SaveUpload(ctx context.Context, r io.Reader, originalFilename string, size int64) (string, error)

	// Run executes the built-in transform against a previously uploaded file.
	Run(ctx context.Context, filePath string) (*sandbox.RunResult, error)
}

type transformService struct {
	runner sandbox.Runner
	cfg    config.SandboxConfig
	upload config.UploadConfig
}

// NewTransformService constructs a TransformService.
func NewTransformService(runner sandbox.Runner, cfg config.SandboxConfig, upload config.UploadConfig) TransformService {
	return &transformService{runner: runner, cfg: cfg, upload: upload}
}

func (s *transformService) SaveUpload(ctx context.Context, r io.Reader, originalFilename string, size int64) (string, error) {
	if r == nil {
		return "", ErrReaderNil
	}
	filename := filepath.Base(originalFilename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !extAllowed(ext, s.upload.AllowedExts) {
		return "", fmt.Errorf("%w: supported formats: %s", ErrFileType, strings.Join(s.upload.AllowedExts, ", "))
	}
	if s.upload.MaxSizeBytes > 0 && size > s.upload.MaxSizeBytes {
		return "", fmt.Errorf("%w: maximum size: %dMB", ErrFileTooLarge, s.upload.MaxSizeBytes/1024/1024)
	}

	if err := os.MkdirAll(s.cfg.LocalDir, 0o755); err != nil {
		return "", fmt.Errorf("create sandbox dir: %w", err)
	}

	// Short unique prefix avoids collisions while keeping the original name visible.
	dst := filepath.Join(s.cfg.LocalDir, uuid.New().String()[:8]+"_"+filename)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	return dst, nil
}

func (s *transformService) Run(ctx context.Context, filePath string) (*sandbox.RunResult, error) {
	clean := filepath.Clean(filePath)
	if !pathWithin(s.cfg.LocalDir, clean) {
		return nil, ErrOutsideSandbox
	}
	if _, err := os.Stat(clean); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if err := os.MkdirAll(s.cfg.LocalOutputDir, 0o777); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res, err := s.runner.Run(ctx, sandbox.RunSpec{
		Image:   s.cfg.TransformImage,
		Command: []string{"python3", "/data/transform.py", "/input_file.csv", "/output/"},
		Mounts: []sandbox.Mount{
			{Source: clean, Target: "/input_file.csv", ReadOnly: true},
			{Source: s.cfg.LocalOutputDir, Target: "/output"},
		},
	})
	if errors.Is(err, sandbox.ErrTimeout) {
		return nil, ErrExecTimeout
	}
	return res, err
}

// pathWithin reports whether target sits inside dir after cleaning.
func pathWithin(dir, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
