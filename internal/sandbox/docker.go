package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// DockerRunner runs specs in Docker containers via the docker CLI.
type DockerRunner struct {
	Policy Policy
}

// NewDockerRunner creates a runner with the given policy.
func NewDockerRunner(policy Policy) *DockerRunner {
	return &DockerRunner{Policy: policy}
}

var _ Runner = (*DockerRunner)(nil)

// buildArgs assembles the docker CLI arguments for a spec under the policy.
func (d *DockerRunner) buildArgs(spec RunSpec) []string {
	args := []string{
		"run", "--rm",
		"--memory", d.Policy.Memory,
		"--stop-timeout", fmt.Sprintf("%d", int(d.Policy.MaxTimeout.Seconds())),
	}

	if d.Policy.CPUShares > 0 {
		args = append(args, "--cpu-shares", fmt.Sprintf("%d", d.Policy.CPUShares))
	}

	if !d.Policy.Network {
		args = append(args, "--network=none")
	}

	for _, m := range spec.Mounts {
		bind := m.Source + ":" + m.Target
		if m.ReadOnly {
			bind += ":ro"
		}
		args = append(args, "-v", bind)
	}

	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}

	args = append(args, spec.Image)
	args = append(args, spec.Command...)
	return args
}

func (d *DockerRunner) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	if !d.Policy.IsImageAllowed(spec.Image) {
		return nil, fmt.Errorf("image %q not in allowlist", spec.Image)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.Policy.MaxTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "docker", d.buildArgs(spec)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("running docker: %w", err)
		}
	}

	return &RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: elapsed,
	}, nil
}
