package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyIsImageAllowed(t *testing.T) {
	p := Policy{Images: []string{"python:3.9-slim", "python-sandbox"}}

	assert.True(t, p.IsImageAllowed("python:3.9-slim"))
	assert.True(t, p.IsImageAllowed("python-sandbox"))
	assert.False(t, p.IsImageAllowed("python:latest"))
	assert.False(t, p.IsImageAllowed(""))
}

func TestDockerRunnerBuildArgs(t *testing.T) {
	d := NewDockerRunner(Policy{
		Memory:     "512m",
		CPUShares:  512,
		MaxTimeout: 120 * time.Second,
		Network:    false,
		Images:     []string{"python:3.9-slim"},
	})

	args := d.buildArgs(RunSpec{
		Image:   "python:3.9-slim",
		Command: []string{"python3", "-u", "-B", "/data/process.py"},
		Mounts: []Mount{
			{Source: "/scratch/input.csv", Target: "/data/input_file.csv", ReadOnly: true},
			{Source: "/scratch/output", Target: "/data/output"},
		},
		Workdir: "/data",
	})

	assert.Equal(t, []string{
		"run", "--rm",
		"--memory", "512m",
		"--stop-timeout", "120",
		"--cpu-shares", "512",
		"--network=none",
		"-v", "/scratch/input.csv:/data/input_file.csv:ro",
		"-v", "/scratch/output:/data/output",
		"-w", "/data",
		"python:3.9-slim",
		"python3", "-u", "-B", "/data/process.py",
	}, args)
}

func TestDockerRunnerBuildArgsNetworkEnabled(t *testing.T) {
	d := NewDockerRunner(Policy{Memory: "256m", MaxTimeout: 10 * time.Second, Network: true})

	args := d.buildArgs(RunSpec{Image: "python:3.9-slim", Command: []string{"python3", "-V"}})

	assert.NotContains(t, args, "--network=none")
	assert.NotContains(t, args, "--cpu-shares")
}

func TestDockerRunnerRejectsUnlistedImage(t *testing.T) {
	d := NewDockerRunner(DefaultPolicy())

	res, err := d.Run(context.Background(), RunSpec{Image: "alpine:edge", Command: []string{"sh"}})

	assert.Nil(t, res)
	assert.ErrorContains(t, err, "not in allowlist")
}

func TestScreenCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr string
	}{
		{name: "valid", code: "import pandas as pd\nprint('ok')"},
		{name: "empty", code: "   \n", wantErr: "empty code"},
		{name: "subprocess", code: "import subprocess", wantErr: "subprocess"},
		{name: "eval", code: "eval('1+1')", wantErr: "eval("},
		{name: "dunder import", code: "__import__('os')", wantErr: "__import__"},
		{name: "open call", code: "open('/etc/passwd')", wantErr: "open("},
		{name: "os system", code: "import os\nos.system('ls')", wantErr: "os.system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ScreenCode(tt.code)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestScreenCodeSizeCap(t *testing.T) {
	big := make([]byte, MaxCodeSize+1)
	for i := range big {
		big[i] = 'a'
	}

	assert.ErrorContains(t, ScreenCode(string(big)), "code too large")
}
