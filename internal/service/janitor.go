package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"sandboxapi/internal/config"
	"sandboxapi/internal/repository"
	"sandboxapi/internal/storage"
)

// Janitor periodically removes jobs older than the retention window, storage
// objects included. Jobs live in Postgres, so the sweep survives restarts.
type Janitor struct {
	store    storage.Storage
	repo     repository.JobRepository
	ttl      time.Duration
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewJanitor constructs a Janitor from retention settings. Non-positive
// values fall back to the defaults so Start never gets a zero ticker.
func NewJanitor(store storage.Storage, repo repository.JobRepository, cfg config.RetentionConfig) *Janitor {
	ttlHours := cfg.TTLHours
	if ttlHours <= 0 {
		ttlHours = 24
	}
	sweepMin := cfg.SweepIntervalMin
	if sweepMin <= 0 {
		sweepMin = 60
	}
	return &Janitor{
		store:    store,
		repo:     repo,
		ttl:      time.Duration(ttlHours) * time.Hour,
		interval: time.Duration(sweepMin) * time.Minute,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				swept, err := j.Sweep(context.Background())
				j.logSweep(swept, err)
			case <-j.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	close(j.stop)
	j.wg.Wait()
}

// Sweep deletes all jobs created before the retention cutoff and returns how
// many were removed. A job whose storage cleanup fails is skipped and retried
// on the next sweep.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.ttl)
	jobs, err := j.repo.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range jobs {
		if err := purgeJobObjects(ctx, j.store, &jobs[i]); err != nil {
			continue
		}
		if err := j.repo.Delete(ctx, jobs[i].ID); err != nil {
			continue
		}
		swept++
	}
	return swept, nil
}

func (j *Janitor) logSweep(swept int, err error) {
	entry := map[string]any{
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"component": "janitor",
		"event":     "job_sweep",
		"swept":     swept,
	}
	if err != nil {
		entry["level"] = "error"
		entry["error"] = err.Error()
	} else {
		entry["level"] = "info"
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
