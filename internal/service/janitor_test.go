package service

import (
	"context"
	"testing"
	"time"

	"sandboxapi/internal/config"
	"sandboxapi/internal/model"
	repoMocks "sandboxapi/internal/repository/mocks"
	"sandboxapi/internal/storage"
	storeMocks "sandboxapi/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestJanitor_Sweep(t *testing.T) {
	ctx := context.Background()
	retention := config.RetentionConfig{TTLHours: 24, SweepIntervalMin: 60}

	t.Run("removes stale jobs and their objects", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		repo := new(repoMocks.MockJobRepository)

		stale := []model.Job{
			{ID: "old-1", StoragePath: "uploads/old-1.csv", CodePath: "code/old-1_process.py", ResultPrefix: "results/old-1/"},
			{ID: "old-2", StoragePath: "uploads/old-2.csv"},
		}
		repo.On("ListOlderThan", ctx, mock.AnythingOfType("time.Time")).Return(stale, nil).Once()

		store.On("Delete", ctx, "uploads/old-1.csv").Return(nil).Once()
		store.On("Delete", ctx, "code/old-1_process.py").Return(nil).Once()
		store.On("List", ctx, "results/old-1/").
			Return([]storage.ObjectInfo{{Key: "results/old-1/result.json"}}, nil).Once()
		store.On("Delete", ctx, "results/old-1/result.json").Return(nil).Once()
		repo.On("Delete", ctx, "old-1").Return(nil).Once()

		store.On("Delete", ctx, "uploads/old-2.csv").Return(nil).Once()
		repo.On("Delete", ctx, "old-2").Return(nil).Once()

		j := NewJanitor(store, repo, retention)
		swept, err := j.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 2, swept)
		store.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("skips jobs whose storage cleanup fails", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		repo := new(repoMocks.MockJobRepository)

		stale := []model.Job{
			{ID: "old-1", StoragePath: "uploads/old-1.csv"},
			{ID: "old-2", StoragePath: "uploads/old-2.csv"},
		}
		repo.On("ListOlderThan", ctx, mock.AnythingOfType("time.Time")).Return(stale, nil).Once()

		// First job's object delete fails; it stays for the next sweep.
		store.On("Delete", ctx, "uploads/old-1.csv").Return(assert.AnError).Once()
		store.On("Delete", ctx, "uploads/old-2.csv").Return(nil).Once()
		repo.On("Delete", ctx, "old-2").Return(nil).Once()

		j := NewJanitor(store, repo, retention)
		swept, err := j.Sweep(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, swept)
		store.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("list failure surfaces", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		repo := new(repoMocks.MockJobRepository)
		repo.On("ListOlderThan", ctx, mock.AnythingOfType("time.Time")).
			Return(nil, assert.AnError).Once()

		j := NewJanitor(store, repo, retention)
		swept, err := j.Sweep(ctx)

		assert.Error(t, err)
		assert.Zero(t, swept)
	})

	t.Run("nothing stale", func(t *testing.T) {
		store := new(storeMocks.MockStorage)
		repo := new(repoMocks.MockJobRepository)
		repo.On("ListOlderThan", ctx, mock.AnythingOfType("time.Time")).
			Return([]model.Job{}, nil).Once()

		j := NewJanitor(store, repo, retention)
		swept, err := j.Sweep(ctx)

		assert.NoError(t, err)
		assert.Zero(t, swept)
	})
}

func TestNewJanitor_ClampsRetention(t *testing.T) {
	store := new(storeMocks.MockStorage)
	repo := new(repoMocks.MockJobRepository)

	j := NewJanitor(store, repo, config.RetentionConfig{TTLHours: 0, SweepIntervalMin: -5})

	assert.Equal(t, 24*time.Hour, j.ttl)
	assert.Equal(t, 60*time.Minute, j.interval)

	// Starting with an unset interval must not panic the ticker.
	j.Start()
	j.Stop()
}

func TestJanitor_StartStop(t *testing.T) {
	store := new(storeMocks.MockStorage)
	repo := new(repoMocks.MockJobRepository)

	j := NewJanitor(store, repo, config.RetentionConfig{TTLHours: 24, SweepIntervalMin: 60})
	j.Start()

	done := make(chan struct{})
	go func() {
		j.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop in time")
	}
}
