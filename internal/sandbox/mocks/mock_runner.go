package mocks

import (
	"context"

	"sandboxapi/internal/sandbox"

	"github.com/stretchr/testify/mock"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, spec sandbox.RunSpec) (*sandbox.RunResult, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sandbox.RunResult), args.Error(1)
}
