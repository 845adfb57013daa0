package mocks

import (
	"context"
	"io"

	"sandboxapi/internal/sandbox"

	"github.com/stretchr/testify/mock"
)

type MockTransformService struct {
	mock.Mock
}

func (m *MockTransformService) SaveUpload(ctx context.Context, r io.Reader, originalFilename string, size int64) (string, error) {
	args := m.Called(ctx, r, originalFilename, size)
	return args.String(0), args.Error(1)
}

func (m *MockTransformService) Run(ctx context.Context, filePath string) (*sandbox.RunResult, error) {
	args := m.Called(ctx, filePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sandbox.RunResult), args.Error(1)
}
