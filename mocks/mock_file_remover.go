package mocks

import (
	"github.com/stretchr/testify/mock"

	"alcyxob/imagegate/internal/domain"
)

// MockFileRemover is a mock implementation of service.FileRemover.
type MockFileRemover struct {
	mock.Mock
}

func (m *MockFileRemover) Remove(file *domain.StoredFile) error {
	args := m.Called(file)
	return args.Error(0)
}
