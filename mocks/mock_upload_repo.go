package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/imagegate/internal/domain"
)

// MockUploadRepository is a mock implementation of repository.UploadRepository.
type MockUploadRepository struct {
	mock.Mock
}

func (m *MockUploadRepository) Create(ctx context.Context, upload *domain.Upload) (primitive.ObjectID, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(primitive.ObjectID), args.Error(1)
}

func (m *MockUploadRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Upload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Upload), args.Error(1)
}

func (m *MockUploadRepository) GetByFileName(ctx context.Context, fileName string) (*domain.Upload, error) {
	args := m.Called(ctx, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Upload), args.Error(1)
}
