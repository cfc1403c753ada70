package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/imagegate/internal/domain"
	"alcyxob/imagegate/internal/repository"
	"alcyxob/imagegate/internal/service"
	"alcyxob/imagegate/mocks"
)

func storedFile(t *testing.T) *domain.StoredFile {
	t.Helper()
	dir := t.TempDir()
	name := "0b6f1a4e-8f4b-4c53-9a55-0d7bd1f3c2aa.png"
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("pretend png"), 0o644))
	return &domain.StoredFile{
		ID:           "0b6f1a4e-8f4b-4c53-9a55-0d7bd1f3c2aa",
		Ext:          ".png",
		Name:         name,
		Dir:          dir,
		Path:         path,
		Size:         11,
		DeclaredType: "image/png",
		OriginalName: "cat.png",
	}
}

func TestCompleteUpload_SavesMetadata(t *testing.T) {
	repo := new(mocks.MockUploadRepository)
	svc := service.NewUploadService(service.UploadServiceOptions{Repo: repo, TempPath: "/temp/"})
	file := storedFile(t)
	id := primitive.NewObjectID()

	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.Upload) bool {
		return u.FileName == file.Name &&
			u.PublicPath == "/temp/"+file.Name &&
			u.OriginalName == "cat.png" &&
			u.ContentType == "image/png" &&
			u.UploadedBy == "user-1" &&
			u.Fields["title"] == "cat" &&
			u.ObjectKey == ""
	})).Return(id, nil)

	result, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{
		File:       file,
		Fields:     map[string][]string{"title": {"cat", "ignored"}},
		UploadedBy: "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, id, result.Upload.ID)
	assert.Empty(t, result.URL)
	repo.AssertExpectations(t)
}

func TestCompleteUpload_WithoutRepository(t *testing.T) {
	svc := service.NewUploadService(service.UploadServiceOptions{TempPath: "images"})
	file := storedFile(t)

	result, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{File: file})
	require.NoError(t, err)
	assert.False(t, result.Upload.ID.IsZero())
	assert.Equal(t, "/images/"+file.Name, result.Upload.PublicPath)
}

func TestCompleteUpload_NoFile(t *testing.T) {
	svc := service.NewUploadService(service.UploadServiceOptions{})
	_, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{})
	assert.ErrorIs(t, err, service.ErrNoFile)
}

func TestCompleteUpload_MirrorsToBucket(t *testing.T) {
	repo := new(mocks.MockUploadRepository)
	objects := new(mocks.MockObjectStorage)
	svc := service.NewUploadService(service.UploadServiceOptions{
		Repo:          repo,
		Objects:       objects,
		TempPath:      "temp",
		PresignExpiry: time.Minute,
	})
	file := storedFile(t)
	key := "temp/" + file.Name

	objects.On("PutObject", mock.Anything, key, "image/png", mock.Anything, int64(11)).Return(nil)
	objects.On("GeneratePresignedDownloadURL", mock.Anything, key, time.Minute).Return("https://bucket/"+key, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.Upload) bool {
		return u.ObjectKey == key
	})).Return(primitive.NewObjectID(), nil)

	result, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{File: file})
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/"+key, result.URL)
	objects.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestCompleteUpload_PresignFailureKeepsUpload(t *testing.T) {
	objects := new(mocks.MockObjectStorage)
	svc := service.NewUploadService(service.UploadServiceOptions{Objects: objects, TempPath: "temp"})
	file := storedFile(t)

	objects.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	objects.On("GeneratePresignedDownloadURL", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("no creds"))

	result, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{File: file})
	require.NoError(t, err)
	assert.Empty(t, result.URL)
	assert.FileExists(t, file.Path)
}

func TestCompleteUpload_MirrorFailureRemovesLocalFile(t *testing.T) {
	repo := new(mocks.MockUploadRepository)
	objects := new(mocks.MockObjectStorage)
	files := new(mocks.MockFileRemover)
	svc := service.NewUploadService(service.UploadServiceOptions{Repo: repo, Objects: objects, Files: files})
	file := storedFile(t)

	objects.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket down"))
	files.On("Remove", file).Return(nil)

	_, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{File: file})
	assert.ErrorIs(t, err, service.ErrMirrorFailed)
	files.AssertExpectations(t)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCompleteUpload_RepositoryFailureCompensates(t *testing.T) {
	repo := new(mocks.MockUploadRepository)
	objects := new(mocks.MockObjectStorage)
	files := new(mocks.MockFileRemover)
	svc := service.NewUploadService(service.UploadServiceOptions{
		Repo: repo, Objects: objects, Files: files, TempPath: "temp",
	})
	file := storedFile(t)
	key := "temp/" + file.Name
	dbErr := errors.New("connection refused")

	objects.On("PutObject", mock.Anything, key, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	objects.On("GeneratePresignedDownloadURL", mock.Anything, key, mock.Anything).Return("https://bucket/x", nil)
	objects.On("DeleteObject", mock.Anything, key).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(primitive.NilObjectID, dbErr)
	files.On("Remove", file).Return(nil)

	_, err := svc.CompleteUpload(context.Background(), service.CompleteUploadInput{File: file})
	assert.ErrorIs(t, err, dbErr)
	objects.AssertCalled(t, "DeleteObject", mock.Anything, key)
	files.AssertExpectations(t)
}

func TestGetUpload(t *testing.T) {
	repo := new(mocks.MockUploadRepository)
	svc := service.NewUploadService(service.UploadServiceOptions{Repo: repo})
	known := primitive.NewObjectID()
	unknown := primitive.NewObjectID()

	repo.On("GetByID", mock.Anything, known).Return(&domain.Upload{ID: known, FileName: "a.png"}, nil)
	repo.On("GetByID", mock.Anything, unknown).Return(nil, repository.ErrNotFound)

	got, err := svc.GetUpload(context.Background(), known.Hex())
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.FileName)

	_, err = svc.GetUpload(context.Background(), unknown.Hex())
	assert.ErrorIs(t, err, service.ErrUploadNotFound)

	_, err = svc.GetUpload(context.Background(), "not-hex")
	assert.ErrorIs(t, err, service.ErrInvalidUploadID)
}

func TestGetUpload_WithoutRepository(t *testing.T) {
	svc := service.NewUploadService(service.UploadServiceOptions{})
	_, err := svc.GetUpload(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, service.ErrUploadNotFound)
}

func TestPublicPath(t *testing.T) {
	assert.Equal(t, "/temp/a.png", service.PublicPath("temp", "a.png"))
	assert.Equal(t, "/temp/a.png", service.PublicPath("/temp/", "a.png"))
	assert.Equal(t, "/a.png", service.PublicPath("", "a.png"))
}
