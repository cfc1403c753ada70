package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/imagegate/internal/domain"
	"alcyxob/imagegate/internal/repository"
	"alcyxob/imagegate/internal/storage"
)

// --- Error Definitions ---
var (
	ErrUploadNotFound  = errors.New("upload not found")
	ErrInvalidUploadID = errors.New("invalid upload ID format")
	ErrNoFile          = errors.New("no file to complete")
	ErrMirrorFailed    = errors.New("failed to mirror upload to object storage")
)

// FileRemover deletes a local file once it can no longer be recorded.
type FileRemover interface {
	Remove(file *domain.StoredFile) error
}

// CompleteUploadInput is what the pipeline produced for an accepted request.
type CompleteUploadInput struct {
	File       *domain.StoredFile
	Fields     map[string][]string
	UploadedBy string
}

// UploadResult is a recorded upload plus a temporary download URL when mirrored.
type UploadResult struct {
	Upload *domain.Upload
	URL    string
}

// UploadService records accepted uploads.
type UploadService interface {
	CompleteUpload(ctx context.Context, input CompleteUploadInput) (*UploadResult, error)
	GetUpload(ctx context.Context, id string) (*domain.Upload, error)
}

// UploadServiceOptions wires the optional collaborators. A nil Repo keeps
// uploads on disk only; a nil Objects disables the bucket mirror.
type UploadServiceOptions struct {
	Repo          repository.UploadRepository
	Objects       storage.ObjectStorage
	Files         FileRemover
	TempPath      string // URL prefix under which files are served, e.g. "temp"
	PresignExpiry time.Duration
}

type uploadService struct {
	repo          repository.UploadRepository
	objects       storage.ObjectStorage
	files         FileRemover
	prefix        string
	presignExpiry time.Duration
}

// NewUploadService creates a new instance of uploadService.
func NewUploadService(opts UploadServiceOptions) UploadService {
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = storage.DefaultPresignedURLExpiry
	}
	return &uploadService{
		repo:          opts.Repo,
		objects:       opts.Objects,
		files:         opts.Files,
		prefix:        strings.Trim(opts.TempPath, "/"),
		presignExpiry: expiry,
	}
}

// PublicPath is the URL path a stored file is served under.
func PublicPath(prefix, name string) string {
	return path.Join("/", strings.Trim(prefix, "/"), name)
}

// CompleteUpload mirrors the file when a bucket is configured and saves its
// metadata. On failure nothing is left behind: the bucket object and the
// local file are both removed.
func (s *uploadService) CompleteUpload(ctx context.Context, input CompleteUploadInput) (*UploadResult, error) {
	file := input.File
	if file == nil {
		return nil, ErrNoFile
	}

	upload := &domain.Upload{
		FileName:     file.Name,
		PublicPath:   PublicPath(s.prefix, file.Name),
		OriginalName: file.OriginalName,
		ContentType:  file.DeclaredType,
		Size:         file.Size,
		UploadedBy:   input.UploadedBy,
		Fields:       firstValues(input.Fields),
		UploadedAt:   time.Now().UTC(),
	}
	result := &UploadResult{Upload: upload}

	if s.objects != nil {
		upload.ObjectKey = strings.TrimPrefix(upload.PublicPath, "/")
		if err := s.mirror(ctx, file, upload.ObjectKey); err != nil {
			s.removeLocal(file)
			return nil, fmt.Errorf("%w: %v", ErrMirrorFailed, err)
		}
		url, err := s.objects.GeneratePresignedDownloadURL(ctx, upload.ObjectKey, s.presignExpiry)
		if err != nil {
			// The object is stored; the client can still use the public path.
			log.Printf("WARN: Failed to presign download URL for %s: %v", upload.ObjectKey, err)
		} else {
			result.URL = url
		}
	}

	if s.repo == nil {
		upload.ID = primitive.NewObjectID()
		return result, nil
	}

	id, err := s.repo.Create(ctx, upload)
	if err != nil {
		log.Printf("ERROR: Failed to save upload metadata for %s: %v", file.Name, err)
		if upload.ObjectKey != "" {
			if delErr := s.objects.DeleteObject(ctx, upload.ObjectKey); delErr != nil {
				log.Printf("ERROR: Failed to delete mirrored object %s during compensation: %v", upload.ObjectKey, delErr)
			}
		}
		s.removeLocal(file)
		return nil, err
	}
	upload.ID = id
	return result, nil
}

func (s *uploadService) mirror(ctx context.Context, file *domain.StoredFile, key string) error {
	f, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.objects.PutObject(ctx, key, file.DeclaredType, f, file.Size)
}

func (s *uploadService) removeLocal(file *domain.StoredFile) {
	if s.files == nil {
		return
	}
	if err := s.files.Remove(file); err != nil {
		log.Printf("WARN: Failed to remove local file %s: %v", file.Name, err)
	}
}

// GetUpload retrieves recorded upload metadata by its hex ID.
func (s *uploadService) GetUpload(ctx context.Context, id string) (*domain.Upload, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidUploadID
	}
	if s.repo == nil {
		return nil, ErrUploadNotFound
	}

	upload, err := s.repo.GetByID(ctx, objectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}
	return upload, nil
}

func firstValues(fields map[string][]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
