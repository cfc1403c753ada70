package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"alcyxob/imagegate/internal/domain"
)

const maxExtLen = 16

// DiskStore names and writes uploaded files under a single directory.
type DiskStore struct {
	dir string
}

// NewDiskStore resolves dir to an absolute path. The directory itself is
// created lazily, on every write attempt.
func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %q: %w", dir, err)
	}
	return &DiskStore{dir: abs}, nil
}

// Dir returns the absolute upload directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Destination returns the upload directory, creating it (and parents) if absent.
// MkdirAll treats an existing directory as success, so concurrent first use is safe.
func (s *DiskStore) Destination() (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	return s.dir, nil
}

// NewFileName returns a fresh identifier and the file name built from it.
// Only the extension of the client supplied name is used.
func NewFileName(originalName string) (id, ext, name string) {
	id = uuid.New().String()
	ext = safeExt(originalName)
	return id, ext, id + ext
}

func safeExt(originalName string) string {
	// Normalise both separators so "..\\x.png" and "../x.png" behave the same on every OS.
	base := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext := filepath.Ext(base)
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return strings.ToLower(ext)
}

// Write streams r into a newly named file. Any failure mid-write removes the
// partial file before returning.
func (s *DiskStore) Write(originalName, declaredType string, r io.Reader) (*domain.StoredFile, error) {
	dir, err := s.Destination()
	if err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id, ext, name := NewFileName(originalName)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	return &domain.StoredFile{
		ID:           id,
		Ext:          ext,
		Name:         name,
		Dir:          dir,
		Path:         path,
		Size:         written,
		DeclaredType: declaredType,
		OriginalName: originalName,
	}, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *DiskStore) Remove(file *domain.StoredFile) error {
	if file == nil {
		return nil
	}
	if err := os.Remove(file.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
