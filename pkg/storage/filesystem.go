package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemPhotoStore keeps photo blobs under a root directory. Keys are
// slash separated relative paths such as assessments/12/<uuid>.jpg.
type FilesystemPhotoStore struct {
	rootDir  string
	recorder OperationRecorder
}

// NewFilesystemPhotoStore creates the root directory if needed
func NewFilesystemPhotoStore(rootDir string, recorder OperationRecorder) (*FilesystemPhotoStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FilesystemPhotoStore{rootDir: rootDir, recorder: RecorderOrNop(recorder)}, nil
}

// path resolves key under the root, rejecting anything that escapes it
func (s *FilesystemPhotoStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.rootDir, clean), nil
}

// Put writes the blob atomically through a temp file in the target directory
func (s *FilesystemPhotoStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (err error) {
	start := time.Now()
	defer func() { s.recorder.RecordStorageOperation("put", BackendFilesystem, start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("short write for %s: wrote %d of %d bytes", key, written, size)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move object into place: %w", err)
	}
	return nil
}

// Get opens a stored blob
func (s *FilesystemPhotoStore) Get(ctx context.Context, key string) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() { s.recorder.RecordStorageOperation("get", BackendFilesystem, start, err) }()

	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// Delete removes a blob. Missing blobs are not an error.
func (s *FilesystemPhotoStore) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.recorder.RecordStorageOperation("delete", BackendFilesystem, start, err) }()

	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// HealthCheck verifies the root directory is still a writable directory
func (s *FilesystemPhotoStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("filesystem health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("filesystem health check failed: %s is not a directory", s.rootDir)
	}
	f, err := os.CreateTemp(s.rootDir, ".health-*")
	if err != nil {
		return fmt.Errorf("filesystem health check failed: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
