// Package blob provides the binary object store boundary for audio
// files and generated peak artifacts, plus the audio-URL to
// storage-key resolver used by the transcription pipeline.
package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"transcript-hub/internal/apperr"
)

// UploadOptions carries object metadata recorded alongside uploads.
type UploadOptions struct {
	ContentType  string
	CacheControl string
}

// Store is the object storage boundary consumed by the pipeline and
// the deletion paths.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key, destPath string) error
	Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error
	PublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

// LocalStore keeps objects under a root directory and serves them via
// the HTTP server's static file route.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a disk-backed store rooted at dir, issuing
// public URLs under baseURL.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalStore{root: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// objectPath maps a storage key to a path under the root, rejecting
// keys that escape it.
func (s *LocalStore) objectPath(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", apperr.New(apperr.CodeValidation, "empty storage key")
	}
	return filepath.Join(s.root, clean), nil
}

// Exists reports whether the object is present.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.objectPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.CodeStorage, err, "stat object %s", key)
	}
	return true, nil
}

// Download copies the object to a local destination path.
func (s *LocalStore) Download(ctx context.Context, key, destPath string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.New(apperr.CodeNotFound, "object %s not found", key)
		}
		return apperr.Wrap(apperr.CodeStorage, err, "open object %s", key)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "create %s", destPath)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "copy object %s", key)
	}
	return nil
}

// Upload writes the object and a sidecar metadata record carrying the
// content type and cache control headers for the static file server.
func (s *LocalStore) Upload(ctx context.Context, key string, data []byte, opts UploadOptions) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "create object directory for %s", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.CodeStorage, err, "write object %s", key)
	}

	if opts.ContentType != "" || opts.CacheControl != "" {
		meta, err := json.Marshal(opts)
		if err != nil {
			return apperr.Wrap(apperr.CodeStorage, err, "encode metadata for %s", key)
		}
		if err := os.WriteFile(path+".meta", meta, 0o644); err != nil {
			return apperr.Wrap(apperr.CodeStorage, err, "write metadata for %s", key)
		}
	}
	return nil
}

// PublicURL issues the externally reachable URL for a key.
func (s *LocalStore) PublicURL(key string) string {
	return s.baseURL + "/files/" + strings.TrimLeft(key, "/")
}

// Delete removes the object and its metadata. A missing object is
// success: deletion is idempotent by design.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.CodeStorage, err, "delete object %s", key)
	}
	if err := os.Remove(path + ".meta"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Wrap(apperr.CodeStorage, err, "delete metadata for %s", key)
	}
	return nil
}

// Root returns the directory served by the static file route.
func (s *LocalStore) Root() string {
	return s.root
}
