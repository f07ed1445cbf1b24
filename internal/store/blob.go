package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	ErrBlobNotFound     = errors.New("blob not found")
	ErrBlobTooLarge     = errors.New("blob exceeds maximum size")
	ErrInvalidBlobPath  = errors.New("invalid blob path")
	ErrBlobPathTraverse = errors.New("path traversal not allowed")
)

var blobNameInvalid = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BlobRef locates a stored blob relative to the store root.
type BlobRef struct {
	Path   string
	Size   int64
	SHA256 string
}

// BlobStore keeps uploaded files. Blobs are immutable once written.
type BlobStore interface {
	Put(ctx context.Context, projectKey, name string, r io.Reader, maxBytes int64) (BlobRef, error)
	Open(ctx context.Context, path string) (*os.File, error)
	Delete(ctx context.Context, path string) error
}

// LocalBlobStore implements BlobStore on the local filesystem, one directory
// per project.
type LocalBlobStore struct {
	rootDir string
}

func NewLocalBlobStore(rootDir string) (*LocalBlobStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}
	return &LocalBlobStore{rootDir: rootDir}, nil
}

// Put streams r into {project}/{name}. The write goes to a temp file that is
// renamed into place, and the temp file is removed on any failure, so a failed
// upload never leaves a partial blob behind.
func (s *LocalBlobStore) Put(ctx context.Context, projectKey, name string, r io.Reader, maxBytes int64) (BlobRef, error) {
	relPath := filepath.Join(SanitizeBlobName(projectKey), SanitizeBlobName(name))
	if err := s.validatePath(relPath); err != nil {
		return BlobRef{}, err
	}

	fullPath := filepath.Join(s.rootDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return BlobRef{}, fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return BlobRef{}, fmt.Errorf("creating temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	src := r
	if maxBytes > 0 {
		// One extra byte tells an exact-size file from an oversized one.
		src = io.LimitReader(r, maxBytes+1)
	}

	n, err := io.Copy(io.MultiWriter(tmp, hash), src)
	if err != nil {
		return BlobRef{}, fmt.Errorf("writing blob: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return BlobRef{}, ErrBlobTooLarge
	}
	if err := ctx.Err(); err != nil {
		return BlobRef{}, err
	}

	if err := tmp.Close(); err != nil {
		return BlobRef{}, fmt.Errorf("closing temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		return BlobRef{}, fmt.Errorf("renaming blob: %w", err)
	}
	committed = true

	return BlobRef{
		Path:   relPath,
		Size:   n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func (s *LocalBlobStore) Open(_ context.Context, path string) (*os.File, error) {
	if err := s.validatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.rootDir, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *LocalBlobStore) Delete(_ context.Context, path string) error {
	if err := s.validatePath(path); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.rootDir, path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// validatePath ensures the path is relative and stays under the root.
func (s *LocalBlobStore) validatePath(path string) error {
	if path == "" {
		return ErrInvalidBlobPath
	}
	if filepath.IsAbs(path) || strings.Contains(path, "..") {
		return ErrBlobPathTraverse
	}
	if cleaned := filepath.Clean(path); strings.HasPrefix(cleaned, "..") {
		return ErrBlobPathTraverse
	}
	return nil
}

// SanitizeBlobName keeps a single safe path segment.
func SanitizeBlobName(s string) string {
	s = blobNameInvalid.ReplaceAllString(filepath.Base(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "blob"
	}
	return s
}
