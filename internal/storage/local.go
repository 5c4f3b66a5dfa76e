package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"causeconnect/pkg/types"
)

// LocalPrefix is the URL path the HTTP server serves local uploads from.
const LocalPrefix = "/uploads/"

// LocalStorage keeps uploads on disk and returns relative URLs.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) UploadFile(ctx context.Context, folder, filename, contentType string, body io.Reader) (string, error) {
	key, err := ObjectKey(folder, filename, contentType)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, io.LimitReader(body, MaxUploadBytes+1)); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	if info, err := f.Stat(); err == nil && info.Size() > MaxUploadBytes {
		_ = os.Remove(dst)
		return "", types.ValidationError("upload exceeds %d bytes", MaxUploadBytes)
	}

	return LocalPrefix + key, nil
}

func (s *LocalStorage) path(url string) (string, error) {
	if !strings.HasPrefix(url, LocalPrefix) {
		return "", ErrForeignURL
	}

	rel := filepath.FromSlash(strings.TrimPrefix(url, LocalPrefix))
	full := filepath.Join(s.root, rel)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", ErrForeignURL
	}

	return full, nil
}

func (s *LocalStorage) Open(_ context.Context, url string) (io.ReadCloser, error) {
	p, err := s.path(url)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *LocalStorage) DeleteFile(_ context.Context, url string) error {
	p, err := s.path(url)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}
