package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes uploads below a directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int64
	now     func() time.Time
}

func NewLocalStore(dir, baseURL string, maxSize int64) *LocalStore {
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (s *LocalStore) Save(_ context.Context, folder, originalName string, r io.Reader, size int64, _ string) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}

	key := path.Join(folder, UniqueName(originalName, s.now()))
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	defer f.Close()

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		_ = os.Remove(full)
		return "", ErrTooLarge
	}
	return key, nil
}

func (s *LocalStore) URL(_ context.Context, key string) (string, error) {
	return s.baseURL + "/" + key, nil
}

func (s *LocalStore) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}
