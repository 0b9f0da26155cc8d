// Package storage is the blob-storage collaborator: it accepts a file and
// returns a stable URL. Only avatar images go through it.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type BlobStore interface {
	// Save stores the blob and returns its public URL. name is only used
	// for its extension; the stored name is always unique.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DiskStore writes blobs to a local directory served at baseURL.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	fname := uuid.New().String() + ext

	f, err := os.Create(filepath.Join(s.dir, fname))
	if err != nil {
		return "", fmt.Errorf("saving blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("saving blob: %w", err)
	}
	return s.baseURL + "/" + fname, nil
}
