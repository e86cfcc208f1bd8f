// Package upload ships query results to an object store. The store is an
// interface so callers can point uploads at cloud storage; the in-tree
// implementation writes to a directory tree.
package upload

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/spf13/afero"

	"github.com/dataferry/connector/connerr"
	"github.com/dataferry/connector/table"
)

// Store persists one object under a key and returns its final location.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader) (string, error)
}

// Result reports one upload. A failed upload carries the error message
// instead of aborting a surrounding batch.
type Result struct {
	Success  bool
	Key      string
	Location string
	Error    string
}

// Uploader encodes tables and hands them to a Store.
type Uploader struct {
	store  Store
	logger *slog.Logger
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger used to report finished uploads.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// New builds an Uploader on top of store.
func New(store Store, opts ...Option) *Uploader {
	u := &Uploader{store: store}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadTable CSV-encodes tbl, with a header row, and stores it under key.
// Failures are reported in the Result, never as a panic or a partial write
// the caller has to clean up.
func (u *Uploader) UploadTable(ctx context.Context, key string, tbl *table.Table) Result {
	var buf bytes.Buffer
	if err := writeCSV(&buf, tbl); err != nil {
		return u.failed(key, err)
	}
	return u.Upload(ctx, key, &buf)
}

// Upload stores an already-encoded body under key.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader) Result {
	location, err := u.store.Put(ctx, key, body)
	if err != nil {
		return u.failed(key, &connerr.UploadError{Target: key, Cause: err})
	}
	if u.logger != nil {
		u.logger.Info("upload complete", "key", key, "location", location)
	}
	return Result{Success: true, Key: key, Location: location}
}

func (u *Uploader) failed(key string, err error) Result {
	if u.logger != nil {
		u.logger.Error("upload failed", "key", key, "error", err)
	}
	return Result{Key: key, Error: err.Error()}
}

func writeCSV(w io.Writer, tbl *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Columns); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	record := make([]string, len(tbl.Columns))
	for _, row := range tbl.Rows {
		for i, v := range row {
			if v == nil {
				record[i] = ""
			} else {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DirStore keeps objects as files under a root directory. It backs onto an
// afero filesystem so tests can run entirely in memory.
type DirStore struct {
	fs   afero.Fs
	root string
}

// NewDirStore stores objects under root on fs.
func NewDirStore(fs afero.Fs, root string) *DirStore {
	return &DirStore{fs: fs, root: root}
}

// Put writes body to root/key, creating parent directories as needed.
func (s *DirStore) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	if key == "" || path.IsAbs(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	target := path.Join(s.root, key)
	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path.Dir(target), err)
	}

	f, err := s.fs.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}
