// Package acquire hands raw per-source batches to the ingestion pipeline.
package acquire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/hoopsrank/internal/domain/model"
)

// ErrSnapshotNotFound means no batch exists for the source and date.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Fetcher returns one source's raw rows for one date.
type Fetcher interface {
	Fetch(ctx context.Context, source, date string) ([]model.RawRow, error)
}

// FileFetcher reads snapshots laid out as <dir>/<date>/<source>.json, each a
// JSON array of raw rows.
type FileFetcher struct {
	dir string
}

// NewFileFetcher creates a FileFetcher rooted at dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{dir: dir}
}

// Path returns the snapshot file for source and date.
func Path(dir, source, date string) string {
	return filepath.Join(dir, date, source+".json")
}

func (f *FileFetcher) Fetch(ctx context.Context, source, date string) ([]model.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(Path(f.dir, source, date))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %s", ErrSnapshotNotFound, source, date)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", source, date, err)
	}
	var rows []model.RawRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", source, date, err)
	}
	return rows, nil
}

// WriteSnapshot stores rows where a FileFetcher rooted at dir will find them.
func WriteSnapshot(dir, source, date string, rows []model.RawRow) error {
	path := Path(dir, source, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}
