package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"FluxFeed/internal/domain/models"
	domrepo "FluxFeed/internal/domain/repository"
)

// SnapshotRecord is the on-disk schema of one archived price.
type SnapshotRecord struct {
	CapturedAt int64   `parquet:"captured_at,timestamp(millisecond)"`
	Symbol     string  `parquet:"symbol"`
	Price      float64 `parquet:"price"`
	Change24h  float64 `parquet:"change_24h"`
	UpdatedAt  int64   `parquet:"updated_at,timestamp(millisecond)"`
}

// ParquetArchive writes snapshots to <dir>/<YYYY-MM-DD>/snapshot-<HHMMSS>.parquet.
type ParquetArchive struct {
	dir string
}

func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{dir: dir}
}

func (a *ParquetArchive) path(at time.Time) string {
	at = at.UTC()
	return filepath.Join(a.dir, at.Format(time.DateOnly), "snapshot-"+at.Format("150405")+".parquet")
}

// Write stores points sorted by symbol and returns the file path. An empty
// snapshot writes nothing and returns "".
func (a *ParquetArchive) Write(ctx context.Context, at time.Time, points []models.PricePoint) (string, error) {
	if len(points) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	records := make([]SnapshotRecord, 0, len(points))
	for _, p := range points {
		records = append(records, SnapshotRecord{
			CapturedAt: at.UnixMilli(),
			Symbol:     p.Symbol,
			Price:      p.Price,
			Change24h:  p.Change24h,
			UpdatedAt:  p.UpdatedAt.UnixMilli(),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Symbol < records[j].Symbol })

	path := a.path(at)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("archive dir: %w", err)
	}
	if err := parquet.WriteFile(path, records); err != nil {
		return "", fmt.Errorf("write archive %s: %w", path, err)
	}
	return path, nil
}

// ReadSnapshot loads an archived file back into price points.
func ReadSnapshot(path string) ([]models.PricePoint, error) {
	rows, err := parquet.ReadFile[SnapshotRecord](path)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	out := make([]models.PricePoint, len(rows))
	for i, r := range rows {
		out[i] = models.PricePoint{
			Symbol:    r.Symbol,
			Price:     r.Price,
			Change24h: r.Change24h,
			UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
		}
	}
	return out, nil
}

var _ domrepo.SnapshotArchive = (*ParquetArchive)(nil)
