package usecase

import (
	"context"
	"time"

	domrepo "FluxFeed/internal/domain/repository"
	"FluxFeed/pkg/logger"
)

// SnapshotArchiver copies the live snapshot into the archive. The scheduler
// calls Run on the configured cron spec.
type SnapshotArchiver struct {
	snap    *SnapshotStore
	archive domrepo.SnapshotArchive
	log     *logger.Logger
	now     func() time.Time
}

func NewSnapshotArchiver(snap *SnapshotStore, archive domrepo.SnapshotArchive, log *logger.Logger) *SnapshotArchiver {
	if log == nil {
		log = logger.NewNop()
	}
	return &SnapshotArchiver{snap: snap, archive: archive, log: log, now: time.Now}
}

func (a *SnapshotArchiver) Run(ctx context.Context) error {
	points := a.snap.Points()
	if len(points) == 0 {
		return nil
	}
	path, err := a.archive.Write(ctx, a.now().UTC(), points)
	if err != nil {
		return err
	}
	a.log.Debug("snapshot archived", logger.String("path", path), logger.Int("symbols", len(points)))
	return nil
}
