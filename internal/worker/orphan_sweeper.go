package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"experienceboard/internal/model"
	"experienceboard/internal/platform/gcs"
	"experienceboard/internal/platform/logger"
)

type OrphanLedger interface {
	ListUnresolved(ctx context.Context, limit int) ([]model.OrphanedObject, error)
	MarkResolved(ctx context.Context, id uint, at time.Time) error
}

type ObjectRemover interface {
	Delete(ctx context.Context, paths ...string) error
	ObjectPath(publicURL string) (string, error)
}

type SweepReport struct {
	Scanned  int `json:"scanned"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// OrphanSweeper retries deletion of objects recorded in the orphan ledger. An
// object that is already gone counts as resolved.
type OrphanSweeper struct {
	ledger  OrphanLedger
	objects ObjectRemover
	log     *logger.Logger
	now     func() time.Time
}

func NewOrphanSweeper(ledger OrphanLedger, objects ObjectRemover, log *logger.Logger) *OrphanSweeper {
	return &OrphanSweeper{
		ledger:  ledger,
		objects: objects,
		log:     log.With("worker", "orphan_sweeper"),
		now:     time.Now,
	}
}

func (s *OrphanSweeper) Sweep(ctx context.Context, limit int, dryRun bool) (SweepReport, error) {
	var report SweepReport
	orphans, err := s.ledger.ListUnresolved(ctx, limit)
	if err != nil {
		return report, err
	}

	for _, o := range orphans {
		report.Scanned++
		path, err := s.pathOf(o)
		if err != nil {
			s.log.Warn("orphan has no resolvable path", "orphan_id", o.ID, "image_url", o.ImageURL, "error", err)
			report.Skipped++
			continue
		}
		if dryRun {
			s.log.Info("would delete orphan", "orphan_id", o.ID, "object_path", path)
			continue
		}

		if err := s.objects.Delete(ctx, path); err != nil && !errors.Is(err, gcs.ErrObjectNotFound) {
			s.log.Warn("delete orphan failed", "orphan_id", o.ID, "object_path", path, "error", err)
			report.Failed++
			continue
		}
		if err := s.ledger.MarkResolved(ctx, o.ID, s.now()); err != nil {
			return report, fmt.Errorf("resolve orphan %d: %w", o.ID, err)
		}
		report.Resolved++
	}
	return report, nil
}

func (s *OrphanSweeper) pathOf(o model.OrphanedObject) (string, error) {
	if o.ObjectPath != "" {
		return o.ObjectPath, nil
	}
	if o.ImageURL == "" {
		return "", errors.New("neither path nor url recorded")
	}
	return s.objects.ObjectPath(o.ImageURL)
}
