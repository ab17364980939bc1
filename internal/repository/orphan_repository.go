package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"experienceboard/internal/model"
)

type OrphanRepository struct {
	db *gorm.DB
}

func NewOrphanRepository(db *gorm.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

func (r *OrphanRepository) Create(ctx context.Context, orphan *model.OrphanedObject) error {
	if err := r.db.WithContext(ctx).Create(orphan).Error; err != nil {
		return fmt.Errorf("create orphaned object failed: %w", err)
	}
	return nil
}

// ListUnresolved returns the oldest unresolved reports first. limit <= 0 means
// no limit.
func (r *OrphanRepository) ListUnresolved(ctx context.Context, limit int) ([]model.OrphanedObject, error) {
	var list []model.OrphanedObject
	q := r.db.WithContext(ctx).Where("resolved_at IS NULL").Order("reported_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list orphaned objects failed: %w", err)
	}
	return list, nil
}

func (r *OrphanRepository) MarkResolved(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.OrphanedObject{}).
		Where("id = ?", id).
		Update("resolved_at", at).Error
	if err != nil {
		return fmt.Errorf("resolve orphaned object failed: %w", err)
	}
	return nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Experience{},
		&model.ExperienceImage{},
		&model.OrphanedObject{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}
