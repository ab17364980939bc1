package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"experienceboard/internal/model"
)

// editableColumns are the columns an edit replaces. additional_tips is listed
// so that clearing it writes NULL.
var editableColumns = []string{
	"company_name",
	"experience_type",
	"assessment_type",
	"candidate_name",
	"graduating_year",
	"branch",
	"result",
	"experience_description",
	"additional_tips",
	"updated_at",
}

type ExperienceRepository struct {
	db *gorm.DB
}

func NewExperienceRepository(db *gorm.DB) *ExperienceRepository {
	return &ExperienceRepository{db: db}
}

func (r *ExperienceRepository) Create(ctx context.Context, exp *model.Experience) error {
	if err := r.db.WithContext(ctx).Omit("Images").Create(exp).Error; err != nil {
		return fmt.Errorf("create experience failed: %w", err)
	}
	return nil
}

func (r *ExperienceRepository) Update(ctx context.Context, exp *model.Experience) error {
	if err := r.db.WithContext(ctx).Model(exp).Select(editableColumns).Updates(exp).Error; err != nil {
		return fmt.Errorf("update experience failed: %w", err)
	}
	return nil
}

// GetByID returns the experience with its images, or nil when absent.
func (r *ExperienceRepository) GetByID(ctx context.Context, id string) (*model.Experience, error) {
	var exp model.Experience
	err := r.db.WithContext(ctx).
		Preload("Images", orderImages).
		Where("id = ?", id).
		First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get experience failed: %w", err)
	}
	return &exp, nil
}

// ListWithImages returns every experience, newest first, images embedded.
func (r *ExperienceRepository) ListWithImages(ctx context.Context) ([]model.Experience, error) {
	var list []model.Experience
	err := r.db.WithContext(ctx).
		Preload("Images", orderImages).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list experiences failed: %w", err)
	}
	return list, nil
}

func (r *ExperienceRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Experience{}).Error; err != nil {
		return fmt.Errorf("delete experience failed: %w", err)
	}
	return nil
}

func orderImages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
