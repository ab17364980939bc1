package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"experienceboard/internal/model"
)

type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

func (r *ImageRepository) InsertImage(ctx context.Context, img *model.ExperienceImage) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("insert experience image failed: %w", err)
	}
	return nil
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (*model.ExperienceImage, error) {
	var img model.ExperienceImage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&img).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get experience image failed: %w", err)
	}
	return &img, nil
}

func (r *ImageRepository) DeleteByURL(ctx context.Context, experienceID, imageURL string) error {
	err := r.db.WithContext(ctx).
		Where("experience_id = ? AND image_url = ?", experienceID, imageURL).
		Delete(&model.ExperienceImage{}).Error
	if err != nil {
		return fmt.Errorf("delete experience image failed: %w", err)
	}
	return nil
}

func (r *ImageRepository) ListURLs(ctx context.Context, experienceID string) ([]string, error) {
	var urls []string
	err := r.db.WithContext(ctx).
		Model(&model.ExperienceImage{}).
		Where("experience_id = ?", experienceID).
		Order("created_at ASC").
		Pluck("image_url", &urls).Error
	if err != nil {
		return nil, fmt.Errorf("list experience image urls failed: %w", err)
	}
	return urls, nil
}

func (r *ImageRepository) DeleteByExperience(ctx context.Context, experienceID string) error {
	err := r.db.WithContext(ctx).
		Where("experience_id = ?", experienceID).
		Delete(&model.ExperienceImage{}).Error
	if err != nil {
		return fmt.Errorf("delete experience images failed: %w", err)
	}
	return nil
}
