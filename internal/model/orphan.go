package model

import "time"

// OrphanedObject records a storage object whose metadata row is gone but whose
// deletion could not be confirmed.
type OrphanedObject struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	ExperienceID string     `gorm:"type:varchar(36);not null;index" json:"experience_id"`
	ImageURL     string     `gorm:"size:1024" json:"image_url"`
	ObjectPath   string     `gorm:"size:1024" json:"object_path"`
	Reason       string     `gorm:"type:text" json:"reason"`
	ReportedAt   time.Time  `json:"reported_at"`
	ResolvedAt   *time.Time `gorm:"index" json:"resolved_at"`
}
