package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Experience is one submitted internship or placement narrative.
type Experience struct {
	ID                    string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	CompanyName           string            `gorm:"size:255;not null;index" json:"company_name"`
	ExperienceType        string            `gorm:"size:32;not null;index" json:"experience_type"`
	AssessmentType        string            `gorm:"size:32;not null;index" json:"assessment_type"`
	CandidateName         string            `gorm:"size:255;not null" json:"candidate_name"`
	GraduatingYear        *int              `json:"graduating_year"`
	Branch                string            `gorm:"size:255" json:"branch"`
	Result                string            `gorm:"size:32;not null;index" json:"result"`
	ExperienceDescription string            `gorm:"type:text;not null" json:"experience_description"`
	AdditionalTips        *string           `gorm:"type:text" json:"additional_tips"`
	UserID                string            `gorm:"type:varchar(36);index" json:"user_id"`
	CreatedAt             time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Images                []ExperienceImage `gorm:"foreignKey:ExperienceID" json:"experience_images"`
}

func (e *Experience) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// GraduatingYearString renders the year, or "" when unset.
func (e *Experience) GraduatingYearString() string {
	if e.GraduatingYear == nil {
		return ""
	}
	return strconv.Itoa(*e.GraduatingYear)
}

// ExperienceImage is the metadata row of one stored image. ImageURL is the only
// persisted reference to the binary's location.
type ExperienceImage struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ExperienceID string    `gorm:"type:varchar(36);not null;index" json:"experience_id"`
	ImageURL     string    `gorm:"size:1024;not null;index" json:"image_url"`
	ImageName    string    `gorm:"size:255" json:"image_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (i *ExperienceImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
