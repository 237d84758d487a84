package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Availability is a volunteer's eligibility for new assignments
type Availability string

const (
	AvailabilityAvailable   Availability = "available"
	AvailabilityBusy        Availability = "busy"
	AvailabilityUnavailable Availability = "unavailable"
)

// Volunteer represents a worker who can claim requests
type Volunteer struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName       string       `gorm:"not null" json:"first_name"`
	LastName        string       `gorm:"not null" json:"last_name"`
	Email           string       `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string       `gorm:"not null" json:"-"`
	Phone           string       `gorm:"not null" json:"phone"`
	Profession      string       `gorm:"not null" json:"profession"`
	Skills          []string     `gorm:"type:text;serializer:json" json:"skills"`
	Location        Location     `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Availability    Availability `gorm:"not null;default:'available';index" json:"availability"`
	Rating          float64      `gorm:"not null;default:0" json:"rating"`
	TotalJobs       int          `gorm:"not null;default:0" json:"total_jobs"`
	CompletedJobs   int          `gorm:"not null;default:0" json:"completed_jobs"`
	ProfileImageKey *string      `json:"-"`                                         // S3 key of the uploaded profile image
	ProfileImageURL *string      `gorm:"-" json:"profile_image_url,omitempty"`      // computed, presigned URL
	IsVerified      bool         `gorm:"not null" json:"is_verified"`
	IsActive        bool         `gorm:"not null;index" json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName specifies the table name for the Volunteer model
func (Volunteer) TableName() string {
	return "volunteers"
}

// BeforeCreate assigns an opaque id when the caller did not set one
func (v *Volunteer) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (v *Volunteer) FullName() string {
	return v.FirstName + " " + v.LastName
}

// Summary projects the volunteer into the candidate list shape
func (v *Volunteer) Summary() VolunteerSummary {
	return VolunteerSummary{
		ID:            v.ID,
		FirstName:     v.FirstName,
		LastName:      v.LastName,
		Profession:    v.Profession,
		Skills:        v.Skills,
		Rating:        v.Rating,
		TotalJobs:     v.TotalJobs,
		CompletedJobs: v.CompletedJobs,
		Location:      v.Location,
	}
}

// Contact is the subset of volunteer details shared with the customer after assignment
func (v *Volunteer) Contact() VolunteerContact {
	return VolunteerContact{
		ID:         v.ID,
		FirstName:  v.FirstName,
		LastName:   v.LastName,
		Phone:      v.Phone,
		Profession: v.Profession,
	}
}

// VolunteerSummary is a candidate returned by the matching query
type VolunteerSummary struct {
	ID            uuid.UUID `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Profession    string    `json:"profession"`
	Skills        []string  `json:"skills"`
	Rating        float64   `json:"rating"`
	TotalJobs     int       `json:"total_jobs"`
	CompletedJobs int       `json:"completed_jobs"`
	Location      Location  `json:"location"`
}

// VolunteerContact is what the customer learns about their assigned volunteer
type VolunteerContact struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Phone      string    `json:"phone"`
	Profession string    `json:"profession"`
}
