package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/models"
)

type volunteerRepository struct {
	db *gorm.DB
}

func (r *volunteerRepository) Create(ctx context.Context, volunteer *models.Volunteer) error {
	return r.db.WithContext(ctx).Create(volunteer).Error
}

func (r *volunteerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error) {
	var volunteer models.Volunteer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&volunteer).Error; err != nil {
		return nil, translate(err)
	}
	return &volunteer, nil
}

func (r *volunteerRepository) FindByEmail(ctx context.Context, email string) (*models.Volunteer, error) {
	var volunteer models.Volunteer
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&volunteer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &volunteer, nil
}

func (r *volunteerRepository) ListAvailableIn(ctx context.Context, city, state string) ([]models.Volunteer, error) {
	var volunteers []models.Volunteer
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND availability = ?", true, models.AvailabilityAvailable).
		Where("location_city = ? AND location_state = ?", city, state).
		Find(&volunteers).Error
	if err != nil {
		return nil, err
	}
	return volunteers, nil
}

func (r *volunteerRepository) GuardedUpdate(ctx context.Context, id uuid.UUID, from []models.Availability, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Volunteer{}).
		Where("id = ? AND is_active = ? AND availability IN ?", id, true, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *volunteerRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Volunteer{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// profileColumns are the fields a volunteer may edit on their own profile
var profileColumns = []string{
	"first_name", "last_name", "phone", "profession", "skills",
	"location_address", "location_city", "location_state", "location_zip_code", "updated_at",
}

func (r *volunteerRepository) UpdateProfile(ctx context.Context, v *models.Volunteer) error {
	// struct updates so the skills serializer applies
	res := r.db.WithContext(ctx).Model(v).Select(profileColumns).Updates(v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
