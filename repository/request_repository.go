package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/models"
)

type requestRepository struct {
	db *gorm.DB
}

func (r *requestRepository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *requestRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

func (r *requestRepository) FindByIDWithVolunteer(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).Preload("AssignedVolunteer").Where("id = ?", id).First(&request).Error; err != nil {
		return nil, translate(err)
	}
	return &request, nil
}

// ListPendingIn returns unassigned requests in a locality, newest first
func (r *requestRepository) ListPendingIn(ctx context.Context, city, state string) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("status = ? AND location_city = ? AND location_state = ?", models.RequestStatusPending, city, state).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) ListByVolunteer(ctx context.Context, volunteerID uuid.UUID, statuses []models.RequestStatus, limit int) ([]models.Request, error) {
	q := r.db.WithContext(ctx).Where("assigned_volunteer_id = ?", volunteerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var requests []models.Request
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *requestRepository) CountByVolunteer(ctx context.Context, volunteerID uuid.UUID, statuses ...models.RequestStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Request{}).Where("assigned_volunteer_id = ?", volunteerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// AverageRating returns the mean customer rating over a volunteer's rated jobs
// together with the number of ratings it was computed from.
func (r *requestRepository) AverageRating(ctx context.Context, volunteerID uuid.UUID) (float64, int64, error) {
	var row struct {
		Average float64
		Total   int64
	}
	err := r.db.WithContext(ctx).Model(&models.Request{}).
		Select("COALESCE(AVG(customer_rating), 0) AS average, COUNT(customer_rating) AS total").
		Where("assigned_volunteer_id = ? AND customer_rating IS NOT NULL", volunteerID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Average, row.Total, nil
}

func (r *requestRepository) GuardedUpdate(ctx context.Context, id uuid.UUID, guard RequestGuard, updates map[string]interface{}) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Request{}).Where("id = ?", id)
	if len(guard.Statuses) > 0 {
		q = q.Where("status IN ?", guard.Statuses)
	}
	if guard.OTPCode != nil {
		q = q.Where("otp_code = ?", *guard.OTPCode)
	}
	if guard.Unrated {
		q = q.Where("customer_rating IS NULL")
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *requestRepository) IncrementOTPAttempts(ctx context.Context, id uuid.UUID, max int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Request{}).
		Where("id = ? AND otp_code IS NOT NULL AND otp_verified_at IS NULL AND otp_attempts < ?", id, max).
		UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
