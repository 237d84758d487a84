package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/models"
)

// ErrNotFound is returned when a lookup by id or email matches no row
var ErrNotFound = errors.New("record not found")

// Store is the backing store shared by every request-serving goroutine.
// Mutations that must not interleave are expressed as guarded updates whose
// boolean result reports whether the guard matched.
type Store interface {
	Requests() RequestRepository
	Volunteers() VolunteerRepository

	// Transaction runs fn against a Store bound to a single transaction.
	// Returning an error from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// RequestGuard restricts a request update to rows still in an expected state
type RequestGuard struct {
	Statuses []models.RequestStatus
	OTPCode  *string // when set, the stored code must still equal this value
	Unrated  bool    // customer rating must still be empty
}

// RequestRepository persists Request aggregates
type RequestRepository interface {
	Create(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	FindByIDWithVolunteer(ctx context.Context, id uuid.UUID) (*models.Request, error)
	ListPendingIn(ctx context.Context, city, state string) ([]models.Request, error)
	ListByVolunteer(ctx context.Context, volunteerID uuid.UUID, statuses []models.RequestStatus, limit int) ([]models.Request, error)
	CountByVolunteer(ctx context.Context, volunteerID uuid.UUID, statuses ...models.RequestStatus) (int64, error)
	AverageRating(ctx context.Context, volunteerID uuid.UUID) (float64, int64, error)

	// GuardedUpdate applies updates only if the guard still holds
	GuardedUpdate(ctx context.Context, id uuid.UUID, guard RequestGuard, updates map[string]interface{}) (bool, error)

	// IncrementOTPAttempts bumps the attempt counter only while a code exists,
	// is unverified and fewer than max attempts have been used.
	IncrementOTPAttempts(ctx context.Context, id uuid.UUID, max int) (bool, error)
}

// VolunteerRepository persists Volunteer aggregates
type VolunteerRepository interface {
	Create(ctx context.Context, volunteer *models.Volunteer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Volunteer, error)
	FindByEmail(ctx context.Context, email string) (*models.Volunteer, error)

	// ListAvailableIn returns active, available volunteers whose city and state
	// equal the given values exactly.
	ListAvailableIn(ctx context.Context, city, state string) ([]models.Volunteer, error)

	// GuardedUpdate applies updates only if the volunteer is active and its
	// availability is one of from.
	GuardedUpdate(ctx context.Context, id uuid.UUID, from []models.Availability, updates map[string]interface{}) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error

	// UpdateProfile writes the volunteer's editable profile columns from v.
	// Availability, counters and credentials are left untouched.
	UpdateProfile(ctx context.Context, v *models.Volunteer) error
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Requests() RequestRepository {
	return &requestRepository{db: s.db}
}

func (s *GormStore) Volunteers() VolunteerRepository {
	return &volunteerRepository{db: s.db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
