package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

func setupTestStore(t *testing.T) (*repository.GormStore, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database shared and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Volunteer{}, &models.Request{}), "Failed to migrate test database")
	return repository.NewGormStore(db), db
}

// testClock is a settable clock shared by the generator and the test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var volunteerSeq int

func createVolunteer(t *testing.T, store repository.Store, opts ...func(*models.Volunteer)) *models.Volunteer {
	t.Helper()
	volunteerSeq++

	volunteer := &models.Volunteer{
		FirstName:    "Sam",
		LastName:     fmt.Sprintf("Helper%d", volunteerSeq),
		Email:        fmt.Sprintf("volunteer%d@example.com", volunteerSeq),
		PasswordHash: "not-a-real-hash",
		Phone:        "+1-512-555-0100",
		Profession:   "Cleaning",
		Skills:       []string{"deep cleaning"},
		Location:     models.Location{Address: "1 Main St", City: "Austin", State: "TX", ZipCode: "78701"},
		Availability: models.AvailabilityAvailable,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(volunteer)
	}
	require.NoError(t, store.Volunteers().Create(context.Background(), volunteer))
	return volunteer
}

func createRequest(t *testing.T, store repository.Store, opts ...func(*models.Request)) *models.Request {
	t.Helper()

	request := &models.Request{
		Customer: models.CustomerInfo{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
			Phone:     "+1-512-555-0199",
		},
		Service: models.ServiceDetails{
			Category:          "Cleaning",
			Description:       "Deep clean of a two bedroom apartment",
			Urgency:           models.UrgencyMedium,
			EstimatedDuration: "3 hours",
		},
		Location:      models.Location{Address: "500 Congress Ave", City: "Austin", State: "TX", ZipCode: "78701"},
		Payment:       models.Payment{Amount: 1500, Currency: "INR", Status: models.PaymentStatusPending},
		Status:        models.RequestStatusPending,
		ScheduledDate: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
	}
	for _, opt := range opts {
		opt(request)
	}
	require.NoError(t, store.Requests().Create(context.Background(), request))
	return request
}

func reloadRequest(t *testing.T, store repository.Store, id uuid.UUID) *models.Request {
	t.Helper()
	request, err := store.Requests().FindByID(context.Background(), id)
	require.NoError(t, err)
	return request
}

func reloadVolunteer(t *testing.T, store repository.Store, id uuid.UUID) *models.Volunteer {
	t.Helper()
	volunteer, err := store.Volunteers().FindByID(context.Background(), id)
	require.NoError(t, err)
	return volunteer
}

func withAvailability(a models.Availability) func(*models.Volunteer) {
	return func(v *models.Volunteer) { v.Availability = a }
}

func withStatus(s models.RequestStatus) func(*models.Request) {
	return func(r *models.Request) { r.Status = s }
}
