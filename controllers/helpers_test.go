package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
	"github.com/kendall-kelly/helphub-api/services"
	"github.com/kendall-kelly/helphub-api/testutil"
)

const testVolunteerHeader = "X-Test-Volunteer"

type recordingDispatcher struct {
	mu         sync.Mutex
	notified   map[uuid.UUID][]uuid.UUID
	deliveries []models.OtpDelivery
}

func (d *recordingDispatcher) NotifyCandidates(ctx context.Context, volunteerIDs []uuid.UUID, summary models.RequestSummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notified == nil {
		d.notified = make(map[uuid.UUID][]uuid.UUID)
	}
	d.notified[summary.RequestID] = volunteerIDs
	return nil
}

func (d *recordingDispatcher) DeliverOtp(ctx context.Context, delivery models.OtpDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, delivery)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
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

type testEnv struct {
	router     *gin.Engine
	store      *repository.GormStore
	lifecycle  *services.RequestLifecycle
	dispatcher *recordingDispatcher
	storage    *services.MockS3Service
	clock      *testClock
}

// fakeAuth stands in for token validation: the volunteer id comes from a header
func fakeAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(testVolunteerHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "INVALID_TOKEN", "message": "Failed to validate JWT."},
			})
			return
		}
		testutil.SetMockAuthContext(c, uuid.MustParse(raw), services.RoleVolunteer)
		c.Next()
	}
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Volunteer{}, &models.Request{}), "Failed to migrate test database")

	store := repository.NewGormStore(db)
	clock := &testClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	dispatcher := &recordingDispatcher{}
	lifecycle := services.NewRequestLifecycle(store, services.NewOtpGenerator(clock.Now, nil), dispatcher, nil, zerolog.Nop(), 0)
	t.Cleanup(lifecycle.Close)

	tokens, err := services.NewTokenService("test-secret", "helphub-api", "helphub-volunteers", time.Hour)
	require.NoError(t, err)
	storage := services.NewMockS3Service()
	volunteers := services.NewVolunteerService(store, tokens, services.NewImageService(storage), zerolog.Nop())

	requests := NewRequestController(lifecycle, zerolog.Nop())
	otp := NewOtpController(lifecycle, zerolog.Nop())
	auth := NewAuthController(volunteers, zerolog.Nop())
	profiles := NewVolunteerController(volunteers, zerolog.Nop())

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/requests", requests.CreateRequest)
	v1.GET("/requests/:id", requests.GetRequest)
	v1.PUT("/requests/:id/cancel", requests.CancelRequest)
	v1.POST("/requests/:id/feedback", requests.SubmitFeedback)
	v1.PUT("/requests/:id/assign", fakeAuth(), requests.AssignVolunteer)
	v1.PUT("/requests/:id/start", fakeAuth(), requests.StartService)
	v1.GET("/volunteers/available", requests.ListAvailableVolunteers)
	v1.GET("/volunteers/:id", profiles.GetVolunteer)
	v1.POST("/otp/generate", otp.Generate)
	v1.POST("/otp/resend", otp.Resend)
	v1.POST("/otp/verify", otp.Verify)
	v1.GET("/otp/status/:requestId", otp.Status)
	v1.POST("/auth/register", auth.Register)
	v1.POST("/auth/login", auth.Login)
	v1.GET("/auth/me", fakeAuth(), auth.Me)
	v1.PUT("/auth/profile", fakeAuth(), auth.UpdateProfile)
	dashboard := v1.Group("/dashboard", fakeAuth())
	dashboard.GET("/requests", profiles.OpenRequests)
	dashboard.GET("/jobs", profiles.MyJobs)
	dashboard.PUT("/availability", profiles.UpdateAvailability)
	dashboard.GET("/stats", profiles.Stats)
	dashboard.PUT("/profile-image", profiles.UploadProfileImage)

	return &testEnv{
		router:     router,
		store:      store,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		storage:    storage,
		clock:      clock,
	}
}

// do sends a JSON request, optionally as volunteerID, and decodes the envelope
func (e *testEnv) do(t *testing.T, method, path string, body interface{}, volunteerID *uuid.UUID) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if volunteerID != nil {
		req.Header.Set(testVolunteerHeader, volunteerID.String())
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "Response should be valid JSON: %s", w.Body.String())
	return w.Code, response
}

func (e *testEnv) createVolunteer(t *testing.T, opts ...func(*models.Volunteer)) *models.Volunteer {
	t.Helper()
	volunteer := &models.Volunteer{
		FirstName:    "Sam",
		LastName:     "Rivera",
		Email:        fmt.Sprintf("sam-%s@example.com", uuid.NewString()[:8]),
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
	require.NoError(t, e.store.Volunteers().Create(context.Background(), volunteer))
	return volunteer
}

func (e *testEnv) createRequest(t *testing.T) *models.Request {
	t.Helper()
	request := &models.Request{
		Customer:      models.CustomerInfo{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "+1-512-555-0199"},
		Service:       models.ServiceDetails{Category: "Cleaning", Description: "Deep clean", Urgency: models.UrgencyMedium, EstimatedDuration: "3 hours"},
		Location:      models.Location{Address: "500 Congress Ave", City: "Austin", State: "TX", ZipCode: "78701"},
		Payment:       models.Payment{Amount: 1500, Currency: "INR", Status: models.PaymentStatusPending},
		Status:        models.RequestStatusPending,
		ScheduledDate: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, e.store.Requests().Create(context.Background(), request))
	return request
}

// assign claims request for volunteer and returns the code the customer received
func (e *testEnv) assign(t *testing.T, request *models.Request, volunteer *models.Volunteer) string {
	t.Helper()
	status, response := e.do(t, http.MethodPut, "/api/v1/requests/"+request.ID.String()+"/assign", nil, &volunteer.ID)
	require.Equal(t, http.StatusOK, status, "assign failed: %v", response)

	stored, err := e.store.Requests().FindByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OTP.Code)
	return *stored.OTP.Code
}

func errorCode(response map[string]interface{}) string {
	errObj, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func validRequestBody() map[string]interface{} {
	return map[string]interface{}{
		"customer_info": map[string]interface{}{
			"first_name": "Jane",
			"last_name":  "Doe",
			"email":      "Jane@Example.com",
			"phone":      "+1-512-555-0199",
		},
		"service_details": map[string]interface{}{
			"category":           "Cleaning",
			"description":        "Deep clean of a two bedroom apartment",
			"urgency":            "high",
			"estimated_duration": "3 hours",
		},
		"location": map[string]interface{}{
			"address":  "500 Congress Ave",
			"city":     "Austin",
			"state":    "TX",
			"zip_code": "78701",
		},
		"payment": map[string]interface{}{
			"amount": 1500,
		},
		"scheduled_date": "2026-03-20T09:00:00Z",
	}
}
